/*
 * Cherry - An OpenFlow Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package network

import (
	"context"
	"encoding/binary"
	"errors"
	"net"

	"github.com/superkkt/sprout/openflow"
	"github.com/superkkt/sprout/openflow/transceiver"

	"github.com/contiv/libOpenflow/common"
	"github.com/contiv/libOpenflow/openflow13"
)

const (
	// Large enough to hold the biggest OpenFlow message.
	streamBufSize = 0xFFFF + 1
)

var (
	errNotNegotiated = errors.New("invalid message on non-negotiated session")
)

type session struct {
	negotiated  bool
	device      *Device
	transceiver *transceiver.Transceiver
	writer      transceiver.Writer
	registry    *registry
	cancellers  *canceller
	listener    EventListener
	// A cancel function to disconnect this session.
	cancel context.CancelFunc
}

type sessionConfig struct {
	conn       net.Conn
	registry   *registry
	cancellers *canceller
	listener   EventListener
}

func checkParam(c sessionConfig) {
	if c.conn == nil {
		panic("Conn is nil")
	}
	if c.registry == nil {
		panic("Registry is nil")
	}
	if c.cancellers == nil {
		panic("Canceller is nil")
	}
	if c.listener == nil {
		panic("Listener is nil")
	}
}

func newSession(c sessionConfig) *session {
	checkParam(c)

	v := &session{
		registry:   c.registry,
		cancellers: c.cancellers,
		listener:   c.listener,
	}
	v.device = newDevice(v)
	v.transceiver = transceiver.NewTransceiver(transceiver.NewStream(c.conn, streamBufSize), v)
	v.writer = v.transceiver

	return v
}

// Send implements Sender for the session's device.
func (r *session) Send(cmd openflow.Command) error {
	msg, err := openflow.Marshal(cmd)
	if err != nil {
		return err
	}

	return r.writer.Write(msg)
}

func (r *session) OnHello(w transceiver.Writer, v *common.Hello) error {
	logger.Debugf("HELLO (ver=%v) is received", v.Version)

	// Ignore duplicated HELLO messages
	if r.negotiated {
		return nil
	}
	r.negotiated = true

	return w.Write(openflow13.NewFeaturesRequest())
}

func (r *session) OnError(w transceiver.Writer, v *openflow13.ErrorMsg) error {
	e := openflow.UnmarshalError(v)
	logger.Errorf("ERROR from DPID=%v (type=%v, code=%v, data=%x)", r.device.ID(), e.Type, e.Code, e.Data)

	return nil
}

func (r *session) OnFeaturesReply(w transceiver.Writer, v *openflow13.SwitchFeatures) error {
	if !r.negotiated {
		return errNotNegotiated
	}
	if len(v.DPID) != 8 {
		return errors.New("invalid DPID length in FEATURES_REPLY")
	}
	dpid := binary.BigEndian.Uint64(v.DPID)
	logger.Debugf("FEATURES_REPLY (DPID=%v)", dpid)

	// Only the first FEATURES_REPLY initializes the device.
	if r.device.State() != StateAwaitingFeatures {
		return nil
	}

	// Already connected device?
	if r.registry.Device(dpid) != nil {
		if cancel, ok := r.cancellers.pop(dpid); ok {
			// Some switches open a fresh connection after a momentary link
			// failure while the old one still looks alive. Drop the old one so
			// that the next attempt succeeds.
			cancel()
		}
		return errors.New("duplicated device DPID (aux. connection is not supported)")
	}

	r.device.activate(dpid)
	if err := r.registry.add(r.device); err != nil {
		return err
	}
	if r.cancel != nil {
		r.cancellers.push(dpid, r.cancel)
	}
	logger.Infof("device is up: DPID=%v", dpid)

	// Start from an empty flow table.
	if err := r.device.RemoveAllFlows(); err != nil {
		return err
	}

	return r.listener.OnDeviceUp(r.registry, r.device)
}

func (r *session) OnFlowRemoved(w transceiver.Writer, v *openflow13.FlowRemoved) error {
	if r.device.State() != StateActive {
		logger.Debug("ignoring FLOW_REMOVED from an inactive device")
		return nil
	}

	if err := r.listener.OnFlowRemoved(r.registry, r.device, openflow.UnmarshalFlowRemoved(v)); err != nil {
		logger.Errorf("OnFlowRemoved: %v", err)
	}

	return nil
}

func (r *session) OnPacketIn(w transceiver.Writer, packet []byte) error {
	if r.device.State() != StateActive {
		logger.Debug("ignoring PACKET_IN from an inactive device")
		return nil
	}

	p, err := openflow.UnmarshalPacketIn(packet)
	if err != nil {
		logger.Errorf("invalid PACKET_IN from DPID=%v: %v", r.device.ID(), err)
		return nil
	}
	if err := r.listener.OnPacketIn(r.registry, r.device, p); err != nil {
		logger.Errorf("OnPacketIn: %v", err)
	}

	return nil
}

func (r *session) Run(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// This canceller will be used to disconnect this session when it is necessary.
	r.cancel = cancel

	if err := r.transceiver.Run(sessionCtx); err != nil {
		logger.Errorf("openflow transceiver is unexpectedly closed: %v", err)
	}
	logger.Infof("disconnected device (DPID=%v)", r.device.ID())

	r.transceiver.Close()
	r.teardown()
}

func (r *session) teardown() {
	active := r.device.State() == StateActive
	r.device.Close()
	if !active {
		return
	}

	if !r.registry.remove(r.device) {
		return
	}
	r.cancellers.pop(r.device.ID())
	if err := r.listener.OnDeviceDown(r.registry, r.device); err != nil {
		logger.Errorf("OnDeviceDown: %v", err)
	}
}
