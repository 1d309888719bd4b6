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
	"net"
	"sync"

	"github.com/superkkt/sprout/openflow"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("network")
)

// EventListener receives the events of every connected switch. Events of one
// switch are delivered in order from a single goroutine; events of different
// switches may be delivered concurrently.
type EventListener interface {
	OnDeviceUp(Finder, *Device) error
	OnDeviceDown(Finder, *Device) error
	OnPacketIn(Finder, *Device, openflow.PacketIn) error
	OnFlowRemoved(Finder, *Device, openflow.FlowRemoved) error
}

type nopListener struct{}

func (nopListener) OnDeviceUp(Finder, *Device) error                          { return nil }
func (nopListener) OnDeviceDown(Finder, *Device) error                        { return nil }
func (nopListener) OnPacketIn(Finder, *Device, openflow.PacketIn) error       { return nil }
func (nopListener) OnFlowRemoved(Finder, *Device, openflow.FlowRemoved) error { return nil }

type Controller struct {
	registry   *registry
	cancellers *canceller

	mutex    sync.RWMutex
	listener EventListener
}

func NewController() *Controller {
	return &Controller{
		registry:   newRegistry(),
		cancellers: newCanceller(),
		listener:   nopListener{},
	}
}

// AddConnection starts a session on c that lasts until ctx is canceled or the
// switch disconnects.
func (r *Controller) AddConnection(ctx context.Context, c net.Conn) {
	r.mutex.RLock()
	listener := r.listener
	r.mutex.RUnlock()

	conf := sessionConfig{
		conn:       c,
		registry:   r.registry,
		cancellers: r.cancellers,
		listener:   listener,
	}
	session := newSession(conf)
	go session.Run(ctx)
}

func (r *Controller) SetEventListener(l EventListener) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.listener = l
}

func (r *Controller) Device(id uint64) *Device {
	return r.registry.Device(id)
}

func (r *Controller) Devices() []*Device {
	return r.registry.Devices()
}

func (r *Controller) String() string {
	return r.registry.String()
}
