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

package hosttracker

import (
	"context"
	"fmt"
	"time"

	"github.com/superkkt/sprout/clock"
	"github.com/superkkt/sprout/network"
	"github.com/superkkt/sprout/northbound/app"
	"github.com/superkkt/sprout/openflow"
	"github.com/superkkt/sprout/protocol"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("hosttracker")
)

const DefaultIdleTimeout = 300 * time.Second

// Tracker learns host locations from ARP and IPv4 packets forwarded to the
// controller.
type Tracker struct {
	app.BaseProcessor
	table   *Table
	clock   clock.Clock
	timeout time.Duration
}

func New(c clock.Clock, idleTimeout time.Duration) *Tracker {
	if c == nil {
		panic("nil clock")
	}

	return &Tracker{
		table:   NewTable(idleTimeout),
		clock:   c,
		timeout: idleTimeout,
	}
}

func (r *Tracker) Name() string {
	return "HostTracker"
}

func (r *Tracker) String() string {
	return fmt.Sprintf("%v: %v host(s)", r.Name(), r.table.Len())
}

func (r *Tracker) Table() *Table {
	return r.table
}

// Run removes idle hosts once per idle timeout until ctx is canceled, so a
// host may be kept up to twice the timeout.
func (r *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(r.timeout)
	defer ticker.Stop()

	logger.Infof("host aging started: idle timeout=%v", r.timeout)
	r.table.expireLoop(ctx, ticker.C, r.clock)
	logger.Info("host aging stopped")
}

func (r *Tracker) OnPacketIn(finder network.Finder, device *network.Device, packet openflow.PacketIn) error {
	r.observe(device.ID(), packet)
	return r.BaseProcessor.OnPacketIn(finder, device, packet)
}

func (r *Tracker) observe(dpid uint64, packet openflow.PacketIn) {
	frame, err := protocol.Decode(packet.Data)
	if err != nil {
		logger.Debugf("failed to decode a frame from DPID=%v: %v", dpid, err)
		return
	}
	ip, mac, ok := frame.Sender()
	if !ok {
		return
	}
	// ARP probes and DHCP clients without a lease send from 0.0.0.0.
	if ip.IsUnspecified() {
		return
	}

	now := r.clock.Now()
	if r.table.ClassifyRouter(mac, now) {
		return
	}
	r.table.Observe(ip, mac, dpid, packet.InPort, now)
	// A second address behind the same MAC is caught right away instead of
	// on the next packet.
	r.table.ClassifyRouter(mac, now)
}

func (r *Tracker) OnDeviceDown(finder network.Finder, device *network.Device) error {
	if n := r.table.RemoveSwitch(device.ID()); n > 0 {
		logger.Debugf("removed %v host entries of DPID=%v", n, device.ID())
	}

	return r.BaseProcessor.OnDeviceDown(finder, device)
}
