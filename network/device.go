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
	"errors"
	"fmt"
	"sync"

	"github.com/superkkt/sprout/openflow"
)

type State int

const (
	// Connected, waiting for the FEATURES_REPLY that tells us the DPID.
	StateAwaitingFeatures State = iota
	StateActive
	StateDead
)

func (r State) String() string {
	switch r {
	case StateAwaitingFeatures:
		return "AwaitingFeatures"
	case StateActive:
		return "Active"
	case StateDead:
		return "Dead"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// Sender delivers commands to a switch.
type Sender interface {
	Send(openflow.Command) error
}

type Device struct {
	mutex  sync.RWMutex
	id     uint64
	state  State
	sender Sender
}

var (
	ErrClosedDevice = errors.New("already closed device")
)

func newDevice(s Sender) *Device {
	if s == nil {
		panic("Sender is nil")
	}

	return &Device{sender: s}
}

// NewDevice returns an active device identified by id whose commands are
// delivered by s.
func NewDevice(id uint64, s Sender) *Device {
	d := newDevice(s)
	d.activate(id)

	return d
}

func (r *Device) String() string {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return fmt.Sprintf("Device DPID=%v, State=%v", r.id, r.state)
}

func (r *Device) ID() uint64 {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.id
}

func (r *Device) State() State {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.state
}

func (r *Device) activate(id uint64) {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.id = id
	r.state = StateActive
}

// SendMessage sends cmd to the switch. It does not wait for any response.
func (r *Device) SendMessage(cmd openflow.Command) error {
	r.mutex.RLock()
	id, state := r.id, r.state
	r.mutex.RUnlock()

	if state == StateDead {
		return ErrClosedDevice
	}
	logger.Debugf("sending to DPID=%v: %v", id, cmd)

	return r.sender.Send(cmd)
}

// RemoveAllFlows removes every flow rule installed on the switch.
func (r *Device) RemoveAllFlows() error {
	return r.SendMessage(openflow.NewDeleteAllFlows())
}

func (r *Device) Close() {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.state = StateDead
}
