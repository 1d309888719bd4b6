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
	"fmt"
	"sort"
	"sync"
)

// Finder looks up connected switches.
type Finder interface {
	// Device returns the active device whose DPID is id, or nil.
	Device(id uint64) *Device
	// Devices returns all active devices ordered by DPID.
	Devices() []*Device
}

type registry struct {
	mutex   sync.RWMutex
	devices map[uint64]*Device
}

func newRegistry() *registry {
	return &registry{devices: make(map[uint64]*Device)}
}

func (r *registry) Device(id uint64) *Device {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.devices[id]
}

func (r *registry) Devices() []*Device {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		v = append(v, d)
	}
	sort.Slice(v, func(i, j int) bool { return v[i].ID() < v[j].ID() })

	return v
}

func (r *registry) add(d *Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id := d.ID()
	if _, ok := r.devices[id]; ok {
		return fmt.Errorf("duplicated device DPID: %v", id)
	}
	r.devices[id] = d

	return nil
}

// remove removes d if it is still the device registered under its DPID.
func (r *registry) remove(d *Device) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id := d.ID()
	if r.devices[id] != d {
		return false
	}
	delete(r.devices, id)

	return true
}

func (r *registry) String() string {
	v := "Registry:\n"
	for _, d := range r.Devices() {
		v += fmt.Sprintf("\t%v\n", d)
	}

	return v
}
