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

package l2switch

import (
	"fmt"
	"net"

	"github.com/hashicorp/golang-lru"
)

// macTable maps MAC addresses to the switch port they were last seen on. The
// least recently used binding is evicted when the table is full, which only
// makes the switch flood traffic to that MAC until it is learned again.
type macTable struct {
	cache *lru.Cache
}

func newMACTable(size int) *macTable {
	c, err := lru.New(size)
	if err != nil {
		panic(fmt.Sprintf("LRU MAC table: %v", err))
	}

	return &macTable{
		cache: c,
	}
}

func (r *macTable) learn(mac net.HardwareAddr, port uint32) {
	// Update if the key already exists
	r.cache.Add(mac.String(), port)
}

func (r *macTable) lookup(mac net.HardwareAddr) (port uint32, ok bool) {
	v, ok := r.cache.Get(mac.String())
	if !ok {
		return 0, false
	}

	return v.(uint32), true
}

func (r *macTable) len() int {
	return r.cache.Len()
}
