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
	"bytes"
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/superkkt/sprout/clock"
)

// Host is the last known location of an IPv4 host.
type Host struct {
	IP       string    `json:"ip"`
	MAC      string    `json:"mac"`
	DPID     uint64    `json:"dpid"`
	Port     uint32    `json:"port"`
	LastSeen time.Time `json:"last_seen"`
}

// Table maps IPv4 addresses to host locations and remembers the MACs that
// turned out to be routers. It is safe for concurrent use by multiple
// goroutines.
type Table struct {
	mutex   sync.Mutex
	timeout time.Duration
	hosts   map[string]Host
	routers map[string]struct{}
}

func NewTable(timeout time.Duration) *Table {
	if timeout <= 0 {
		panic("non-positive host idle timeout")
	}

	return &Table{
		timeout: timeout,
		hosts:   make(map[string]Host),
		routers: make(map[string]struct{}),
	}
}

// Observe records that ip was seen behind port of switch dpid with mac as its
// hardware address. The previous location of ip, if any, is replaced. Traffic
// from a router MAC is ignored.
func (r *Table) Observe(ip net.IP, mac net.HardwareAddr, dpid uint64, port uint32, now time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	m := mac.String()
	if _, ok := r.routers[m]; ok {
		return
	}
	r.hosts[ip.String()] = Host{
		IP:       ip.String(),
		MAC:      m,
		DPID:     dpid,
		Port:     port,
		LastSeen: now,
	}
}

// ClassifyRouter returns whether mac belongs to a router. A MAC that is the
// source of more than one live host entry is a router: all of its entries
// are removed and it is remembered for good.
func (r *Table) ClassifyRouter(mac net.HardwareAddr, now time.Time) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	m := mac.String()
	if _, ok := r.routers[m]; ok {
		return true
	}

	live := 0
	for _, h := range r.hosts {
		if h.MAC == m && now.Sub(h.LastSeen) < r.timeout {
			live++
		}
	}
	if live <= 1 {
		return false
	}

	for ip, h := range r.hosts {
		if h.MAC == m {
			delete(r.hosts, ip)
		}
	}
	r.routers[m] = struct{}{}
	logger.Infof("%v is classified as a router MAC (%v IP addresses)", m, live)

	return true
}

func (r *Table) IsRouter(mac net.HardwareAddr) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, ok := r.routers[mac.String()]
	return ok
}

// Expire removes every entry that has not been seen for the idle timeout and
// returns the number of removed entries.
func (r *Table) Expire(now time.Time) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	n := 0
	for ip, h := range r.hosts {
		if now.Sub(h.LastSeen) >= r.timeout {
			delete(r.hosts, ip)
			n++
		}
	}

	return n
}

// RemoveSwitch removes the entries located on switch dpid.
func (r *Table) RemoveSwitch(dpid uint64) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	n := 0
	for ip, h := range r.hosts {
		if h.DPID == dpid {
			delete(r.hosts, ip)
			n++
		}
	}

	return n
}

// Hosts returns a copy of all entries ordered by IP address.
func (r *Table) Hosts() []Host {
	return r.filter(func(Host) bool { return true })
}

// HostsBySwitch returns a copy of the entries located on switch dpid ordered
// by IP address.
func (r *Table) HostsBySwitch(dpid uint64) []Host {
	return r.filter(func(h Host) bool { return h.DPID == dpid })
}

func (r *Table) filter(fn func(Host) bool) []Host {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v := make([]Host, 0)
	for _, h := range r.hosts {
		if fn(h) {
			v = append(v, h)
		}
	}
	sort.Slice(v, func(i, j int) bool {
		return bytes.Compare(net.ParseIP(v[i].IP).To4(), net.ParseIP(v[j].IP).To4()) < 0
	})

	return v
}

func (r *Table) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.hosts)
}

// expireLoop calls Expire on every tick until ctx is canceled.
func (r *Table) expireLoop(ctx context.Context, tick <-chan time.Time, c clock.Clock) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if n := r.Expire(c.Now()); n > 0 {
				logger.Debugf("expired %v host entries", n)
			}
		}
	}
}
