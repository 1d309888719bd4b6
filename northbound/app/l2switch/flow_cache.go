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
	"sort"

	"github.com/superkkt/sprout/cookie"
	"github.com/superkkt/sprout/openflow"
)

// Flow is a rule installed on a switch by the learning switch.
type Flow struct {
	DPID        uint64            `json:"dpid"`
	Cookie      uint64            `json:"cookie"`
	Priority    uint16            `json:"priority"`
	IdleTimeout uint16            `json:"idle_timeout"`
	HardTimeout uint16            `json:"hard_timeout"`
	Match       openflow.Match    `json:"match"`
	Actions     []openflow.Action `json:"actions"`
}

func newFlow(dpid uint64, f openflow.FlowMod) Flow {
	return Flow{
		DPID:        dpid,
		Cookie:      f.Cookie,
		Priority:    f.Priority,
		IdleTimeout: f.IdleTimeout,
		HardTimeout: f.HardTimeout,
		Match:       f.Match.Clone(),
		Actions:     append([]openflow.Action(nil), f.Actions...),
	}
}

// flowCache holds the installed flows of a switch keyed by cookie. The caller
// should lock the switch state before calling its methods.
type flowCache struct {
	flows map[uint64]Flow
}

func newFlowCache() *flowCache {
	return &flowCache{
		flows: make(map[uint64]Flow),
	}
}

// newCookie draws a cookie from g that is neither zero nor used by another
// flow of this switch.
func (r *flowCache) newCookie(g cookie.Generator) uint64 {
	for {
		c := g.Next()
		if c == 0 {
			continue
		}
		if _, ok := r.flows[c]; !ok {
			return c
		}
	}
}

func (r *flowCache) add(f Flow) {
	r.flows[f.Cookie] = f
}

func (r *flowCache) remove(cookie uint64) (Flow, bool) {
	f, ok := r.flows[cookie]
	if !ok {
		return Flow{}, false
	}
	delete(r.flows, cookie)

	return f, true
}

// all returns the flows ordered by cookie.
func (r *flowCache) all() []Flow {
	v := make([]Flow, 0, len(r.flows))
	for _, f := range r.flows {
		v = append(v, f)
	}
	sort.Slice(v, func(i, j int) bool { return v[i].Cookie < v[j].Cookie })

	return v
}

func (r *flowCache) len() int {
	return len(r.flows)
}
