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
	"time"
)

// stormController limits the number of floods per second. The caller should
// lock the switch state before calling allow.
type stormController struct {
	max        uint
	broadcasts []time.Time
}

// max is the number of broadcasts that are allowed per second.
func newStormController(max uint) *stormController {
	if max <= 0 {
		panic("max should be greater than zero")
	}

	return &stormController{
		max:        max,
		broadcasts: make([]time.Time, 0),
	}
}

func (r *stormController) allow(t time.Time) bool {
	bcasts := append(r.broadcasts, t)
	l := uint(len(bcasts))
	if l <= r.max {
		r.broadcasts = bcasts
		return true
	}
	// Only allows r.max broadcasts per 1 second
	if t.Sub(bcasts[0]) > 1*time.Second {
		// Shrink (l > r.max)
		r.broadcasts = bcasts[l-r.max : l]
		return true
	}
	// Deny! r.broadcasts should not be updated!

	return false
}
