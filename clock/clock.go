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

package clock

import (
	"sync"
	"time"
)

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

// System is the Clock backed by the operating system.
type System struct{}

func (r System) Now() time.Time {
	return time.Now()
}

// Manual is a Clock that only moves when it is told to. It is safe for
// concurrent use by multiple goroutines.
type Manual struct {
	mutex sync.Mutex
	now   time.Time
}

func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (r *Manual) Now() time.Time {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.now
}

func (r *Manual) Set(t time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.now = t
}

func (r *Manual) Advance(d time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.now = r.now.Add(d)
}
