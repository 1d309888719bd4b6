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

// Package cookie generates the 64-bit handles that the controller attaches to
// the flow rules it installs.
package cookie

import (
	"math/rand"
	"sync"
)

type Generator interface {
	Next() uint64
}

// Random draws cookies from a pseudo-random source. It is safe for concurrent
// use by multiple goroutines.
type Random struct {
	mutex sync.Mutex
	rand  *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rand: rand.New(rand.NewSource(seed))}
}

func (r *Random) Next() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.rand.Uint64()
}

// Sequence returns consecutive cookies starting from a given value.
type Sequence struct {
	mutex sync.Mutex
	next  uint64
}

func NewSequence(start uint64) *Sequence {
	return &Sequence{next: start}
}

func (r *Sequence) Next() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v := r.next
	r.next++

	return v
}
