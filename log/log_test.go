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

package log

import (
	"strconv"
	"testing"

	"github.com/op/go-logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logging.Level
		valid    bool
	}{
		{"debug", logging.DEBUG, true},
		{" Info ", logging.INFO, true},
		{"WARNING", logging.WARNING, true},
		{"verbose", 0, false},
	}

	for _, v := range tests {
		level, err := ParseLevel(v.level)
		if (err == nil) != v.valid {
			t.Fatalf("unexpected error for %q: %v", v.level, err)
		}
		if v.valid && level != v.expected {
			t.Fatalf("unexpected level: expected=%v, actual=%v", v.expected, level)
		}
	}
}

func TestInit(t *testing.T) {
	leveled, err := Init(BackendStderr, "test", logging.WARNING)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !leveled.IsEnabledFor(logging.ERROR, "api") || leveled.IsEnabledFor(logging.INFO, "api") {
		t.Fatal("unexpected module level")
	}
	leveled.SetLevel(logging.DEBUG, "")
	if !leveled.IsEnabledFor(logging.DEBUG, "network") {
		t.Fatal("level is not changed")
	}

	if _, err := Init("kafka", "test", logging.INFO); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestGoroutineID(t *testing.T) {
	if _, err := strconv.ParseUint(goroutineID(), 10, 64); err != nil {
		t.Fatalf("unexpected goroutine ID: %v", err)
	}
}
