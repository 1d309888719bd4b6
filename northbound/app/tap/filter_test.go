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

package tap

import (
	"encoding/json"
	"testing"

	"github.com/superkkt/sprout/openflow"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestFilterUnmarshal(t *testing.T) {
	data := `{
		"sources": [{"dpid": 1, "port_no": "all"}, {"dpid": 1, "port_no": 2}],
		"sinks": [{"dpid": 1, "port_no": 3}],
		"fields": {"dl_host": "AA:BB:CC:DD:EE:FF", "nw_proto": 6, "tp_port": "80", "nw_dst": "10.0.0.0/8"}
	}`

	var f Filter
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	expected := Filter{
		Sources: []Endpoint{{DPID: 1, All: true}, {DPID: 1, Port: 2}},
		Sinks:   []Endpoint{{DPID: 1, Port: 3}},
		Fields: openflow.Match{
			FieldDLHost:           "aa:bb:cc:dd:ee:ff",
			openflow.FieldNWProto: "6",
			FieldTPPort:           "80",
			openflow.FieldNWDst:   "10.0.0.0/8",
		},
	}
	if !cmp.Equal(expected, f) {
		t.Fatalf("unexpected filter: %v", cmp.Diff(expected, f))
	}
}

func TestEndpointJSON(t *testing.T) {
	tests := []struct {
		endpoint Endpoint
		json     string
	}{
		{Endpoint{DPID: 7, All: true}, `{"dpid":7,"port_no":"all"}`},
		{Endpoint{DPID: 7, Port: 4}, `{"dpid":7,"port_no":4}`},
	}

	for _, v := range tests {
		b, err := json.Marshal(v.endpoint)
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		if string(b) != v.json {
			t.Fatalf("unexpected JSON: expected=%v, actual=%v", v.json, string(b))
		}

		var e Endpoint
		if err := json.Unmarshal(b, &e); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if e != v.endpoint {
			t.Fatalf("unexpected endpoint: expected=%v, actual=%v", v.endpoint, e)
		}
	}
}

func TestInvalidFilter(t *testing.T) {
	tests := []string{
		// Sink on all ports.
		`{"sources": [{"dpid": 1, "port_no": 1}], "sinks": [{"dpid": 1, "port_no": "all"}]}`,
		// Malformed MAC address.
		`{"sources": [{"dpid": 1, "port_no": 1}], "sinks": [{"dpid": 1, "port_no": 2}], "fields": {"dl_host": "aa:bb"}}`,
		// Malformed IPv4 prefix.
		`{"sources": [{"dpid": 1, "port_no": 1}], "sinks": [{"dpid": 1, "port_no": 2}], "fields": {"nw_host": "10.0.0.1/33"}}`,
		// Port out of range.
		`{"sources": [{"dpid": 1, "port_no": 1}], "sinks": [{"dpid": 1, "port_no": 2}], "fields": {"tp_port": 65536}}`,
		`{"sources": [{"dpid": 1, "port_no": 1}], "sinks": [{"dpid": 1, "port_no": 2}], "fields": {"vlan": 1}}`,
		`{"sources": [{"dpid": 1, "port_no": 1}], "sinks": [{"dpid": 1, "port_no": 2}], "fields": {"in_port": 1}}`,
		`{"sources": [{"dpid": 1}], "sinks": [{"dpid": 1, "port_no": 2}]}`,
		`{"sources": [{"port_no": 1}], "sinks": [{"dpid": 1, "port_no": 2}]}`,
	}

	for _, v := range tests {
		var f Filter
		err := json.Unmarshal([]byte(v), &f)
		if errors.Cause(err) != ErrInvalidFilter {
			t.Fatalf("unexpected error for %v: %v", v, err)
		}
	}
}

func TestValidateRejectsRawValues(t *testing.T) {
	f := Filter{
		Sources: []Endpoint{{DPID: 1, Port: 1}},
		Sinks:   []Endpoint{{DPID: 1, Port: 2}},
		Fields:  openflow.Match{openflow.FieldDLSrc: "AA-BB-CC-DD-EE-FF"},
	}
	if err := f.Validate(); errors.Cause(err) != ErrInvalidFilter {
		t.Fatalf("unexpected error: %v", spew.Sdump(err))
	}

	f.Fields = openflow.Match{openflow.FieldDLSrc: "aa:bb:cc:dd:ee:ff"}
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
