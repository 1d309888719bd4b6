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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/superkkt/sprout/openflow"

	"github.com/pkg/errors"
)

var ErrInvalidFilter = errors.New("invalid tap filter")

// Broadened pseudo-fields. Each stands for both directions of a literal field.
const (
	FieldDLHost = "dl_host"
	FieldNWHost = "nw_host"
	FieldTPPort = "tp_port"
)

// broadened is ordered: expansion always picks the first present key.
var broadened = []struct {
	name   string
	fields [2]string
}{
	{FieldDLHost, [2]string{openflow.FieldDLSrc, openflow.FieldDLDst}},
	{FieldNWHost, [2]string{openflow.FieldNWSrc, openflow.FieldNWDst}},
	{FieldTPPort, [2]string{openflow.FieldTPSrc, openflow.FieldTPDst}},
}

// literalOf returns the literal field whose values are valid for name.
func literalOf(name string) string {
	for _, v := range broadened {
		if v.name == name {
			return v.fields[0]
		}
	}

	return name
}

const allPorts = "all"

// Endpoint is a port of a switch. All is set for a source that captures the
// traffic of every ingress port.
type Endpoint struct {
	DPID uint64
	Port uint32
	All  bool
}

func (r Endpoint) String() string {
	if r.All {
		return fmt.Sprintf("%v:%v", r.DPID, allPorts)
	}

	return fmt.Sprintf("%v:%v", r.DPID, r.Port)
}

type endpointJSON struct {
	DPID *uint64      `json:"dpid"`
	Port interface{} `json:"port_no"`
}

func (r Endpoint) MarshalJSON() ([]byte, error) {
	v := endpointJSON{DPID: &r.DPID, Port: r.Port}
	if r.All {
		v.Port = allPorts
	}

	return json.Marshal(v)
}

// UnmarshalJSON accepts {"dpid": 1, "port_no": 3} and {"dpid": 1, "port_no": "all"}.
func (r *Endpoint) UnmarshalJSON(data []byte) error {
	var v endpointJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if v.DPID == nil {
		return errors.Wrap(ErrInvalidFilter, "missing dpid")
	}
	if v.Port == nil {
		return errors.Wrap(ErrInvalidFilter, "missing port_no")
	}

	if s, ok := v.Port.(string); ok && strings.EqualFold(s, allPorts) {
		*r = Endpoint{DPID: *v.DPID, All: true}
		return nil
	}
	port, err := openflow.NormalizeField(openflow.FieldInPort, v.Port)
	if err != nil {
		return errors.Wrap(ErrInvalidFilter, err.Error())
	}
	n, err := strconv.ParseUint(port, 10, 32)
	if err != nil {
		return errors.Wrap(ErrInvalidFilter, err.Error())
	}
	*r = Endpoint{DPID: *v.DPID, Port: uint32(n)}

	return nil
}

// Filter selects the traffic that is copied from the sources to the sinks.
// Fields may contain the broadened pseudo-fields besides the literal match
// fields.
type Filter struct {
	Sources []Endpoint     `json:"sources"`
	Sinks   []Endpoint     `json:"sinks"`
	Fields  openflow.Match `json:"fields"`
}

// NewFilter validates and normalizes fields. Values of a broadened field are
// normalized the same way as its literal fields.
func NewFilter(sources, sinks []Endpoint, fields map[string]interface{}) (Filter, error) {
	m := make(openflow.Match, len(fields))
	for name, value := range fields {
		v, err := normalize(name, value)
		if err != nil {
			return Filter{}, err
		}
		m[name] = v
	}

	f := Filter{Sources: sources, Sinks: sinks, Fields: m}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}

	return f, nil
}

func normalize(name string, value interface{}) (string, error) {
	if name == openflow.FieldInPort {
		return "", errors.Wrap(ErrInvalidFilter, "in_port is given by the sources")
	}
	v, err := openflow.NormalizeField(literalOf(name), value)
	if err != nil {
		return "", errors.Wrap(ErrInvalidFilter, err.Error())
	}

	return v, nil
}

func (r *Filter) UnmarshalJSON(data []byte) error {
	var v struct {
		Sources []Endpoint             `json:"sources"`
		Sinks   []Endpoint             `json:"sinks"`
		Fields  map[string]interface{} `json:"fields"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}

	f, err := NewFilter(v.Sources, v.Sinks, v.Fields)
	if err != nil {
		return err
	}
	*r = f

	return nil
}

// Validate checks that no sink is "all" and that every field is known and
// normalized.
func (r Filter) Validate() error {
	for _, v := range r.Sinks {
		if v.All {
			return errors.Wrapf(ErrInvalidFilter, "sink on all ports: DPID=%v", v.DPID)
		}
	}
	for name, value := range r.Fields {
		v, err := normalize(name, value)
		if err != nil {
			return err
		}
		if v != value {
			return errors.Wrapf(ErrInvalidFilter, "not normalized: %v=%v", name, value)
		}
	}

	return nil
}

func (r Filter) String() string {
	return fmt.Sprintf("sources=%v, sinks=%v, fields=%v", r.Sources, r.Sinks, r.Fields)
}
