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
	"strconv"

	"github.com/superkkt/sprout/cookie"
	"github.com/superkkt/sprout/openflow"

	"github.com/pkg/errors"
)

var ErrCrossSwitch = errors.New("source and sink are on different switches")

// Command is a flow rule to be sent to the switch whose DPID is DPID.
type Command struct {
	DPID    uint64
	FlowMod openflow.FlowMod
}

// expand replaces the first broadened field of fields with each of its two
// literal fields and recurses. A broadened field overrides a literal field of
// the same name. fields is never modified.
func expand(fields openflow.Match) []openflow.Match {
	for _, b := range broadened {
		value, ok := fields[b.name]
		if !ok {
			continue
		}

		var result []openflow.Match
		for _, name := range b.fields {
			m := fields.Clone()
			delete(m, b.name)
			m[name] = value
			result = append(result, expand(m)...)
		}
		return result
	}

	return []openflow.Match{fields.Clone()}
}

func withInPort(fields openflow.Match, source Endpoint) openflow.Match {
	m := fields.Clone()
	if !source.All {
		m[openflow.FieldInPort] = strconv.FormatUint(uint64(source.Port), 10)
	}

	return m
}

func nextCookie(g cookie.Generator) uint64 {
	for {
		if c := g.Next(); c != 0 {
			return c
		}
	}
}

// compileFields returns the install commands of every (source, sink) pair for
// the literal field set fields. Nothing is returned if any pair crosses
// switches.
func compileFields(f Filter, fields openflow.Match, g cookie.Generator) ([]Command, error) {
	var result []Command
	for _, source := range f.Sources {
		for _, sink := range f.Sinks {
			if source == sink {
				continue
			}
			if source.DPID != sink.DPID {
				return nil, errors.Wrapf(ErrCrossSwitch, "source=%v, sink=%v", source, sink)
			}

			result = append(result, Command{
				DPID: source.DPID,
				FlowMod: openflow.FlowMod{
					Command:  openflow.FlowAdd,
					Cookie:   nextCookie(g),
					Priority: openflow.DefaultPriority,
					BufferID: openflow.NoBuffer,
					Match:    withInPort(fields, source),
					Actions:  []openflow.Action{{OutPort: sink.Port}},
				},
			})
		}
	}

	return result, nil
}

// Compile returns the install commands of f without sending them.
func Compile(f Filter, g cookie.Generator) ([]Command, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var result []Command
	for _, fields := range expand(f.Fields) {
		cmds, err := compileFields(f, fields, g)
		if err != nil {
			return nil, err
		}
		result = append(result, cmds...)
	}

	return result, nil
}
