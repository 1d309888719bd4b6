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

package openflow

import (
	"fmt"
	"strings"
)

// Reserved port numbers.
const (
	PortFlood      uint32 = 0xfffffffb
	PortAll        uint32 = 0xfffffffc
	PortController uint32 = 0xfffffffd
	PortAny        uint32 = 0xffffffff
)

const (
	// NoBuffer means that a packet is not buffered on the switch.
	NoBuffer uint32 = 0xffffffff
	// DefaultPriority is the priority OpenFlow assigns to a rule when none is given.
	DefaultPriority uint16 = 0x8000
)

type Action struct {
	OutPort uint32 `json:"out_port"`
}

func (r Action) String() string {
	switch r.OutPort {
	case PortFlood:
		return "output:FLOOD"
	case PortAll:
		return "output:ALL"
	case PortController:
		return "output:CONTROLLER"
	default:
		return fmt.Sprintf("output:%v", r.OutPort)
	}
}

func formatActions(actions []Action) string {
	if len(actions) == 0 {
		return "drop"
	}

	s := make([]string, len(actions))
	for i, v := range actions {
		s[i] = v.String()
	}

	return strings.Join(s, ",")
}

// Command is a message the controller sends to a switch.
type Command interface {
	fmt.Stringer
	isCommand()
}

type FlowModCommand uint8

const (
	FlowAdd FlowModCommand = iota
	FlowDelete
)

func (r FlowModCommand) String() string {
	switch r {
	case FlowAdd:
		return "ADD"
	case FlowDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("UNKNOWN(%v)", uint8(r))
	}
}

// FlowMod adds or deletes flow rules. A delete removes every rule matching
// Match (any out port, any group) across all tables, further narrowed to
// Cookie when CookieMask is not zero.
type FlowMod struct {
	Command     FlowModCommand
	Cookie      uint64
	CookieMask  uint64
	Priority    uint16
	IdleTimeout uint16
	HardTimeout uint16
	// BufferID is applied to the new rule when it is not NoBuffer.
	BufferID uint32
	Match    Match
	Actions  []Action
	// NotifyRemoval asks the switch to report the removal of the rule.
	NotifyRemoval bool
}

func (r FlowMod) isCommand() {}

func (r FlowMod) String() string {
	return fmt.Sprintf("FLOW_MOD(%v, cookie=0x%x, priority=%v, idle=%v, hard=%v, buffer=0x%x, match=%v, actions=%v)",
		r.Command, r.Cookie, r.Priority, r.IdleTimeout, r.HardTimeout, r.BufferID, r.Match, formatActions(r.Actions))
}

// NewDeleteAllFlows returns a FlowMod that removes every rule of a switch.
func NewDeleteAllFlows() FlowMod {
	return FlowMod{
		Command:  FlowDelete,
		BufferID: NoBuffer,
		Match:    Match{},
	}
}

// PacketOut sends a packet through the switch's data plane. Data carries the
// raw frame and is ignored when BufferID refers to a buffered packet.
type PacketOut struct {
	BufferID uint32
	InPort   uint32
	Actions  []Action
	Data     []byte
}

func (r PacketOut) isCommand() {}

func (r PacketOut) String() string {
	return fmt.Sprintf("PACKET_OUT(buffer=0x%x, in_port=%v, actions=%v, len=%v)", r.BufferID, r.InPort, formatActions(r.Actions), len(r.Data))
}

// PacketIn is a packet that a switch forwarded to the controller.
type PacketIn struct {
	BufferID uint32
	InPort   uint32
	Reason   uint8
	TableID  uint8
	Cookie   uint64
	// Data is the raw Ethernet frame.
	Data []byte
}

// Buffered returns whether the switch keeps a copy of the packet that can be
// referred to by BufferID.
func (r PacketIn) Buffered() bool {
	return r.BufferID != NoBuffer
}

// FlowRemoved reports the removal of a rule installed with NotifyRemoval.
type FlowRemoved struct {
	Cookie   uint64
	Priority uint16
	Reason   uint8
	TableID  uint8
	Match    Match
}

// Error is an OpenFlow error message sent by a switch.
type Error struct {
	Type uint16
	Code uint16
	Data []byte
}

func (r Error) Error() string {
	return fmt.Sprintf("openflow error: type=%v, code=%v, data=%x", r.Type, r.Code, r.Data)
}
