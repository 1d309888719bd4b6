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
	"encoding"
	"encoding/binary"
	"net"
	"strconv"
	"strings"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
	"github.com/pkg/errors"
)

const (
	ethTypeIPv4 = 0x0800
	ethTypeARP  = 0x0806
	ipProtoTCP  = 6
	ipProtoUDP  = 17

	allTables = 0xFF
)

// Marshal translates cmd into an OpenFlow 1.3 message.
func Marshal(cmd Command) (encoding.BinaryMarshaler, error) {
	switch v := cmd.(type) {
	case FlowMod:
		return marshalFlowMod(v)
	case PacketOut:
		return marshalPacketOut(v), nil
	default:
		return nil, errors.Errorf("unsupported command: %v", cmd)
	}
}

func marshalFlowMod(f FlowMod) (*openflow13.FlowMod, error) {
	match, err := marshalMatch(f.Match)
	if err != nil {
		return nil, err
	}

	msg := openflow13.NewFlowMod()
	msg.Cookie = f.Cookie
	msg.CookieMask = f.CookieMask
	msg.Priority = f.Priority
	msg.IdleTimeout = f.IdleTimeout
	msg.HardTimeout = f.HardTimeout
	msg.BufferId = f.BufferID
	msg.Match = *match
	switch f.Command {
	case FlowAdd:
		msg.Command = openflow13.FC_ADD
	case FlowDelete:
		msg.Command = openflow13.FC_DELETE
		msg.TableId = allTables
		msg.OutPort = openflow13.P_ANY
	default:
		return nil, errors.Errorf("unexpected flow mod command: %v", f.Command)
	}
	if f.NotifyRemoval {
		msg.Flags |= openflow13.FF_SEND_FLOW_REM
	}

	if len(f.Actions) > 0 {
		instr := openflow13.NewInstrApplyActions()
		for _, v := range f.Actions {
			instr.AddAction(newOutputAction(v.OutPort), false)
		}
		msg.AddInstruction(instr)
	}

	return msg, nil
}

func newOutputAction(port uint32) *openflow13.ActionOutput {
	act := openflow13.NewActionOutput(port)
	if port == PortController {
		// Send the whole packet to the controller.
		act.MaxLen = openflow13.OFPCML_NO_BUFFER
	}

	return act
}

// marshalMatch builds the OXM match of m. OpenFlow 1.3 requires the
// prerequisite fields of a match to be present, so nw_* fields imply IPv4 and
// tp_* fields imply TCP unless dl_type or nw_proto say otherwise.
func marshalMatch(m Match) (*openflow13.Match, error) {
	result := openflow13.NewMatch()

	if v, ok := m.uint(FieldInPort); ok {
		result.AddField(*openflow13.NewInPortField(uint32(v)))
	}
	if s, ok := m[FieldDLSrc]; ok {
		mac, err := net.ParseMAC(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%v=%v", FieldDLSrc, s)
		}
		result.AddField(*openflow13.NewEthSrcField(mac, nil))
	}
	if s, ok := m[FieldDLDst]; ok {
		mac, err := net.ParseMAC(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%v=%v", FieldDLDst, s)
		}
		result.AddField(*openflow13.NewEthDstField(mac, nil))
	}

	_, hasNW := m[FieldNWSrc]
	if !hasNW {
		_, hasNW = m[FieldNWDst]
	}
	_, hasTP := m[FieldTPSrc]
	if !hasTP {
		_, hasTP = m[FieldTPDst]
	}
	_, hasProto := m[FieldNWProto]

	ethType, ok := m.uint(FieldDLType)
	if !ok && (hasNW || hasProto || hasTP) {
		ethType, ok = ethTypeIPv4, true
	}
	if ok {
		result.AddField(*openflow13.NewEthTypeField(uint16(ethType)))
	}

	for _, name := range []string{FieldNWSrc, FieldNWDst} {
		s, ok := m[name]
		if !ok {
			continue
		}
		ip, mask, err := parseIPv4(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%v=%v", name, s)
		}
		switch {
		case ethType == ethTypeARP && name == FieldNWSrc:
			result.AddField(*openflow13.NewArpSpaField(ip))
		case ethType == ethTypeARP:
			result.AddField(*openflow13.NewArpTpaField(ip))
		case name == FieldNWSrc:
			result.AddField(*openflow13.NewIpv4SrcField(ip, mask))
		default:
			result.AddField(*openflow13.NewIpv4DstField(ip, mask))
		}
	}

	proto, ok := m.uint(FieldNWProto)
	if !ok && hasTP {
		proto, ok = ipProtoTCP, true
	}
	if ok {
		result.AddField(*openflow13.NewIpProtoField(uint8(proto)))
	}

	if v, ok := m.uint(FieldTPSrc); ok {
		if proto == ipProtoUDP {
			result.AddField(*openflow13.NewUdpSrcField(uint16(v)))
		} else {
			result.AddField(*openflow13.NewTcpSrcField(uint16(v)))
		}
	}
	if v, ok := m.uint(FieldTPDst); ok {
		if proto == ipProtoUDP {
			result.AddField(*openflow13.NewUdpDstField(uint16(v)))
		} else {
			result.AddField(*openflow13.NewTcpDstField(uint16(v)))
		}
	}

	return result, nil
}

// parseIPv4 parses a normalized address with an optional prefix length. mask
// is nil for a host address.
func parseIPv4(s string) (ip net.IP, mask *net.IP, err error) {
	addr := s
	prefix := -1
	if i := strings.IndexByte(s, '/'); i >= 0 {
		addr = s[:i]
		if prefix, err = strconv.Atoi(s[i+1:]); err != nil {
			return nil, nil, err
		}
	}
	if ip = net.ParseIP(addr).To4(); ip == nil {
		return nil, nil, errors.New("invalid IPv4 address")
	}
	if prefix < 0 || prefix == 32 {
		return ip, nil, nil
	}
	m := net.IP(net.CIDRMask(prefix, 32))

	return ip, &m, nil
}

func marshalPacketOut(p PacketOut) *openflow13.PacketOut {
	msg := openflow13.NewPacketOut()
	msg.BufferId = p.BufferID
	msg.InPort = p.InPort
	for _, v := range p.Actions {
		msg.AddAction(newOutputAction(v.OutPort))
	}
	// libOpenflow encodes Data unconditionally.
	var data []byte
	if p.BufferID == NoBuffer {
		data = p.Data
	}
	msg.Data = util.NewBuffer(data)

	return msg
}

const (
	// ofp_header, buffer_id, total_len, reason, table_id and cookie.
	packetInHeaderLen = 24
	matchHeaderLen    = 4
)

// UnmarshalPacketIn translates a raw OpenFlow 1.3 PACKET_IN message. The frame
// is taken from packet as it is: re-encoding a frame decoded by libOpenflow
// loses ICMP payloads and IP options.
func UnmarshalPacketIn(packet []byte) (PacketIn, error) {
	if len(packet) < packetInHeaderLen+matchHeaderLen {
		return PacketIn{}, errors.New("truncated PACKET_IN")
	}
	matchLen := int(binary.BigEndian.Uint16(packet[packetInHeaderLen+2:]))
	if matchLen < matchHeaderLen {
		return PacketIn{}, errors.Errorf("invalid match length in PACKET_IN: %v", matchLen)
	}
	// The match is padded to a multiple of 8, followed by 2 bytes of padding.
	offset := packetInHeaderLen + (matchLen+7)/8*8 + 2
	if len(packet) < offset {
		return PacketIn{}, errors.New("truncated PACKET_IN")
	}

	match := new(openflow13.Match)
	if err := match.UnmarshalBinary(packet[packetInHeaderLen : packetInHeaderLen+matchLen]); err != nil {
		return PacketIn{}, errors.Wrap(err, "decoding PACKET_IN match")
	}
	inPort, ok := inPortOf(*match)
	if !ok {
		return PacketIn{}, errors.New("missing in_port in PACKET_IN")
	}

	return PacketIn{
		BufferID: binary.BigEndian.Uint32(packet[8:12]),
		InPort:   inPort,
		Reason:   packet[14],
		TableID:  packet[15],
		Cookie:   binary.BigEndian.Uint64(packet[16:24]),
		Data:     packet[offset:],
	}, nil
}

func inPortOf(m openflow13.Match) (uint32, bool) {
	for _, f := range m.Fields {
		if f.Field != openflow13.OXM_FIELD_IN_PORT {
			continue
		}
		if v, ok := f.Value.(*openflow13.InPortField); ok {
			return v.InPort, true
		}
	}

	return 0, false
}

// UnmarshalFlowRemoved translates an OpenFlow 1.3 FLOW_REMOVED message. Only
// the match fields this package knows how to express are kept.
func UnmarshalFlowRemoved(msg *openflow13.FlowRemoved) FlowRemoved {
	return FlowRemoved{
		Cookie:   msg.Cookie,
		Priority: msg.Priority,
		Reason:   msg.Reason,
		TableID:  msg.TableId,
		Match:    unmarshalMatch(msg.Match),
	}
}

func unmarshalMatch(m openflow13.Match) Match {
	result := Match{}
	for _, f := range m.Fields {
		switch v := f.Value.(type) {
		case *openflow13.InPortField:
			result[FieldInPort] = strconv.FormatUint(uint64(v.InPort), 10)
		case *openflow13.EthSrcField:
			result[FieldDLSrc] = v.EthSrc.String()
		case *openflow13.EthDstField:
			result[FieldDLDst] = v.EthDst.String()
		case *openflow13.EthTypeField:
			result[FieldDLType] = strconv.FormatUint(uint64(v.EthType), 10)
		}
	}

	return result
}

// UnmarshalError translates an OpenFlow 1.3 ERROR message.
func UnmarshalError(msg *openflow13.ErrorMsg) Error {
	return Error{
		Type: msg.Type,
		Code: msg.Code,
		Data: msg.Data.Bytes(),
	}
}
