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

package protocol

import (
	"net"
	"strconv"

	"github.com/superkkt/sprout/openflow"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("protocol")
)

// Frame is a decoded Ethernet frame. Only the layers the controller looks at
// are decoded: Ethernet, ARP, IPv4, TCP and UDP. Anything else is left as an
// undecoded payload.
type Frame struct {
	Ethernet layers.Ethernet
	ARP      layers.ARP
	IPv4     layers.IPv4
	TCP      layers.TCP
	UDP      layers.UDP

	decoded []gopacket.LayerType
}

// Decode parses data as an Ethernet frame. A truncated or malformed upper
// layer does not make Decode fail; the layers decoded before it are kept.
func Decode(data []byte) (*Frame, error) {
	f := new(Frame)
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &f.Ethernet, &f.ARP, &f.IPv4, &f.TCP, &f.UDP)
	parser.IgnoreUnsupported = true

	f.decoded = make([]gopacket.LayerType, 0, 4)
	if err := parser.DecodeLayers(data, &f.decoded); err != nil {
		if !f.Has(layers.LayerTypeEthernet) {
			return nil, errors.Wrap(err, "decoding ethernet frame")
		}
		logger.Debugf("partially decoded frame: layers=%v, err=%v", f.decoded, err)
	}

	return f, nil
}

// Has returns whether the frame contains a successfully decoded layer of type t.
func (r *Frame) Has(t gopacket.LayerType) bool {
	for _, v := range r.decoded {
		if v == t {
			return true
		}
	}

	return false
}

func (r *Frame) SrcMAC() net.HardwareAddr {
	return r.Ethernet.SrcMAC
}

func (r *Frame) DstMAC() net.HardwareAddr {
	return r.Ethernet.DstMAC
}

func (r *Frame) EtherType() uint16 {
	return uint16(r.Ethernet.EthernetType)
}

func (r *Frame) IsLLDP() bool {
	return r.Ethernet.EthernetType == layers.EthernetTypeLinkLayerDiscovery
}

// Sender returns the IPv4 and hardware addresses of the host that originated
// the frame. For ARP they are taken from the ARP payload, for IPv4 from the
// Ethernet source and IPv4 source. ok is false for any other frame.
func (r *Frame) Sender() (ip net.IP, mac net.HardwareAddr, ok bool) {
	switch {
	case r.Has(layers.LayerTypeARP):
		if len(r.ARP.SourceProtAddress) != net.IPv4len || len(r.ARP.SourceHwAddress) != 6 {
			return nil, nil, false
		}
		return copyIP(r.ARP.SourceProtAddress), copyMAC(r.ARP.SourceHwAddress), true
	case r.Has(layers.LayerTypeIPv4):
		return copyIP(r.IPv4.SrcIP.To4()), copyMAC(r.Ethernet.SrcMAC), true
	default:
		return nil, nil, false
	}
}

// Fields returns the header fields of the frame in normalized form, keyed by
// the match field names.
func (r *Frame) Fields() openflow.Match {
	m := openflow.Match{
		openflow.FieldDLSrc:  r.Ethernet.SrcMAC.String(),
		openflow.FieldDLDst:  r.Ethernet.DstMAC.String(),
		openflow.FieldDLType: strconv.FormatUint(uint64(r.Ethernet.EthernetType), 10),
	}

	switch {
	case r.Has(layers.LayerTypeARP):
		m[openflow.FieldNWSrc] = net.IP(r.ARP.SourceProtAddress).String()
		m[openflow.FieldNWDst] = net.IP(r.ARP.DstProtAddress).String()
	case r.Has(layers.LayerTypeIPv4):
		m[openflow.FieldNWSrc] = r.IPv4.SrcIP.String()
		m[openflow.FieldNWDst] = r.IPv4.DstIP.String()
		m[openflow.FieldNWProto] = strconv.FormatUint(uint64(r.IPv4.Protocol), 10)
		switch {
		case r.Has(layers.LayerTypeTCP):
			m[openflow.FieldTPSrc] = strconv.FormatUint(uint64(r.TCP.SrcPort), 10)
			m[openflow.FieldTPDst] = strconv.FormatUint(uint64(r.TCP.DstPort), 10)
		case r.Has(layers.LayerTypeUDP):
			m[openflow.FieldTPSrc] = strconv.FormatUint(uint64(r.UDP.SrcPort), 10)
			m[openflow.FieldTPDst] = strconv.FormatUint(uint64(r.UDP.DstPort), 10)
		}
	}

	return m
}

// The decoding layers point into the packet buffer owned by the caller.
func copyIP(ip []byte) net.IP {
	v := make(net.IP, len(ip))
	copy(v, ip)
	return v
}

func copyMAC(mac []byte) net.HardwareAddr {
	v := make(net.HardwareAddr, len(mac))
	copy(v, mac)
	return v
}
