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
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/superkkt/sprout/clock"
	"github.com/superkkt/sprout/cookie"
	"github.com/superkkt/sprout/network"
	"github.com/superkkt/sprout/northbound/app"
	"github.com/superkkt/sprout/openflow"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	macA = net.HardwareAddr{0, 0, 0, 0, 0, 0x0a}
	macB = net.HardwareAddr{0, 0, 0, 0, 0, 0x0b}
	macC = net.HardwareAddr{0, 0, 0, 0, 0, 0x0c}
)

type recordSender struct {
	mutex sync.Mutex
	cmds  []openflow.Command
	err   error
}

func (r *recordSender) Send(cmd openflow.Command) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return r.err
	}
	r.cmds = append(r.cmds, cmd)

	return nil
}

func (r *recordSender) take() []openflow.Command {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v := r.cmds
	r.cmds = nil

	return v
}

func frame(t *testing.T, src, dst net.HardwareAddr) []byte {
	eth := &layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolICMPv4, SrcIP: net.IPv4(10, 0, 0, src[5]).To4(), DstIP: net.IPv4(10, 0, 0, dst[5]).To4()}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(make([]byte, 8))); err != nil {
		t.Fatalf("failed to serialize a frame: %v", err)
	}

	return buf.Bytes()
}

func unbuffered(port uint32, data []byte) openflow.PacketIn {
	return openflow.PacketIn{BufferID: openflow.NoBuffer, InPort: port, Data: data}
}

func newTestSwitch(t *testing.T, conf Config, g cookie.Generator) (*L2Switch, *network.Device, *recordSender) {
	s := New(conf, clock.NewManual(epoch), g)
	if err := s.Init(); err != nil {
		t.Fatalf("failed to init: %v", err)
	}
	sender := new(recordSender)
	device := network.NewDevice(1, sender)
	if err := s.OnDeviceUp(nil, device); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return s, device, sender
}

func checkCommands(t *testing.T, expected, actual []openflow.Command) {
	t.Helper()
	if !cmp.Equal(expected, actual) {
		t.Fatalf("unexpected commands: %v", cmp.Diff(expected, actual))
	}
}

func TestTableMissFlow(t *testing.T) {
	s, _, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))

	miss := openflow.FlowMod{
		Command:  openflow.FlowAdd,
		Cookie:   1,
		Priority: 0,
		BufferID: openflow.NoBuffer,
		Match:    openflow.Match{},
		Actions:  []openflow.Action{{OutPort: openflow.PortController}},
	}
	checkCommands(t, []openflow.Command{miss}, sender.take())

	flows, ok := s.Flows(1)
	if !ok || len(flows) != 1 || flows[0].Cookie != 1 || flows[0].Priority != 0 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(flows))
	}
}

func TestFloodUnknownDestination(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))
	sender.take()

	data := frame(t, macA, macB)
	if err := s.OnPacketIn(nil, device, unbuffered(1, data)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []openflow.Command{
		openflow.PacketOut{
			BufferID: openflow.NoBuffer,
			InPort:   1,
			Actions:  []openflow.Action{{OutPort: openflow.PortFlood}},
			Data:     data,
		},
	}
	checkCommands(t, expected, sender.take())

	// Buffered packets are flooded by reference.
	if err := s.OnPacketIn(nil, device, openflow.PacketIn{BufferID: 42, InPort: 1, Data: data}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected = []openflow.Command{
		openflow.PacketOut{
			BufferID: 42,
			InPort:   1,
			Actions:  []openflow.Action{{OutPort: openflow.PortFlood}},
		},
	}
	checkCommands(t, expected, sender.take())
}

func TestForwardKnownDestination(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))

	// A is learned on port 1.
	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB)))
	sender.take()

	data := frame(t, macB, macA)
	if err := s.OnPacketIn(nil, device, unbuffered(2, data)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []openflow.Command{
		openflow.FlowMod{
			Command:     openflow.FlowAdd,
			Cookie:      2,
			Priority:    2,
			IdleTimeout: 60,
			HardTimeout: 300,
			BufferID:    openflow.NoBuffer,
			Match: openflow.Match{
				openflow.FieldInPort: "2",
				openflow.FieldDLDst:  "00:00:00:00:00:0a",
			},
			Actions:       []openflow.Action{{OutPort: 1}},
			NotifyRemoval: true,
		},
		openflow.PacketOut{
			BufferID: openflow.NoBuffer,
			InPort:   2,
			Actions:  []openflow.Action{{OutPort: 1}},
			Data:     data,
		},
	}
	checkCommands(t, expected, sender.take())

	// A buffered packet needs the flow only.
	if err := s.OnPacketIn(nil, device, openflow.PacketIn{BufferID: 7, InPort: 2, Data: data}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmds := sender.take()
	if len(cmds) != 1 {
		t.Fatalf("unexpected commands: %v", spew.Sdump(cmds))
	}
	flow, ok := cmds[0].(openflow.FlowMod)
	if !ok || flow.BufferID != 7 || flow.Cookie != 3 {
		t.Fatalf("unexpected flow: %v", spew.Sdump(cmds[0]))
	}

	flows, _ := s.Flows(1)
	cookies := make([]uint64, len(flows))
	for i, f := range flows {
		cookies[i] = f.Cookie
	}
	if !cmp.Equal([]uint64{1, 2, 3}, cookies) {
		t.Fatalf("unexpected cookies in the flow cache: %v", cookies)
	}
}

// Every frame overwrites the binding of its source MAC.
func TestHostMove(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))

	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB)))
	s.OnPacketIn(nil, device, unbuffered(5, frame(t, macA, macB)))
	sender.take()

	s.OnPacketIn(nil, device, unbuffered(2, frame(t, macB, macA)))
	cmds := sender.take()
	flow, ok := cmds[0].(openflow.FlowMod)
	if !ok || !cmp.Equal([]openflow.Action{{OutPort: 5}}, flow.Actions) {
		t.Fatalf("unexpected commands: %v", spew.Sdump(cmds))
	}
}

func TestFlowRemoved(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))
	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB)))
	s.OnPacketIn(nil, device, unbuffered(2, frame(t, macB, macA)))
	sender.take()

	if flows, _ := s.Flows(1); len(flows) != 2 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(flows))
	}

	// Unknown cookie and unknown switch are ignored.
	if err := s.OnFlowRemoved(nil, device, openflow.FlowRemoved{Cookie: 99}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.OnFlowRemoved(nil, network.NewDevice(2, sender), openflow.FlowRemoved{Cookie: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flows, _ := s.Flows(1); len(flows) != 2 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(flows))
	}

	if err := s.OnFlowRemoved(nil, device, openflow.FlowRemoved{Cookie: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flows, _ := s.Flows(1)
	if len(flows) != 1 || flows[0].Cookie != 1 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(flows))
	}
	if len(sender.take()) != 0 {
		t.Fatal("FLOW_REMOVED must not emit any command")
	}
}

func TestExemptedFrame(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))
	sender.take()

	s.Exemption().Add(openflow.Match{openflow.FieldDLSrc: "00:00:00:00:00:0a"})
	if err := s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmds := sender.take(); len(cmds) != 0 {
		t.Fatalf("exempted frame emitted commands: %v", spew.Sdump(cmds))
	}

	// A was not learned, so traffic to A is flooded.
	s.OnPacketIn(nil, device, unbuffered(2, frame(t, macB, macA)))
	cmds := sender.take()
	if len(cmds) != 1 {
		t.Fatalf("unexpected commands: %v", spew.Sdump(cmds))
	}
	if out, ok := cmds[0].(openflow.PacketOut); !ok || out.Actions[0].OutPort != openflow.PortFlood {
		t.Fatalf("unexpected commands: %v", spew.Sdump(cmds))
	}

	s.Exemption().Clear()
	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macC)))
	if cmds := sender.take(); len(cmds) != 1 {
		t.Fatalf("unexpected commands after clearing exemptions: %v", spew.Sdump(cmds))
	}
}

func TestLLDPIsIgnored(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))
	sender.take()

	eth := &layers.Ethernet{SrcMAC: macA, DstMAC: net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}, EthernetType: layers.EthernetTypeLinkLayerDiscovery}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(make([]byte, 46))); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	if err := s.OnPacketIn(nil, device, unbuffered(1, buf.Bytes())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmds := sender.take(); len(cmds) != 0 {
		t.Fatalf("LLDP emitted commands: %v", spew.Sdump(cmds))
	}
}

func TestDeviceReconnect(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))
	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB)))

	if err := s.OnDeviceDown(nil, device); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.Flows(1); ok {
		t.Fatal("flows of a disconnected switch are kept")
	}
	// Events of the old connection are ignored.
	sender.take()
	s.OnPacketIn(nil, device, unbuffered(2, frame(t, macB, macA)))
	if cmds := sender.take(); len(cmds) != 0 {
		t.Fatalf("unexpected commands for a disconnected switch: %v", spew.Sdump(cmds))
	}

	device = network.NewDevice(1, sender)
	s.OnDeviceUp(nil, device)
	sender.take()
	// The MAC table starts empty.
	s.OnPacketIn(nil, device, unbuffered(2, frame(t, macB, macA)))
	cmds := sender.take()
	if len(cmds) != 1 {
		t.Fatalf("unexpected commands: %v", spew.Sdump(cmds))
	}
	if _, ok := cmds[0].(openflow.PacketOut); !ok {
		t.Fatalf("unexpected commands: %v", spew.Sdump(cmds))
	}
}

type fixedGenerator struct {
	values []uint64
}

func (r *fixedGenerator) Next() uint64 {
	v := r.values[0]
	r.values = r.values[1:]
	return v
}

func TestUniqueCookies(t *testing.T) {
	g := &fixedGenerator{values: []uint64{5, 5, 0, 5, 6}}
	s, device, sender := newTestSwitch(t, DefaultConfig(), g)

	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB)))
	s.OnPacketIn(nil, device, unbuffered(2, frame(t, macB, macA)))
	sender.take()

	flows, _ := s.Flows(1)
	if len(flows) != 2 || flows[0].Cookie != 5 || flows[1].Cookie != 6 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(flows))
	}
}

func TestFailedInstallIsNotCached(t *testing.T) {
	s, device, sender := newTestSwitch(t, DefaultConfig(), cookie.NewSequence(1))
	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB)))

	sender.err = errors.New("broken pipe")
	s.OnPacketIn(nil, device, unbuffered(2, frame(t, macB, macA)))

	flows, _ := s.Flows(1)
	if len(flows) != 1 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(flows))
	}
}

type upRecorder struct {
	app.BaseProcessor
	devices []uint64
}

func (r *upRecorder) OnDeviceUp(finder network.Finder, device *network.Device) error {
	r.devices = append(r.devices, device.ID())
	return r.BaseProcessor.OnDeviceUp(finder, device)
}

func TestFailedTableMissPassesDeviceUp(t *testing.T) {
	s := New(DefaultConfig(), clock.NewManual(epoch), cookie.NewSequence(1))
	next := new(upRecorder)
	s.SetNext(next)

	sender := &recordSender{err: errors.New("broken pipe")}
	if err := s.OnDeviceUp(nil, network.NewDevice(1, sender)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.devices) != 1 || next.devices[0] != 1 {
		t.Fatalf("device up was not passed down the chain: %v", next.devices)
	}
	if flows, ok := s.Flows(1); !ok || len(flows) != 0 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(flows))
	}
}

func TestFloodLimit(t *testing.T) {
	conf := DefaultConfig()
	conf.MaxFloods = 1
	s, device, sender := newTestSwitch(t, conf, cookie.NewSequence(1))
	sender.take()

	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macB)))
	s.OnPacketIn(nil, device, unbuffered(1, frame(t, macA, macC)))
	if cmds := sender.take(); len(cmds) != 1 {
		t.Fatalf("unexpected commands: %v", spew.Sdump(cmds))
	}
}

func TestExemptionFilter(t *testing.T) {
	f := NewExemptionFilter()
	fields := openflow.Match{
		openflow.FieldDLSrc:   "00:00:00:00:00:01",
		openflow.FieldDLType:  "2048",
		openflow.FieldNWProto: "17",
		openflow.FieldTPDst:   "53",
	}

	if f.IsExempt(fields) {
		t.Fatal("empty filter exempted a frame")
	}
	f.Add(openflow.Match{openflow.FieldNWProto: "6"})
	if f.IsExempt(fields) {
		t.Fatal("unexpected exemption")
	}

	rule := openflow.Match{openflow.FieldNWProto: "17", openflow.FieldTPDst: "53"}
	f.Add(rule)
	// Rules are copied.
	rule[openflow.FieldTPDst] = "54"
	if !f.IsExempt(fields) {
		t.Fatal("frame is not exempted")
	}
	if n := len(f.Rules()); n != 2 {
		t.Fatalf("unexpected number of rules: expected=2, actual=%v", n)
	}

	f.Clear()
	if f.IsExempt(fields) || len(f.Rules()) != 0 {
		t.Fatal("rules are left after Clear")
	}
}

func TestNewExemptionRule(t *testing.T) {
	rule, err := NewExemptionRule(map[string]interface{}{"nw_src": "10.0.0.1", "dl_type": float64(2048)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := openflow.Match{openflow.FieldNWSrc: "10.0.0.1", openflow.FieldDLType: "2048"}
	if !cmp.Equal(expected, rule) {
		t.Fatalf("unexpected rule: %v", cmp.Diff(expected, rule))
	}

	invalid := []map[string]interface{}{
		{"in_port": 1},
		{"nw_src": "10.0.0.0/8"},
		{"nw_dst": "10.0.0.1/32"},
		{"dl_src": "bogus"},
	}
	for _, v := range invalid {
		if _, err := NewExemptionRule(v); err == nil {
			t.Fatalf("expected an error for %v", v)
		}
	}
}
