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
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/superkkt/sprout/clock"
	"github.com/superkkt/sprout/cookie"
	"github.com/superkkt/sprout/network"
	"github.com/superkkt/sprout/northbound/app"
	"github.com/superkkt/sprout/openflow"
	"github.com/superkkt/sprout/protocol"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("l2switch")
)

const (
	flowPriority      = 2
	tableMissPriority = 0
)

type Config struct {
	MACTableSize int
	IdleTimeout  uint16
	HardTimeout  uint16
	// MaxFloods is the number of floods allowed per second on a switch. Zero
	// means no limit.
	MaxFloods uint
}

func DefaultConfig() Config {
	return Config{
		MACTableSize: 8192,
		IdleTimeout:  60,
		HardTimeout:  300,
	}
}

// L2Switch is a learning switch. It learns the port of each source MAC,
// installs a forwarding rule once the destination is known, and floods
// otherwise.
type L2Switch struct {
	app.BaseProcessor
	conf      Config
	clock     clock.Clock
	cookies   cookie.Generator
	exemption *ExemptionFilter

	mutex    sync.RWMutex
	switches map[uint64]*switchState
}

type switchState struct {
	mutex sync.Mutex
	macs  *macTable
	flows *flowCache
	storm *stormController
}

func newSwitchState(conf Config) *switchState {
	v := &switchState{
		macs:  newMACTable(conf.MACTableSize),
		flows: newFlowCache(),
	}
	if conf.MaxFloods > 0 {
		v.storm = newStormController(conf.MaxFloods)
	}

	return v
}

func New(conf Config, c clock.Clock, g cookie.Generator) *L2Switch {
	if c == nil {
		panic("nil clock")
	}
	if g == nil {
		panic("nil cookie generator")
	}

	return &L2Switch{
		conf:      conf,
		clock:     c,
		cookies:   g,
		exemption: NewExemptionFilter(),
		switches:  make(map[uint64]*switchState),
	}
}

func (r *L2Switch) Init() error {
	if r.conf.MACTableSize <= 0 {
		return fmt.Errorf("invalid MAC table size: %v", r.conf.MACTableSize)
	}

	return nil
}

func (r *L2Switch) Name() string {
	return "L2Switch"
}

func (r *L2Switch) String() string {
	r.mutex.RLock()
	ids := make([]uint64, 0, len(r.switches))
	for id := range r.switches {
		ids = append(ids, id)
	}
	r.mutex.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	v := fmt.Sprintf("%v: %v exemption rule(s)", r.Name(), len(r.exemption.Rules()))
	for _, id := range ids {
		state := r.state(id)
		if state == nil {
			continue
		}
		state.mutex.Lock()
		v += fmt.Sprintf("\n\tDPID=%v: %v MAC(s), %v flow(s)", id, state.macs.len(), state.flows.len())
		state.mutex.Unlock()
	}

	return v
}

func (r *L2Switch) Exemption() *ExemptionFilter {
	return r.exemption
}

func (r *L2Switch) state(dpid uint64) *switchState {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.switches[dpid]
}

// Flows returns the flows installed on switch dpid ordered by cookie. ok is
// false if the switch is not connected.
func (r *L2Switch) Flows(dpid uint64) (flows []Flow, ok bool) {
	state := r.state(dpid)
	if state == nil {
		return nil, false
	}

	state.mutex.Lock()
	defer state.mutex.Unlock()

	return state.flows.all(), true
}

func (r *L2Switch) OnDeviceUp(finder network.Finder, device *network.Device) error {
	state := newSwitchState(r.conf)
	r.mutex.Lock()
	r.switches[device.ID()] = state
	r.mutex.Unlock()

	// Table-miss rule: send everything else to the controller.
	miss := openflow.FlowMod{
		Command:  openflow.FlowAdd,
		Priority: tableMissPriority,
		BufferID: openflow.NoBuffer,
		Match:    openflow.Match{},
		Actions:  []openflow.Action{{OutPort: openflow.PortController}},
	}
	if err := r.installFlow(device, state, miss); err != nil {
		logger.Errorf("failed to install the table-miss flow: DPID=%v, err=%v", device.ID(), err)
	}

	return r.BaseProcessor.OnDeviceUp(finder, device)
}

func (r *L2Switch) OnDeviceDown(finder network.Finder, device *network.Device) error {
	r.mutex.Lock()
	delete(r.switches, device.ID())
	r.mutex.Unlock()

	return r.BaseProcessor.OnDeviceDown(finder, device)
}

func (r *L2Switch) OnFlowRemoved(finder network.Finder, device *network.Device, flow openflow.FlowRemoved) error {
	if state := r.state(device.ID()); state != nil {
		state.mutex.Lock()
		_, ok := state.flows.remove(flow.Cookie)
		state.mutex.Unlock()
		if ok {
			logger.Debugf("flow removed: DPID=%v, cookie=0x%x, match=%v", device.ID(), flow.Cookie, flow.Match)
		}
	}

	return r.BaseProcessor.OnFlowRemoved(finder, device, flow)
}

func (r *L2Switch) OnPacketIn(finder network.Finder, device *network.Device, packet openflow.PacketIn) error {
	if err := r.handlePacketIn(device, packet); err != nil {
		logger.Errorf("failed to handle PACKET_IN from DPID=%v: %v", device.ID(), err)
	}

	return r.BaseProcessor.OnPacketIn(finder, device, packet)
}

func (r *L2Switch) handlePacketIn(device *network.Device, packet openflow.PacketIn) error {
	frame, err := protocol.Decode(packet.Data)
	if err != nil {
		logger.Debugf("failed to decode a frame: %v", err)
		return nil
	}
	if r.exemption.IsExempt(frame.Fields()) {
		logger.Debugf("exempted frame: %v -> %v", frame.SrcMAC(), frame.DstMAC())
		return nil
	}
	if frame.IsLLDP() {
		return nil
	}

	state := r.state(device.ID())
	if state == nil {
		logger.Debugf("PACKET_IN from an unknown switch: DPID=%v", device.ID())
		return nil
	}

	state.mutex.Lock()
	state.macs.learn(frame.SrcMAC(), packet.InPort)
	outPort, known := state.macs.lookup(frame.DstMAC())
	if !known {
		outPort = openflow.PortFlood
		if state.storm != nil && !state.storm.allow(r.clock.Now()) {
			state.mutex.Unlock()
			logger.Info("too many broadcasts: broadcast is denied to avoid the broadcast storm!")
			return nil
		}
	}
	state.mutex.Unlock()

	action := openflow.Action{OutPort: outPort}
	if known {
		flow := openflow.FlowMod{
			Command:     openflow.FlowAdd,
			Priority:    flowPriority,
			IdleTimeout: r.conf.IdleTimeout,
			HardTimeout: r.conf.HardTimeout,
			BufferID:    packet.BufferID,
			Match: openflow.Match{
				openflow.FieldInPort: strconv.FormatUint(uint64(packet.InPort), 10),
				openflow.FieldDLDst:  frame.DstMAC().String(),
			},
			Actions:       []openflow.Action{action},
			NotifyRemoval: true,
		}
		if err := r.installFlow(device, state, flow); err != nil {
			return err
		}
		// The switch forwards the buffered packet by itself.
		if packet.Buffered() {
			return nil
		}
	}

	out := openflow.PacketOut{
		BufferID: packet.BufferID,
		InPort:   packet.InPort,
		Actions:  []openflow.Action{action},
	}
	if !packet.Buffered() {
		out.Data = packet.Data
	}

	return device.SendMessage(out)
}

// installFlow records flow under a fresh cookie and sends it to the switch.
func (r *L2Switch) installFlow(device *network.Device, state *switchState, flow openflow.FlowMod) error {
	state.mutex.Lock()
	flow.Cookie = state.flows.newCookie(r.cookies)
	state.flows.add(newFlow(device.ID(), flow))
	state.mutex.Unlock()

	if err := device.SendMessage(flow); err != nil {
		state.mutex.Lock()
		state.flows.remove(flow.Cookie)
		state.mutex.Unlock()
		return err
	}

	return nil
}
