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

package transceiver

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/contiv/libOpenflow/common"
	"github.com/contiv/libOpenflow/openflow13"
	"github.com/pkg/errors"
)

func TestStreamReadMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := NewStream(server, 0xFFFF)
	go func() {
		// One message split across two writes, then a bogus header.
		client.Write([]byte{4, 0, 0, 12, 0, 0, 0, 1})
		client.Write([]byte{9, 9, 9, 9})
		client.Write([]byte{4, 0, 0, 4, 0, 0, 0, 0})
	}()

	p, err := s.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []byte{4, 0, 0, 12, 0, 0, 0, 1, 9, 9, 9, 9}
	if !bytes.Equal(p, expected) {
		t.Fatalf("unexpected message: expected=%v, actual=%v", expected, p)
	}

	if _, err := s.ReadMessage(); err != ErrInvalidPacketLength {
		t.Fatalf("unexpected error: expected=%v, actual=%v", ErrInvalidPacketLength, err)
	}
}

type handler struct {
	hello    chan *common.Hello
	packetIn chan []byte
}

func (r *handler) OnHello(w Writer, v *common.Hello) error {
	r.hello <- v
	return nil
}

func (r *handler) OnError(Writer, *openflow13.ErrorMsg) error               { return nil }
func (r *handler) OnFeaturesReply(Writer, *openflow13.SwitchFeatures) error { return nil }
func (r *handler) OnFlowRemoved(Writer, *openflow13.FlowRemoved) error      { return nil }

func (r *handler) OnPacketIn(w Writer, packet []byte) error {
	r.packetIn <- packet
	return nil
}

func startTransceiver(t *testing.T) (sw *Stream, client net.Conn, h *handler, cancel context.CancelFunc, done <-chan error) {
	client, server := net.Pipe()
	h = &handler{
		hello:    make(chan *common.Hello, 1),
		packetIn: make(chan []byte, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan error, 1)
	go func() {
		c <- NewTransceiver(NewStream(server, 0xFFFF), h).Run(ctx)
	}()

	sw = NewStream(client, 0xFFFF)
	p, err := sw.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read HELLO: %v", err)
	}
	if p[0] != openflow13.VERSION || p[1] != openflow13.Type_Hello {
		t.Fatalf("unexpected first message: %v", p)
	}

	return sw, client, h, cancel, c
}

func TestTransceiverHandshakeAndEcho(t *testing.T) {
	sw, client, h, cancel, done := startTransceiver(t)
	defer cancel()

	hello, err := common.NewHello(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := hello.MarshalBinary()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Write(b); err != nil {
		t.Fatalf("failed to send HELLO: %v", err)
	}

	select {
	case <-h.hello:
	case <-time.After(3 * time.Second):
		t.Fatal("HELLO was not dispatched to the handler")
	}

	echo := []byte{4, openflow13.Type_EchoRequest, 0, 12, 0, 0, 0, 7, 1, 2, 3, 4}
	if _, err := client.Write(echo); err != nil {
		t.Fatalf("failed to send ECHO_REQUEST: %v", err)
	}
	reply, err := sw.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read ECHO_REPLY: %v", err)
	}
	expected := []byte{4, openflow13.Type_EchoReply, 0, 12, 0, 0, 0, 7, 1, 2, 3, 4}
	if !bytes.Equal(reply, expected) {
		t.Fatalf("unexpected echo reply: expected=%v, actual=%v", expected, reply)
	}

	client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transceiver did not stop after the connection was closed")
	}
}

func TestTransceiverUnsupportedVersion(t *testing.T) {
	_, client, _, cancel, done := startTransceiver(t)
	defer cancel()
	defer client.Close()

	// OpenFlow 1.0 HELLO.
	if _, err := client.Write([]byte{1, 0, 0, 8, 0, 0, 0, 1}); err != nil {
		t.Fatalf("failed to send HELLO: %v", err)
	}

	select {
	case err := <-done:
		if errors.Cause(err) != ErrUnsupportedVersion {
			t.Fatalf("unexpected error: expected=%v, actual=%v", ErrUnsupportedVersion, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transceiver accepted an unsupported version")
	}
}

func TestTransceiverNewerPeerVersion(t *testing.T) {
	_, client, h, cancel, _ := startTransceiver(t)
	defer cancel()
	defer client.Close()

	// OpenFlow 1.4 HELLO: we settle on 1.3 and the handler still gets it.
	if _, err := client.Write([]byte{5, 0, 0, 8, 0, 0, 0, 1}); err != nil {
		t.Fatalf("failed to send HELLO: %v", err)
	}

	select {
	case v := <-h.hello:
		if v.Header.Version != 5 {
			t.Fatalf("unexpected HELLO version: expected=5, actual=%v", v.Header.Version)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("HELLO of a newer version was not dispatched to the handler")
	}
}

func TestTransceiverRawPacketIn(t *testing.T) {
	_, client, h, cancel, _ := startTransceiver(t)
	defer cancel()
	defer client.Close()

	if _, err := client.Write([]byte{4, 0, 0, 8, 0, 0, 0, 1}); err != nil {
		t.Fatalf("failed to send HELLO: %v", err)
	}
	<-h.hello

	// The body is not a valid PACKET_IN, which must not matter to the transceiver.
	packet := []byte{4, openflow13.Type_PacketIn, 0, 14, 0, 0, 0, 2, 0xde, 0xad, 0xbe, 0xef, 1, 2}
	if _, err := client.Write(packet); err != nil {
		t.Fatalf("failed to send PACKET_IN: %v", err)
	}

	select {
	case p := <-h.packetIn:
		if !bytes.Equal(p, packet) {
			t.Fatalf("unexpected PACKET_IN: expected=%v, actual=%v", packet, p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("PACKET_IN was not dispatched to the handler")
	}
}
