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
	"context"
	"encoding"
	"encoding/binary"
	"time"

	"github.com/contiv/libOpenflow/common"
	"github.com/contiv/libOpenflow/openflow13"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("transceiver")
)

const (
	// Allowed idle time before we send an echo request to a switch.
	maxIdleTime = 10 * time.Second
	// I/O timeouts (These timeouts should be less than maxIdleTime).
	readTimeout  = 1 * time.Second
	writeTimeout = readTimeout * 2
	// Maximum number of unanswered echo requests.
	maxPings = 3

	negotiationTimeout = 30 * time.Second
)

var ErrUnsupportedVersion = errors.New("unsupported OpenFlow version")

type Writer interface {
	Write(msg encoding.BinaryMarshaler) error
}

type Handler interface {
	OnHello(Writer, *common.Hello) error
	OnError(Writer, *openflow13.ErrorMsg) error
	OnFeaturesReply(Writer, *openflow13.SwitchFeatures) error
	OnFlowRemoved(Writer, *openflow13.FlowRemoved) error
	// OnPacketIn receives the PACKET_IN message as it was read from the stream.
	OnPacketIn(Writer, []byte) error
}

// Transceiver speaks OpenFlow 1.3 on a stream: it negotiates the version,
// answers and sends echo requests, and dispatches every other supported
// message to its handler.
type Transceiver struct {
	stream  *Stream
	handler Handler
	pings   int
	closed  bool
}

func NewTransceiver(stream *Stream, handler Handler) *Transceiver {
	if stream == nil {
		panic("stream is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	return &Transceiver{
		stream:  stream,
		handler: handler,
	}
}

func isTimeout(err error) bool {
	v, ok := errors.Cause(err).(interface{ Timeout() bool })
	return ok && v.Timeout()
}

// Run sends HELLO and processes incoming messages until ctx is canceled or the
// connection is lost. The handler is always called from the goroutine of Run.
func (r *Transceiver) Run(ctx context.Context) error {
	defer logger.Infof("transceiver is closed: remote=%v", r.stream.RemoteAddr())
	r.stream.SetTimeout(readTimeout, writeTimeout)

	hello, err := common.NewHello(openflow13.VERSION)
	if err != nil {
		return err
	}
	if err := r.Write(hello); err != nil {
		return errors.Wrap(err, "failed to send HELLO message")
	}

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	reader := r.runReader(readerCtx)

	packet, err := r.negotiate(ctx, reader)
	if err != nil {
		return errors.Wrap(err, "failed to negotiate the protocol version")
	}
	if err := r.handleHello(packet); err != nil {
		return err
	}

	for {
		var ok bool
		select {
		case <-ctx.Done():
			logger.Info("context done")
			return nil
		case packet, ok = <-reader:
			if !ok {
				logger.Info("the reader channel is closed")
				return nil
			}
		}

		if err := r.dispatch(packet); err != nil {
			return err
		}
	}
}

// handleHello passes the negotiation HELLO to the handler. Its header carries
// the peer's highest version, which may be newer than 1.3.
func (r *Transceiver) handleHello(packet []byte) error {
	hello := new(common.Hello)
	if err := hello.UnmarshalBinary(packet); err != nil {
		return errors.Wrap(err, "invalid HELLO message")
	}

	return r.handler.OnHello(r, hello)
}

func (r *Transceiver) negotiate(ctx context.Context, reader <-chan []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, errors.New("context done")
	case <-time.After(negotiationTimeout):
		return nil, errors.New("inactive for too long")
	case packet, ok := <-reader:
		if !ok {
			return nil, errors.New("the reader channel is closed")
		}
		// The first message should be HELLO.
		if packet[1] != openflow13.Type_Hello {
			return nil, errors.New("missing HELLO message")
		}
		if packet[0] < openflow13.VERSION {
			return nil, errors.Wrapf(ErrUnsupportedVersion, "version=%v", packet[0])
		}
		logger.Info("negotiated to openflow version 1.3")

		return packet, nil
	}
}

func (r *Transceiver) runReader(ctx context.Context) <-chan []byte {
	c := make(chan []byte, 4096)
	go func() {
		// Closing c tells Run that the connection has gone.
		defer close(c)
		defer logger.Info("transceiver reader is closed")

		lastActivated := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			packet, err := r.stream.ReadMessage()
			if err != nil {
				if !isTimeout(err) {
					logger.Errorf("failed to read the next packet: %v", err)
					return
				}
				if time.Since(lastActivated) > maxIdleTime {
					if err := r.sendEchoRequest(); err != nil {
						logger.Errorf("failed to send an echo request: %v", err)
						return
					}
					lastActivated = time.Now()
				}
				continue
			}
			lastActivated = time.Now()

			handled, err := r.handleEcho(packet)
			if err != nil {
				logger.Errorf("failed to handle the echo message: %v", err)
				return
			}
			if handled {
				continue
			}

			select {
			case c <- packet:
			default:
				logger.Error("transceiver buffer full: drop the incoming packet!")
			}
		}
	}()

	return c
}

type rawMessage []byte

func (r rawMessage) MarshalBinary() ([]byte, error) {
	return r, nil
}

func (r *Transceiver) sendEchoRequest() error {
	if r.pings >= maxPings {
		return errors.New("device does not respond to our echo request")
	}

	// The payload is the send time so that the reply tells us the latency.
	packet := make([]byte, headerLen+8)
	packet[0] = openflow13.VERSION
	packet[1] = openflow13.Type_EchoRequest
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(packet)))
	binary.BigEndian.PutUint64(packet[headerLen:], uint64(time.Now().UnixNano()))

	if err := r.Write(rawMessage(packet)); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REQUEST message")
	}
	r.pings++

	return nil
}

func (r *Transceiver) handleEcho(packet []byte) (handled bool, err error) {
	switch packet[1] {
	case openflow13.Type_EchoRequest:
		// Same transaction ID and payload, different type.
		reply := make([]byte, len(packet))
		copy(reply, packet)
		reply[1] = openflow13.Type_EchoReply
		if err := r.Write(rawMessage(reply)); err != nil {
			return true, errors.Wrap(err, "failed to send ECHO_REPLY message")
		}
		return true, nil
	case openflow13.Type_EchoReply:
		r.pings = 0
		if len(packet) == headerLen+8 {
			sent := time.Unix(0, int64(binary.BigEndian.Uint64(packet[headerLen:])))
			logger.Debugf("transceiver latency: %v", time.Since(sent))
		}
		return true, nil
	default:
		return false, nil
	}
}

func (r *Transceiver) dispatch(packet []byte) error {
	if packet[0] != openflow13.VERSION {
		logger.Errorf("mis-matched OpenFlow version: packet=%v", packet[0])
		return nil
	}

	switch packet[1] {
	case openflow13.Type_PacketIn:
		return r.handler.OnPacketIn(r, packet)
	case openflow13.Type_Hello, openflow13.Type_Error, openflow13.Type_FeaturesReply,
		openflow13.Type_FlowRemoved:
	default:
		// Unsupported message. Do nothing.
		return nil
	}

	msg, err := openflow13.Parse(packet)
	if err != nil {
		logger.Errorf("failed to parse an OpenFlow message (type=%v): %v", packet[1], err)
		return nil
	}

	switch v := msg.(type) {
	case *common.Hello:
		return r.handler.OnHello(r, v)
	case *openflow13.ErrorMsg:
		return r.handler.OnError(r, v)
	case *openflow13.SwitchFeatures:
		return r.handler.OnFeaturesReply(r, v)
	case *openflow13.FlowRemoved:
		return r.handler.OnFlowRemoved(r, v)
	default:
		logger.Debugf("unexpected parsed message: %T", msg)
		return nil
	}
}

func (r *Transceiver) Write(msg encoding.BinaryMarshaler) error {
	packet, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := r.stream.Write(packet); err != nil {
		return err
	}

	return nil
}

func (r *Transceiver) Close() error {
	if r.closed {
		return nil
	}
	if err := r.stream.Close(); err != nil {
		return err
	}
	r.closed = true

	return nil
}
