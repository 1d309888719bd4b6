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
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const headerLen = 8

var ErrInvalidPacketLength = errors.New("invalid OpenFlow packet length")

// Stream frames OpenFlow messages on a buffered connection.
type Stream struct {
	conn io.ReadWriteCloser

	reader struct {
		sync.Mutex
		rd      *bufio.Reader
		timeout time.Duration
	}

	writer struct {
		sync.Mutex
		timeout time.Duration
	}
}

type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// NewStream returns a stream on conn. I/O deadlines are applied only if conn
// supports them.
func NewStream(conn io.ReadWriteCloser, bufSize int) *Stream {
	s := &Stream{conn: conn}
	s.reader.rd = bufio.NewReaderSize(conn, bufSize)

	return s
}

func (r *Stream) RemoteAddr() string {
	v, ok := r.conn.(interface{ RemoteAddr() net.Addr })
	if !ok {
		return "unknown"
	}

	return v.RemoteAddr().String()
}

func (r *Stream) SetTimeout(read, write time.Duration) {
	r.reader.Lock()
	r.reader.timeout = read
	r.reader.Unlock()

	r.writer.Lock()
	r.writer.timeout = write
	r.writer.Unlock()
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}

	return time.Now().Add(timeout)
}

// ReadMessage reads exactly one OpenFlow message, header included. A timeout
// leaves the partially received message in the buffer.
func (r *Stream) ReadMessage() ([]byte, error) {
	r.reader.Lock()
	defer r.reader.Unlock()

	if d, ok := r.conn.(deadliner); ok {
		d.SetReadDeadline(deadline(r.reader.timeout))
	}

	header, err := r.reader.rd.Peek(headerLen)
	if err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(header[2:4]))
	if length < headerLen {
		return nil, ErrInvalidPacketLength
	}
	// Wait until the whole message is buffered.
	if _, err := r.reader.rd.Peek(length); err != nil {
		return nil, err
	}

	packet := make([]byte, length)
	if _, err := io.ReadFull(r.reader.rd, packet); err != nil {
		return nil, err
	}

	return packet, nil
}

func (r *Stream) Write(p []byte) (int, error) {
	r.writer.Lock()
	defer r.writer.Unlock()

	if d, ok := r.conn.(deadliner); ok {
		d.SetWriteDeadline(deadline(r.writer.timeout))
	}

	return r.conn.Write(p)
}

func (r *Stream) Close() error {
	return r.conn.Close()
}
