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
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Match field names.
const (
	FieldInPort  = "in_port"
	FieldDLSrc   = "dl_src"
	FieldDLDst   = "dl_dst"
	FieldDLType  = "dl_type"
	FieldNWSrc   = "nw_src"
	FieldNWDst   = "nw_dst"
	FieldNWProto = "nw_proto"
	FieldTPSrc   = "tp_src"
	FieldTPDst   = "tp_dst"
)

var (
	ErrUnknownField = errors.New("unknown match field")
	ErrInvalidValue = errors.New("invalid match field value")
)

type fieldKind int

const (
	kindMAC fieldKind = iota
	kindIPv4
	kindUint
)

var fields = map[string]struct {
	kind fieldKind
	bits int
}{
	FieldInPort:  {kindUint, 32},
	FieldDLSrc:   {kindMAC, 0},
	FieldDLDst:   {kindMAC, 0},
	FieldDLType:  {kindUint, 16},
	FieldNWSrc:   {kindIPv4, 0},
	FieldNWDst:   {kindIPv4, 0},
	FieldNWProto: {kindUint, 8},
	FieldTPSrc:   {kindUint, 16},
	FieldTPDst:   {kindUint, 16},
}

// IsField returns whether name is a known match field.
func IsField(name string) bool {
	_, ok := fields[name]
	return ok
}

// NormalizeField validates value as the named field and returns its canonical
// string form: lower-case colon separated MACs, dotted IPv4 addresses with an
// optional /prefix, and decimal integers. value may be a string or any Go
// number, including the float64 and json.Number produced by JSON decoding.
func NormalizeField(name string, value interface{}) (string, error) {
	f, ok := fields[name]
	if !ok {
		return "", errors.Wrap(ErrUnknownField, name)
	}

	var (
		v   string
		err error
	)
	switch f.kind {
	case kindMAC:
		v, err = normalizeMAC(value)
	case kindIPv4:
		v, err = normalizeIPv4(value)
	case kindUint:
		v, err = normalizeUint(value, f.bits)
	default:
		panic(fmt.Sprintf("unexpected field kind: %v", f.kind))
	}
	if err != nil {
		return "", errors.Wrapf(err, "%v=%v", name, value)
	}

	return v, nil
}

func normalizeMAC(value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", ErrInvalidValue
	}
	// Only the 6-octet forms with ':' or '-' separators.
	if len(s) != 17 {
		return "", ErrInvalidValue
	}
	mac, err := net.ParseMAC(s)
	if err != nil || len(mac) != 6 {
		return "", ErrInvalidValue
	}

	return mac.String(), nil
}

func normalizeIPv4(value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", ErrInvalidValue
	}

	addr, prefix := s, ""
	if i := strings.IndexByte(s, '/'); i >= 0 {
		addr, prefix = s[:i], s[i+1:]
	}
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return "", ErrInvalidValue
	}
	if prefix == "" {
		if strings.HasSuffix(s, "/") {
			return "", ErrInvalidValue
		}
		return ip.String(), nil
	}
	n, err := strconv.ParseUint(prefix, 10, 8)
	if err != nil || n > 32 {
		return "", ErrInvalidValue
	}

	return fmt.Sprintf("%v/%v", ip, n), nil
}

func normalizeUint(value interface{}, bits int) (string, error) {
	var (
		n   uint64
		err error
	)
	switch v := value.(type) {
	case string:
		n, err = strconv.ParseUint(strings.TrimSpace(v), 0, bits)
	case json.Number:
		n, err = strconv.ParseUint(v.String(), 10, bits)
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return "", ErrInvalidValue
		}
		n = uint64(v)
	case int:
		if v < 0 {
			return "", ErrInvalidValue
		}
		n = uint64(v)
	case int64:
		if v < 0 {
			return "", ErrInvalidValue
		}
		n = uint64(v)
	case uint8:
		n = uint64(v)
	case uint16:
		n = uint64(v)
	case uint32:
		n = uint64(v)
	case uint64:
		n = v
	default:
		return "", ErrInvalidValue
	}
	if err != nil {
		return "", ErrInvalidValue
	}
	if bits < 64 && n >= 1<<uint(bits) {
		return "", ErrInvalidValue
	}

	return strconv.FormatUint(n, 10), nil
}

// Match is a set of exact field constraints keyed by field name, holding
// normalized values. An empty Match matches every packet.
type Match map[string]string

// NewMatch validates and normalizes every field of m.
func NewMatch(m map[string]interface{}) (Match, error) {
	result := make(Match, len(m))
	for k, v := range m {
		n, err := NormalizeField(k, v)
		if err != nil {
			return nil, err
		}
		result[k] = n
	}

	return result, nil
}

func (r Match) Clone() Match {
	v := make(Match, len(r))
	for k, f := range r {
		v[k] = f
	}

	return v
}

// SubsetOf returns whether every field of r appears in m with the same value.
func (r Match) SubsetOf(m Match) bool {
	for k, v := range r {
		if f, ok := m[k]; !ok || f != v {
			return false
		}
	}

	return true
}

func (r Match) Equal(m Match) bool {
	return len(r) == len(m) && r.SubsetOf(m)
}

func (r Match) keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func (r Match) String() string {
	if len(r) == 0 {
		return "*"
	}

	s := make([]string, 0, len(r))
	for _, k := range r.keys() {
		s = append(s, fmt.Sprintf("%v=%v", k, r[k]))
	}

	return strings.Join(s, ",")
}

func (r Match) uint(name string) (v uint64, ok bool) {
	s, ok := r[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}
