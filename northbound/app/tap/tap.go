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
	"github.com/superkkt/sprout/cookie"
	"github.com/superkkt/sprout/network"
	"github.com/superkkt/sprout/northbound/app"
	"github.com/superkkt/sprout/openflow"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("tap")
)

var ErrUnknownSwitch = errors.New("unknown switch")

// Tap mirrors the traffic selected by a filter to sink ports. It handles no
// events by itself.
type Tap struct {
	app.BaseProcessor
	finder  network.Finder
	cookies cookie.Generator
}

func New(finder network.Finder, g cookie.Generator) *Tap {
	if finder == nil {
		panic("nil finder")
	}
	if g == nil {
		panic("nil cookie generator")
	}

	return &Tap{
		finder:  finder,
		cookies: g,
	}
}

func (r *Tap) Name() string {
	return "Tap"
}

func (r *Tap) String() string {
	return r.Name()
}

// Create installs the flows of f. The literal field sets are processed one
// by one and each set is sent only after all of its pairs are resolved, but
// the flows of earlier sets are not removed when a later set fails.
func (r *Tap) Create(f Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	logger.Debugf("creating a tap: %v", f)

	for _, fields := range expand(f.Fields) {
		cmds, err := compileFields(f, fields, r.cookies)
		if err != nil {
			return err
		}

		devices := make([]*network.Device, len(cmds))
		for i, c := range cmds {
			d := r.finder.Device(c.DPID)
			if d == nil {
				return errors.Wrapf(ErrUnknownSwitch, "DPID=%v", c.DPID)
			}
			devices[i] = d
		}

		for i, c := range cmds {
			if err := devices[i].SendMessage(c.FlowMod); err != nil {
				return errors.Wrapf(err, "installing a tap flow on DPID=%v", c.DPID)
			}
			logger.Debugf("tap flow installed: DPID=%v, cookie=0x%x, match=%v, actions=%v",
				c.DPID, c.FlowMod.Cookie, c.FlowMod.Match, c.FlowMod.Actions)
		}
	}
	logger.Infof("created a tap: %v", f)

	return nil
}

// Delete removes the flows of f by match on every source, regardless of their
// sinks. Unknown switches are skipped.
func (r *Tap) Delete(f Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	logger.Debugf("deleting a tap: %v", f)

	for _, fields := range expand(f.Fields) {
		for _, source := range f.Sources {
			d := r.finder.Device(source.DPID)
			if d == nil {
				logger.Debugf("skip an unknown switch: DPID=%v", source.DPID)
				continue
			}

			cmd := openflow.FlowMod{
				Command:  openflow.FlowDelete,
				BufferID: openflow.NoBuffer,
				Match:    withInPort(fields, source),
			}
			if err := d.SendMessage(cmd); err != nil {
				logger.Errorf("failed to delete a tap flow on DPID=%v: %v", source.DPID, err)
			}
		}
	}
	logger.Infof("deleted a tap: %v", f)

	return nil
}
