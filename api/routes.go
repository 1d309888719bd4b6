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

package api

import (
	"fmt"
	"strconv"

	"github.com/superkkt/sprout/northbound/app/l2switch"
	"github.com/superkkt/sprout/northbound/app/tap"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

func (r *Server) routes() []*rest.Route {
	return []*rest.Route{
		rest.Get("/api/v1/hosts", r.listHost),
		rest.Get("/api/v1/hosts/:dpid", r.listHostBySwitch),
		rest.Post("/api/v1/tap/create", r.createTap),
		rest.Post("/api/v1/tap/delete", r.deleteTap),
		rest.Get("/api/v1/flows/:dpid", r.listFlow),
		rest.Get("/api/v1/exemption", r.listExemption),
		rest.Post("/api/v1/exemption", r.addExemption),
		rest.Delete("/api/v1/exemption", r.clearExemption),
	}
}

func parseDPID(req *rest.Request) (uint64, error) {
	dpid, err := strconv.ParseUint(req.PathParam("dpid"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid DPID: %v", req.PathParam("dpid"))
	}

	return dpid, nil
}

func (r *Server) listHost(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("listHost request from %v", req.RemoteAddr)

	if r.Hosts == nil {
		writeError(w, StatusServiceUnavailable, "host tracker is disabled")
		return
	}
	writeOkay(w, r.Hosts.Hosts())
}

func (r *Server) listHostBySwitch(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("listHostBySwitch request from %v: DPID=%v", req.RemoteAddr, req.PathParam("dpid"))

	if r.Hosts == nil {
		writeError(w, StatusServiceUnavailable, "host tracker is disabled")
		return
	}
	dpid, err := parseDPID(req)
	if err != nil {
		writeError(w, StatusInvalidParameter, err.Error())
		return
	}
	if r.Finder.Device(dpid) == nil {
		writeError(w, StatusNotFound, fmt.Sprintf("unknown switch: DPID=%v", dpid))
		return
	}
	writeOkay(w, r.Hosts.HostsBySwitch(dpid))
}

func tapStatus(err error) Status {
	switch errors.Cause(err) {
	case tap.ErrInvalidFilter, tap.ErrCrossSwitch, tap.ErrUnknownSwitch:
		return StatusInvalidParameter
	default:
		return StatusInternalServerError
	}
}

func (r *Server) decodeFilter(w rest.ResponseWriter, req *rest.Request) (tap.Filter, bool) {
	if r.Tap == nil {
		writeError(w, StatusServiceUnavailable, "tap is disabled")
		return tap.Filter{}, false
	}

	var f tap.Filter
	if err := req.DecodeJsonPayload(&f); err != nil {
		writeError(w, StatusInvalidParameter, fmt.Sprintf("failed to decode param: %v", err.Error()))
		return tap.Filter{}, false
	}
	logger.Debugf("tap request from %v: %v", req.RemoteAddr, spew.Sdump(f))

	return f, true
}

func (r *Server) createTap(w rest.ResponseWriter, req *rest.Request) {
	f, ok := r.decodeFilter(w, req)
	if !ok {
		return
	}
	if err := r.Tap.Create(f); err != nil {
		writeError(w, tapStatus(err), fmt.Sprintf("failed to create the tap: %v", err.Error()))
		return
	}
	writeOkay(w, nil)
}

func (r *Server) deleteTap(w rest.ResponseWriter, req *rest.Request) {
	f, ok := r.decodeFilter(w, req)
	if !ok {
		return
	}
	if err := r.Tap.Delete(f); err != nil {
		writeError(w, tapStatus(err), fmt.Sprintf("failed to delete the tap: %v", err.Error()))
		return
	}
	writeOkay(w, nil)
}

func (r *Server) listFlow(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("listFlow request from %v: DPID=%v", req.RemoteAddr, req.PathParam("dpid"))

	if r.Switch == nil {
		writeError(w, StatusServiceUnavailable, "learning switch is disabled")
		return
	}
	dpid, err := parseDPID(req)
	if err != nil {
		writeError(w, StatusInvalidParameter, err.Error())
		return
	}
	flows, ok := r.Switch.Flows(dpid)
	if !ok {
		writeError(w, StatusNotFound, fmt.Sprintf("unknown switch: DPID=%v", dpid))
		return
	}
	writeOkay(w, flows)
}

func (r *Server) listExemption(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("listExemption request from %v", req.RemoteAddr)

	if r.Switch == nil {
		writeError(w, StatusServiceUnavailable, "learning switch is disabled")
		return
	}
	writeOkay(w, r.Switch.Exemption().Rules())
}

func (r *Server) addExemption(w rest.ResponseWriter, req *rest.Request) {
	if r.Switch == nil {
		writeError(w, StatusServiceUnavailable, "learning switch is disabled")
		return
	}

	p := make(map[string]interface{})
	if err := req.DecodeJsonPayload(&p); err != nil {
		writeError(w, StatusInvalidParameter, fmt.Sprintf("failed to decode param: %v", err.Error()))
		return
	}
	logger.Debugf("addExemption request from %v: %v", req.RemoteAddr, spew.Sdump(p))

	rule, err := l2switch.NewExemptionRule(p)
	if err != nil {
		writeError(w, StatusInvalidParameter, err.Error())
		return
	}
	r.Switch.Exemption().Add(rule)
	logger.Infof("exemption rule added: %v", rule)

	writeOkay(w, rule)
}

func (r *Server) clearExemption(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("clearExemption request from %v", req.RemoteAddr)

	if r.Switch == nil {
		writeError(w, StatusServiceUnavailable, "learning switch is disabled")
		return
	}
	r.Switch.Exemption().Clear()
	logger.Info("exemption rules cleared")

	writeOkay(w, nil)
}
