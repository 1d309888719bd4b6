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
	"net/http"

	"github.com/superkkt/sprout/network"
	"github.com/superkkt/sprout/northbound/app/hosttracker"
	"github.com/superkkt/sprout/northbound/app/l2switch"
	"github.com/superkkt/sprout/northbound/app/tap"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("api")
)

// Server is a REST interface to the applications. Hosts, Switch and Tap can be
// nil if the application is disabled; their routes answer 503 then.
type Server struct {
	Port uint16
	TLS  struct {
		Cert string // Path for a TLS certification file.
		Key  string // Path for a TLS private key file.
	}
	Finder network.Finder
	Hosts  HostTable
	Switch LearningSwitch
	Tap    Tapper
}

type HostTable interface {
	Hosts() []hosttracker.Host
	HostsBySwitch(dpid uint64) []hosttracker.Host
}

type LearningSwitch interface {
	Flows(dpid uint64) (flows []l2switch.Flow, ok bool)
	Exemption() *l2switch.ExemptionFilter
}

type Tapper interface {
	Create(tap.Filter) error
	Delete(tap.Filter) error
}

func (r *Server) validate() error {
	if r.Finder == nil {
		return errors.New("nil finder")
	}

	return nil
}

// MakeHandler returns the HTTP handler serving every route.
func (r *Server) MakeHandler() (http.Handler, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	api := rest.NewApi()
	api.Use(&rest.RecoverMiddleware{EnableResponseStackTrace: false})
	// Middleware to set the CORS header.
	api.Use(rest.MiddlewareSimple(func(handler rest.HandlerFunc) rest.HandlerFunc {
		return func(writer rest.ResponseWriter, request *rest.Request) {
			writer.Header().Set("Access-Control-Allow-Origin", "*")
			handler(writer, request)
		}
	}))
	router, err := rest.MakeRouter(r.routes()...)
	if err != nil {
		return nil, err
	}
	api.SetApp(router)

	return api.MakeHandler(), nil
}

func (r *Server) Serve() error {
	handler, err := r.MakeHandler()
	if err != nil {
		return err
	}

	// Listen on all interfaces.
	addr := fmt.Sprintf(":%v", r.Port)
	logger.Infof("REST API is listening on %v", addr)
	if r.TLS.Cert != "" && r.TLS.Key != "" {
		err = http.ListenAndServeTLS(addr, r.TLS.Cert, r.TLS.Key, handler)
	} else {
		err = http.ListenAndServe(addr, handler)
	}

	return err
}
