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
	"strings"
	"sync"

	"github.com/superkkt/sprout/openflow"

	"github.com/pkg/errors"
)

var ErrInvalidRule = errors.New("invalid exemption rule")

// NewExemptionRule normalizes fields into a rule. The field set of a frame
// never has in_port and holds host addresses only, so in_port and address
// prefixes are rejected.
func NewExemptionRule(fields map[string]interface{}) (openflow.Match, error) {
	if _, ok := fields[openflow.FieldInPort]; ok {
		return nil, errors.Wrap(ErrInvalidRule, "in_port is not allowed")
	}
	rule, err := openflow.NewMatch(fields)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{openflow.FieldNWSrc, openflow.FieldNWDst} {
		if strings.Contains(rule[name], "/") {
			return nil, errors.Wrapf(ErrInvalidRule, "%v: address prefix is not allowed", name)
		}
	}

	return rule, nil
}

// ExemptionFilter holds the rules of traffic that the learning switch must not
// handle. It is safe for concurrent use by multiple goroutines.
type ExemptionFilter struct {
	mutex sync.RWMutex
	rules []openflow.Match
}

func NewExemptionFilter() *ExemptionFilter {
	return &ExemptionFilter{}
}

// Add appends rule. An empty rule exempts all traffic.
func (r *ExemptionFilter) Add(rule openflow.Match) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.rules = append(r.rules, rule.Clone())
}

func (r *ExemptionFilter) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.rules = nil
}

func (r *ExemptionFilter) Rules() []openflow.Match {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]openflow.Match, len(r.rules))
	for i, rule := range r.rules {
		v[i] = rule.Clone()
	}

	return v
}

// IsExempt returns whether some rule is a subset of fields.
func (r *ExemptionFilter) IsExempt(fields openflow.Match) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, rule := range r.rules {
		if rule.SubsetOf(fields) {
			return true
		}
	}

	return false
}
