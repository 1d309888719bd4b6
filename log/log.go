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

// Package log configures the go-logging backend shared by every package.
package log

import (
	"fmt"
	slog "log/syslog"
	"os"
	"runtime"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

const format = `%{level}: %{shortpkg}.%{shortfunc}: %{message}`

const (
	BackendSyslog = "syslog"
	BackendStderr = "stderr"
)

type syslog struct {
	writer *slog.Writer
}

// NewSyslog returns a backend writing to the local syslog daemon. Each line
// carries the ID of the goroutine that logged it.
func NewSyslog(prefix string) (logging.Backend, error) {
	w, err := slog.New(slog.LOG_INFO|slog.LOG_DAEMON, prefix)
	if err != nil {
		return nil, err
	}

	return &syslog{writer: w}, nil
}

func (r *syslog) Log(level logging.Level, calldepth int, record *logging.Record) error {
	line := fmt.Sprintf("%v (TID=%v)", record.Formatted(calldepth+1), goroutineID())
	switch level {
	case logging.CRITICAL:
		return r.writer.Crit(line)
	case logging.ERROR:
		return r.writer.Err(line)
	case logging.WARNING:
		return r.writer.Warning(line)
	case logging.NOTICE:
		return r.writer.Notice(line)
	case logging.INFO:
		return r.writer.Info(line)
	case logging.DEBUG:
		return r.writer.Debug(line)
	default:
		panic("unexpected log level")
	}
}

func goroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
}

func newBackend(name, prefix string) (logging.Backend, error) {
	switch strings.ToLower(name) {
	case "", BackendSyslog:
		return NewSyslog(prefix)
	case BackendStderr:
		return logging.NewLogBackend(os.Stderr, prefix+": ", 0), nil
	default:
		return nil, fmt.Errorf("unknown log backend: %v", name)
	}
}

// Init installs the named backend as the default one of every logger and
// returns it so that the caller can change the level later.
func Init(backend, prefix string, level logging.Level) (logging.LeveledBackend, error) {
	b, err := newBackend(backend, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "creating the log backend")
	}
	b = logging.NewBackendFormatter(b, logging.MustStringFormatter(format))

	leveled := logging.AddModuleLevel(b)
	// Set log level for all modules
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)

	return leveled, nil
}

// ParseLevel parses a case-insensitive level name such as "info".
func ParseLevel(level string) (logging.Level, error) {
	return logging.LogLevel(strings.ToUpper(strings.TrimSpace(level)))
}
