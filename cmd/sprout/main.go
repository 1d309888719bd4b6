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

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/superkkt/sprout/api"
	"github.com/superkkt/sprout/clock"
	"github.com/superkkt/sprout/cookie"
	"github.com/superkkt/sprout/log"
	"github.com/superkkt/sprout/network"
	"github.com/superkkt/sprout/northbound"
	"github.com/superkkt/sprout/northbound/app/hosttracker"
	"github.com/superkkt/sprout/northbound/app/l2switch"
	"github.com/superkkt/sprout/northbound/app/tap"

	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	programName     = "sprout"
	programVersion  = "0.1.0"
	defaultLogLevel = logging.INFO
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = flag.Bool("version", false, "Show program version and exit")
	defaultConfigFile = flag.String("config", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the configuration file")
)

type apps struct {
	tracker *hosttracker.Tracker
	l2      *l2switch.L2Switch
	tap     *tap.Tap
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())
	flag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	initConfig()
	if err := initLog(getLogLevel(viper.GetString("default.log_level"))); err != nil {
		logger.Fatalf("failed to init log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	controller := network.NewController()
	a, err := createApps(controller)
	if err != nil {
		logger.Fatalf("failed to create applications: %v", err)
	}
	manager, err := createAppManager(a)
	if err != nil {
		logger.Fatalf("failed to create application manager: %v", err)
	}
	manager.AddEventSender(controller)
	if manager.Enabled(a.tracker.Name()) {
		go a.tracker.Run(ctx)
	}

	initAPIServer(controller, manager, a)
	initSignalHandler(controller, manager, cancel)

	listen(ctx, viper.GetInt("default.port"), controller)
}

func setDefaults() {
	viper.SetDefault("default.port", 6633)
	viper.SetDefault("default.log_level", "info")
	viper.SetDefault("default.log_backend", log.BackendSyslog)
	viper.SetDefault("default.applications", "HostTracker, L2Switch, Tap")
	viper.SetDefault("rest.port", 7070)
	viper.SetDefault("rest.tls", false)
	viper.SetDefault("hosttracker.idle_timeout", int(hosttracker.DefaultIdleTimeout/time.Second))
	d := l2switch.DefaultConfig()
	viper.SetDefault("l2switch.mac_table_size", d.MACTableSize)
	viper.SetDefault("l2switch.idle_timeout", d.IdleTimeout)
	viper.SetDefault("l2switch.hard_timeout", d.HardTimeout)
	viper.SetDefault("l2switch.max_floods", d.MaxFloods)
}

func initConfig() {
	setDefaults()
	viper.SetConfigFile(*defaultConfigFile)
	// Read the config file.
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatalf("failed to read the config file: %v", err)
	}
	// Watching and re-reading config file whenever it changes.
	viper.OnConfigChange(func(e fsnotify.Event) {
		// Ignore the WRITE operation to avoid reading empty config.
		if e.Op != fsnotify.Write {
			return
		}

		if loggerLeveled != nil {
			// Set log level for all modules
			loggerLeveled.SetLevel(getLogLevel(viper.GetString("default.log_level")), "")
		}
	})
	viper.WatchConfig()
	if err := validateConfig(); err != nil {
		logger.Fatalf("failed to validate the configuration: %v", err)
	}
}

func validateConfig() error {
	if port := viper.GetInt("default.port"); port <= 0 || port > 0xFFFF {
		return errors.New("invalid default.port")
	}
	if len(viper.GetString("default.log_level")) == 0 {
		return errors.New("invalid default.log_level")
	}
	if len(viper.GetString("default.applications")) == 0 {
		return errors.New("invalid default.applications")
	}
	if port := viper.GetInt("rest.port"); port <= 0 || port > 0xFFFF {
		return errors.New("invalid rest.port")
	}
	if viper.GetBool("rest.tls") && (viper.GetString("rest.cert_file") == "" || viper.GetString("rest.key_file") == "") {
		return errors.New("rest.cert_file and rest.key_file are required for rest.tls")
	}
	if viper.GetInt("hosttracker.idle_timeout") <= 0 {
		return errors.New("invalid hosttracker.idle_timeout")
	}
	if viper.GetInt("l2switch.mac_table_size") <= 0 {
		return errors.New("invalid l2switch.mac_table_size")
	}
	for _, key := range []string{"l2switch.idle_timeout", "l2switch.hard_timeout"} {
		if v := viper.GetInt(key); v < 0 || v > 0xFFFF {
			return fmt.Errorf("invalid %v", key)
		}
	}
	if viper.GetInt("l2switch.max_floods") < 0 {
		return errors.New("invalid l2switch.max_floods")
	}

	return nil
}

func createApps(finder network.Finder) (*apps, error) {
	cookies := cookie.NewRandom(time.Now().UnixNano())
	conf := l2switch.Config{
		MACTableSize: viper.GetInt("l2switch.mac_table_size"),
		IdleTimeout:  uint16(viper.GetInt("l2switch.idle_timeout")),
		HardTimeout:  uint16(viper.GetInt("l2switch.hard_timeout")),
		MaxFloods:    uint(viper.GetInt("l2switch.max_floods")),
	}

	v := &apps{
		tracker: hosttracker.New(clock.System{}, time.Duration(viper.GetInt("hosttracker.idle_timeout"))*time.Second),
		l2:      l2switch.New(conf, clock.System{}, cookies),
		tap:     tap.New(finder, cookies),
	}
	if err := loadExemptions(v.l2.Exemption()); err != nil {
		return nil, errors.Wrap(err, "loading l2switch.exemptions")
	}

	return v, nil
}

func loadExemptions(filter *l2switch.ExemptionFilter) error {
	var rules []map[string]interface{}
	if err := viper.UnmarshalKey("l2switch.exemptions", &rules); err != nil {
		return err
	}

	for _, v := range rules {
		rule, err := l2switch.NewExemptionRule(v)
		if err != nil {
			return err
		}
		filter.Add(rule)
		logger.Infof("exemption rule loaded: %v", rule)
	}

	return nil
}

func initAPIServer(controller *network.Controller, manager *northbound.Manager, a *apps) {
	srv := &api.Server{Finder: controller}
	srv.Port = uint16(viper.GetInt("rest.port"))
	if viper.GetBool("rest.tls") == true {
		srv.TLS.Cert = viper.GetString("rest.cert_file")
		srv.TLS.Key = viper.GetString("rest.key_file")
	}
	// Interfaces stay nil for the disabled applications.
	if manager.Enabled(a.tracker.Name()) {
		srv.Hosts = a.tracker.Table()
	}
	if manager.Enabled(a.l2.Name()) {
		srv.Switch = a.l2
	}
	if manager.Enabled(a.tap.Name()) {
		srv.Tap = a.tap
	}

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Fatalf("failed to run the API server: %v", err)
		}
	}()
}

func initSignalHandler(controller *network.Controller, manager *northbound.Manager, cancel context.CancelFunc) {
	go func() {
		c := make(chan os.Signal, 5)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

		// Infinte loop.
		for {
			s := <-c
			if s == syscall.SIGTERM || s == syscall.SIGINT {
				// Graceful shutdown
				logger.Warning("Shutting down...")
				cancel()
				// Timeout for cancelation
				time.Sleep(5 * time.Second)
				os.Exit(0)
			} else if s == syscall.SIGHUP {
				fmt.Println("* Controller status:")
				fmt.Println(controller.String())
				fmt.Printf("\n* Manager status:\n")
				fmt.Println(manager.String())
			}
		}
	}()
}

func initLog(level logging.Level) error {
	backend, err := log.Init(viper.GetString("default.log_backend"), programName, level)
	if err != nil {
		return err
	}
	loggerLeveled = backend

	return nil
}

func getLogLevel(level string) logging.Level {
	ret, err := log.ParseLevel(level)
	if err != nil {
		logger.Infof("invalid log level=%v, defaulting to %v..", level, defaultLogLevel)
		return defaultLogLevel
	}

	return ret
}

func listen(ctx context.Context, port int, controller *network.Controller) {
	type KeepAliver interface {
		SetKeepAlive(keepalive bool) error
		SetKeepAlivePeriod(d time.Duration) error
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		logger.Errorf("failed to listen on %v port: %v", port, err)
		return
	}
	defer listener.Close()
	logger.Infof("OpenFlow controller is listening on %v", listener.Addr())

	// Connection dispatcher.
	f := func(c chan<- net.Conn) {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Errorf("failed to accept a new connection: %v", err)
				continue
			}
			logger.Infof("new device is connected from %v", conn.RemoteAddr())
			// Pass the new connection into the backlog queue.
			c <- conn
		}
	}
	backlog := make(chan net.Conn, 32)
	go f(backlog)

	// Infinite loop
	for {
		select {
		case <-ctx.Done():
			logger.Debug("terminating the main listener loop...")
			return
		case conn := <-backlog:
			logger.Debug("fetching a new connection from the backlog..")
			if v, ok := conn.(KeepAliver); ok {
				logger.Debug("trying to enable socket keepalive..")
				if err := v.SetKeepAlive(true); err == nil {
					logger.Debug("setting socket keepalive period...")
					v.SetKeepAlivePeriod(time.Duration(5) * time.Second)
				} else {
					logger.Errorf("failed to enable socket keepalive: %v", err)
				}
			}
			controller.AddConnection(ctx, conn)
		}
	}
}

func createAppManager(a *apps) (*northbound.Manager, error) {
	manager := northbound.NewManager(a.tracker, a.l2, a.tap)

	names, err := parseApplications()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse applications")
	}
	for _, v := range names {
		if err := manager.Enable(v); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("enabling %v", v))
		}
	}

	return manager, nil
}

func parseApplications() ([]string, error) {
	// Remove spaces, and then split it using comma
	var tokens []string
	for _, v := range strings.Split(strings.Replace(viper.GetString("default.applications"), " ", "", -1), ",") {
		if v != "" {
			tokens = append(tokens, v)
		}
	}
	if len(tokens) == 0 {
		return nil, errors.New("empty application")
	}

	return tokens, nil
}
