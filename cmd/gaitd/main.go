/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is gaitd, a gait runtime coupled to stdio, TCP,
// WebSockets and MQTT.
//
//	gaitd -config gait.yaml lights.yaml
//
// Program files given as arguments (and in the configuration's boot
// list) are appended at start-up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/sio"
	"github.com/Comcast/gait/storage/bolt"
	"github.com/Comcast/gait/tools"
	"github.com/Comcast/gait/util"
	"github.com/Comcast/gait/util/logging"
)

func main() {
	var (
		configFile = flag.String("config", "", "YAML or CUE (.cue) configuration file")
		period     = flag.Duration("period", 0, "tick period (overrides configuration)")
		storeFile  = flag.String("storage", "", "bolt database for stored programs (overrides configuration)")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error")
		tcpAddr    = flag.String("tcp", "", "TCP listen address")
		wsAddr     = flag.String("ws", "", "WebSocket listen address")
		noStdio    = flag.Bool("no-stdio", false, "don't couple stdin and stdout")
		exitOnEOF  = flag.Bool("exit-on-eof", false, "exit when stdin is done and nothing is running")
		echo       = flag.Bool("echo", false, "echo input")
		ts         = flag.Bool("ts", false, "print timestamps")
		sh         = flag.Bool("sh", false, "shell-expand input")
		tags       = flag.Bool("tags", false, "prefix output with its kind")
		verbose    = flag.Bool("v", false, "verbose coupling logs")
	)

	flag.Parse()

	conf := sio.DefaultConfig()
	if *configFile != "" {
		var err error
		if conf, err = sio.LoadConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "config: %s\n", err)
			os.Exit(2)
		}
	}
	if *period != 0 {
		conf.Period = period.String()
	}
	if *storeFile != "" {
		conf.Storage = *storeFile
	}
	if *logLevel != "" {
		conf.Log.Level = *logLevel
	}
	if *tcpAddr != "" {
		conf.TCP = &sio.TCP{Addr: *tcpAddr}
	}
	if *wsAddr != "" {
		conf.WebSocket = &sio.WebSocket{Addr: *wsAddr}
	}
	if *noStdio {
		conf.Stdio = nil
	} else if conf.Stdio != nil {
		conf.Stdio.EchoInput = conf.Stdio.EchoInput || *echo
		conf.Stdio.Timestamps = conf.Stdio.Timestamps || *ts
		conf.Stdio.ShellExpand = conf.Stdio.ShellExpand || *sh
		conf.Stdio.Tags = conf.Stdio.Tags || *tags
		conf.Stdio.ExitOnEOF = conf.Stdio.ExitOnEOF || *exitOnEOF
	}
	util.Logging = *verbose
	conf.Boot = append(conf.Boot, flag.Args()...)

	logger, closeLog, err := logging.New(os.Stderr, conf.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %s\n", err)
		os.Exit(2)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(conf, logger); err != nil {
		logger.Error("gaitd", "err", err)
		closeLog()
		os.Exit(1)
	}
}

func run(conf *sio.Config, logger *slog.Logger) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	period, _ := conf.TickPeriod()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e := sio.NewEngine(core.NewWallClock(period), logger)
	conf.Apply(e)

	if conf.Storage != "" {
		s, err := bolt.NewStorage(conf.Storage)
		if err != nil {
			return err
		}
		s.Logger = logger
		e.Storage = s
	}
	if err := e.Storage.Open(ctx); err != nil {
		return err
	}
	defer e.Storage.Close(context.Background())

	var console *crew.Connection
	if conf.Stdio != nil {
		io := sio.NewStdio(conf.Stdio.ShellExpand)
		io.EchoInput = conf.Stdio.EchoInput
		io.Timestamps = conf.Stdio.Timestamps
		io.Tags = conf.Stdio.Tags
		io.PadTags = conf.Stdio.Tags
		console = io.Couple(ctx, e)
		if conf.Stdio.ExitOnEOF {
			go exitWhenDone(ctx, cancel, e, io.InputEOF, period)
		}
	} else {
		console = e.Attach("boot")
		go func() {
			// Without stdio, outputs of booted programs go to the log.
			for o := range console.Out() {
				logger.Info("boot output", "kind", o.Kind, "tag", o.Tag, "error", o.Error)
			}
		}()
	}

	for _, filename := range conf.Boot {
		if err := boot(e, console, filename); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	}

	errs := make(chan error, 3)
	if conf.TCP != nil {
		go func() {
			errs <- conf.TCP.Serve(ctx, e)
		}()
	}
	if conf.WebSocket != nil {
		go func() {
			errs <- conf.WebSocket.Serve(ctx, e)
		}()
	}
	if conf.MQTT != nil {
		if err := conf.MQTT.Couple(ctx, e); err != nil {
			return err
		}
	}

	go func() {
		for err := range errs {
			if err != nil {
				logger.Error("coupling", "err", err)
				cancel()
			}
		}
	}()

	if err := e.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// boot appends a program file.  Stored programs can be named as
// "library:name".
func boot(e *sio.Engine, c *crew.Connection, filename string) error {
	if strings.HasPrefix(filename, "library:") {
		name := strings.TrimPrefix(filename, "library:")
		ent, err := e.Storage.Get(context.Background(), e.Library, name)
		if err != nil {
			return err
		}
		return e.Boot(c, ent.Source, ent.Format)
	}
	bs, err := tools.ReadFileWithInlines(filename)
	if err != nil {
		return err
	}
	format := "yaml"
	if filepath.Ext(filename) == ".json" {
		format = "json"
	}
	return e.Boot(c, bs, format)
}

func exitWhenDone(ctx context.Context, cancel func(), e *sio.Engine, eof chan bool, period time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-eof:
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.Idle() {
				cancel()
				return
			}
		}
	}
}
