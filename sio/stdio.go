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

package sio

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Comcast/gait/crew"
)

// Stdio is a simple coupling that reads statements from stdin and
// writes outputs to stdout.
type Stdio struct {
	In  io.Reader
	Out io.Writer

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes each statement (tagged "input") to the
	// output.
	EchoInput bool

	// Tags prefixes each line with the kind of output ("input",
	// "echo", "error", "reply").
	Tags bool

	// PadTags pads those tags.
	PadTags bool

	// InputEOF is closed when the input is exhausted.
	InputEOF chan bool

	WG sync.WaitGroup

	mu sync.Mutex
}

// NewStdio creates a new Stdio on os.Stdin and os.Stdout.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		ShellExpand: shellExpand,
		InputEOF:    make(chan bool),
	}
}

func (s *Stdio) printf(tag, format string, args ...interface{}) {
	if s.PadTags {
		tag = fmt.Sprintf("% 6s", tag)
	}
	if s.Tags {
		format = tag + " " + format
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		format = ts + " " + format
	}
	s.mu.Lock()
	fmt.Fprintf(s.Out, format, args...)
	s.mu.Unlock()
}

func (s *Stdio) filter(stmt []byte) ([]byte, error) {
	if s.EchoInput {
		s.printf("input", "%s\n", stmt)
	}
	if !s.ShellExpand {
		return stmt, nil
	}
	expanded, err := ShellExpand(string(stmt))
	if err != nil {
		return nil, err
	}
	return []byte(expanded), nil
}

// Couple attaches a connection and starts reading and writing.  The
// connection stays attached after EOF so that its programs keep
// running.
func (s *Stdio) Couple(ctx context.Context, e *Engine) *crew.Connection {
	c := e.Attach("stdio")

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		defer close(s.InputEOF)
		if err := e.Pump(ctx, c, s.In, s.filter); err != nil && ctx.Err() == nil {
			e.Logger.Error("stdin", "err", err)
		}
		e.Logger.Debug("stdin done")
	}()

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case o, ok := <-c.Out():
				if !ok {
					return
				}
				s.printf(o.Kind, "%s\n", JS(o))
			}
		}
	}()

	return c
}
