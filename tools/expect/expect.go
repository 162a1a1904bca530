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

// Package expect is a tool for testing programs.
//
// You construct a Session, which has inputs and expected outputs.
// Then run the session to see if the expected outputs actually
// appeared.
//
// A Session runs against its own engine with a manual clock, so time
// passes only as the session ticks.  Specifying what's expected can
// be simple, as in some literal output, or fairly fancy, as in a
// guard that computes some property of the match.
//
// See ../../cmd/gaittool for command-line use.
package expect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/match"
	"github.com/Comcast/gait/sio"
	"github.com/Comcast/gait/tools"
	"github.com/Comcast/gait/util/logging"
	. "github.com/Comcast/gait/util/testutil"

	"gopkg.in/yaml.v3"
)

// Output describes a message that's expected.
//
// Messages are connection outputs as JSON: {"kind":"echo","value":42}.
type Output struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Pattern must be matched by an output.
	Pattern interface{} `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Guard is optional Javascript that must return something
	// truthy after a match.  The bindings (without their '?')
	// are in _.frame.
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`

	// Bindingss, which is the result of a match (and optional
	// guard) is written during processing.  Just for diagnostics.
	Bindingss []match.Bindings `json:"bs,omitempty" yaml:"bs,omitempty"`

	// Inverted means that matching output isn't desired!
	Inverted bool `json:"inverted,omitempty" yaml:"inverted,omitempty"`
}

// IO is a package of inputs and the outputs they must produce.
type IO struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Inputs are the statements to submit.  A string is submitted
	// as is.  Anything else is submitted as JSON.
	Inputs []interface{} `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Ticks is the number of ticks to run after submitting the
	// inputs.  Zero means one.
	Ticks int `json:"ticks,omitempty" yaml:"ticks,omitempty"`

	// OutputSet is the set (not a list) of outputs to verify.
	OutputSet []*Output `json:"outputSet,omitempty" yaml:"outputSet,omitempty"`
}

// Session is mostly a sequence of IOs.
type Session struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Boot names program files to append before the first IO.
	// Relative names are relative to the session's directory.
	Boot []string `json:"boot,omitempty" yaml:"boot,omitempty"`

	// Period is the tick period in milliseconds.  Zero means 100.
	Period int `json:"period,omitempty" yaml:"period,omitempty"`

	// IOs is sequence of IOs that this session will run.
	IOs []*IO `json:"ios" yaml:"ios"`

	// ParsePatterns will parse IO.OutputSet.Patterns as JSON.
	ParsePatterns bool `json:"parsePatterns,omitempty" yaml:"parsePatterns,omitempty"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// Logger, if not nil, gets the engine's logging and the
	// session's trace.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// ParseSession reads a session from YAML (or JSON).  Scalars keep
// YAML 1.2 meanings, so an input like {name: n} names n.
func ParseSession(bs []byte) (*Session, error) {
	var s Session
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Failure reports an IO whose expectations weren't met.
type Failure struct {
	IO     int
	Doc    string
	Reason string
}

func (f *Failure) Error() string {
	if f.Doc == "" {
		return fmt.Sprintf("io %d: %s", f.IO, f.Reason)
	}
	return fmt.Sprintf("io %d (%s): %s", f.IO, f.Doc, f.Reason)
}

// Run processes all the IOs in the Session.  Boot files are relative
// to dir.
func (s *Session) Run(ctx context.Context, dir string) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	period := time.Duration(s.Period) * time.Millisecond
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	clock := core.NewManualClock(period)
	e := sio.NewEngine(clock, logger)
	c := e.Attach("expect")
	defer e.Detach(c)

	for _, name := range s.Boot {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		p, err := tools.ReadProgram(name)
		if err != nil {
			return err
		}
		pl, err := p.Compile()
		if err != nil {
			return err
		}
		e.Lock()
		e.Sched.Append(c, pl)
		e.Unlock()
	}

	for i, iop := range s.IOs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.submit(ctx, e, c, iop); err != nil {
			return err
		}

		ticks := iop.Ticks
		if ticks <= 0 {
			ticks = 1
		}
		var outputs []interface{}
		for j := 0; j < ticks; j++ {
			if 0 < e.Runtime().Tick() {
				clock.Advance()
			}
			e.Step(ctx)
			outputs = append(outputs, collect(c)...)
		}

		if err := s.check(i, iop, e.Runtime(), outputs); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) submit(ctx context.Context, e *sio.Engine, c *crew.Connection, iop *IO) error {
	f := sio.NewFramer(e.QueueInitial, e.QueueMax)
	for _, input := range iop.Inputs {
		var src []byte
		switch vv := input.(type) {
		case string:
			src = []byte(vv)
		default:
			js, err := json.Marshal(&vv)
			if err != nil {
				return err
			}
			src = append(js, ';')
		}
		if s.Verbose {
			s.log("in", "src", string(src))
		}
		stmts, err := f.Feed(src)
		if err != nil {
			return err
		}
		if rest := f.Flush(); rest != nil {
			stmts = append(stmts, rest)
		}
		for _, stmt := range stmts {
			if err := e.Submit(ctx, c, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// collect takes whatever the connection has as generic JSON.
func collect(c *crew.Connection) []interface{} {
	var acc []interface{}
	for {
		select {
		case o, ok := <-c.Out():
			if !ok {
				return acc
			}
			acc = append(acc, Dwimjs(JS(o)))
		default:
			return acc
		}
	}
}

func (s *Session) check(i int, iop *IO, rt *core.Runtime, outputs []interface{}) error {
	fail := func(format string, args ...interface{}) error {
		return &Failure{IO: i, Doc: iop.Doc, Reason: fmt.Sprintf(format, args...)}
	}

	for _, message := range outputs {
		if s.Verbose {
			s.log("out", "message", JS(message))
		}
		for _, output := range iop.OutputSet {
			if output.Bindingss != nil {
				continue
			}
			pattern := output.Pattern
			if s.ParsePatterns {
				js, is := pattern.(string)
				if !is {
					return fmt.Errorf("pattern %s isn't a string", JS(pattern))
				}
				if err := json.Unmarshal([]byte(js), &pattern); err != nil {
					return fmt.Errorf("Unmarshal error %v for %s", err, js)
				}
			}

			bss, err := match.Match(pattern, message, match.NewBindings())
			if err != nil {
				return err
			}
			if 0 < len(bss) && output.Guard != "" {
				if bss, err = guard(rt, output.Guard, bss); err != nil {
					return err
				}
			}
			if len(bss) == 0 {
				continue
			}
			output.Bindingss = bss
			if output.Inverted {
				return fail("undesired output %s", JS(message))
			}
		}
	}

	var missing []string
	for _, output := range iop.OutputSet {
		if output.Bindingss == nil && !output.Inverted {
			missing = append(missing, JS(output.Pattern))
		}
	}
	if 0 < len(missing) {
		return fail("no output matched %s", strings.Join(missing, ", "))
	}
	return nil
}

// guard keeps the bindings for which the guard is truthy.
func guard(rt *core.Runtime, src string, bss []match.Bindings) ([]match.Bindings, error) {
	e := &core.ScriptExpr{Lang: "goja", Src: src}
	var acc []match.Bindings
	for _, bs := range bss {
		f := core.NewFrame("guard", nil)
		for k, v := range bs {
			f.Define(core.Unquestion(k), core.FromInterface(v))
		}
		v, err := e.Eval(rt, f)
		if err != nil {
			return nil, err
		}
		if v.Truthy() {
			acc = append(acc, bs)
		}
	}
	return acc, nil
}

func (s *Session) log(what string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Info("expect "+what, args...)
	}
}
