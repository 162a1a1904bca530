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

// Package sio couples a gait runtime to the outside world.
//
// An Engine owns the scheduler.  Couplings (stdio, TCP, WebSocket,
// MQTT) turn their input into statements, Submit them, and write
// back whatever their connection's Out channel gives them.  Every
// tick, the Engine takes one lock, processes every request received
// since the last tick, and then runs the scheduler once.
package sio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/interpreters"
	"github.com/Comcast/gait/program"
	"github.com/Comcast/gait/storage"
)

// DefaultLibrary is the storage library used when none is given.
var DefaultLibrary = "programs"

// request is something for the engine to do at the start of the
// next tick.
type request struct {
	conn   *crew.Connection
	msg    *Message
	data   interface{}
	detach bool
}

// Engine runs a scheduler and the requests that feed it.
type Engine struct {
	// Mutex is held around "drain requests then tick".
	sync.Mutex

	Sched   *core.Scheduler
	Crew    *crew.Crew
	Storage storage.Storage

	// Library is the storage namespace for load and store.
	Library string

	// Routes turn raw data into events.
	Routes []*Route

	Logger *slog.Logger

	// Buffer is the outbound buffer size for new connections.
	Buffer int

	// QueueInitial and QueueMax size each connection's framing
	// queue.
	QueueInitial, QueueMax int

	in    chan *request
	conns uint64
}

// NewEngine makes an engine with the standard interpreters, an empty
// crew and in-memory storage.
func NewEngine(clock core.Clock, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	rt := core.NewRuntime(clock, logger)
	rt.Scripts = interpreters.Standard()
	rt.OnFreeze = func(d *core.Directive, frozen bool) {
		logger.Debug("freeze", "directive", d.Describe(), "frozen", frozen)
	}
	return &Engine{
		Sched:   core.NewScheduler(rt),
		Crew:    crew.NewCrew("gait"),
		Storage: storage.NewMemStorage(),
		Library: DefaultLibrary,
		Logger:  logger,
		Buffer:  64,

		QueueInitial: 256,
		QueueMax:     1 << 20,

		in: make(chan *request, 1024),
	}
}

// Runtime is the engine's runtime.  Only touch it while holding the
// engine's lock.
func (e *Engine) Runtime() *core.Runtime {
	return e.Sched.Runtime()
}

// Attach makes a new connection for the given origin (like "stdio"
// or a remote address).
func (e *Engine) Attach(origin string) *crew.Connection {
	n := atomic.AddUint64(&e.conns, 1)
	c := crew.NewConnection(origin+"-"+strconv.FormatUint(n, 10), origin, e.Buffer)
	e.Crew.Add(c)
	e.Logger.Info("attach", "conn", c.Id())
	return c
}

// Detach stops everything the connection started and closes its
// Out channel.  The work happens at the start of the next tick.
func (e *Engine) Detach(c *crew.Connection) {
	e.in <- &request{conn: c, detach: true}
}

// Submit decodes a statement and queues it for the next tick.
// Syntax errors go straight back to the connection.
func (e *Engine) Submit(ctx context.Context, c *crew.Connection, stmt []byte) error {
	msg, data, err := Decode(stmt)
	if err != nil {
		if errors.Is(err, errEmpty) {
			return nil
		}
		c.Emit(&crew.Output{
			Kind:  crew.KindError,
			Error: err.Error(),
		})
		return nil
	}
	return e.send(ctx, &request{conn: c, msg: msg, data: data})
}

func (e *Engine) send(ctx context.Context, r *request) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e.in <- r:
		return nil
	}
}

// Step processes every pending request and then runs one tick.
func (e *Engine) Step(ctx context.Context) {
	e.Lock()
	defer e.Unlock()

LOOP:
	for {
		select {
		case r := <-e.in:
			e.handle(ctx, r)
		default:
			break LOOP
		}
	}

	e.Sched.Tick()
}

// Idle reports whether the scheduler has nothing to run and no
// requests are waiting.
func (e *Engine) Idle() bool {
	e.Lock()
	defer e.Unlock()
	return len(e.in) == 0 && e.Sched.Idle()
}

// Run calls Step every tick period until the context is done.
func (e *Engine) Run(ctx context.Context) error {
	period := e.Runtime().Period()
	if period <= 0 {
		return fmt.Errorf("bad tick period %v", period)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	e.Logger.Info("engine running", "period", period)
	for {
		select {
		case <-ctx.Done():
			e.Logger.Info("engine stopping")
			return ctx.Err()
		case <-ticker.C:
			e.Step(ctx)
		}
	}
}

func (e *Engine) reply(c *crew.Connection, m *Message, v *core.Value) {
	c.Emit(&crew.Output{
		Kind:  crew.KindReply,
		Id:    m.Id,
		Value: v,
	})
}

func (e *Engine) fail(c *crew.Connection, m *Message, err error) {
	e.Logger.Warn("request failed", "conn", c.Id(), "op", m.Op, "err", err)
	c.Emit(&crew.Output{
		Kind:  crew.KindError,
		Id:    m.Id,
		Error: err.Error(),
	})
}

func (e *Engine) handle(ctx context.Context, r *request) {
	switch {
	case r.detach:
		e.Sched.StopConn(r.conn)
		e.Crew.Remove(r.conn.Id())
		e.Logger.Info("detach", "conn", r.conn.Id())
	case r.msg != nil:
		if err := e.do(ctx, r.conn, r.msg); err != nil {
			e.fail(r.conn, r.msg, err)
		}
	default:
		e.route(r.conn, r.data)
	}
}

func tagged(tag string, p *core.Plan) *core.Plan {
	if tag == "" {
		return p
	}
	return core.Tagged(tag, p)
}

func (e *Engine) do(ctx context.Context, c *crew.Connection, m *Message) error {
	rt := e.Runtime()
	switch m.Op {
	case OpExec, OpAppend:
		if m.Program == nil {
			return &BadMessage{Msg: "no program"}
		}
		p, err := program.Node(m.Program)
		if err != nil {
			return err
		}
		e.start(c, m.Op, tagged(m.Tag, p))

	case OpEmit:
		if m.Name == "" {
			return &BadMessage{Msg: "no event name"}
		}
		args := make([]core.Expr, len(m.Args))
		for i, x := range m.Args {
			args[i] = &core.Const{V: core.FromInterface(x)}
		}
		l := &core.Emit{Name: m.Name, Args: args}
		if 0 < m.Duration {
			l.Duration = core.N(m.Duration)
		}
		e.Sched.Execute(c, core.Do(l))

	case OpSet:
		if m.Name == "" {
			return &BadMessage{Msg: "no variable name"}
		}
		x := core.FromInterface(m.Value)
		v, err := rt.ResolveVariable(m.Name)
		if err != nil {
			var undef *core.UndefinedIdentifier
			if !errors.As(err, &undef) {
				return err
			}
			rt.Store.Declare(m.Name, x)
			break
		}
		rt.Store.Set(v, x)

	case OpGet:
		v, err := rt.ResolveVariable(m.Name)
		if err != nil {
			return err
		}
		x := rt.Store.Read(v)
		e.reply(c, m, &x)
		return nil

	case OpStop:
		e.Sched.Stop(m.Tag)
	case OpFreeze:
		e.Sched.Freeze(m.Tag)
	case OpUnfreeze:
		e.Sched.Unfreeze(m.Tag)
	case OpBlock:
		e.Sched.Block(m.Tag)
	case OpUnblock:
		e.Sched.Unblock(m.Tag)

	case OpLoad:
		ent, err := e.Storage.Get(ctx, e.Library, m.Name)
		if err != nil {
			return err
		}
		prog, err := program.Parse(ent.Source, ent.Format)
		if err != nil {
			return err
		}
		p, err := prog.Compile()
		if err != nil {
			return err
		}
		e.start(c, OpAppend, tagged(m.Tag, p))

	case OpStore:
		if m.Name == "" {
			return &BadMessage{Msg: "no program name"}
		}
		prog, err := program.Parse([]byte(m.Source), m.Format)
		if err != nil {
			return err
		}
		if _, err := prog.Compile(); err != nil {
			return err
		}
		err = e.Storage.Put(ctx, e.Library, &storage.Entry{
			Name:   m.Name,
			Format: m.Format,
			Source: []byte(m.Source),
			Stored: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

	case OpList:
		names, err := e.Storage.List(ctx, e.Library)
		if err != nil {
			return err
		}
		vs := make([]core.Value, len(names))
		for i, name := range names {
			vs[i] = core.Str(name)
		}
		x := core.ListOf(vs...)
		e.reply(c, m, &x)
		return nil

	default:
		return &BadMessage{Msg: "unknown op " + strconv.Quote(m.Op)}
	}

	if m.Id != "" {
		e.reply(c, m, nil)
	}
	return nil
}

func (e *Engine) start(c *crew.Connection, op string, p *core.Plan) {
	if op == OpExec {
		e.Sched.Execute(c, p)
		return
	}
	e.Sched.Append(c, p)
}

// Boot appends a program document on behalf of the connection.
func (e *Engine) Boot(c *crew.Connection, src []byte, format string) error {
	prog, err := program.Parse(src, format)
	if err != nil {
		return err
	}
	p, err := prog.Compile()
	if err != nil {
		return err
	}
	e.Lock()
	e.Sched.Append(c, p)
	e.Unlock()
	e.Logger.Info("booted", "program", prog.Name)
	return nil
}
