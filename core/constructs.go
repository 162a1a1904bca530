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

package core

// Control constructs.  Each one expands by morphing, one step at a
// time, into primitives and combinators.

import (
	"strconv"
	"time"

	"github.com/gorhill/cronexpr"
)

// stopwatch measures a leaf's elapsed time.  Time during which the
// leaf wasn't visited (because it was frozen) doesn't count.
type stopwatch struct {
	start, last time.Duration
	tick        uint64
	running     bool
}

func (w *stopwatch) Start(x *Exec) {
	now := x.Now()
	w.start, w.last = now, now
	w.tick = x.Runtime.Tick()
	w.running = true
}

func (w *stopwatch) Elapsed(x *Exec) time.Duration {
	rt := x.Runtime
	now := rt.Now()
	if w.tick+1 < rt.Tick() {
		if missed := now - w.last - rt.Period(); 0 < missed {
			w.start += missed
		}
	}
	w.last = now
	w.tick = rt.Tick()
	return now - w.start
}

// privateTag makes a tag name for a construct's own use under the
// directive's tag.
func privateTag(x *Exec, kind string) string {
	name := kind + "-" + strconv.FormatUint(x.Sched.get(x.Handle).Id, 10)
	if x.Tag == "" {
		return name
	}
	return x.Tag + "." + name
}

func evalCond(x *Exec, e Expr) (bool, error) {
	v, err := e.Eval(x.Runtime, x.Frame)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Noop completes immediately.
type Noop struct{}

func (l *Noop) Execute(x *Exec) Outcome { return Continue(Completed) }
func (l *Noop) Fresh() Leaf             { return l }

// If morphs into one of its branches.
type If struct {
	Cond       Expr
	Then, Else *Plan
}

func (l *If) Fresh() Leaf { return l }

func (l *If) Execute(x *Exec) Outcome {
	b, err := evalCond(x, l.Cond)
	if err != nil {
		return x.Fail(err)
	}
	if b {
		return Replace(l.Then)
	}
	return Replace(l.Else)
}

// While morphs into Seq(Body, Self) as long as its condition holds.
type While struct {
	Cond Expr
	Body *Plan
}

func (l *While) Fresh() Leaf { return l }

func (l *While) Execute(x *Exec) Outcome {
	b, err := evalCond(x, l.Cond)
	if err != nil {
		return x.Fail(err)
	}
	if !b {
		return Continue(Completed)
	}
	return Replace(Seq(l.Body, Self))
}

// For is Init followed by a While over Body then Step.
type For struct {
	Init *Plan
	Cond Expr
	Step *Plan
	Body *Plan
}

func (l *For) Fresh() Leaf { return l }

func (l *For) Execute(x *Exec) Outcome {
	body := l.Body
	if l.Step != nil {
		body = Seq(l.Body, l.Step)
	}
	loop := Do(&While{Cond: l.Cond, Body: body})
	if l.Init == nil {
		return Replace(loop)
	}
	return Replace(Seq(l.Init, loop))
}

// Foreach runs Body once per element with Var bound in a frame.
type Foreach struct {
	Var  string
	List Expr
	Body *Plan

	items   []Value
	next    int
	started bool
}

func (l *Foreach) Fresh() Leaf {
	return &Foreach{Var: l.Var, List: l.List, Body: l.Body}
}

func (l *Foreach) Execute(x *Exec) Outcome {
	if !l.started {
		v, err := l.List.Eval(x.Runtime, x.Frame)
		if err != nil {
			return x.Fail(err)
		}
		if v.Kind() != ListKind {
			return x.Fail(&TypeMismatch{Op: "foreach", Left: v.Kind(), Right: ListKind})
		}
		l.items = v.List()
		l.started = true
	}
	if len(l.items) <= l.next {
		return Continue(Completed)
	}
	f := NewFrame("foreach", x.Frame)
	f.Define(l.Var, l.items[l.next])
	l.next++
	return Replace(Seq(WithFrame(f, l.Body), Self))
}

// Loop runs Body forever, one iteration after the other.
type Loop struct {
	Body *Plan
}

func (l *Loop) Fresh() Leaf { return l }

func (l *Loop) Execute(x *Exec) Outcome {
	return Replace(Seq(l.Body, Self))
}

// Every starts Body every Period (milliseconds) or at the times given
// by a cron expression.  Iterations can overlap.
type Every struct {
	Period Expr
	Cron   string
	Body   *Plan

	sw    stopwatch
	due   time.Duration
	sched *cronexpr.Expression
}

func (l *Every) Fresh() Leaf {
	return &Every{Period: l.Period, Cron: l.Cron, Body: l.Body}
}

func (l *Every) Describe() string {
	if l.Cron != "" {
		return "every(" + strconv.Quote(l.Cron) + ")"
	}
	return "every"
}

func (l *Every) Execute(x *Exec) Outcome {
	if l.Cron != "" {
		return l.cron(x)
	}

	if !l.sw.running {
		ms, err := evalNumber(x.Runtime, x.Frame, l.Period, "every")
		if err != nil {
			return x.Fail(err)
		}
		if ms <= 0 {
			return x.Fail(&InvalidModifier{Modifier: "every", Reason: "period must be positive"})
		}
		l.sw.Start(x)
		l.due = millis(ms)
		return Replace(And(l.Body, Self))
	}

	if l.sw.Elapsed(x) < l.due {
		return Continue(Running)
	}
	ms, err := evalNumber(x.Runtime, x.Frame, l.Period, "every")
	if err != nil {
		return x.Fail(err)
	}
	if ms <= 0 {
		return x.Fail(&InvalidModifier{Modifier: "every", Reason: "period must be positive"})
	}
	l.due += millis(ms)
	return Replace(And(l.Body, Self))
}

func (l *Every) cron(x *Exec) Outcome {
	rt := x.Runtime
	wall := rt.Clock.Epoch().Add(rt.Now())
	if l.sched == nil {
		sched, err := cronexpr.Parse(l.Cron)
		if err != nil {
			return x.Fail(&InvalidModifier{Modifier: "every", Reason: err.Error()})
		}
		l.sched = sched
		next := sched.Next(wall)
		if next.IsZero() {
			return Continue(Completed)
		}
		l.due = next.Sub(rt.Clock.Epoch())
		return Continue(Running)
	}
	if rt.Now() < l.due {
		return Continue(Running)
	}
	next := l.sched.Next(wall)
	if next.IsZero() {
		return Replace(l.Body)
	}
	l.due = next.Sub(rt.Clock.Epoch())
	return Replace(And(l.Body, Self))
}

// watchKind says what a tagWatch does.
type watchKind int

const (
	watchTimeout watchKind = iota
	watchStopIf
	watchFreezeIf
)

// tagWatch runs beside a body that holds a private tag.  It
// completes when nothing holds the tag anymore.
type tagWatch struct {
	kind watchKind
	tag  string
	cond Expr
	dur  time.Duration

	sw     stopwatch
	frozen bool
}

func (l *tagWatch) Fresh() Leaf {
	return &tagWatch{kind: l.kind, tag: l.tag, cond: l.cond, dur: l.dur}
}

func (l *tagWatch) Describe() string {
	switch l.kind {
	case watchTimeout:
		return "timeout"
	case watchStopIf:
		return "stopif"
	}
	return "freezeif"
}

func (l *tagWatch) Execute(x *Exec) Outcome {
	ts := x.Runtime.Tags
	if len(ts.Stop(l.tag)) == 0 {
		l.Release(x)
		return Continue(Completed)
	}

	switch l.kind {
	case watchTimeout:
		if !l.sw.running {
			l.sw.Start(x)
		}
		if l.dur <= l.sw.Elapsed(x) {
			x.Stop(l.tag)
		}
	case watchStopIf:
		b, err := evalCond(x, l.cond)
		if err != nil {
			x.Stop(l.tag)
			return x.Fail(err)
		}
		if b {
			x.Stop(l.tag)
		}
	case watchFreezeIf:
		b, err := evalCond(x, l.cond)
		if err != nil {
			l.Release(x)
			return x.Fail(err)
		}
		if b && !l.frozen {
			l.frozen = ts.Freeze(l.tag)
		} else if !b && l.frozen {
			ts.Unfreeze(l.tag)
			l.frozen = false
		}
	}
	return Continue(Running)
}

func (l *tagWatch) Release(x *Exec) {
	if l.frozen {
		x.Runtime.Tags.Unfreeze(l.tag)
		l.frozen = false
	}
}

// Timeout stops Body after Duration (milliseconds).
type Timeout struct {
	Duration Expr
	Body     *Plan
}

func (l *Timeout) Fresh() Leaf { return l }

func (l *Timeout) Execute(x *Exec) Outcome {
	ms, err := evalNumber(x.Runtime, x.Frame, l.Duration, "timeout")
	if err != nil {
		return x.Fail(err)
	}
	tag := privateTag(x, "timeout")
	w := &tagWatch{kind: watchTimeout, tag: tag, dur: millis(ms)}
	return Replace(And(Tagged(tag, l.Body), Do(w)))
}

// StopIf stops Body as soon as Cond holds.
type StopIf struct {
	Cond Expr
	Body *Plan
}

func (l *StopIf) Fresh() Leaf { return l }

func (l *StopIf) Execute(x *Exec) Outcome {
	tag := privateTag(x, "stopif")
	w := &tagWatch{kind: watchStopIf, tag: tag, cond: l.Cond}
	return Replace(And(Tagged(tag, l.Body), Do(w)))
}

// FreezeIf freezes Body while Cond holds.
type FreezeIf struct {
	Cond Expr
	Body *Plan
}

func (l *FreezeIf) Fresh() Leaf { return l }

func (l *FreezeIf) Execute(x *Exec) Outcome {
	tag := privateTag(x, "freezeif")
	w := &tagWatch{kind: watchFreezeIf, tag: tag, cond: l.Cond}
	return Replace(And(Tagged(tag, l.Body), Do(w)))
}
