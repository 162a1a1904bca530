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

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a directive.
type Status int

//go:generate stringer -type=Status

const (
	Queued     Status = iota // Not started (or waiting its turn).
	Running                  // In progress; visit again next tick.
	Completed                // Done; will be unlinked and freed.
	Background               // Resting; visited every tick but doesn't hold up a sequence.
	Morphed                  // Replaced by another subtree.
)

func (s Status) String() string {
	switch s {
	case Queued:
		return "Queued"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Background:
		return "Background"
	case Morphed:
		return "Morphed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// finished reports whether a sequence may move past this status.
func (s Status) finished() bool {
	return s == Completed || s == Background
}

// Mode is how a combinator runs its two children.
type Mode int

const (
	// ModeAnd ("&") runs both children every tick.
	ModeAnd Mode = iota

	// ModePipe ("|") starts the second child in the same tick the
	// first one completes or goes to the background.
	ModePipe

	// ModeSeq (";") starts the second child on the tick after the
	// first one completes or goes to the background.
	ModeSeq

	// ModeComma (",") runs both children every tick, but the node
	// goes to the background as soon as the second one is done.
	ModeComma
)

func (m Mode) String() string {
	switch m {
	case ModeAnd:
		return "&"
	case ModePipe:
		return "|"
	case ModeSeq:
		return ";"
	case ModeComma:
		return ","
	}
	return "?"
}

// Outcome is what a leaf's Execute returns: either a status or a
// replacement.
type Outcome struct {
	Status Status
	Plan   *Plan
}

// Continue keeps the leaf in place with the given status.
func Continue(s Status) Outcome {
	return Outcome{Status: s}
}

// Replace asks the scheduler to replace the leaf with the
// materialized plan.
func Replace(p *Plan) Outcome {
	return Outcome{Status: Morphed, Plan: p}
}

// Leaf is a primitive or not-yet-expanded directive.
type Leaf interface {
	// Execute advances the leaf by one tick.
	Execute(x *Exec) Outcome

	// Fresh returns an unstarted copy.  Plans are templates; the
	// scheduler materializes leaves with Fresh.
	Fresh() Leaf
}

// Releaser is implemented by leaves that hold registrations which
// must be undone when the directive is freed.
type Releaser interface {
	Release(x *Exec)
}

// Describer is implemented by leaves that can render themselves for
// error messages.
type Describer interface {
	Describe() string
}

func describe(l Leaf) string {
	if d, is := l.(Describer); is {
		return d.Describe()
	}
	s := fmt.Sprintf("%T", l)
	return strings.TrimPrefix(s, "*core.")
}

// Handle addresses a directive in the scheduler's arena.
type Handle int32

// NoHandle is the nil Handle.
const NoHandle Handle = -1

// Directive is a node in the directive tree: either a leaf or a
// combinator with two children.
type Directive struct {
	Id uint64

	Leaf Leaf

	Mode Mode
	Kids [2]Handle

	// ready is the tick on which the second child of a sequence
	// may start.
	ready uint64

	// Frame, if not nil, is a call frame for the subtree.  Such a
	// node is never simplified away.
	Frame *Frame

	Status Status

	// Tag is the tag this directive holds (if any).
	Tag string

	parent Handle
	slot   int
	anchor *root

	// Persistent leaves survive their own morph.
	Persistent bool

	toDelete bool
	frozen   bool

	// Detached directives report Background instead of Running.
	Detached bool

	Conn Conn

	inUse bool
}

// IsLeaf reports whether the directive is a leaf.
func (d *Directive) IsLeaf() bool {
	return d.Leaf != nil
}

// Describe renders the directive for messages.
func (d *Directive) Describe() string {
	if d.Leaf != nil {
		return describe(d.Leaf)
	}
	return "(" + d.Mode.String() + ")"
}

// effective is the status the parent sees.
func (d *Directive) effective() Status {
	if d.Detached && (d.Status == Running || d.Status == Queued) {
		return Background
	}
	return d.Status
}

// Plan is a template for a subtree.  Plans are produced by the
// program compiler and by leaves that morph.
type Plan struct {
	// Leaf, if not nil, makes this a leaf.
	Leaf Leaf

	Mode        Mode
	Left, Right *Plan

	// Frame, if not nil, is installed on the materialized
	// combinator.
	Frame *Frame

	Tag string

	// Self refers to the persistent leaf that asked for the
	// replacement.
	Self bool
}

// Self is a Plan that refers to the leaf being replaced.
var Self = &Plan{Self: true}

// Do makes a leaf Plan.
func Do(l Leaf) *Plan {
	return &Plan{Leaf: l}
}

// Combine makes a combinator Plan.
func Combine(m Mode, left, right *Plan) *Plan {
	return &Plan{Mode: m, Left: left, Right: right}
}

// And is shorthand for Combine(ModeAnd, ...).
func And(left, right *Plan) *Plan {
	return Combine(ModeAnd, left, right)
}

// Seq is shorthand for Combine(ModeSeq, ...).  More than two plans
// nest to the right.
func Seq(ps ...*Plan) *Plan {
	switch len(ps) {
	case 0:
		return Do(&Noop{})
	case 1:
		return ps[0]
	}
	return Combine(ModeSeq, ps[0], Seq(ps[1:]...))
}

// Tagged returns a Plan like p but holding the given tag.  If p
// already holds a tag, it's wrapped.
func Tagged(tag string, p *Plan) *Plan {
	if p.Tag == "" && !p.Self {
		q := *p
		q.Tag = tag
		return &q
	}
	return &Plan{Mode: ModeAnd, Left: p, Tag: tag}
}

// WithFrame returns a plan that runs p with the given call frame.
func WithFrame(f *Frame, p *Plan) *Plan {
	return &Plan{Mode: ModeAnd, Left: p, Frame: f}
}

// Exec is what a leaf sees while it executes.
type Exec struct {
	Runtime *Runtime
	Sched   *Scheduler
	Handle  Handle

	// Frame is the innermost call frame (or nil).
	Frame *Frame

	// Tag is the innermost tag held by this directive or an
	// ancestor.
	Tag string

	Conn Conn
}

// Now is the current time.
func (x *Exec) Now() time.Duration {
	return x.Runtime.Now()
}

// Fail reports the error to the directive's connection and completes
// the directive.
func (x *Exec) Fail(err error) Outcome {
	d := x.Sched.get(x.Handle)
	de := &DirectiveError{
		Tag:       x.Tag,
		Directive: d.Describe(),
		Err:       err,
	}
	x.Runtime.Logger.Debug("directive error", "tag", x.Tag, "directive", de.Directive, "err", err)
	if x.Conn != nil {
		x.Conn.Report(de)
	}
	return Continue(Completed)
}

// Warn logs a warning attributed to the directive.
func (x *Exec) Warn(msg string, args ...interface{}) {
	d := x.Sched.get(x.Handle)
	args = append(args, "tag", x.Tag, "directive", d.Describe())
	x.Runtime.Logger.Warn(msg, args...)
}

// Spawn starts a plan in parallel with everything else on this
// directive's connection.  The new subtree inherits the directive's
// frame and tag.
func (x *Exec) Spawn(p *Plan) Handle {
	if x.Frame != nil {
		p = WithFrame(x.Frame, p)
	}
	if x.Tag != "" {
		p = Tagged(x.Tag, p)
	}
	return x.Sched.Execute(x.Conn, p)
}

// Stop marks everything holding the tag (or a tag below it) for
// deletion.
func (x *Exec) Stop(tag string) {
	x.Sched.Stop(tag)
}
