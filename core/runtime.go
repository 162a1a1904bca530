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
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Conn is the originating context of a directive: where its errors
// and echoes go.
type Conn interface {
	Id() string

	// Report receives an evaluation error attributed to a
	// directive.
	Report(err *DirectiveError)

	// Send receives a message emitted by a directive (echo).
	Send(tag string, v Value)
}

// NopConn discards everything.
type NopConn string

func (c NopConn) Id() string                 { return string(c) }
func (c NopConn) Report(err *DirectiveError) {}
func (c NopConn) Send(tag string, v Value)   {}

// Native is a Go function callable from expressions.
type Native func(rt *Runtime, args []Value) (Value, error)

// Script can compile and evaluate expressions written in some other
// language.  See interpreters/goja.
type Script interface {
	// Compile can make something that helps when Eval()ing the
	// code later.
	Compile(src string) (interface{}, error)

	// Eval evaluates the compiled code with access to the
	// runtime and the given frame.
	Eval(rt *Runtime, f *Frame, src string, compiled interface{}) (Value, error)
}

// Function is a user-defined function.  Body is a template that is
// instantiated for every call.
type Function struct {
	Name   string
	Params []string
	Body   *Plan
}

// Object is a named prototype with parents.  A slot "o.s" is a
// variable named "o.s" in the Store; lookups that miss climb the
// parents.
type Object struct {
	Name    string
	Parents []*Object
}

// Frame holds local bindings for a function call or a rule firing.
// Frames chain to their enclosing frame.
type Frame struct {
	Name   string
	Parent *Frame
	vars   map[string]Value
}

// NewFrame makes a frame with the given parent.
func NewFrame(name string, parent *Frame) *Frame {
	return &Frame{
		Name:   name,
		Parent: parent,
		vars:   make(map[string]Value, 4),
	}
}

// Lookup finds a local, climbing enclosing frames.
func (f *Frame) Lookup(name string) (Value, bool) {
	for ; f != nil; f = f.Parent {
		if v, have := f.vars[name]; have {
			return v, true
		}
	}
	return Void, false
}

// Set updates the nearest frame that defines name.  Returns false if
// no frame does.
func (f *Frame) Set(name string, v Value) bool {
	for ; f != nil; f = f.Parent {
		if _, have := f.vars[name]; have {
			f.vars[name] = v
			return true
		}
	}
	return false
}

// Define binds name in this frame.
func (f *Frame) Define(name string, v Value) {
	f.vars[name] = v
}

// Names returns the names bound in this frame (not parents), sorted.
func (f *Frame) Names() []string {
	acc := make([]string, 0, len(f.vars))
	for name := range f.vars {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Runtime is the execution context passed explicitly to every
// evaluation: variables, tags, events, functions, and time.
type Runtime struct {
	Store     *Store
	Tags      *Tags
	Events    *EventTable
	Functions map[string]*Function
	Natives   map[string]Native
	Scripts   map[string]Script
	Groups    map[string][]string
	Objects   map[string]*Object
	Clock     Clock
	Logger    *slog.Logger

	// OnFreeze, if not nil, is called when a directive is first
	// skipped because its tag is frozen (frozen == true) and
	// when it first runs again (frozen == false).
	OnFreeze func(d *Directive, frozen bool)

	tick uint64
}

// NewRuntime makes a Runtime with empty tables and the standard
// natives.
func NewRuntime(clock Clock, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rt := &Runtime{
		Tags:      NewTags(),
		Events:    NewEventTable(),
		Functions: make(map[string]*Function),
		Natives:   StandardNatives(),
		Scripts:   make(map[string]Script, len(DefaultInterpreters)),
		Groups:    make(map[string][]string),
		Objects:   make(map[string]*Object),
		Clock:     clock,
		Logger:    logger,
	}
	for name, s := range DefaultInterpreters {
		rt.Scripts[name] = s
	}
	rt.Store = NewStore(rt)
	return rt
}

// Now is the current time.
func (rt *Runtime) Now() time.Duration {
	return rt.Clock.Now()
}

// Period is the tick period.
func (rt *Runtime) Period() time.Duration {
	return rt.Clock.Period()
}

// Tick is the number of the current tick.
func (rt *Runtime) Tick() uint64 {
	return rt.tick
}

// DefineObject creates (or replaces) an object with the given
// parents, which must already exist.
func (rt *Runtime) DefineObject(name string, parents ...string) (*Object, error) {
	o := &Object{Name: name}
	for _, p := range parents {
		po, have := rt.Objects[p]
		if !have {
			return nil, &UndefinedIdentifier{Name: p}
		}
		o.Parents = append(o.Parents, po)
	}
	rt.Objects[name] = o
	return o, nil
}

// splitSlot splits "o.s" into "o" and "s".  Only the first dot
// counts; "o" is never empty.
func splitSlot(name string) (string, string, bool) {
	i := strings.IndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// ResolveVariable finds the variable for name, searching object
// parents for slot names.  A slot found through more than one
// parent path (to different variables) is an AmbiguousName.
func (rt *Runtime) ResolveVariable(name string) (*Variable, error) {
	if v := rt.Store.Lookup(name); v != nil {
		return v, nil
	}
	oname, slot, ok := splitSlot(name)
	if !ok {
		return nil, &UndefinedIdentifier{Name: name}
	}
	o, have := rt.Objects[oname]
	if !have {
		return nil, &UndefinedIdentifier{Name: name}
	}

	found := make(map[*Variable][]string)
	var search func(o *Object, path string, seen map[*Object]bool)
	search = func(o *Object, path string, seen map[*Object]bool) {
		if seen[o] {
			return
		}
		seen[o] = true
		if v := rt.Store.Lookup(o.Name + "." + slot); v != nil {
			found[v] = append(found[v], path)
			return
		}
		for _, p := range o.Parents {
			search(p, path+"/"+p.Name, seen)
		}
	}
	for _, p := range o.Parents {
		search(p, o.Name+"/"+p.Name, make(map[*Object]bool))
	}

	switch len(found) {
	case 0:
		return nil, &UndefinedIdentifier{Name: name}
	case 1:
		for v := range found {
			return v, nil
		}
	}
	var paths []string
	for _, ps := range found {
		paths = append(paths, ps...)
	}
	sort.Strings(paths)
	return nil, &AmbiguousName{Name: name, Paths: paths}
}
