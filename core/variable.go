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
	"math"
	"sort"
	"time"
)

// Dependent is something that wants to know when a variable or an
// event handler changes.  Touch should only set a flag; the real work
// happens on the dependent's next visit.
type Dependent interface {
	Touch()
}

// Variable is a named slot in the Store.
type Variable struct {
	Name string

	value Value
	// target is the last target requested by an assignment.
	target Value

	// Range constraints apply when HasRange.
	RangeMin, RangeMax float64
	HasRange           bool

	// Rates are in units per second.  Zero means no constraint.
	RateMin, RateMax float64

	// Delta is the tolerance used by adaptive profiles.
	Delta float64

	Blend Blend

	// nbAssigns counts assignment directives still working on
	// this variable.
	nbAssigns int

	// nbAverage counts contributions folded in during the current
	// tick.
	nbAverage int

	// acc is the unclamped fold of this tick's contributions.
	acc float64

	// prev is the value at the start of the current tick.
	prev Value

	// active is the assignment that currently owns the variable
	// under Discard, Queue and Cancel.
	active interface{}

	dependents map[Dependent]struct{}
}

// Value returns the current value without calling the access hook.
func (v *Variable) Value() Value {
	return v.value
}

// Target returns the last assignment target.
func (v *Variable) Target() Value {
	return v.target
}

// Assigns returns the number of assignments in progress.
func (v *Variable) Assigns() int {
	return v.nbAssigns
}

// Derivative is the change since the start of the tick, per second.
func (v *Variable) Derivative(period time.Duration) float64 {
	cur, ok1 := v.value.Float()
	prev, ok2 := v.prev.Float()
	if !ok1 || !ok2 || period <= 0 {
		return 0
	}
	return (cur - prev) / seconds(period)
}

// Width is the width of the range, or 1 without a range.
func (v *Variable) Width() float64 {
	if !v.HasRange {
		return 1
	}
	return v.RangeMax - v.RangeMin
}

// Prop returns a property by the name used with "->".
func (v *Variable) Prop(name string) (Value, error) {
	switch name {
	case "rangemin":
		if !v.HasRange {
			return Void, nil
		}
		return Num(v.RangeMin), nil
	case "rangemax":
		if !v.HasRange {
			return Void, nil
		}
		return Num(v.RangeMax), nil
	case "speedmin":
		return Num(v.RateMin), nil
	case "speedmax":
		return Num(v.RateMax), nil
	case "delta":
		return Num(v.Delta), nil
	case "blend":
		return Str(v.Blend.String()), nil
	}
	return Void, &UndefinedIdentifier{Name: v.Name + "->" + name}
}

// SetProp sets a property by the name used with "->".
func (v *Variable) SetProp(name string, x Value) error {
	if name == "blend" {
		s, ok := x.Text()
		if !ok {
			return &TypeMismatch{Op: "->blend", Left: x.Kind(), Right: StringKind}
		}
		b, err := ParseBlend(s)
		if err != nil {
			return err
		}
		v.Blend = b
		v.active = nil
		return nil
	}

	f, ok := x.Float()
	if !ok {
		return &TypeMismatch{Op: "->" + name, Left: x.Kind(), Right: NumberKind}
	}
	switch name {
	case "rangemin":
		if !v.HasRange {
			v.RangeMax = math.Inf(1)
		}
		v.RangeMin, v.HasRange = f, true
	case "rangemax":
		if !v.HasRange {
			v.RangeMin = math.Inf(-1)
		}
		v.RangeMax, v.HasRange = f, true
	case "speedmin":
		v.RateMin = math.Abs(f)
	case "speedmax":
		v.RateMax = math.Abs(f)
	case "delta":
		v.Delta = math.Abs(f)
	default:
		return &UndefinedIdentifier{Name: v.Name + "->" + name}
	}
	return nil
}

// Store holds the variables.
type Store struct {
	rt   *Runtime
	vars map[string]*Variable

	// pending holds dependents registered on names that don't
	// exist yet.
	pending map[string]map[Dependent]struct{}

	// OnWrite, if not nil, is called after every commit.
	OnWrite func(v *Variable, x Value)

	// OnAccess, if not nil, is called before every read by an
	// expression.
	OnAccess func(v *Variable)
}

// NewStore makes an empty Store.
func NewStore(rt *Runtime) *Store {
	return &Store{
		rt:      rt,
		vars:    make(map[string]*Variable),
		pending: make(map[string]map[Dependent]struct{}),
	}
}

// Lookup returns the variable with exactly this name or nil.
func (s *Store) Lookup(name string) *Variable {
	return s.vars[name]
}

// Names returns the names of all variables, sorted.
func (s *Store) Names() []string {
	acc := make([]string, 0, len(s.vars))
	for name := range s.vars {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Declare creates the variable if needed and sets its value
// directly.  Dependents are touched.
func (s *Store) Declare(name string, x Value) *Variable {
	v, have := s.vars[name]
	if !have {
		v = &Variable{
			Name:       name,
			dependents: make(map[Dependent]struct{}),
		}
		if ds, have := s.pending[name]; have {
			v.dependents = ds
			delete(s.pending, name)
		}
		s.vars[name] = v
		v.prev = x
	}
	v.value = x
	v.target = x
	if f, ok := x.Float(); ok {
		v.acc = f
	}
	s.committed(v)
	return v
}

// Read returns the value after calling the access hook.
func (s *Store) Read(v *Variable) Value {
	if s.OnAccess != nil {
		s.OnAccess(v)
	}
	return v.value
}

// Set writes a value directly, bypassing blending but not range and
// rate constraints.
func (s *Store) Set(v *Variable, x Value) {
	if f, ok := x.Float(); ok {
		v.acc = f
		x, _ = s.clamp(v, f)
	}
	v.value = x
	v.target = x
	s.committed(v)
}

// Delete removes a variable.  A variable with assignments in progress
// can't be deleted.
func (s *Store) Delete(name string) error {
	v, have := s.vars[name]
	if !have {
		return &UndefinedIdentifier{Name: name}
	}
	if 0 < v.nbAssigns {
		return &VariableBusy{Name: name, Assigns: v.nbAssigns}
	}
	delete(s.vars, name)
	if 0 < len(v.dependents) {
		s.pending[name] = v.dependents
		for d := range v.dependents {
			d.Touch()
		}
	}
	return nil
}

// BeginTick prepares every variable for a new round of folding.
func (s *Store) BeginTick() {
	for _, v := range s.vars {
		v.nbAverage = 0
		v.prev = v.value
	}
}

func (s *Store) committed(v *Variable) {
	if s.OnWrite != nil {
		s.OnWrite(v, v.value)
	}
	s.UpdateRegisteredCmd(v)
}

// RegisterCmd makes d a dependent of the named variable.  The
// variable need not exist yet.
func (s *Store) RegisterCmd(name string, d Dependent) {
	if v, have := s.vars[name]; have {
		v.dependents[d] = struct{}{}
		return
	}
	ds, have := s.pending[name]
	if !have {
		ds = make(map[Dependent]struct{})
		s.pending[name] = ds
	}
	ds[d] = struct{}{}
}

// UnregisterCmd undoes RegisterCmd.
func (s *Store) UnregisterCmd(name string, d Dependent) {
	if v, have := s.vars[name]; have {
		delete(v.dependents, d)
	}
	if ds, have := s.pending[name]; have {
		delete(ds, d)
		if len(ds) == 0 {
			delete(s.pending, name)
		}
	}
}

// UpdateRegisteredCmd touches every dependent of v.
func (s *Store) UpdateRegisteredCmd(v *Variable) {
	for d := range v.dependents {
		d.Touch()
	}
}
