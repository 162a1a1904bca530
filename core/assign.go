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
	"strings"
)

// Assign sets a variable, possibly over time according to a motion
// profile.
//
// The right-hand side is evaluated once, when the assignment starts
// (except for adaptive and sin profiles, which re-evaluate it every
// tick).  Every tick the profile produces one value, which is folded
// into the variable according to the variable's blend policy.
type Assign struct {
	Name  string
	Value Expr
	Mods  Modifiers

	v        *Variable
	attached bool
	started  bool
	prof     profile
	sw       stopwatch
}

func (l *Assign) Fresh() Leaf {
	return &Assign{Name: l.Name, Value: l.Value, Mods: l.Mods}
}

func (l *Assign) Describe() string {
	return l.Name + " ="
}

func (l *Assign) Execute(x *Exec) Outcome {
	if !l.started {
		return l.begin(x)
	}
	return l.advance(x)
}

// local handles an assignment to a frame variable.
func (l *Assign) local(x *Exec) (Outcome, bool) {
	if x.Frame == nil || strings.Contains(l.Name, ".") {
		return Outcome{}, false
	}
	if _, have := x.Frame.Lookup(l.Name); !have {
		return Outcome{}, false
	}
	if !l.Mods.IsZero() {
		return x.Fail(&InvalidModifier{Modifier: "local", Reason: "no modifiers on locals"}), true
	}
	val, err := l.Value.Eval(x.Runtime, x.Frame)
	if err != nil {
		return x.Fail(err), true
	}
	x.Frame.Set(l.Name, val)
	return Continue(Completed), true
}

func (l *Assign) begin(x *Exec) Outcome {
	if out, done := l.local(x); done {
		return out
	}
	if err := l.Mods.check(); err != nil {
		return x.Fail(err)
	}

	rt := x.Runtime
	store := rt.Store
	v, err := rt.ResolveVariable(l.Name)
	if err != nil {
		if _, is := err.(*UndefinedIdentifier); !is {
			return x.Fail(err)
		}
		v = store.Declare(l.Name, Void)
	}

	if !store.Claim(v, l) {
		if v.Blend == Queue {
			return Continue(Queued)
		}
		// Discard
		return Continue(Completed)
	}
	l.v = v
	store.Attach(v)
	l.attached = true

	target, err := l.target(x)
	if err != nil {
		l.detach(x)
		return x.Fail(err)
	}

	f, numeric := target.Float()
	if !numeric {
		if !l.Mods.IsZero() {
			l.detach(x)
			return x.Fail(&InvalidModifier{Modifier: "profile", Reason: "target is a " + target.Kind().String()})
		}
		v.target = target
		store.Fold(v, target)
		l.detach(x)
		return Continue(Completed)
	}

	start, ok := v.value.Float()
	if !ok {
		start = f
	}
	v.target = target
	if err := l.prof.setup(x, v, l.Mods, start, f); err != nil {
		l.detach(x)
		return x.Fail(err)
	}
	l.started = true
	l.sw.Start(x)
	return l.advance(x)
}

// target evaluates the right-hand side, handling normalized targets.
func (l *Assign) target(x *Exec) (Value, error) {
	val, err := l.Value.Eval(x.Runtime, x.Frame)
	if err != nil {
		return Void, err
	}
	if l.Mods.Normalized {
		f, ok := val.Float()
		if !ok {
			return Void, &InvalidModifier{Modifier: "normalized", Reason: "target is a " + val.Kind().String()}
		}
		if l.v.HasRange {
			f = l.v.RangeMin + f*l.v.Width()
		}
		val = Num(f)
	}
	return val, nil
}

func (l *Assign) advance(x *Exec) Outcome {
	rt := x.Runtime
	store := rt.Store
	v := l.v

	if !store.Owns(v, l) {
		// Cancelled by a newer assignment.
		l.detach(x)
		return Continue(Completed)
	}

	target := l.prof.target
	if l.prof.adaptive || l.prof.kind == profileSin {
		val, err := l.target(x)
		if err != nil {
			l.detach(x)
			return x.Fail(err)
		}
		f, ok := val.Float()
		if !ok {
			l.detach(x)
			return x.Fail(&TypeMismatch{Op: "=", Left: val.Kind(), Right: NumberKind})
		}
		target = f
		v.target = val
	}

	cur, ok := v.value.Float()
	if !ok {
		cur = target
	}
	elapsed := l.sw.Elapsed(x)
	next, reached := l.prof.step(rt, elapsed, cur, target, v.Delta)

	if l.prof.kind == profileSin && l.Mods.GetPhase != "" {
		ph := Num(l.prof.phaseAt(elapsed))
		if pv, err := rt.ResolveVariable(l.Mods.GetPhase); err == nil {
			store.Set(pv, ph)
		} else {
			store.Declare(l.Mods.GetPhase, ph)
		}
	}

	reloop := store.Fold(v, Num(next))
	if reached && !reloop {
		l.detach(x)
		return Continue(Completed)
	}
	if reached && reloop && !l.prof.adaptive {
		// Another pass toward the final target.
		l.prof.start = l.prof.target
	}
	return Continue(Running)
}

func (l *Assign) detach(x *Exec) {
	if l.attached {
		x.Runtime.Store.Detach(l.v, l)
		l.attached = false
	}
}

func (l *Assign) Release(x *Exec) {
	l.detach(x)
}
