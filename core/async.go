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
	"time"
)

// Rule is an "at" or "whenever" directive.
//
// The rule registers itself with the event handlers and variables
// that its condition mentions.  A write or an emission only touches
// the rule; the rule re-evaluates its condition on its own next
// visit.  Conditions that call natives or scripts are re-evaluated
// every tick.
//
// Each instance that satisfies the condition becomes a candidate.  A
// candidate fires once it has been present for Delay (milliseconds).
// For "at", firing runs Body once with the candidate's bindings.  For
// "whenever", Body runs in a loop as long as some fired candidate is
// present.  When a fired candidate goes away, Else runs once with its
// bindings.
type Rule struct {
	Whenever bool
	Cond     Compound
	Delay    Expr
	Body     *Plan
	Else     *Plan

	nf         Compound
	touched    bool
	volatile   bool
	registered bool
	handlers   []handlerRef
	vars       []string

	candidates []*candidate
	loopTag    string
	looping    bool
}

type handlerRef struct {
	name  string
	arity int
}

type candidate struct {
	inst  *Instance
	key   string
	since time.Duration
	fired bool
}

func (l *Rule) Fresh() Leaf {
	return &Rule{
		Whenever: l.Whenever,
		Cond:     l.Cond,
		Delay:    l.Delay,
		Body:     l.Body,
		Else:     l.Else,
	}
}

func (l *Rule) Describe() string {
	if l.Whenever {
		return "whenever"
	}
	return "at"
}

// Touch implements Dependent.
func (l *Rule) Touch() {
	l.touched = true
}

// register records the rule as a dependent of everything its
// condition mentions.
func (l *Rule) register(x *Exec) {
	rt := x.Runtime
	l.nf = NormalForm(l.Cond)
	seen := make(map[string]bool)
	addVars := func(e Expr) {
		if Volatile(e) {
			l.volatile = true
		}
		for _, name := range Refs(e) {
			if !seen[name] {
				seen[name] = true
				l.vars = append(l.vars, name)
				rt.Store.RegisterCmd(name, l)
			}
		}
	}
	compoundLeaves(l.nf, func(c Compound) {
		switch vv := c.(type) {
		case *MatchLeaf:
			ref := handlerRef{name: vv.Match.Name, arity: len(vv.Match.Args)}
			l.handlers = append(l.handlers, ref)
			rt.Events.RegisterCmd(ref.name, ref.arity, l)
			for _, e := range vv.Match.Exprs() {
				addVars(e)
			}
		case *TestLeaf:
			addVars(vv.Expr)
		}
	})
	l.registered = true
	l.touched = true
}

// Release implements Releaser.
func (l *Rule) Release(x *Exec) {
	rt := x.Runtime
	for _, ref := range l.handlers {
		rt.Events.UnregisterCmd(ref.name, ref.arity, l)
	}
	for _, name := range l.vars {
		rt.Store.UnregisterCmd(name, l)
	}
	l.handlers, l.vars = nil, nil
	if l.looping {
		x.Stop(l.loopTag)
		l.looping = false
	}
}

func (l *Rule) Execute(x *Exec) Outcome {
	if !l.registered {
		l.register(x)
		l.loopTag = privateTag(x, "whenever")
	}

	now := x.Now()

	if l.touched || l.volatile {
		l.touched = false
		insts, err := Mixing(x.Runtime, x.Frame, l.nf)
		if err != nil {
			return x.Fail(err)
		}
		l.diff(x, insts, now)
	}

	var delay time.Duration
	if l.Delay != nil {
		ms, err := evalNumber(x.Runtime, x.Frame, l.Delay, "~")
		if err != nil {
			return x.Fail(err)
		}
		delay = millis(ms)
	}

	for _, c := range l.candidates {
		if c.fired || now-c.since < delay {
			continue
		}
		c.fired = true
		if l.Whenever {
			if !l.looping {
				l.looping = true
				x.Spawn(Tagged(l.loopTag, l.withBindings(x, c, Do(&Loop{Body: l.Body}))))
			}
			continue
		}
		x.Spawn(l.withBindings(x, c, l.Body))
	}

	if l.looping && !l.anyFired() {
		x.Stop(l.loopTag)
		l.looping = false
	}

	return Continue(Background)
}

// diff replaces the candidates with the current instances.
// Candidates that persist keep their state.
func (l *Rule) diff(x *Exec, insts []*Instance, now time.Duration) {
	old := make(map[string]*candidate, len(l.candidates))
	for _, c := range l.candidates {
		old[c.key] = c
	}
	acc := make([]*candidate, 0, len(insts))
	seen := make(map[string]bool, len(insts))
	for _, inst := range insts {
		k := inst.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		if c, have := old[k]; have {
			c.inst = inst
			acc = append(acc, c)
			delete(old, k)
			continue
		}
		acc = append(acc, &candidate{inst: inst, key: k, since: now})
	}
	for _, c := range l.candidates {
		if _, gone := old[c.key]; gone && c.fired && l.Else != nil {
			x.Spawn(l.withBindings(x, c, l.Else))
		}
	}
	l.candidates = acc
}

func (l *Rule) anyFired() bool {
	for _, c := range l.candidates {
		if c.fired {
			return true
		}
	}
	return false
}

func (l *Rule) withBindings(x *Exec, c *candidate, p *Plan) *Plan {
	if len(c.inst.Bindings) == 0 {
		return p
	}
	return WithFrame(c.inst.Bindings.Frame(l.Describe(), x.Frame), p)
}
