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
	"sort"
	"strconv"
	"strings"
)

// Compound is a boolean trigger expression over event matches and
// tests.
//
// After NormalForm, only MatchLeaf and TestLeaf carry negation and
// there are no NotNodes.
type Compound interface {
	compound()
}

// MatchLeaf is satisfied by each live event its match accepts.  A
// negated MatchLeaf is satisfied (once, with no events) when no live
// event matches.
type MatchLeaf struct {
	Match   *EventMatch
	Negated bool
}

// TestLeaf is satisfied when its expression is true (or false, if
// negated).
type TestLeaf struct {
	Expr    Expr
	Negated bool
}

type AndNode struct {
	L, R Compound
}

type OrNode struct {
	L, R Compound
}

type NotNode struct {
	X Compound
}

func (*MatchLeaf) compound() {}
func (*TestLeaf) compound()  {}
func (*AndNode) compound()   {}
func (*OrNode) compound()    {}
func (*NotNode) compound()   {}

// NormalForm pushes negation down to the leaves.
func NormalForm(c Compound) Compound {
	return normalForm(c, false)
}

func normalForm(c Compound, neg bool) Compound {
	switch vv := c.(type) {
	case *MatchLeaf:
		return &MatchLeaf{Match: vv.Match, Negated: vv.Negated != neg}
	case *TestLeaf:
		return &TestLeaf{Expr: vv.Expr, Negated: vv.Negated != neg}
	case *NotNode:
		return normalForm(vv.X, !neg)
	case *AndNode:
		l, r := normalForm(vv.L, neg), normalForm(vv.R, neg)
		if neg {
			return &OrNode{L: l, R: r}
		}
		return &AndNode{L: l, R: r}
	case *OrNode:
		l, r := normalForm(vv.L, neg), normalForm(vv.R, neg)
		if neg {
			return &AndNode{L: l, R: r}
		}
		return &OrNode{L: l, R: r}
	}
	return c
}

// Pair is one matched event in an Instance.
type Pair struct {
	Match *EventMatch
	Event *Event
}

// Instance is one concrete way a Compound is satisfied.
type Instance struct {
	Pairs    []Pair
	Bindings Bindings
}

// Key identifies the instance by the events it uses.
func (i *Instance) Key() string {
	ids := make([]string, len(i.Pairs))
	for j, p := range i.Pairs {
		ids[j] = p.Match.Name + ":" + strconv.FormatUint(p.Event.Id, 10)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// Mixing computes the instances that satisfy a Compound in normal
// form.  An AndNode is a cross product: its right side is computed
// once per left instance so that bindings flow left to right and
// inconsistent pairs never appear.  An OrNode is a union.
func Mixing(rt *Runtime, f *Frame, c Compound) ([]*Instance, error) {
	return mixing(rt, f, c, NewBindings())
}

func mixing(rt *Runtime, f *Frame, c Compound, bs Bindings) ([]*Instance, error) {
	switch vv := c.(type) {
	case *MatchLeaf:
		ebs, err := vv.Match.Match(rt, bs.Frame("match", f), bs)
		if err != nil {
			return nil, err
		}
		if vv.Negated {
			if 0 < len(ebs) {
				return nil, nil
			}
			return []*Instance{{Bindings: bs.Copy()}}, nil
		}
		acc := make([]*Instance, len(ebs))
		for i, eb := range ebs {
			acc[i] = &Instance{
				Pairs:    []Pair{{Match: vv.Match, Event: eb.Event}},
				Bindings: eb.Bindings,
			}
		}
		return acc, nil

	case *TestLeaf:
		v, err := vv.Expr.Eval(rt, bs.Frame("test", f))
		if err != nil {
			return nil, err
		}
		if v.Truthy() == vv.Negated {
			return nil, nil
		}
		return []*Instance{{Bindings: bs.Copy()}}, nil

	case *AndNode:
		left, err := mixing(rt, f, vv.L, bs)
		if err != nil {
			return nil, err
		}
		var acc []*Instance
		for _, l := range left {
			right, err := mixing(rt, f, vv.R, l.Bindings)
			if err != nil {
				return nil, err
			}
			for _, r := range right {
				merged := l.Bindings.Merge(r.Bindings)
				if merged == nil {
					continue
				}
				pairs := make([]Pair, 0, len(l.Pairs)+len(r.Pairs))
				pairs = append(pairs, l.Pairs...)
				pairs = append(pairs, r.Pairs...)
				acc = append(acc, &Instance{Pairs: pairs, Bindings: merged})
			}
		}
		return acc, nil

	case *OrNode:
		left, err := mixing(rt, f, vv.L, bs)
		if err != nil {
			return nil, err
		}
		right, err := mixing(rt, f, vv.R, bs)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case *NotNode:
		return mixing(rt, f, NormalForm(vv), bs)
	}
	return nil, nil
}

// compoundLeaves calls fn on every leaf.
func compoundLeaves(c Compound, fn func(Compound)) {
	switch vv := c.(type) {
	case *AndNode:
		compoundLeaves(vv.L, fn)
		compoundLeaves(vv.R, fn)
	case *OrNode:
		compoundLeaves(vv.L, fn)
		compoundLeaves(vv.R, fn)
	case *NotNode:
		compoundLeaves(vv.X, fn)
	default:
		fn(c)
	}
}
