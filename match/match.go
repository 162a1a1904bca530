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

// Package match matches JSON-like messages against patterns.
//
// A pattern is a message that can contain variables: strings that
// start with '?'.  Matching a pattern against a message yields zero
// or more sets of bindings for those variables.
//
// Maps match maps that have at least the pattern's keys.  Arrays are
// sets: every pattern element has to match a different message
// element, so one match can produce several sets of bindings.
//
// "?" matches anything and binds nothing.  "??x" in a map value is
// optional: the key can be absent.  A variable like "?<x" is an
// inequality.  When the incoming bindings have a number for "?<x",
// a message number y matches if y < that number, and "?x" gets bound
// to y.  The operators are <, <=, >, >= and !=.
package match

import (
	"errors"
	"strings"
)

// Bindings maps variables (with their '?') to values.
type Bindings map[string]interface{}

func NewBindings() Bindings {
	return make(Bindings, 8)
}

// Copy makes a shallow copy.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// UnknownPatternType reports a pattern value that isn't JSON-like.
type UnknownPatternType struct {
	Pattern interface{}
}

func (e *UnknownPatternType) Error() string {
	return "unknown pattern type"
}

// ErrPropertyVariable occurs when a map pattern has a variable key
// together with other keys.
var ErrPropertyVariable = errors.New("a variable key must be the only key")

func IsVariable(s string) bool {
	return strings.HasPrefix(s, "?")
}

func isOptional(x interface{}) bool {
	s, is := x.(string)
	return is && strings.HasPrefix(s, "??")
}

// number converts the usual numeric types to float64.
func number(x interface{}) (float64, bool) {
	switch vv := x.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case int32:
		return float64(vv), true
	}
	return 0, false
}

// Match returns the extensions of bs that make pattern match msg.
// The given bindings are not modified.  No match gives an empty
// result and a nil error.
func Match(pattern, msg interface{}, bs Bindings) ([]Bindings, error) {
	if bs == nil {
		bs = NewBindings()
	}
	return match(pattern, msg, bs.Copy())
}

// match may modify bs.
func match(p, m interface{}, bs Bindings) ([]Bindings, error) {
	if n, is := number(p); is {
		if y, is := number(m); is && y == n {
			return []Bindings{bs}, nil
		}
		return nil, nil
	}

	switch vv := p.(type) {
	case nil:
		if m == nil {
			return []Bindings{bs}, nil
		}
		return nil, nil
	case bool:
		if y, is := m.(bool); is && y == vv {
			return []Bindings{bs}, nil
		}
		return nil, nil
	case string:
		if !IsVariable(vv) {
			if y, is := m.(string); is && y == vv {
				return []Bindings{bs}, nil
			}
			return nil, nil
		}
		return bind(vv, m, bs)
	case map[string]interface{}:
		y, is := m.(map[string]interface{})
		if !is {
			return nil, nil
		}
		return matchMap(vv, y, bs)
	case []interface{}:
		y, is := m.([]interface{})
		if !is {
			return nil, nil
		}
		used := make([]bool, len(y))
		return matchSet(vv, y, used, bs)
	}
	return nil, &UnknownPatternType{p}
}

func bind(v string, m interface{}, bs Bindings) ([]Bindings, error) {
	if v == "?" {
		return []Bindings{bs}, nil
	}
	if strings.HasPrefix(v, "??") {
		v = v[1:]
	}
	if ok, applies := inequal(v, m, bs); applies {
		if !ok {
			return nil, nil
		}
		return []Bindings{bs}, nil
	}
	if x, have := bs[v]; have {
		return match(x, m, bs)
	}
	bs[v] = m
	return []Bindings{bs}, nil
}

var inequalities = []string{"<=", ">=", "!=", "<", ">"}

// inequal handles inequality variables.  applies is false when v
// isn't one (or has no numeric bound).
func inequal(v string, m interface{}, bs Bindings) (ok bool, applies bool) {
	bound, have := number(bs[v])
	if !have {
		return false, false
	}
	var op, name string
	for _, ie := range inequalities {
		if strings.HasPrefix(v[1:], ie) {
			op, name = ie, "?"+v[1+len(ie):]
			break
		}
	}
	if op == "" || name == "?" {
		return false, false
	}
	y, is := number(m)
	if !is {
		return false, true
	}
	switch op {
	case "<":
		ok = y < bound
	case "<=":
		ok = y <= bound
	case ">":
		ok = y > bound
	case ">=":
		ok = y >= bound
	case "!=":
		ok = y != bound
	}
	if !ok {
		return false, true
	}
	if x, have := bs[name]; have {
		if z, is := number(x); !is || z != y {
			return false, true
		}
		return true, true
	}
	bs[name] = y
	return true, true
}

func matchMap(p, m map[string]interface{}, bs Bindings) ([]Bindings, error) {
	if len(p) == 0 {
		return []Bindings{bs}, nil
	}
	for k := range p {
		if IsVariable(k) && 1 < len(p) {
			return nil, ErrPropertyVariable
		}
	}

	bss := []Bindings{bs}
	for k, pv := range p {
		if IsVariable(k) {
			// The only key.
			var acc []Bindings
			for mk, mv := range m {
				for _, b := range bss {
					kbs, err := bind(k, mk, b.Copy())
					if err != nil {
						return nil, err
					}
					for _, kb := range kbs {
						more, err := match(pv, mv, kb)
						if err != nil {
							return nil, err
						}
						acc = append(acc, more...)
					}
				}
			}
			return acc, nil
		}

		mv, have := m[k]
		if !have {
			if isOptional(pv) {
				continue
			}
			return nil, nil
		}
		var acc []Bindings
		for _, b := range bss {
			more, err := match(pv, mv, b.Copy())
			if err != nil {
				return nil, err
			}
			acc = append(acc, more...)
		}
		if len(acc) == 0 {
			return nil, nil
		}
		bss = acc
	}
	return bss, nil
}

// matchSet assigns each pattern element to a distinct unused message
// element, backtracking over the choices.
func matchSet(p, m []interface{}, used []bool, bs Bindings) ([]Bindings, error) {
	if len(p) == 0 {
		return []Bindings{bs}, nil
	}
	var acc []Bindings
	for i, y := range m {
		if used[i] {
			continue
		}
		bss, err := match(p[0], y, bs.Copy())
		if err != nil {
			return nil, err
		}
		if len(bss) == 0 {
			continue
		}
		used[i] = true
		for _, b := range bss {
			more, err := matchSet(p[1:], m, used, b)
			if err != nil {
				used[i] = false
				return nil, err
			}
			acc = append(acc, more...)
		}
		used[i] = false
	}
	if len(acc) == 0 && isOptional(p[0]) {
		return matchSet(p[1:], m, used, bs)
	}
	return acc, nil
}
