package core

import (
	"strings"
)

// Bindings is a map from pattern variables (strings starting with a
// '?') to their values.
type Bindings map[string]Value

func NewBindings() Bindings {
	return make(Bindings, 8)
}

// Extend adds the binding; modifies and returns the Bindings.
func (bs Bindings) Extend(p string, v Value) Bindings {
	bs[p] = v
	return bs
}

// Copy makes a shallow copy of the Bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// Merge returns the union of the two Bindings, or nil if they bind a
// variable to different values.
func (bs Bindings) Merge(other Bindings) Bindings {
	acc := bs.Copy()
	for k, v := range other {
		if have, found := acc[k]; found {
			if !have.Equal(v) {
				return nil
			}
			continue
		}
		acc[k] = v
	}
	return acc
}

// Frame makes a frame that binds each variable without its '?'.
func (bs Bindings) Frame(name string, parent *Frame) *Frame {
	f := NewFrame(name, parent)
	for k, v := range bs {
		f.Define(Unquestion(k), v)
	}
	return f
}

// IsVariable reports if the string represents a pattern variable.
//
// All pattern variables start with a '?".
func IsVariable(s string) bool {
	return strings.HasPrefix(s, "?")
}

// IsAnonymousVariable detects a variable of the form '?'.  A binding
// for an anonymous variable shouldn't ever make it into bindings.
func IsAnonymousVariable(s string) bool {
	return s == "?"
}

// Pattern is one argument of an EventMatch: either a variable or an
// expression whose value must equal the event's argument.
type Pattern struct {
	Var  string
	Expr Expr
}

// Wild is a pattern variable.  Use "?" for the anonymous one.
func Wild(name string) Pattern {
	if !IsVariable(name) {
		name = "?" + name
	}
	return Pattern{Var: name}
}

// Lit is a pattern that must equal the expression's value.
func Lit(e Expr) Pattern {
	return Pattern{Expr: e}
}

// EventMatch filters the live events of one handler.
type EventMatch struct {
	Name string
	Args []Pattern
}

// Exprs returns the non-variable parts of the match.
func (m *EventMatch) Exprs() []Expr {
	var acc []Expr
	for _, p := range m.Args {
		if p.Expr != nil {
			acc = append(acc, p.Expr)
		}
	}
	return acc
}

// EventBindings is an event that matched along with the resulting
// bindings.
type EventBindings struct {
	Event    *Event
	Bindings Bindings
}

// Match finds the live events that match, extending the given
// bindings (which are not modified).  A variable that is already
// bound must match the value it has.
func (m *EventMatch) Match(rt *Runtime, f *Frame, bs Bindings) ([]EventBindings, error) {
	h := rt.Events.Lookup(m.Name, len(m.Args))
	if h == nil {
		return nil, nil
	}

	// Literal arguments are evaluated once.
	lits := make([]Value, len(m.Args))
	for i, p := range m.Args {
		if p.Expr == nil {
			continue
		}
		v, err := p.Expr.Eval(rt, f)
		if err != nil {
			return nil, err
		}
		lits[i] = v
	}

	var acc []EventBindings
EVENTS:
	for _, e := range h.Live() {
		ext := bs.Copy()
		for i, p := range m.Args {
			arg := e.Args[i]
			if p.Expr != nil {
				if !lits[i].Equal(arg) {
					continue EVENTS
				}
				continue
			}
			if IsAnonymousVariable(p.Var) {
				continue
			}
			if binding, found := ext[p.Var]; found {
				if !binding.Equal(arg) {
					continue EVENTS
				}
				continue
			}
			ext[p.Var] = arg
		}
		acc = append(acc, EventBindings{Event: e, Bindings: ext})
	}
	return acc, nil
}
