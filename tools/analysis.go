package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Comcast/gait/program"
)

// Analysis is what can be learned about a program without running
// it.
type Analysis struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Directives counts statements by directive.
	Directives map[string]int `json:"directives"`

	Declared  []string `json:"declared,omitempty"`
	Assigned  []string `json:"assigned,omitempty"`
	Read      []string `json:"read,omitempty"`
	Emitted   []string `json:"emitted,omitempty"`
	Handled   []string `json:"handled,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Functions []string `json:"functions,omitempty"`
	Calls     []string `json:"calls,omitempty"`

	// Scripts counts script expressions.
	Scripts int `json:"scripts,omitempty"`
}

type set map[string]bool

func (s set) sorted() []string {
	acc := make([]string, 0, len(s))
	for k := range s {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

type analyzer struct {
	declared, assigned, read, emitted, handled set
	tags, functions, calls, locals             set
	scripts                                    int
}

func str(x interface{}) (string, bool) {
	s, is := x.(string)
	return s, is
}

func field(args interface{}, name string) (string, bool) {
	m, is := args.(map[string]interface{})
	if !is {
		return "", false
	}
	return str(m[name])
}

// expr notes what an expression or condition reads.
func (a *analyzer) expr(x interface{}) {
	switch vv := x.(type) {
	case []interface{}:
		for _, y := range vv {
			a.expr(y)
		}
	case map[string]interface{}:
		if len(vv) == 1 {
			for k, y := range vv {
				switch k {
				case "var", "deriv":
					if s, is := str(y); is {
						a.read[s] = true
						return
					}
				case "js", "goja", "script":
					a.scripts++
					return
				case "event":
					if name, is := field(y, "name"); is {
						a.handled[name] = true
					}
					if m, is := y.(map[string]interface{}); is {
						if args, is := m["args"].([]interface{}); is {
							for _, arg := range args {
								if s, is := str(arg); is && strings.HasPrefix(s, "?") {
									a.locals[s[1:]] = true
								}
							}
						}
					}
					return
				}
			}
		}
		for _, y := range vv {
			a.expr(y)
		}
	}
}

func (a *analyzer) node(t *Tree) {
	if t.Tag != "" {
		a.tags[t.Tag] = true
	}
	switch t.Directive {
	case "var":
		if s, is := field(t.Args, "name"); is {
			a.declared[s] = true
		}
	case "assign", "setprop":
		if s, is := field(t.Args, "var"); is {
			a.assigned[s] = true
		}
	case "incr", "decr", "delete":
		if s, is := str(t.Args); is {
			a.assigned[s] = true
		}
	case "emit":
		if s, is := field(t.Args, "name"); is {
			a.emitted[s] = true
		}
	case "function":
		if s, is := field(t.Args, "name"); is {
			a.functions[s] = true
		}
		if m, is := t.Args.(map[string]interface{}); is {
			if ps, is := m["params"].([]interface{}); is {
				for _, p := range ps {
					if s, is := str(p); is {
						a.locals[s] = true
					}
				}
			}
		}
	case "call":
		if s, is := field(t.Args, "name"); is {
			a.calls[s] = true
		}
	case "foreach":
		if s, is := field(t.Args, "var"); is {
			a.locals[s] = true
		}
	case "stop", "freeze", "unfreeze", "block", "unblock":
		if s, is := str(t.Args); is {
			a.tags[s] = true
		}
		return
	}
	a.expr(t.Args)
}

// Analyze walks a program.
func Analyze(p *program.Program) (*Analysis, error) {
	t, err := BuildTree(p)
	if err != nil {
		return nil, err
	}

	a := &analyzer{
		declared:  set{},
		assigned:  set{},
		read:      set{},
		emitted:   set{},
		handled:   set{},
		tags:      set{},
		functions: set{},
		calls:     set{},
		locals:    set{},
	}
	res := &Analysis{
		Directives: make(map[string]int),
	}
	t.Walk(func(t *Tree) {
		res.Directives[t.Directive]++
		a.node(t)
	})

	if _, err := p.Compile(); err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	for _, name := range a.calls.sorted() {
		if !a.functions[name] {
			res.Errors = append(res.Errors, fmt.Sprintf("call to undefined function %s", name))
		}
	}
	for _, name := range a.emitted.sorted() {
		if !a.handled[name] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("event %s is emitted but never handled here", name))
		}
	}
	for _, name := range a.read.sorted() {
		if !a.declared[name] && !a.locals[name] && !strings.Contains(name, ".") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("variable %s is read but not declared here", name))
		}
	}
	for _, name := range a.assigned.sorted() {
		if !a.declared[name] && !strings.Contains(name, ".") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("variable %s is assigned but not declared here", name))
		}
	}

	res.Declared = a.declared.sorted()
	res.Assigned = a.assigned.sorted()
	res.Read = a.read.sorted()
	res.Emitted = a.emitted.sorted()
	res.Handled = a.handled.sorted()
	res.Tags = a.tags.sorted()
	res.Functions = a.functions.sorted()
	res.Calls = a.calls.sorted()
	res.Scripts = a.scripts

	return res, nil
}
