package tools

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Comcast/gait/program"
)

// Tree is a program statement arranged for rendering and analysis.
type Tree struct {
	// Directive is the statement's key ("seq", "assign", "at", ...).
	Directive string `json:"directive"`

	Tag string `json:"tag,omitempty"`

	// Args holds the directive's value without its sub-bodies.
	Args interface{} `json:"args,omitempty"`

	// Edge labels the link from the parent ("then", "body", ...).
	Edge string `json:"edge,omitempty"`

	Kids []*Tree `json:"kids,omitempty"`
}

var (
	listDirectives = map[string]bool{
		"seq":   true,
		"pipe":  true,
		"and":   true,
		"comma": true,
	}

	// bodies are the fields that hold statements.
	bodies = map[string][]string{
		"if":       {"then", "else"},
		"while":    {"body"},
		"for":      {"init", "step", "body"},
		"foreach":  {"body"},
		"every":    {"body"},
		"at":       {"body", "else"},
		"whenever": {"body", "else"},
		"timeout":  {"body"},
		"stopif":   {"body"},
		"freezeif": {"body"},
		"function": {"body"},
	}
)

// Walk calls f on every node in the tree, parents first.
func (t *Tree) Walk(f func(t *Tree)) {
	f(t)
	for _, k := range t.Kids {
		k.Walk(f)
	}
}

// BuildTree arranges a program's body as one "seq" tree.
func BuildTree(p *program.Program) (*Tree, error) {
	return build("seq", p.Body)
}

func build(edge string, x interface{}) (*Tree, error) {
	if xs, is := x.([]interface{}); is {
		t := &Tree{Directive: "seq", Edge: edge}
		for i, y := range xs {
			k, err := build(strconv.Itoa(i), y)
			if err != nil {
				return nil, err
			}
			t.Kids = append(t.Kids, k)
		}
		return t, nil
	}

	m, is := x.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("statement is a %T", x)
	}
	t := &Tree{Edge: edge}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "tag" {
			t.Tag = fmt.Sprintf("%v", m[k])
			continue
		}
		if t.Directive != "" {
			return nil, fmt.Errorf("statement with %s and %s", t.Directive, k)
		}
		t.Directive = k
	}
	if t.Directive == "" {
		return nil, fmt.Errorf("empty statement")
	}

	v := m[t.Directive]
	switch {
	case listDirectives[t.Directive]:
		xs, is := v.([]interface{})
		if !is {
			return nil, fmt.Errorf("%s wants a list", t.Directive)
		}
		for i, y := range xs {
			k, err := build(strconv.Itoa(i), y)
			if err != nil {
				return nil, err
			}
			t.Kids = append(t.Kids, k)
		}
	case t.Directive == "loop":
		k, err := build("body", v)
		if err != nil {
			return nil, err
		}
		t.Kids = []*Tree{k}
	case bodies[t.Directive] != nil:
		f, is := v.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf("%s wants fields", t.Directive)
		}
		args := make(map[string]interface{}, len(f))
		for k, y := range f {
			args[k] = y
		}
		for _, name := range bodies[t.Directive] {
			y, have := f[name]
			if !have {
				continue
			}
			delete(args, name)
			k, err := build(name, y)
			if err != nil {
				return nil, err
			}
			t.Kids = append(t.Kids, k)
		}
		t.Args = args
	default:
		t.Args = v
	}
	return t, nil
}
