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

// Package program builds core Plans from structured documents.
//
// A program document is YAML or JSON.  Its body is a list of
// statements that run in sequence.  A statement is a map with one
// directive key and an optional "tag":
//
//	body:
//	  - var: {name: x, value: 0}
//	  - assign: {var: x, value: 10, time: 1000}
//	    tag: motion
//	  - at:
//	      cond: {event: {name: button, args: ["?b"]}}
//	      body: {echo: {var: b}}
//
// Expressions are numbers, strings, lists, or single-key maps such
// as {var: x}, {"+": [1, {var: x}]}, {call: max, args: [1, 2]} and
// {js: "_.get('x') * 2"}.
package program

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Comcast/gait/core"

	"gopkg.in/yaml.v3"
)

// Program is a named document.
type Program struct {
	// Name is the generic name for this program.
	Name string `json:"name,omitempty" yaml:",omitempty"`

	// Version is the version of this program.
	Version string `json:"version,omitempty" yaml:",omitempty"`

	// Doc is Markdown documentation.  See tools.RenderProgramHTML.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Body is the list of statements.
	Body []interface{} `json:"body" yaml:"body"`
}

// SyntaxError reports a malformed document.  Path locates the
// offending node.
type SyntaxError struct {
	Path string
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Path == "" {
		return "program: " + e.Msg
	}
	return "program: " + e.Path + ": " + e.Msg
}

// ErrEmpty occurs when a document has no body.
var ErrEmpty = errors.New("program: empty body")

// Parse reads a program in the given format ("yaml", "yml" or
// "json").  An empty format means YAML, which is a superset of JSON
// anyway.  YAML is read with 1.2 semantics, so names like n, y, on
// and off stay strings.
func Parse(bs []byte, format string) (*Program, error) {
	var p Program
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(bs, &p); err != nil {
			return nil, err
		}
	case "", "yaml", "yml":
		if err := yaml.Unmarshal(bs, &p); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("program: unknown format %q", format)
	}
	if len(p.Body) == 0 {
		return nil, ErrEmpty
	}
	return &p, nil
}

// Compile turns the body into one Plan (statements joined by ";").
func (p *Program) Compile() (*core.Plan, error) {
	if len(p.Body) == 0 {
		return nil, ErrEmpty
	}
	return nodes(p.Name, p.Body, core.ModeSeq)
}

// Statements compiles each top-level statement on its own, so that
// they can be appended one after the other.
func (p *Program) Statements() ([]*core.Plan, error) {
	acc := make([]*core.Plan, len(p.Body))
	for i, x := range p.Body {
		pl, err := node(fmt.Sprintf("%s[%d]", p.Name, i), x)
		if err != nil {
			return nil, err
		}
		acc[i] = pl
	}
	return acc, nil
}

// Node compiles a single statement (or a list of statements, which
// run in sequence).
func Node(x interface{}) (*core.Plan, error) {
	if xs, is := x.([]interface{}); is {
		return nodes("", xs, core.ModeSeq)
	}
	return node("", x)
}

// Expression compiles a single expression.
func Expression(x interface{}) (core.Expr, error) {
	return expr("", x)
}
