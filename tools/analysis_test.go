package tools

import (
	"strings"
	"testing"

	"github.com/Comcast/gait/program"
	"github.com/Comcast/gait/util/testutil"
)

var demo = `
name: porch
doc: |
  Turns the **porch light** on when someone arrives.
body:
  - var: {name: level, value: 0}
  - function:
      name: fade
      params: [to]
      body: {assign: {var: level, value: {var: to}, time: 1000}}
  - whenever:
      cond: {event: {name: arrived, args: ["?who"]}}
      body:
        - echo: {var: who}
        - call: {name: fade, args: [100]}
        - emit: {name: lit}
    tag: watch
  - every:
      period: 60000
      body: {assign: {var: uptime, value: {js: "_.now()"}}}
  - call: {name: blink}
  - stop: watch
`

func parse(t *testing.T, src string) *program.Program {
	t.Helper()
	p, err := program.Parse([]byte(src), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestAnalyze(t *testing.T) {
	a, err := Analyze(parse(t, demo))
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Errors) != 1 || !strings.Contains(a.Errors[0], "blink") {
		t.Fatal(a.Errors)
	}

	want := []string{
		"event lit is emitted but never handled here",
		"variable uptime is assigned but not declared here",
	}
	if len(a.Warnings) != len(want) {
		t.Fatal(a.Warnings)
	}
	for i, w := range want {
		if a.Warnings[i] != w {
			t.Fatal(a.Warnings[i])
		}
	}

	if a.Directives["call"] != 2 || a.Directives["echo"] != 1 || a.Directives["seq"] != 2 {
		t.Fatal(a.Directives)
	}
	if testutil.JS(a.Handled) != `["arrived"]` || testutil.JS(a.Tags) != `["watch"]` || testutil.JS(a.Functions) != `["fade"]` {
		t.Fatal(testutil.JS(a))
	}
	if a.Scripts != 1 {
		t.Fatal(a.Scripts)
	}
}

func TestAnalyzeBadTree(t *testing.T) {
	p := &program.Program{Body: []interface{}{"nope"}}
	if _, err := Analyze(p); err == nil {
		t.Fatal("expected an error")
	}
}

func TestBuildTree(t *testing.T) {
	tr, err := BuildTree(parse(t, `body: [{if: {cond: 1, then: {echo: 1}, else: [{echo: 2}, {wait: 10}]}}]`))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Directive != "seq" || len(tr.Kids) != 1 {
		t.Fatal(testutil.JS(tr))
	}
	i := tr.Kids[0]
	if i.Directive != "if" || len(i.Kids) != 2 {
		t.Fatal(testutil.JS(i))
	}
	if i.Kids[0].Edge != "then" || i.Kids[1].Edge != "else" || len(i.Kids[1].Kids) != 2 {
		t.Fatal(testutil.JS(i))
	}
	if testutil.JS(i.Args) != `{"cond":1}` {
		t.Fatal(testutil.JS(i.Args))
	}
}
