package program

import (
	"errors"
	"testing"
	"time"

	"github.com/Comcast/gait/core"
)

type conn struct {
	echoes []core.Value
	errs   []*core.DirectiveError
}

func (c *conn) Id() string                      { return "test" }
func (c *conn) Report(err *core.DirectiveError) { c.errs = append(c.errs, err) }
func (c *conn) Send(tag string, v core.Value)   { c.echoes = append(c.echoes, v) }

func run(t *testing.T, src string, n int) (*core.Runtime, *conn) {
	t.Helper()
	p, err := Parse([]byte(src), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	plan, err := p.Compile()
	if err != nil {
		t.Fatal(err)
	}
	clock := core.NewManualClock(time.Second)
	rt := core.NewRuntime(clock, nil)
	s := core.NewScheduler(rt)
	c := &conn{}
	s.Execute(c, plan)
	for i := 0; i < n; i++ {
		if 0 < i {
			clock.Advance()
		}
		s.Tick()
	}
	for _, err := range c.errs {
		t.Fatal(err)
	}
	return rt, c
}

func TestSequence(t *testing.T) {
	rt, c := run(t, `
name: demo
body:
  - var: {name: x, value: 0}
  - assign: {var: x, value: 10, time: 1000}
    tag: motion
  - echo: {var: x}
`, 10)
	if v := rt.Store.Lookup("x").Value(); !v.Equal(core.Num(10)) {
		t.Fatal(v)
	}
	if len(c.echoes) != 1 || !c.echoes[0].Equal(core.Num(10)) {
		t.Fatal(c.echoes)
	}
}

func TestEventRule(t *testing.T) {
	_, c := run(t, `
body:
  - and:
    - at:
        cond: {event: {name: button, args: ["?b"]}}
        body: {echo: {"*": [{var: b}, 2]}}
    - emit: {name: button, args: [7]}
`, 4)
	if len(c.echoes) != 1 || !c.echoes[0].Equal(core.Num(14)) {
		t.Fatal(c.echoes)
	}
}

func TestFunctionsAndLoops(t *testing.T) {
	rt, _ := run(t, `
body:
  - var: {name: total, value: 0}
  - function:
      name: add
      params: [n]
      body: {assign: {var: total, value: {"+": [{var: total}, {var: n}]}}}
  - foreach:
      var: i
      list: [1, 2, 3]
      body: {call: {name: add, args: [{var: i}]}}
`, 20)
	if v := rt.Store.Lookup("total").Value(); !v.Equal(core.Num(6)) {
		t.Fatal(v)
	}
}

func TestJSON(t *testing.T) {
	p, err := Parse([]byte(`{"name":"j","body":[{"var":{"name":"y","value":{"js":"1+1"}}}]}`), "json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = p.Compile(); err != nil {
		t.Fatal(err)
	}
	if p.Name != "j" {
		t.Fatal(p.Name)
	}
}

func TestExpressions(t *testing.T) {
	rt := core.NewRuntime(core.NewManualClock(time.Second), nil)
	rt.Store.Declare("x", core.Num(4))
	for _, tc := range []struct {
		name string
		src  interface{}
		want core.Value
	}{
		{"number", 3, core.Num(3)},
		{"bool", true, core.Num(1)},
		{"string", "hi", core.Str("hi")},
		{"variadic", map[string]interface{}{"+": []interface{}{1, 2, 3}}, core.Num(6)},
		{"left assoc", map[string]interface{}{"-": []interface{}{10, 3, 2}}, core.Num(5)},
		{"negate", map[string]interface{}{"-": []interface{}{5}}, core.Num(-5)},
		{"var", map[string]interface{}{"var": "x"}, core.Num(4)},
		{"call", map[string]interface{}{"call": "max", "args": []interface{}{1, 5}}, core.Num(5)},
		{"index", map[string]interface{}{"index": []interface{}{[]interface{}{1, 2}, 1}}, core.Num(2)},
		{"not", map[string]interface{}{"not": 0}, core.Num(1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Expression(tc.src)
			if err != nil {
				t.Fatal(err)
			}
			v, err := e.Eval(rt, nil)
			if err != nil {
				t.Fatal(err)
			}
			if !v.Equal(tc.want) {
				t.Fatal(v)
			}
		})
	}
}

func TestSyntaxErrors(t *testing.T) {
	for _, src := range []string{
		`body: [{dance: 1}]`,
		`body: [{wait: 1, echo: 2}]`,
		`body: [{assign: {var: 3, value: 1}}]`,
		`body: [{at: {cond: {event: {args: []}}}}]`,
		`body: [{echo: {bogus: 1}}]`,
	} {
		p, err := Parse([]byte(src), "")
		if err != nil {
			t.Fatal(err)
		}
		_, err = p.Compile()
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("%s: %v", src, err)
		}
	}

	if _, err := Parse([]byte(`name: nothing`), "yaml"); !errors.Is(err, ErrEmpty) {
		t.Fatal(err)
	}
}

func TestStatements(t *testing.T) {
	p, err := Parse([]byte(`body: [{wait: 10}, {echo: 1}, {stop: motion}]`), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	ps, err := p.Statements()
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 3 {
		t.Fatal(len(ps))
	}
	if _, is := ps[2].Leaf.(*core.TagOp); !is {
		t.Fatalf("%T", ps[2].Leaf)
	}
}

func TestShortNamesStayStrings(t *testing.T) {
	for _, name := range []string{"n", "y", "on", "off", "no", "yes"} {
		t.Run(name, func(t *testing.T) {
			rt, _ := run(t, `
body:
  - var: {name: `+name+`, value: 1}
  - assign: {var: `+name+`, value: {"+": [{var: `+name+`}, 1]}}
`, 4)
			if v := rt.Store.Lookup(name).Value(); !v.Equal(core.Num(2)) {
				t.Fatal(v)
			}
		})
	}
}
