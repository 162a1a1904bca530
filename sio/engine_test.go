package sio

import (
	"context"
	"testing"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/util/logging"
)

func newTestEngine(t *testing.T) (*Engine, *core.ManualClock, *crew.Connection) {
	t.Helper()
	clock := core.NewManualClock(100 * time.Millisecond)
	e := NewEngine(clock, logging.Discard())
	return e, clock, e.Attach("test")
}

// steps runs n engine steps, advancing the clock before each one
// except the very first.
func steps(e *Engine, clock *core.ManualClock, n int) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if 0 < e.Runtime().Tick() {
			clock.Advance()
		}
		e.Step(ctx)
	}
}

func submit(t *testing.T, e *Engine, c *crew.Connection, src string) {
	t.Helper()
	f := e.framer()
	stmts, err := f.Feed([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if rest := f.Flush(); rest != nil {
		stmts = append(stmts, rest)
	}
	for _, stmt := range stmts {
		if err := e.Submit(context.Background(), c, stmt); err != nil {
			t.Fatal(err)
		}
	}
}

func drain(c *crew.Connection) []*crew.Output {
	var acc []*crew.Output
	for {
		select {
		case o, ok := <-c.Out():
			if !ok {
				return acc
			}
			acc = append(acc, o)
		default:
			return acc
		}
	}
}

func only(t *testing.T, c *crew.Connection, kind string) *crew.Output {
	t.Helper()
	os := drain(c)
	if len(os) != 1 {
		t.Fatalf("got %s", JS(os))
	}
	if os[0].Kind != kind {
		t.Fatalf("got %s", JS(os[0]))
	}
	return os[0]
}

func TestExecEcho(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"exec","program":{"echo":"hi"}};`)
	steps(e, clock, 1)
	o := only(t, c, crew.KindEcho)
	if !o.Value.Equal(core.Str("hi")) {
		t.Fatal(o.Value)
	}
	if !e.Idle() {
		t.Fatal("not idle")
	}
}

func TestAppendOrder(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `
{"op":"append","program":[{"wait":200},{"echo":1}]};
{"op":"append","program":{"echo":2}};
`)
	steps(e, clock, 6)
	os := drain(c)
	if len(os) != 2 {
		t.Fatal(JS(os))
	}
	if !os[0].Value.Equal(core.Num(1)) || !os[1].Value.Equal(core.Num(2)) {
		t.Fatal(JS(os))
	}
}

func TestSetGet(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"set","name":"x","value":3}; {"op":"get","name":"x","id":"q1"};`)
	steps(e, clock, 1)
	o := only(t, c, crew.KindReply)
	if o.Id != "q1" || !o.Value.Equal(core.Num(3)) {
		t.Fatal(JS(o))
	}

	submit(t, e, c, `{"op":"set","name":"x","value":4}, {"op":"get","name":"x"}`)
	steps(e, clock, 1)
	if o = only(t, c, crew.KindReply); !o.Value.Equal(core.Num(4)) {
		t.Fatal(JS(o))
	}
}

func TestGetUndefined(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"get","name":"nope","id":"q"};`)
	steps(e, clock, 1)
	if o := only(t, c, crew.KindError); o.Id != "q" {
		t.Fatal(JS(o))
	}
}

func TestEmitTriggersRule(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"exec","program":{"at":{"cond":{"event":{"name":"button","args":["?b"]}},"body":{"echo":{"var":"b"}}}}};`)
	steps(e, clock, 2)
	submit(t, e, c, `{"op":"emit","name":"button","args":[7]};`)
	steps(e, clock, 3)
	o := only(t, c, crew.KindEcho)
	if !o.Value.Equal(core.Num(7)) {
		t.Fatal(o.Value)
	}
}

func TestStopTag(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"exec","tag":"blink","program":{"every":{"period":100,"body":{"echo":1}}}};`)
	steps(e, clock, 3)
	if len(drain(c)) == 0 {
		t.Fatal("nothing echoed")
	}
	submit(t, e, c, `{"op":"stop","tag":"blink"};`)
	steps(e, clock, 3)
	drain(c)
	steps(e, clock, 3)
	if os := drain(c); 0 < len(os) {
		t.Fatal(JS(os))
	}
	if !e.Idle() {
		t.Fatal("not idle")
	}
}

func TestFreezeTag(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"exec","tag":"blink","program":{"every":{"period":100,"body":{"echo":1}}}};`)
	steps(e, clock, 2)
	submit(t, e, c, `{"op":"freeze","tag":"blink"};`)
	steps(e, clock, 1)
	drain(c)
	steps(e, clock, 3)
	if os := drain(c); 0 < len(os) {
		t.Fatal(JS(os))
	}
	if e.Idle() {
		t.Fatal("frozen isn't stopped")
	}
	submit(t, e, c, `{"op":"unfreeze","tag":"blink"};`)
	steps(e, clock, 3)
	if len(drain(c)) == 0 {
		t.Fatal("nothing echoed after unfreeze")
	}
}

func TestStoreLoadList(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"store","id":"s","name":"five","format":"yaml","source":"body: [{echo: 5}]"};`)
	steps(e, clock, 1)
	if o := only(t, c, crew.KindReply); o.Id != "s" {
		t.Fatal(JS(o))
	}

	submit(t, e, c, `{"op":"list","id":"l"};`)
	steps(e, clock, 1)
	o := only(t, c, crew.KindReply)
	if !o.Value.Equal(core.ListOf(core.Str("five"))) {
		t.Fatal(JS(o))
	}

	submit(t, e, c, `{"op":"load","name":"five"};`)
	steps(e, clock, 2)
	if o = only(t, c, crew.KindEcho); !o.Value.Equal(core.Num(5)) {
		t.Fatal(JS(o))
	}

	submit(t, e, c, `{"op":"load","name":"six"};`)
	steps(e, clock, 1)
	only(t, c, crew.KindError)
}

func TestStoreRejectsBadProgram(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"store","name":"bad","format":"yaml","source":"body: [{nope: 1}]"};`)
	steps(e, clock, 1)
	only(t, c, crew.KindError)

	names, err := e.Storage.List(context.Background(), e.Library)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatal(names)
	}
}

func TestBadRequests(t *testing.T) {
	for _, src := range []string{
		`{"op":"nope"};`,
		`"x" y;`,
		`{"op":"exec"};`,
		`{"op":"exec","program":{"nope":1}};`,
	} {
		t.Run(src, func(t *testing.T) {
			e, clock, c := newTestEngine(t)
			submit(t, e, c, src)
			steps(e, clock, 1)
			only(t, c, crew.KindError)
		})
	}
}

func TestDirectiveErrorsReported(t *testing.T) {
	e, clock, c := newTestEngine(t)
	submit(t, e, c, `{"op":"exec","tag":"t","program":{"echo":{"var":"undefined"}}};`)
	steps(e, clock, 1)
	o := only(t, c, crew.KindError)
	if o.Tag != "t" {
		t.Fatal(JS(o))
	}
}

func TestDetach(t *testing.T) {
	e, clock, c := newTestEngine(t)
	other := e.Attach("other")
	submit(t, e, c, `{"op":"exec","program":{"every":{"period":100,"body":{"echo":1}}}};`)
	submit(t, e, other, `{"op":"exec","program":{"wait":1000}};`)
	steps(e, clock, 2)
	e.Detach(c)
	steps(e, clock, 2)

	drain(c)
	if _, ok := <-c.Out(); ok {
		t.Fatal("still open")
	}
	if e.Crew.Get(c.Id()) != nil {
		t.Fatal("still in the crew")
	}
	if e.Idle() {
		t.Fatal("the other connection's work should survive")
	}
}

func TestRoutes(t *testing.T) {
	e, clock, c := newTestEngine(t)
	e.Routes = []*Route{
		{
			Pattern: map[string]interface{}{"sensor": "?id", "temp": "?t"},
			Event:   "reading",
			Args:    []string{"?id", "?t"},
		},
	}
	submit(t, e, c, `{"op":"exec","program":{"whenever":{"cond":{"event":{"name":"reading","args":["a","?t"]}},"body":{"echo":{"var":"t"}}}}};`)
	steps(e, clock, 2)
	submit(t, e, c, `{"sensor":"a","temp":21}; {"sensor":"b","temp":5}; {"other":1};`)
	steps(e, clock, 3)
	o := only(t, c, crew.KindEcho)
	if !o.Value.Equal(core.Num(21)) {
		t.Fatal(o.Value)
	}
}

func TestBoot(t *testing.T) {
	e, clock, c := newTestEngine(t)
	if err := e.Boot(c, []byte(`{"name":"b","body":[{"echo":"booted"}]}`), "json"); err != nil {
		t.Fatal(err)
	}
	steps(e, clock, 2)
	if o := only(t, c, crew.KindEcho); !o.Value.Equal(core.Str("booted")) {
		t.Fatal(JS(o))
	}
	if err := e.Boot(c, []byte(`body: [{nope: 1}]`), "yaml"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRun(t *testing.T) {
	e := NewEngine(core.NewWallClock(5*time.Millisecond), logging.Discard())
	c := e.Attach("test")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- e.Run(ctx)
	}()

	submit(t, e, c, `{"op":"exec","program":{"echo":"ran"}};`)
	select {
	case o := <-c.Out():
		if !o.Value.Equal(core.Str("ran")) {
			t.Fatal(JS(o))
		}
	case <-ctx.Done():
		t.Fatal("timeout")
	}
	cancel()
	<-done
}
