package sio

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/util/logging"
	"github.com/Comcast/gait/util/testutil"
)

type syncBuffer struct {
	sync.Mutex
	bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.Buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()
	return b.Buffer.String()
}

func TestStdio(t *testing.T) {
	clock := core.NewManualClock(100 * time.Millisecond)
	e := NewEngine(clock, logging.Discard())

	out := &syncBuffer{}
	s := &Stdio{
		In: strings.NewReader(`{"op":"exec","program":{"echo":"one"}};
# ignored
{"op":"set","name":"x","value":2}
`),
		Out:       out,
		Tags:      true,
		EchoInput: true,
		InputEOF:  make(chan bool),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Couple(ctx, e)

	select {
	case <-s.InputEOF:
	case <-time.After(time.Second):
		t.Fatal("no EOF")
	}
	steps(e, clock, 1)

	var v core.Value
	testutil.Eventually(t, time.Second, "echo", func() bool {
		return strings.Contains(out.String(), `"one"`)
	})

	e.Lock()
	v = e.Runtime().Store.Lookup("x").Value()
	e.Unlock()
	if !v.Equal(core.Num(2)) {
		t.Fatal(v)
	}

	got := out.String()
	if !strings.Contains(got, "input ") || !strings.Contains(got, "echo {") {
		t.Fatal(got)
	}

	cancel()
	s.WG.Wait()
}

func TestStdioShellExpand(t *testing.T) {
	s := &Stdio{ShellExpand: true}
	got, err := s.filter([]byte(`{"op":"set","name":"x","value":<<echo -n 3>>};`))
	if err != nil {
		t.Skip(err)
	}
	if string(got) != `{"op":"set","name":"x","value":3};` {
		t.Fatal(string(got))
	}
}
