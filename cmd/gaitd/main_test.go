package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/sio"
	"github.com/Comcast/gait/storage"
	"github.com/Comcast/gait/util/logging"
)

func TestBoot(t *testing.T) {
	clock := core.NewManualClock(100 * time.Millisecond)
	e := sio.NewEngine(clock, logging.Discard())
	c := e.Attach("boot")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.yaml"), []byte(`{var: {name: y, value: 2}}`), 0644); err != nil {
		t.Fatal(err)
	}
	filename := filepath.Join(dir, "main.yaml")
	if err := os.WriteFile(filename, []byte(`body: [%inline("lib.yaml")]`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := boot(e, c, filename); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := e.Storage.Put(ctx, e.Library, &storage.Entry{
		Name:   "x",
		Format: "json",
		Source: []byte(`{"body":[{"var":{"name":"x","value":1}}]}`),
	}); err != nil {
		t.Fatal(err)
	}
	if err := boot(e, c, "library:x"); err != nil {
		t.Fatal(err)
	}
	if err := boot(e, c, "library:nope"); err == nil {
		t.Fatal("expected an error")
	}

	for i := 0; i < 3; i++ {
		if 0 < i {
			clock.Advance()
		}
		e.Step(ctx)
	}
	rt := e.Runtime()
	for name, want := range map[string]float64{"x": 1, "y": 2} {
		v := rt.Store.Lookup(name)
		if v == nil || !v.Value().Equal(core.Num(want)) {
			t.Fatal(name)
		}
	}
}

func TestExitWhenDone(t *testing.T) {
	e := sio.NewEngine(core.NewManualClock(time.Millisecond), logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	eof := make(chan bool)
	close(eof)
	done := make(chan struct{})
	go func() {
		exitWhenDone(ctx, cancel, e, eof, time.Millisecond)
		close(done)
	}()
	<-done
	if ctx.Err() != context.Canceled {
		t.Fatal(ctx.Err())
	}
}
