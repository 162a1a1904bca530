package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Comcast/gait/sio"
)

func decode(t *testing.T, stmt []byte) *sio.Message {
	t.Helper()
	msg, _, err := sio.Decode(stmt)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestShellStatements(t *testing.T) {
	s := newShell(false)
	stmts, err := s.Line(`{"op":"exec",`)
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 0 || !s.Pending() {
		t.Fatal("should be pending")
	}
	// A command in the middle of a statement is just more text.
	if stmts, err = s.Line(`"program":{"echo":":run"}};`); err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 1 || s.Pending() {
		t.Fatalf("%q", stmts)
	}
	if msg := decode(t, stmts[0]); msg.Op != sio.OpExec {
		t.Fatal(msg.Op)
	}
}

func TestShellCommands(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "p.yaml")
	if err := os.WriteFile(filename, []byte("body: [{echo: 1}, {wait: 100}]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newShell(false)

	stmts, err := s.Line(":run " + filename + " demo")
	if err != nil {
		t.Fatal(err)
	}
	msg := decode(t, stmts[0])
	if msg.Op != sio.OpAppend || msg.Tag != "demo" {
		t.Fatal(sio.JS(msg))
	}
	if body, is := msg.Program.([]interface{}); !is || len(body) != 2 {
		t.Fatal(sio.JS(msg.Program))
	}

	if stmts, err = s.Line(":store p " + filename); err != nil {
		t.Fatal(err)
	}
	if msg = decode(t, stmts[0]); msg.Op != sio.OpStore || msg.Name != "p" || msg.Format != "yaml" {
		t.Fatal(sio.JS(msg))
	}

	if stmts, err = s.Line(":freeze demo"); err != nil {
		t.Fatal(err)
	}
	if msg = decode(t, stmts[0]); msg.Op != sio.OpFreeze || msg.Tag != "demo" {
		t.Fatal(sio.JS(msg))
	}

	if _, err = s.Line(":quit"); err != errQuit {
		t.Fatal(err)
	}

	for _, bad := range []string{":run", ":run /nonexistent", ":stop", ":bogus"} {
		if _, err = s.Line(bad); err == nil {
			t.Fatalf("no error for %q", bad)
		}
	}
}

func TestRequestIsOneStatement(t *testing.T) {
	js, err := request(&sio.Message{Op: sio.OpGet, Name: "x;y"})
	if err != nil {
		t.Fatal(err)
	}
	f := sio.NewFramer(16, 1024)
	stmts, err := f.Feed(js)
	if err != nil || len(stmts) != 1 {
		t.Fatal(stmts, err)
	}
	var m map[string]interface{}
	if err = json.Unmarshal(js[:len(js)-1], &m); err != nil {
		t.Fatal(err)
	}
}
