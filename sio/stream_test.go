package sio

import (
	"errors"
	"testing"
)

func TestFramerSplits(t *testing.T) {
	f := NewFramer(8, 1024)
	stmts, err := f.Feed([]byte(`{"op":"get","name":"a;b"}; {"op"`))
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 1 || string(stmts[0]) != `{"op":"get","name":"a;b"};` {
		t.Fatalf("%q", stmts)
	}
	stmts, err = f.Feed([]byte(`:"list"},[1,2],`))
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 2 {
		t.Fatalf("%q", stmts)
	}
	if string(stmts[1]) != `[1,2],` {
		t.Fatalf("%q", stmts[1])
	}
	if f.Flush() != nil {
		t.Fatal("leftovers")
	}
}

func TestFramerComments(t *testing.T) {
	f := NewFramer(16, 1024)
	stmts, err := f.Feed([]byte("# a; comment\n{\"op\":\"list\"} /* ; */;"))
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 1 {
		t.Fatalf("%q", stmts)
	}
	msg, _, err := Decode(stmts[0])
	if err != nil {
		t.Fatal(err)
	}
	if msg.Op != OpList {
		t.Fatal(msg.Op)
	}
}

func TestFramerOverflow(t *testing.T) {
	f := NewFramer(4, 16)

	// Complete statements make room.
	if _, err := f.Feed([]byte("1;2;3;4;5;6;")); err != nil {
		t.Fatal(err)
	}
	stmts, err := f.Feed([]byte("7;8;9;10;11;12;"))
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 6 {
		t.Fatalf("%q", stmts)
	}

	_, err = f.Feed([]byte(`{"a":"0123456789012345678901234567890"}`))
	if !errors.Is(err, ErrStatementTooLong) {
		t.Fatal(err)
	}
	if f.Pending() != 0 {
		t.Fatal(f.Pending())
	}
	if stmts, err = f.Feed([]byte("13;")); err != nil || len(stmts) != 1 {
		t.Fatal(stmts, err)
	}
}

func TestFlushRest(t *testing.T) {
	f := NewFramer(16, 1024)
	if stmts, _ := f.Feed([]byte(`{"op":"list"}`)); len(stmts) != 0 {
		t.Fatalf("%q", stmts)
	}
	if rest := f.Flush(); string(rest) != `{"op":"list"}` {
		t.Fatalf("%q", rest)
	}
	f.Feed([]byte("  \n"))
	if f.Flush() != nil {
		t.Fatal("whitespace")
	}
}

func TestFramerTrailingNewline(t *testing.T) {
	f := NewFramer(8, 1024)
	stmts, err := f.Feed([]byte("{\"op\":\"get\",\n"))
	if err != nil || len(stmts) != 0 {
		t.Fatal(stmts, err)
	}
	if f.Pending() == 0 {
		t.Fatal("expected a pending statement")
	}
	stmts, err = f.Feed([]byte("\"name\":\"x\"};\n"))
	if err != nil || len(stmts) != 1 {
		t.Fatal(stmts, err)
	}
	if f.Pending() != 0 {
		t.Fatal(f.Pending())
	}
}

func TestFlushResetsScanner(t *testing.T) {
	f := NewFramer(16, 1024)
	if stmts, _ := f.Feed([]byte(`{"op":"get", /* half`)); len(stmts) != 0 {
		t.Fatalf("%q", stmts)
	}
	if rest := f.Flush(); rest == nil {
		t.Fatal("nothing flushed")
	}
	stmts, err := f.Feed([]byte(`{"op":"list"};`))
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 1 || string(stmts[0]) != `{"op":"list"};` {
		t.Fatalf("%q", stmts)
	}
}
