package core

import (
	"testing"
)

func TestTagsHierarchy(t *testing.T) {
	ts := NewTags()
	ts.SetTag("a.b.c", 1)
	ts.SetTag("a.x", 2)

	for _, name := range []string{"a", "a.b", "a.b.c", "a.x"} {
		if !ts.Exists(name) {
			t.Fatal(name)
		}
	}

	if !ts.Freeze("a.b") {
		t.Fatal("freeze")
	}
	if !ts.IsFrozen("a.b.c") || !ts.IsFrozen("a.b.c.d") {
		t.Fatal("descendants of a frozen tag are frozen")
	}
	if ts.IsFrozen("a.x") || ts.IsFrozen("a") {
		t.Fatal("freezing doesn't go up or sideways")
	}

	if !ts.Unfreeze("a.b") || ts.IsFrozen("a.b.c") {
		t.Fatal("unfreeze")
	}
}

func TestTagsPrune(t *testing.T) {
	ts := NewTags()
	ts.SetTag("a.b.c", 1)
	ts.SetTag("a.b.c", 2)
	ts.UnsetTag("a.b.c", 1)
	if !ts.Exists("a.b.c") {
		t.Fatal("still held")
	}
	ts.UnsetTag("a.b.c", 2)
	if ts.Len() != 0 {
		t.Fatalf("%d entries left", ts.Len())
	}

	ts.SetTag("a.b", 1)
	ts.Block("a")
	ts.UnsetTag("a.b", 1)
	if !ts.Exists("a") || ts.Exists("a.b") {
		t.Fatal("a blocked entry stays, its empty child goes")
	}
	ts.Unblock("a")
	if ts.Len() != 0 {
		t.Fatal("unblocked empty entry should go")
	}
}

func TestTagsStop(t *testing.T) {
	ts := NewTags()
	ts.SetTag("a", 1)
	ts.SetTag("a.b", 2)
	ts.SetTag("a.b.c", 3)
	ts.SetTag("ab", 4)

	got := ts.Stop("a")
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatal(got)
	}
	if got := ts.Stop("a.b.c"); len(got) != 1 {
		t.Fatal(got)
	}
	if got := ts.Stop("zzz"); got != nil {
		t.Fatal(got)
	}
}

func TestTagsUnknown(t *testing.T) {
	ts := NewTags()
	if ts.Freeze("q") || ts.Block("q") || ts.Unfreeze("q") || ts.Unblock("q") {
		t.Fatal("unknown tags")
	}
	if ts.IsBlocked("q") || ts.IsFrozen("q") {
		t.Fatal("unknown tags")
	}
	if ts.Len() != 0 {
		t.Fatal(ts.Len())
	}
}
