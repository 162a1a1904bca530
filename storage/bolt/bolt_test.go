package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Comcast/gait/storage"
)

func TestImpl(t *testing.T) {
	// Just confirm that this code compiles.
	var _ storage.Storage = &Storage{}
}

func TestBasics(t *testing.T) {
	var (
		filename = filepath.Join(t.TempDir(), "storage.db")
		library  = "simpsons"
	)

	s, err := NewStorage(filename)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, library, "homer"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal(err)
	}

	src := []byte("body: [{echo: doh}]")
	if err := s.Put(ctx, library, &storage.Entry{Name: "homer", Format: "yaml", Source: src}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, library, &storage.Entry{Name: "bart", Format: "json", Source: []byte(`{"body":[]}`)}); err != nil {
		t.Fatal(err)
	}

	e, err := s.Get(ctx, library, "homer")
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "homer" || e.Format != "yaml" || string(e.Source) != string(src) {
		t.Fatalf("%#v", e)
	}
	if e.Stored.IsZero() {
		t.Fatal("no time")
	}

	names, err := s.List(ctx, library)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "bart" || names[1] != "homer" {
		t.Fatal(names)
	}

	if err := s.Remove(ctx, library, "bart"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, library, "bart"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal(err)
	}

	// Reopen.
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)
	if names, err = s.List(ctx, library); err != nil || len(names) != 1 {
		t.Fatal(names, err)
	}
}
