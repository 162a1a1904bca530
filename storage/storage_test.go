package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemStorage(t *testing.T) {
	ctx := context.Background()
	var s Storage = NewMemStorage()
	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	src := []byte("body: [{echo: 1}]")
	if err := s.Put(ctx, "lib", &Entry{Name: "b", Format: "yaml", Source: src}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "lib", &Entry{Name: "a", Format: "yaml", Source: src}); err != nil {
		t.Fatal(err)
	}
	src[0] = 'X'

	e, err := s.Get(ctx, "lib", "b")
	if err != nil {
		t.Fatal(err)
	}
	if string(e.Source) != "body: [{echo: 1}]" {
		t.Fatal(string(e.Source))
	}

	names, err := s.List(ctx, "lib")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" {
		t.Fatal(names)
	}

	if err = s.Remove(ctx, "lib", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Get(ctx, "lib", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	if err = s.Remove(ctx, "other", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
}
