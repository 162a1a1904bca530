// Package storage keeps program sources so they can be loaded by
// name.  Variable state is never stored.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by Get and Remove for an unknown name.
var ErrNotFound = errors.New("program not found")

// Entry is a stored program.
type Entry struct {
	// Name is the key within the library.
	Name string `json:"name,omitempty"`

	// Format is "yaml" or "json".
	Format string `json:"format"`

	Source []byte `json:"source"`

	Stored time.Time `json:"stored"`
}

// Storage is a persistence interface for program libraries.  A
// library is a namespace of named programs.
type Storage interface {
	Open(ctx context.Context) error

	Close(ctx context.Context) error

	Put(ctx context.Context, library string, e *Entry) error

	Get(ctx context.Context, library, name string) (*Entry, error)

	// List returns the sorted names in a library.
	List(ctx context.Context, library string) ([]string, error)

	Remove(ctx context.Context, library, name string) error
}

// MemStorage is a Storage that only lives as long as the process.
type MemStorage struct {
	sync.Mutex
	libs map[string]map[string]*Entry
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		libs: make(map[string]map[string]*Entry),
	}
}

func (s *MemStorage) Open(ctx context.Context) error {
	return nil
}

func (s *MemStorage) Close(ctx context.Context) error {
	return nil
}

func (s *MemStorage) Put(ctx context.Context, library string, e *Entry) error {
	s.Lock()
	defer s.Unlock()
	lib, have := s.libs[library]
	if !have {
		lib = make(map[string]*Entry)
		s.libs[library] = lib
	}
	c := *e
	c.Source = append([]byte(nil), e.Source...)
	lib[e.Name] = &c
	return nil
}

func (s *MemStorage) Get(ctx context.Context, library, name string) (*Entry, error) {
	s.Lock()
	defer s.Unlock()
	e, have := s.libs[library][name]
	if !have {
		return nil, ErrNotFound
	}
	c := *e
	return &c, nil
}

func (s *MemStorage) List(ctx context.Context, library string) ([]string, error) {
	s.Lock()
	defer s.Unlock()
	acc := make([]string, 0, len(s.libs[library]))
	for name := range s.libs[library] {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc, nil
}

func (s *MemStorage) Remove(ctx context.Context, library, name string) error {
	s.Lock()
	defer s.Unlock()
	if _, have := s.libs[library][name]; !have {
		return ErrNotFound
	}
	delete(s.libs[library], name)
	return nil
}
