// Package bolt is a storage.Storage backed by a bbolt file.  Each
// library is a bucket.
package bolt

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Comcast/gait/storage"

	bolt "go.etcd.io/bbolt"
)

type Storage struct {
	Logger *slog.Logger

	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		filename: filename,
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Storage) Put(ctx context.Context, library string, e *storage.Entry) error {
	s.Logger.Debug("bolt put", "library", library, "name", e.Name)
	if e.Stored.IsZero() {
		c := *e
		c.Stored = time.Now().UTC()
		e = &c
	}
	// The name is the key.
	js, err := json.Marshal(&storage.Entry{
		Format: e.Format,
		Source: e.Source,
		Stored: e.Stored,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(library))
		if err != nil {
			return err
		}
		return b.Put([]byte(e.Name), js)
	})
}

func (s *Storage) Get(ctx context.Context, library, name string) (*storage.Entry, error) {
	s.Logger.Debug("bolt get", "library", library, "name", name)
	var e *storage.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(library))
		if b == nil {
			return storage.ErrNotFound
		}
		bs := b.Get([]byte(name))
		if bs == nil {
			return storage.ErrNotFound
		}
		e = &storage.Entry{}
		if err := json.Unmarshal(bs, e); err != nil {
			return err
		}
		e.Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Storage) List(ctx context.Context, library string) ([]string, error) {
	var acc []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(library))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			acc = append(acc, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(acc)
	return acc, nil
}

func (s *Storage) Remove(ctx context.Context, library, name string) error {
	s.Logger.Debug("bolt remove", "library", library, "name", name)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(library))
		if b == nil || b.Get([]byte(name)) == nil {
			return storage.ErrNotFound
		}
		return b.Delete([]byte(name))
	})
}
