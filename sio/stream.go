package sio

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/crew"
)

// ErrStatementTooLong is reported when a statement doesn't fit in a
// framer's queue.  The partial statement is discarded.
var ErrStatementTooLong = errors.New("statement too long")

// Framer splits a byte stream into statements terminated by ';' or
// ',' outside brackets, strings and comments.
type Framer struct {
	q *core.ByteQueue
}

func NewFramer(initial, max int) *Framer {
	return &Framer{
		q: core.NewByteQueue(initial, max),
	}
}

// Feed adds data and returns the statements it completed.
func (f *Framer) Feed(data []byte) ([][]byte, error) {
	var acc [][]byte
	for {
		err := f.q.Push(data)
		if err == nil {
			break
		}
		if !errors.Is(err, core.ErrQueueOverflow) {
			return acc, err
		}
		// Make room with what's already complete.
		n := len(acc)
		acc = f.drain(acc)
		if len(acc) == n {
			f.q.Pop(f.q.Len())
			return acc, ErrStatementTooLong
		}
	}
	return f.drain(acc), nil
}

// drain pops complete statements.  White space left after the last
// one is dropped.
func (f *Framer) drain(acc [][]byte) [][]byte {
	for {
		stmt, ok := f.q.PopDirective()
		if !ok {
			break
		}
		acc = append(acc, stmt)
	}
	if 0 < f.q.Len() && f.q.Blank() {
		f.q.Pop(f.q.Len())
	}
	return acc
}

// Flush returns whatever is left, which is nil if that's only
// whitespace.
func (f *Framer) Flush() []byte {
	rest := f.q.Pop(f.q.Len())
	if len(bytes.TrimSpace(rest)) == 0 {
		return nil
	}
	return rest
}

// Pending is the number of buffered bytes of an incomplete
// statement.
func (f *Framer) Pending() int {
	return f.q.Len()
}

func (e *Engine) framer() *Framer {
	return NewFramer(e.QueueInitial, e.QueueMax)
}

// Pump reads statements from r and submits them for the connection
// until EOF or an error.  Anything after the last terminator is
// submitted at EOF.
//
// Filter, if not nil, can rewrite each statement first.
func (e *Engine) Pump(ctx context.Context, c *crew.Connection, r io.Reader, filter func([]byte) ([]byte, error)) error {
	f := e.framer()
	submit := func(stmt []byte) error {
		if filter != nil {
			var err error
			if stmt, err = filter(stmt); err != nil {
				c.Emit(&crew.Output{
					Kind:  crew.KindError,
					Error: err.Error(),
				})
				return nil
			}
		}
		return e.Submit(ctx, c, stmt)
	}

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if 0 < n {
			stmts, ferr := f.Feed(buf[:n])
			for _, stmt := range stmts {
				if serr := submit(stmt); serr != nil {
					return serr
				}
			}
			if ferr != nil {
				e.Logger.Warn("framing", "conn", c.Id(), "err", ferr)
				c.Emit(&crew.Output{
					Kind:  crew.KindError,
					Error: ferr.Error(),
				})
			}
		}
		if err == io.EOF {
			if rest := f.Flush(); rest != nil {
				return submit(rest)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
