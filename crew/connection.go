package crew

import (
	"sync"
	"sync/atomic"

	"github.com/Comcast/gait/core"
)

// Output is something a connection should see: an echo, a reported
// error, or a reply to a request.
type Output struct {
	Kind string `json:"kind"`

	// Tag is the tag of the directive that produced the output.
	Tag string `json:"tag,omitempty"`

	Value *core.Value `json:"value,omitempty"`

	Error string `json:"error,omitempty"`

	// Directive describes the directive that failed.
	Directive string `json:"directive,omitempty"`

	// Id echoes the request id, if any.
	Id string `json:"id,omitempty"`
}

const (
	KindEcho  = "echo"
	KindError = "error"
	KindReply = "reply"
)

// Connection is the originating context of directives.  It
// implements core.Conn.
//
// Report and Send are called during a tick and never block.  When
// the outbound buffer is full, the output is dropped and counted.
type Connection struct {
	id     string
	Origin string

	out     chan *Output
	dropped uint64

	sync.Mutex
	closed bool
}

// NewConnection makes a connection with an outbound buffer of the
// given size.
func NewConnection(id, origin string, buffer int) *Connection {
	if buffer <= 0 {
		buffer = 64
	}
	return &Connection{
		id:     id,
		Origin: origin,
		out:    make(chan *Output, buffer),
	}
}

func (c *Connection) Id() string {
	return c.id
}

// Out is where a coupling reads what to write back.  It's closed by
// Close.
func (c *Connection) Out() <-chan *Output {
	return c.out
}

// Dropped is the number of outputs lost to a full buffer.
func (c *Connection) Dropped() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

// Emit queues the output without blocking.  Outputs emitted after
// Close are dropped.
func (c *Connection) Emit(o *Output) {
	c.Lock()
	defer c.Unlock()
	if c.closed {
		atomic.AddUint64(&c.dropped, 1)
		return
	}
	select {
	case c.out <- o:
	default:
		atomic.AddUint64(&c.dropped, 1)
	}
}

func (c *Connection) Report(err *core.DirectiveError) {
	c.Emit(&Output{
		Kind:      KindError,
		Tag:       err.Tag,
		Error:     err.Err.Error(),
		Directive: err.Directive,
	})
}

func (c *Connection) Send(tag string, v core.Value) {
	c.Emit(&Output{
		Kind:  KindEcho,
		Tag:   tag,
		Value: &v,
	})
}

// Close closes Out.  Closing twice is harmless.
func (c *Connection) Close() {
	c.Lock()
	defer c.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}
