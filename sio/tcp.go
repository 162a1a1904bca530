package sio

import (
	"context"
	"encoding/json"
	"net"
	"sync"

	"golang.org/x/net/netutil"

	"github.com/Comcast/gait/util"
)

// TCP accepts connections that each speak the statement protocol.
// Outputs are written back as JSON lines.
type TCP struct {
	Addr string `yaml:"addr" json:"addr"`

	// MaxConns limits concurrent connections.  Zero means no
	// limit.
	MaxConns int `yaml:"maxConns,omitempty" json:"maxConns,omitempty"`

	listener net.Listener
	wg       sync.WaitGroup
}

// Listen opens the listener.  Serve must be called to accept.
func (t *TCP) Listen() error {
	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}
	if 0 < t.MaxConns {
		l = netutil.LimitListener(l, t.MaxConns)
	}
	t.listener = l
	return nil
}

// ListenAddr is the listener's address, which is useful when Addr
// has port 0.
func (t *TCP) ListenAddr() net.Addr {
	return t.listener.Addr()
}

// Serve accepts connections until the context is done.
func (t *TCP) Serve(ctx context.Context, e *Engine) error {
	if t.listener == nil {
		if err := t.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		t.listener.Close()
	}()

	e.Logger.Info("tcp listening", "addr", t.listener.Addr().String())
	for {
		nc, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				t.wg.Wait()
				return nil
			}
			return err
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serve(ctx, e, nc)
		}()
	}
}

func (t *TCP) serve(parent context.Context, e *Engine, nc net.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	c := e.Attach("tcp:" + nc.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		enc := json.NewEncoder(nc)
		for o := range c.Out() {
			if err := enc.Encode(o); err != nil {
				util.Logf("tcp %s write error %s", c.Id(), err)
				cancel()
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		nc.Close()
	}()

	if err := e.Pump(ctx, c, nc, nil); err != nil && ctx.Err() == nil {
		e.Logger.Warn("tcp read", "conn", c.Id(), "err", err)
	}
	e.Detach(c)
	select {
	case <-done:
	case <-parent.Done():
	}
}
