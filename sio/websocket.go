package sio

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/util"
)

// WebSocket serves the statement protocol over WebSockets.  Each
// text message can hold one or more statements, and a final
// statement doesn't need a terminator.
type WebSocket struct {
	Addr string `yaml:"addr" json:"addr"`

	// Path defaults to "/ws".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	upgrader websocket.Upgrader
}

// Handler returns the HTTP handler that upgrades requests.
func (w *WebSocket) Handler(ctx context.Context, e *Engine) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		wc, err := w.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			e.Logger.Warn("websocket upgrade", "err", err)
			return
		}
		defer wc.Close()

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				wc.Close()
			case <-done:
			}
		}()

		w.serve(ctx, e, wc, r.RemoteAddr)
	})
}

func (w *WebSocket) serve(ctx context.Context, e *Engine, wc *websocket.Conn, remote string) {
	c := e.Attach("ws:" + remote)
	defer e.Detach(c)

	go func() {
		for o := range c.Out() {
			js, err := json.Marshal(o)
			if err != nil {
				util.Logf("websocket %s marshal error %s", c.Id(), err)
				continue
			}
			if err = wc.WriteMessage(websocket.TextMessage, js); err != nil {
				util.Logf("websocket %s write error %s", c.Id(), err)
				return
			}
		}
	}()

	f := e.framer()
	for {
		_, message, err := wc.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.Logger.Warn("websocket read", "conn", c.Id(), "err", err)
			}
			return
		}
		stmts, err := f.Feed(message)
		if err != nil {
			c.Emit(&crew.Output{
				Kind:  crew.KindError,
				Error: err.Error(),
			})
		}
		if rest := f.Flush(); rest != nil {
			stmts = append(stmts, rest)
		}
		for _, stmt := range stmts {
			if err := e.Submit(ctx, c, stmt); err != nil {
				return
			}
		}
	}
}

// Serve runs an HTTP server for the WebSocket handler until the
// context is done.
func (w *WebSocket) Serve(ctx context.Context, e *Engine) error {
	path := w.Path
	if path == "" {
		path = "/ws"
	}
	mux := http.NewServeMux()
	mux.Handle(path, w.Handler(ctx, e))
	srv := &http.Server{
		Addr:    w.Addr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	e.Logger.Info("websocket listening", "addr", w.Addr, "path", path)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
