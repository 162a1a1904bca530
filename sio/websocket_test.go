package sio

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Comcast/gait/crew"
)

func TestWebSocket(t *testing.T) {
	e, ctx, cancel := runEngine(t)
	defer cancel()

	ws := &WebSocket{}
	srv := httptest.NewServer(ws.Handler(ctx, e))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	wc, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer wc.Close()

	// No terminator needed at the end of a message.
	msg := `{"op":"exec","program":{"echo":"a"}}; {"op":"exec","program":{"echo":"b"}}`
	if err = wc.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}

	wc.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make(map[string]bool)
	for len(got) < 2 {
		var o crew.Output
		if err := wc.ReadJSON(&o); err != nil {
			t.Fatal(err)
		}
		if o.Kind != crew.KindEcho {
			t.Fatal(JS(o))
		}
		s, _ := o.Value.Text()
		got[s] = true
	}
	if !got["a"] || !got["b"] {
		t.Fatal(got)
	}

	if err = wc.WriteMessage(websocket.TextMessage, []byte(`{"op":"bogus"}`)); err != nil {
		t.Fatal(err)
	}
	var o crew.Output
	if err := wc.ReadJSON(&o); err != nil {
		t.Fatal(err)
	}
	if o.Kind != crew.KindError {
		t.Fatal(JS(o))
	}
}
