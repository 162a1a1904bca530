package main

import (
	"encoding/json"
	"net"

	"github.com/gorilla/websocket"

	"github.com/Comcast/gait/crew"
)

type transport interface {
	Send(stmt []byte) error
	Recv() (*crew.Output, error)
	Close() error
}

type wsTransport struct {
	c *websocket.Conn
}

func dialWebSocket(url string) (*wsTransport, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{c: c}, nil
}

func (t *wsTransport) Send(stmt []byte) error {
	return t.c.WriteMessage(websocket.TextMessage, stmt)
}

func (t *wsTransport) Recv() (*crew.Output, error) {
	var o crew.Output
	if err := t.c.ReadJSON(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *wsTransport) Close() error {
	return t.c.Close()
}

type tcpTransport struct {
	c   net.Conn
	dec *json.Decoder
}

func dialTCP(addr string) (*tcpTransport, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpTransport{c: c, dec: json.NewDecoder(c)}, nil
}

func (t *tcpTransport) Send(stmt []byte) error {
	_, err := t.c.Write(stmt)
	return err
}

func (t *tcpTransport) Recv() (*crew.Output, error) {
	var o crew.Output
	if err := t.dec.Decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *tcpTransport) Close() error {
	return t.c.Close()
}
