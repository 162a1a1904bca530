/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Message is a request from a connection.
//
//	{"op":"exec","program":{"echo":1},"tag":"t"}
//	{"op":"append","program":[{"wait":1000},{"echo":2}]}
//	{"op":"emit","name":"button","args":[1],"duration":500}
//	{"op":"set","name":"x","value":3}
//	{"op":"get","name":"x"}
//	{"op":"stop","tag":"t"}  (also freeze, unfreeze, block, unblock)
//	{"op":"store","name":"p","source":"body: [...]","format":"yaml"}
//	{"op":"load","name":"p"}
//	{"op":"list"}
type Message struct {
	Id string `json:"id,omitempty"`
	Op string `json:"op"`

	// Program is a statement or list of statements for exec and
	// append.
	Program interface{} `json:"program,omitempty"`

	// Tag is the tag for stop, freeze, etc.  For exec, append and
	// load, the program is tagged with it.
	Tag string `json:"tag,omitempty"`

	// Name is the event, variable or stored program.
	Name string `json:"name,omitempty"`

	Args []interface{} `json:"args,omitempty"`

	// Duration is how long an emitted event lasts, in
	// milliseconds.
	Duration float64 `json:"duration,omitempty"`

	Value interface{} `json:"value,omitempty"`

	Source string `json:"source,omitempty"`
	Format string `json:"format,omitempty"`
}

// Operations.
const (
	OpExec     = "exec"
	OpAppend   = "append"
	OpEmit     = "emit"
	OpSet      = "set"
	OpGet      = "get"
	OpStop     = "stop"
	OpFreeze   = "freeze"
	OpUnfreeze = "unfreeze"
	OpBlock    = "block"
	OpUnblock  = "unblock"
	OpLoad     = "load"
	OpStore    = "store"
	OpList     = "list"
)

// BadMessage is a malformed request.
type BadMessage struct {
	Msg string
}

func (e *BadMessage) Error() string {
	return "bad message: " + e.Msg
}

var errEmpty = errors.New("empty statement")

// Decode parses one statement.  A JSON object with an "op" is a
// Message.  Any other JSON value comes back as raw data for the
// routes.
func Decode(stmt []byte) (*Message, interface{}, error) {
	stmt = bytes.TrimSpace(stripComments(stmt))
	stmt = bytes.TrimRight(stmt, ";,")
	stmt = bytes.TrimSpace(stmt)
	if len(stmt) == 0 {
		return nil, nil, errEmpty
	}

	var x interface{}
	if err := json.Unmarshal(stmt, &x); err != nil {
		return nil, nil, &BadMessage{Msg: err.Error()}
	}
	m, is := x.(map[string]interface{})
	if !is {
		return nil, x, nil
	}
	if _, have := m["op"]; !have {
		return nil, x, nil
	}
	var msg Message
	if err := json.Unmarshal(stmt, &msg); err != nil {
		return nil, nil, &BadMessage{Msg: err.Error()}
	}
	if msg.Op == "" {
		return nil, nil, &BadMessage{Msg: "no op"}
	}
	return &msg, nil, nil
}

// stripComments removes '#', '//' and '/* */' comments outside
// strings.
func stripComments(bs []byte) []byte {
	var (
		acc      = make([]byte, 0, len(bs))
		inString bool
		escape   bool
	)
	for i := 0; i < len(bs); i++ {
		c := bs[i]
		if inString {
			acc = append(acc, c)
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
		case c == '#', c == '/' && i+1 < len(bs) && bs[i+1] == '/':
			for i < len(bs) && bs[i] != '\n' {
				i++
			}
			i--
			continue
		case c == '/' && i+1 < len(bs) && bs[i+1] == '*':
			end := bytes.Index(bs[i+2:], []byte("*/"))
			if end < 0 {
				return acc
			}
			i += end + 3
			continue
		}
		acc = append(acc, c)
	}
	return acc
}

func (m *Message) String() string {
	return fmt.Sprintf("%s %s", m.Op, JShort(m))
}
