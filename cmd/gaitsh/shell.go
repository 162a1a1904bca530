package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Comcast/gait/program"
	"github.com/Comcast/gait/sio"
	"github.com/Comcast/gait/tools"
)

var errQuit = errors.New("quit")

type shell struct {
	framer      *sio.Framer
	shellExpand bool
}

func newShell(shellExpand bool) *shell {
	return &shell{
		framer:      sio.NewFramer(256, 1<<20),
		shellExpand: shellExpand,
	}
}

// Pending reports whether a statement is incomplete.
func (s *shell) Pending() bool {
	return 0 < s.framer.Pending()
}

// Line returns the statements to send for a line of input.
func (s *shell) Line(line string) ([][]byte, error) {
	if !s.Pending() && strings.HasPrefix(strings.TrimSpace(line), ":") {
		stmt, err := s.command(strings.Fields(strings.TrimSpace(line)))
		if err != nil || stmt == nil {
			return nil, err
		}
		return [][]byte{stmt}, nil
	}
	if s.shellExpand {
		expanded, err := sio.ShellExpand(line)
		if err != nil {
			return nil, err
		}
		line = expanded
	}
	return s.framer.Feed([]byte(line + "\n"))
}

func request(m *sio.Message) ([]byte, error) {
	js, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(js, ';'), nil
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func readProgram(filename string) (*program.Program, []byte, string, error) {
	bs, err := tools.ReadFileWithInlines(filename)
	if err != nil {
		return nil, nil, "", err
	}
	format := "yaml"
	if filepath.Ext(filename) == ".json" {
		format = "json"
	}
	p, err := program.Parse(bs, format)
	if err != nil {
		return nil, nil, "", err
	}
	if _, err = p.Compile(); err != nil {
		return nil, nil, "", err
	}
	return p, bs, format, nil
}

func (s *shell) command(args []string) ([]byte, error) {
	switch args[0] {
	case ":quit", ":q":
		return nil, errQuit
	case ":run":
		if len(args) < 2 {
			return nil, fmt.Errorf("usage: :run FILE [TAG]")
		}
		p, _, _, err := readProgram(args[1])
		if err != nil {
			return nil, err
		}
		return request(&sio.Message{Op: sio.OpAppend, Program: p.Body, Tag: arg(args, 2)})
	case ":store":
		if len(args) != 3 {
			return nil, fmt.Errorf("usage: :store NAME FILE")
		}
		_, bs, format, err := readProgram(args[2])
		if err != nil {
			return nil, err
		}
		return request(&sio.Message{Op: sio.OpStore, Id: args[1], Name: args[1], Source: string(bs), Format: format})
	case ":load":
		if len(args) < 2 {
			return nil, fmt.Errorf("usage: :load NAME [TAG]")
		}
		return request(&sio.Message{Op: sio.OpLoad, Name: args[1], Tag: arg(args, 2)})
	case ":stop", ":freeze", ":unfreeze", ":block", ":unblock":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: %s TAG", args[0])
		}
		return request(&sio.Message{Op: args[0][1:], Tag: args[1]})
	case ":list":
		return request(&sio.Message{Op: sio.OpList, Id: "list"})
	}
	return nil, fmt.Errorf("unknown command %s", args[0])
}
