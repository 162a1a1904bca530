// Package main is gaitsh, an interactive shell for a running gaitd.
//
// Lines are statements (terminated by ';' or ',') sent as they are
// completed.  A few commands start with ':'
//
//	:run FILE [TAG]     append a program file
//	:store NAME FILE    store a program file in gaitd's library
//	:load NAME [TAG]    append a stored program
//	:stop TAG           stop everything holding TAG
//	:quit
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/Comcast/gait/crew"
	"github.com/Comcast/gait/sio"
)

func main() {
	var (
		wsURL   = flag.String("ws", "ws://localhost:8124/ws", "gaitd WebSocket URL")
		tcpAddr = flag.String("tcp", "", "gaitd TCP address (instead of -ws)")
		sh      = flag.Bool("sh", false, "enable shell expansion (<<...>>)")
	)
	flag.Parse()

	var (
		t   transport
		err error
	)
	if *tcpAddr != "" {
		t, err = dialTCP(*tcpAddr)
	} else {
		t, err = dialWebSocket(*wsURL)
	}
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	defer t.Close()

	go func() {
		for {
			o, err := t.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					pterm.Error.Println(err)
				}
				os.Exit(0)
			}
			show(o)
		}
	}()

	rl, err := readline.New("gait> ")
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	defer rl.Close()

	s := newShell(*sh)
	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			return
		}
		stmts, err := s.Line(line)
		if err == errQuit {
			return
		}
		if err != nil {
			pterm.Error.Println(err)
		}
		for _, stmt := range stmts {
			if err := t.Send(stmt); err != nil {
				pterm.Error.Println(err)
				return
			}
		}
		if s.Pending() {
			rl.SetPrompt("  ... ")
		} else {
			rl.SetPrompt("gait> ")
		}
	}
}

func show(o *crew.Output) {
	switch o.Kind {
	case crew.KindError:
		what := o.Error
		if o.Directive != "" {
			what = o.Directive + ": " + what
		}
		if o.Tag != "" {
			what = o.Tag + ": " + what
		}
		pterm.Error.Println(what)
	case crew.KindReply:
		if o.Value == nil {
			pterm.Success.Println("ok " + o.Id)
			return
		}
		pterm.Success.Println(sio.JS(o.Value))
	default:
		fmt.Printf("%s %s\n", o.Tag, sio.JS(o.Value))
	}
}
