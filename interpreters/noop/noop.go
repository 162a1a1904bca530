// Package noop provides a Script that evaluates nothing.  Useful for
// checking programs without running their scripts.
package noop

import (
	"github.com/Comcast/gait/core"
)

// Interpreter is a core.Script that returns void for every source.
type Interpreter struct {
	// Silent, if false, logs a warning for every evaluation.
	Silent bool
}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func (i *Interpreter) Compile(src string) (interface{}, error) {
	return nil, nil
}

func (i *Interpreter) Eval(rt *core.Runtime, f *core.Frame, src string, compiled interface{}) (core.Value, error) {
	if !i.Silent {
		rt.Logger.Warn("noop interpreter", "src", src)
	}
	return core.Void, nil
}
