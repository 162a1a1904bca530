// Package interpreters assembles the script languages a Runtime
// offers.
package interpreters

import (
	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/interpreters/goja"
	"github.com/Comcast/gait/interpreters/noop"
)

// Standard returns the usual languages: "goja" (also "js" and
// "ecmascript") and "noop".
func Standard() map[string]core.Script {
	js := goja.NewInterpreter()
	return map[string]core.Script{
		"goja":       js,
		"js":         js,
		"ecmascript": js,
		"noop":       noop.NewInterpreter(),
	}
}

// DryRun returns languages that don't evaluate anything, for
// checking programs.
func DryRun() map[string]core.Script {
	n := &noop.Interpreter{Silent: true}
	return map[string]core.Script{
		"goja":       n,
		"js":         n,
		"ecmascript": n,
		"noop":       n,
	}
}
