package interpreters

import (
	"testing"
	"time"

	"github.com/Comcast/gait/core"
)

func TestStandard(t *testing.T) {
	rt := core.NewRuntime(core.NewManualClock(time.Second), nil)
	rt.Scripts = Standard()
	v, err := (&core.ScriptExpr{Lang: "js", Src: `"a" + "b"`}).Eval(rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(core.Str("ab")) {
		t.Fatal(v)
	}
}

func TestDryRun(t *testing.T) {
	rt := core.NewRuntime(core.NewManualClock(time.Second), nil)
	rt.Scripts = DryRun()
	v, err := (&core.ScriptExpr{Lang: "goja", Src: `this would explode`}).Eval(rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsVoid() {
		t.Fatal(v)
	}
}
