package program

import (
	"fmt"

	"github.com/Comcast/gait/core"
)

var modes = map[string]core.Mode{
	"seq":   core.ModeSeq,
	"pipe":  core.ModePipe,
	"and":   core.ModeAnd,
	"comma": core.ModeComma,
}

var tagOps = map[string]bool{
	"stop": true, "freeze": true, "unfreeze": true, "block": true, "unblock": true,
}

// nodes joins statements with the given mode, nesting to the right.
func nodes(path string, xs []interface{}, m core.Mode) (*core.Plan, error) {
	if len(xs) == 0 {
		return core.Do(&core.Noop{}), nil
	}
	acc := make([]*core.Plan, len(xs))
	for i, x := range xs {
		p, err := node(fmt.Sprintf("%s[%d]", path, i), x)
		if err != nil {
			return nil, err
		}
		acc[i] = p
	}
	p := acc[len(acc)-1]
	for i := len(acc) - 2; 0 <= i; i-- {
		p = core.Combine(m, acc[i], p)
	}
	return p, nil
}

// body compiles a statement or a list of statements (in sequence).
// A missing body is a no-op.
func body(path string, x interface{}) (*core.Plan, error) {
	switch vv := x.(type) {
	case nil:
		return core.Do(&core.Noop{}), nil
	case []interface{}:
		return nodes(path, vv, core.ModeSeq)
	}
	return node(path, x)
}

func optBody(path string, x interface{}) (*core.Plan, error) {
	if x == nil {
		return nil, nil
	}
	return body(path, x)
}

func optExpr(path string, x interface{}) (core.Expr, error) {
	if x == nil {
		return nil, nil
	}
	return expr(path, x)
}

func fields(path string, x interface{}) (map[string]interface{}, error) {
	m, is := x.(map[string]interface{})
	if !is {
		return nil, &SyntaxError{Path: path, Msg: fmt.Sprintf("want a map, have %T", x)}
	}
	return m, nil
}

func strs(path string, x interface{}) ([]string, error) {
	if x == nil {
		return nil, nil
	}
	xs, is := x.([]interface{})
	if !is {
		xs = []interface{}{x}
	}
	acc := make([]string, len(xs))
	for i, y := range xs {
		s, err := str(fmt.Sprintf("%s[%d]", path, i), y)
		if err != nil {
			return nil, err
		}
		acc[i] = s
	}
	return acc, nil
}

func node(path string, x interface{}) (*core.Plan, error) {
	m, err := fields(path, x)
	if err != nil {
		return nil, err
	}

	tag := ""
	if t, have := m["tag"]; have {
		if tag, err = str(path+".tag", t); err != nil {
			return nil, err
		}
		rest := make(map[string]interface{}, len(m)-1)
		for k, v := range m {
			if k != "tag" {
				rest[k] = v
			}
		}
		m = rest
	}

	k, v, err := single(path, m)
	if err != nil {
		return nil, err
	}
	p, err := directive(path+"."+k, k, v)
	if err != nil {
		return nil, err
	}
	if tag != "" {
		p = core.Tagged(tag, p)
	}
	return p, nil
}

func directive(at, k string, v interface{}) (*core.Plan, error) {
	if mode, have := modes[k]; have {
		xs, is := v.([]interface{})
		if !is {
			return nil, &SyntaxError{Path: at, Msg: "want a list of statements"}
		}
		return nodes(at, xs, mode)
	}

	if tagOps[k] {
		e, err := expr(at, v)
		if err != nil {
			return nil, err
		}
		return core.Do(&core.TagOp{Op: k, Tag: e}), nil
	}

	switch k {
	case "noop":
		return core.Do(&core.Noop{}), nil
	case "wait":
		e, err := expr(at, v)
		if err != nil {
			return nil, err
		}
		return core.Do(&core.Wait{Duration: e}), nil
	case "waituntil":
		e, err := expr(at, v)
		if err != nil {
			return nil, err
		}
		return core.Do(&core.WaitUntil{Cond: e}), nil
	case "echo":
		e, err := expr(at, v)
		if err != nil {
			return nil, err
		}
		return core.Do(&core.Echo{Expr: e}), nil
	case "delete":
		s, err := str(at, v)
		if err != nil {
			return nil, err
		}
		return core.Do(&core.Delete{Name: s}), nil
	case "incr", "decr":
		s, err := str(at, v)
		if err != nil {
			return nil, err
		}
		by := 1.0
		if k == "decr" {
			by = -1
		}
		return core.Do(&core.Incr{Name: s, By: by}), nil
	case "loop":
		b, err := body(at, v)
		if err != nil {
			return nil, err
		}
		return core.Do(&core.Loop{Body: b}), nil
	}

	f, err := fields(at, v)
	if err != nil {
		return nil, err
	}
	switch k {
	case "var":
		return varDecl(at, f)
	case "assign":
		return assign(at, f)
	case "emit":
		return emit(at, f)
	case "setprop":
		return setProp(at, f)
	case "if":
		return ifNode(at, f)
	case "while":
		return whileNode(at, f)
	case "for":
		return forNode(at, f)
	case "foreach":
		return foreach(at, f)
	case "every":
		return every(at, f)
	case "at", "whenever":
		return rule(at, k == "whenever", f)
	case "timeout":
		return timeout(at, f)
	case "stopif", "freezeif":
		return watch(at, k, f)
	case "group":
		return group(at, f)
	case "object":
		return object(at, f)
	case "broadcast":
		return broadcast(at, f)
	case "function":
		return function(at, f)
	case "call":
		return invoke(at, f)
	}
	return nil, &SyntaxError{Path: at, Msg: "unknown directive"}
}

func varDecl(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".name", f["name"])
	if err != nil {
		return nil, err
	}
	val, err := optExpr(at+".value", f["value"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.VarDecl{Name: name, Value: val}), nil
}

func modifiers(at string, f map[string]interface{}) (core.Modifiers, error) {
	var mods core.Modifiers
	for _, m := range []struct {
		key string
		dst *core.Expr
	}{
		{"time", &mods.Time},
		{"speed", &mods.Speed},
		{"accel", &mods.Accel},
		{"smooth", &mods.Smooth},
		{"sin", &mods.Sin},
		{"ampli", &mods.Ampli},
		{"phase", &mods.Phase},
	} {
		e, err := optExpr(at+"."+m.key, f[m.key])
		if err != nil {
			return mods, err
		}
		*m.dst = e
	}
	if x, have := f["getphase"]; have {
		s, err := str(at+".getphase", x)
		if err != nil {
			return mods, err
		}
		mods.GetPhase = s
	}
	mods.Adaptive, _ = f["adaptive"].(bool)
	mods.Normalized, _ = f["normalized"].(bool)
	return mods, nil
}

func assign(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".var", f["var"])
	if err != nil {
		return nil, err
	}
	val, err := expr(at+".value", f["value"])
	if err != nil {
		return nil, err
	}
	mods, err := modifiers(at, f)
	if err != nil {
		return nil, err
	}
	return core.Do(&core.Assign{Name: name, Value: val, Mods: mods}), nil
}

func emit(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".name", f["name"])
	if err != nil {
		return nil, err
	}
	args, err := exprs(at+".args", f["args"])
	if err != nil {
		return nil, err
	}
	dur, err := optExpr(at+".duration", f["duration"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.Emit{Name: name, Args: args, Duration: dur}), nil
}

func setProp(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".var", f["var"])
	if err != nil {
		return nil, err
	}
	prop, err := str(at+".prop", f["prop"])
	if err != nil {
		return nil, err
	}
	val, err := expr(at+".value", f["value"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.SetProp{Name: name, Prop: prop, Value: val}), nil
}

func ifNode(at string, f map[string]interface{}) (*core.Plan, error) {
	c, err := expr(at+".cond", f["cond"])
	if err != nil {
		return nil, err
	}
	then, err := body(at+".then", f["then"])
	if err != nil {
		return nil, err
	}
	els, err := optBody(at+".else", f["else"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.If{Cond: c, Then: then, Else: els}), nil
}

func whileNode(at string, f map[string]interface{}) (*core.Plan, error) {
	c, err := expr(at+".cond", f["cond"])
	if err != nil {
		return nil, err
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.While{Cond: c, Body: b}), nil
}

func forNode(at string, f map[string]interface{}) (*core.Plan, error) {
	init, err := optBody(at+".init", f["init"])
	if err != nil {
		return nil, err
	}
	c, err := expr(at+".cond", f["cond"])
	if err != nil {
		return nil, err
	}
	step, err := optBody(at+".step", f["step"])
	if err != nil {
		return nil, err
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.For{Init: init, Cond: c, Step: step, Body: b}), nil
}

func foreach(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".var", f["var"])
	if err != nil {
		return nil, err
	}
	list, err := expr(at+".list", f["list"])
	if err != nil {
		return nil, err
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.Foreach{Var: name, List: list, Body: b}), nil
}

func every(at string, f map[string]interface{}) (*core.Plan, error) {
	l := &core.Every{}
	if c, have := f["cron"]; have {
		s, err := str(at+".cron", c)
		if err != nil {
			return nil, err
		}
		l.Cron = s
	} else {
		e, err := expr(at+".period", f["period"])
		if err != nil {
			return nil, err
		}
		l.Period = e
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	l.Body = b
	return core.Do(l), nil
}

func rule(at string, whenever bool, f map[string]interface{}) (*core.Plan, error) {
	c, err := cond(at+".cond", f["cond"])
	if err != nil {
		return nil, err
	}
	delay, err := optExpr(at+".delay", f["delay"])
	if err != nil {
		return nil, err
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	els, err := optBody(at+".else", f["else"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.Rule{Whenever: whenever, Cond: c, Delay: delay, Body: b, Else: els}), nil
}

func timeout(at string, f map[string]interface{}) (*core.Plan, error) {
	d, err := expr(at+".duration", f["duration"])
	if err != nil {
		return nil, err
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.Timeout{Duration: d, Body: b}), nil
}

func watch(at, k string, f map[string]interface{}) (*core.Plan, error) {
	c, err := expr(at+".cond", f["cond"])
	if err != nil {
		return nil, err
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	if k == "stopif" {
		return core.Do(&core.StopIf{Cond: c, Body: b}), nil
	}
	return core.Do(&core.FreezeIf{Cond: c, Body: b}), nil
}

func group(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".name", f["name"])
	if err != nil {
		return nil, err
	}
	members, err := strs(at+".members", f["members"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.GroupDef{Name: name, Members: members}), nil
}

func object(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".name", f["name"])
	if err != nil {
		return nil, err
	}
	parents, err := strs(at+".parents", f["parents"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.ObjectDef{Name: name, Parents: parents}), nil
}

func broadcast(at string, f map[string]interface{}) (*core.Plan, error) {
	g, err := str(at+".group", f["group"])
	if err != nil {
		return nil, err
	}
	slot, err := str(at+".slot", f["slot"])
	if err != nil {
		return nil, err
	}
	val, err := expr(at+".value", f["value"])
	if err != nil {
		return nil, err
	}
	mods, err := modifiers(at, f)
	if err != nil {
		return nil, err
	}
	return core.Do(&core.Broadcast{Group: g, Slot: slot, Value: val, Mods: mods}), nil
}

func function(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".name", f["name"])
	if err != nil {
		return nil, err
	}
	params, err := strs(at+".params", f["params"])
	if err != nil {
		return nil, err
	}
	b, err := body(at+".body", f["body"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.FuncDef{Function: &core.Function{Name: name, Params: params, Body: b}}), nil
}

func invoke(at string, f map[string]interface{}) (*core.Plan, error) {
	name, err := str(at+".name", f["name"])
	if err != nil {
		return nil, err
	}
	args, err := exprs(at+".args", f["args"])
	if err != nil {
		return nil, err
	}
	return core.Do(&core.Invoke{Name: name, Args: args}), nil
}
