package core

import (
	"strings"
	"time"
)

// Wait completes after Duration (milliseconds).
type Wait struct {
	Duration Expr

	sw  stopwatch
	dur time.Duration
}

func (l *Wait) Fresh() Leaf {
	return &Wait{Duration: l.Duration}
}

func (l *Wait) Execute(x *Exec) Outcome {
	if !l.sw.running {
		ms, err := evalNumber(x.Runtime, x.Frame, l.Duration, "wait")
		if err != nil {
			return x.Fail(err)
		}
		l.dur = millis(ms)
		l.sw.Start(x)
	}
	if l.dur <= l.sw.Elapsed(x) {
		return Continue(Completed)
	}
	return Continue(Running)
}

// WaitUntil completes once Cond holds.
type WaitUntil struct {
	Cond Expr
}

func (l *WaitUntil) Fresh() Leaf { return l }

func (l *WaitUntil) Execute(x *Exec) Outcome {
	b, err := evalCond(x, l.Cond)
	if err != nil {
		return x.Fail(err)
	}
	if b {
		return Continue(Completed)
	}
	return Continue(Running)
}

// Emit emits an event.  Without a Duration the event is transient;
// otherwise the directive keeps the event alive for Duration
// (milliseconds).
type Emit struct {
	Name     string
	Args     []Expr
	Duration Expr

	ev  *Event
	sw  stopwatch
	dur time.Duration
}

func (l *Emit) Fresh() Leaf {
	return &Emit{Name: l.Name, Args: l.Args, Duration: l.Duration}
}

func (l *Emit) Describe() string {
	return "emit " + l.Name
}

func (l *Emit) Execute(x *Exec) Outcome {
	rt := x.Runtime
	if l.ev == nil {
		args := make([]Value, len(l.Args))
		for i, e := range l.Args {
			v, err := e.Eval(rt, x.Frame)
			if err != nil {
				return x.Fail(err)
			}
			args[i] = v
		}
		if l.Duration == nil {
			rt.Events.Emit(rt, l.Name, args, true)
			return Continue(Completed)
		}
		ms, err := evalNumber(rt, x.Frame, l.Duration, "emit")
		if err != nil {
			return x.Fail(err)
		}
		l.dur = millis(ms)
		l.ev = rt.Events.Emit(rt, l.Name, args, false)
		l.sw.Start(x)
	}
	if l.dur <= l.sw.Elapsed(x) {
		rt.Events.Kill(l.ev)
		return Continue(Completed)
	}
	return Continue(Running)
}

func (l *Emit) Release(x *Exec) {
	if l.ev != nil {
		x.Runtime.Events.Kill(l.ev)
	}
}

// TagOp is stop, freeze, unfreeze, block or unblock on a tag name.
type TagOp struct {
	Op  string
	Tag Expr
}

func (l *TagOp) Fresh() Leaf { return l }

func (l *TagOp) Describe() string {
	return l.Op
}

func (l *TagOp) Execute(x *Exec) Outcome {
	v, err := l.Tag.Eval(x.Runtime, x.Frame)
	if err != nil {
		return x.Fail(err)
	}
	name, ok := v.Text()
	if !ok {
		return x.Fail(&TypeMismatch{Op: l.Op, Left: v.Kind(), Right: StringKind})
	}
	s := x.Sched
	switch l.Op {
	case "stop":
		s.Stop(name)
	case "freeze":
		s.Freeze(name)
	case "unfreeze":
		s.Unfreeze(name)
	case "block":
		s.Block(name)
	case "unblock":
		s.Unblock(name)
	default:
		return x.Fail(&UnknownFunction{Name: l.Op})
	}
	return Continue(Completed)
}

// Echo sends a value to the directive's connection.
type Echo struct {
	Expr Expr
}

func (l *Echo) Fresh() Leaf { return l }

func (l *Echo) Execute(x *Exec) Outcome {
	v, err := l.Expr.Eval(x.Runtime, x.Frame)
	if err != nil {
		return x.Fail(err)
	}
	if x.Conn != nil {
		x.Conn.Send(x.Tag, v)
	}
	return Continue(Completed)
}

// SetProp is "name->prop = value".
type SetProp struct {
	Name  string
	Prop  string
	Value Expr
}

func (l *SetProp) Fresh() Leaf { return l }

func (l *SetProp) Describe() string {
	return l.Name + "->" + l.Prop
}

func (l *SetProp) Execute(x *Exec) Outcome {
	v, err := x.Runtime.ResolveVariable(l.Name)
	if err != nil {
		return x.Fail(err)
	}
	val, err := l.Value.Eval(x.Runtime, x.Frame)
	if err != nil {
		return x.Fail(err)
	}
	if err := v.SetProp(l.Prop, val); err != nil {
		return x.Fail(err)
	}
	return Continue(Completed)
}

// Delete removes a variable.
type Delete struct {
	Name string
}

func (l *Delete) Fresh() Leaf { return l }

func (l *Delete) Describe() string {
	return "delete " + l.Name
}

func (l *Delete) Execute(x *Exec) Outcome {
	if err := x.Runtime.Store.Delete(l.Name); err != nil {
		return x.Fail(err)
	}
	return Continue(Completed)
}

// VarDecl declares a variable (or a frame local, inside a call) with
// an initial value.
type VarDecl struct {
	Name  string
	Value Expr
}

func (l *VarDecl) Fresh() Leaf { return l }

func (l *VarDecl) Describe() string {
	return "var " + l.Name
}

func (l *VarDecl) Execute(x *Exec) Outcome {
	v := Void
	if l.Value != nil {
		var err error
		if v, err = l.Value.Eval(x.Runtime, x.Frame); err != nil {
			return x.Fail(err)
		}
	}
	if x.Frame != nil && !strings.Contains(l.Name, ".") {
		x.Frame.Define(l.Name, v)
		return Continue(Completed)
	}
	x.Runtime.Store.Declare(l.Name, v)
	return Continue(Completed)
}

// Incr is "name++" (By 1) or "name--" (By -1).
type Incr struct {
	Name string
	By   float64
}

func (l *Incr) Fresh() Leaf { return l }

func (l *Incr) Describe() string {
	if l.By < 0 {
		return l.Name + "--"
	}
	return l.Name + "++"
}

func (l *Incr) Execute(x *Exec) Outcome {
	return Replace(Do(&Assign{
		Name:  l.Name,
		Value: Op("+", V(l.Name), N(l.By)),
	}))
}

// Broadcast assigns Slot of every member of a group, in parallel.
type Broadcast struct {
	Group string
	Slot  string
	Value Expr
	Mods  Modifiers
}

func (l *Broadcast) Fresh() Leaf { return l }

func (l *Broadcast) Describe() string {
	return l.Group + "." + l.Slot + " ="
}

func (l *Broadcast) Execute(x *Exec) Outcome {
	members, have := x.Runtime.Groups[l.Group]
	if !have {
		return x.Fail(&UndefinedIdentifier{Name: l.Group})
	}
	var p *Plan
	for _, m := range members {
		a := Do(&Assign{Name: m + "." + l.Slot, Value: l.Value, Mods: l.Mods})
		if p == nil {
			p = a
		} else {
			p = And(p, a)
		}
	}
	if p == nil {
		return Continue(Completed)
	}
	return Replace(p)
}

// GroupDef defines a group of objects.
type GroupDef struct {
	Name    string
	Members []string
}

func (l *GroupDef) Fresh() Leaf { return l }

func (l *GroupDef) Execute(x *Exec) Outcome {
	x.Runtime.Groups[l.Name] = append([]string(nil), l.Members...)
	return Continue(Completed)
}

// ObjectDef defines an object with parents.
type ObjectDef struct {
	Name    string
	Parents []string
}

func (l *ObjectDef) Fresh() Leaf { return l }

func (l *ObjectDef) Execute(x *Exec) Outcome {
	if _, err := x.Runtime.DefineObject(l.Name, l.Parents...); err != nil {
		return x.Fail(err)
	}
	return Continue(Completed)
}

// FuncDef defines a function.
type FuncDef struct {
	Function *Function
}

func (l *FuncDef) Fresh() Leaf { return l }

func (l *FuncDef) Execute(x *Exec) Outcome {
	x.Runtime.Functions[l.Function.Name] = l.Function
	return Continue(Completed)
}

// Invoke calls a function.  A user function's body runs under a new
// frame; a native is called and its result discarded.
type Invoke struct {
	Name string
	Args []Expr
}

func (l *Invoke) Fresh() Leaf { return l }

func (l *Invoke) Describe() string {
	return l.Name + "()"
}

func (l *Invoke) Execute(x *Exec) Outcome {
	rt := x.Runtime
	args := make([]Value, len(l.Args))
	for i, e := range l.Args {
		v, err := e.Eval(rt, x.Frame)
		if err != nil {
			return x.Fail(err)
		}
		args[i] = v
	}

	if fn, have := rt.Functions[l.Name]; have {
		if len(fn.Params) != len(args) {
			return x.Fail(&ArityMismatch{Name: l.Name, Want: len(fn.Params), Got: len(args)})
		}
		f := NewFrame(l.Name, nil)
		for i, p := range fn.Params {
			f.Define(p, args[i])
		}
		return Replace(WithFrame(f, fn.Body))
	}

	if native, have := rt.Natives[l.Name]; have {
		if _, err := native(rt, args); err != nil {
			return x.Fail(err)
		}
		return Continue(Completed)
	}

	return x.Fail(&UnknownFunction{Name: l.Name})
}
