package core

import (
	"math"
	"sort"
)

// Expr is an expression that evaluates to a Value.
//
// Expressions are pure with respect to the directive tree: they may
// read variables and call natives but never schedule anything.
type Expr interface {
	Eval(rt *Runtime, f *Frame) (Value, error)
}

// Const is a literal.
type Const struct {
	V Value
}

func (e *Const) Eval(rt *Runtime, f *Frame) (Value, error) {
	return e.V, nil
}

// Ref reads a frame local, a variable, or an object.
type Ref struct {
	Name string
}

func (e *Ref) Eval(rt *Runtime, f *Frame) (Value, error) {
	if v, have := f.Lookup(e.Name); have {
		return v, nil
	}
	v, err := rt.ResolveVariable(e.Name)
	if err != nil {
		if _, is := err.(*UndefinedIdentifier); is {
			if o, have := rt.Objects[e.Name]; have {
				return ObjRef(o), nil
			}
		}
		return Void, err
	}
	return rt.Store.Read(v), nil
}

// Deriv is the derivative (per second) of a variable.
type Deriv struct {
	Name string
}

func (e *Deriv) Eval(rt *Runtime, f *Frame) (Value, error) {
	v, err := rt.ResolveVariable(e.Name)
	if err != nil {
		return Void, err
	}
	return Num(v.Derivative(rt.Period())), nil
}

// Unary is "-x" or "!x".
type Unary struct {
	Op string
	X  Expr
}

func (e *Unary) Eval(rt *Runtime, f *Frame) (Value, error) {
	x, err := e.X.Eval(rt, f)
	if err != nil {
		return Void, err
	}
	switch e.Op {
	case "!":
		return boolean(!x.Truthy()), nil
	case "-":
		n, ok := x.Float()
		if !ok {
			return Void, &TypeMismatch{Op: "-", Left: x.Kind(), Right: VoidKind}
		}
		return Num(-n), nil
	}
	return Void, &UndefinedIdentifier{Name: e.Op}
}

// BinOp is an infix operation.
type BinOp struct {
	Op   string
	X, Y Expr
}

func boolean(b bool) Value {
	if b {
		return Num(1)
	}
	return Num(0)
}

func (e *BinOp) Eval(rt *Runtime, f *Frame) (Value, error) {
	x, err := e.X.Eval(rt, f)
	if err != nil {
		return Void, err
	}

	// Short circuits.
	switch e.Op {
	case "&&":
		if !x.Truthy() {
			return boolean(false), nil
		}
		y, err := e.Y.Eval(rt, f)
		if err != nil {
			return Void, err
		}
		return boolean(y.Truthy()), nil
	case "||":
		if x.Truthy() {
			return boolean(true), nil
		}
		y, err := e.Y.Eval(rt, f)
		if err != nil {
			return Void, err
		}
		return boolean(y.Truthy()), nil
	}

	y, err := e.Y.Eval(rt, f)
	if err != nil {
		return Void, err
	}

	switch e.Op {
	case "+":
		return x.Add(y)
	case "==":
		return boolean(x.Equal(y)), nil
	case "!=":
		return boolean(!x.Equal(y)), nil
	}

	if x.Kind() == StringKind && y.Kind() == StringKind {
		a, _ := x.Text()
		b, _ := y.Text()
		switch e.Op {
		case "<":
			return boolean(a < b), nil
		case "<=":
			return boolean(a <= b), nil
		case ">":
			return boolean(a > b), nil
		case ">=":
			return boolean(a >= b), nil
		}
	}

	a, aok := x.Float()
	b, bok := y.Float()
	if !aok || !bok {
		return Void, &TypeMismatch{Op: e.Op, Left: x.Kind(), Right: y.Kind()}
	}

	switch e.Op {
	case "-":
		return Num(a - b), nil
	case "*":
		return Num(a * b), nil
	case "/":
		if b == 0 {
			return Void, DivisionByZero
		}
		return Num(a / b), nil
	case "%":
		if b == 0 {
			return Void, DivisionByZero
		}
		return Num(math.Mod(a, b)), nil
	case "^", "**":
		return Num(math.Pow(a, b)), nil
	case "<":
		return boolean(a < b), nil
	case "<=":
		return boolean(a <= b), nil
	case ">":
		return boolean(a > b), nil
	case ">=":
		return boolean(a >= b), nil
	}
	return Void, &UndefinedIdentifier{Name: e.Op}
}

// ListExpr builds a list.
type ListExpr struct {
	Elems []Expr
}

func (e *ListExpr) Eval(rt *Runtime, f *Frame) (Value, error) {
	acc := make([]Value, len(e.Elems))
	for i, x := range e.Elems {
		v, err := x.Eval(rt, f)
		if err != nil {
			return Void, err
		}
		acc[i] = v
	}
	return ListOf(acc...), nil
}

// Index is "x[i]" on a list or a string.
type Index struct {
	X, I Expr
}

func (e *Index) Eval(rt *Runtime, f *Frame) (Value, error) {
	x, err := e.X.Eval(rt, f)
	if err != nil {
		return Void, err
	}
	i, err := e.I.Eval(rt, f)
	if err != nil {
		return Void, err
	}
	n, ok := i.Float()
	if !ok {
		return Void, &TypeMismatch{Op: "[]", Left: x.Kind(), Right: i.Kind()}
	}
	k := int(n)
	switch x.Kind() {
	case ListKind:
		l := x.List()
		if k < 0 || len(l) <= k {
			return Void, &IndexOutOfRange{Index: k, Len: len(l)}
		}
		return l[k], nil
	case StringKind:
		s, _ := x.Text()
		if k < 0 || len(s) <= k {
			return Void, &IndexOutOfRange{Index: k, Len: len(s)}
		}
		return Str(s[k : k+1]), nil
	}
	return Void, &TypeMismatch{Op: "[]", Left: x.Kind(), Right: i.Kind()}
}

// Call invokes a native.
type Call struct {
	Name string
	Args []Expr
}

func (e *Call) Eval(rt *Runtime, f *Frame) (Value, error) {
	fn, have := rt.Natives[e.Name]
	if !have {
		return Void, &UnknownFunction{Name: e.Name}
	}
	args := make([]Value, len(e.Args))
	for i, x := range e.Args {
		v, err := x.Eval(rt, f)
		if err != nil {
			return Void, err
		}
		args[i] = v
	}
	return fn(rt, args)
}

// ScriptExpr is source for one of the Runtime's Scripts.  The source
// is compiled on first use.
type ScriptExpr struct {
	Lang string
	Src  string

	compiled interface{}
}

func (e *ScriptExpr) Eval(rt *Runtime, f *Frame) (Value, error) {
	s, have := rt.Scripts[e.Lang]
	if !have {
		return Void, InterpreterNotFound
	}
	if e.compiled == nil {
		x, err := s.Compile(e.Src)
		if err != nil {
			return Void, err
		}
		e.compiled = x
	}
	return s.Eval(rt, f, e.Src, e.compiled)
}

// Refs returns the sorted names of variables that the expression
// reads.
func Refs(e Expr) []string {
	seen := make(map[string]bool)
	var walk func(e Expr)
	walk = func(e Expr) {
		switch vv := e.(type) {
		case *Ref:
			seen[vv.Name] = true
		case *Deriv:
			seen[vv.Name] = true
		case *Unary:
			walk(vv.X)
		case *BinOp:
			walk(vv.X)
			walk(vv.Y)
		case *ListExpr:
			for _, x := range vv.Elems {
				walk(x)
			}
		case *Index:
			walk(vv.X)
			walk(vv.I)
		case *Call:
			for _, x := range vv.Args {
				walk(x)
			}
		}
	}
	walk(e)
	acc := make([]string, 0, len(seen))
	for name := range seen {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Volatile reports whether the expression's value can change without
// any variable it reads being written (natives, scripts,
// derivatives).
func Volatile(e Expr) bool {
	switch vv := e.(type) {
	case *Call, *ScriptExpr, *Deriv:
		return true
	case *Unary:
		return Volatile(vv.X)
	case *BinOp:
		return Volatile(vv.X) || Volatile(vv.Y)
	case *ListExpr:
		for _, x := range vv.Elems {
			if Volatile(x) {
				return true
			}
		}
	case *Index:
		return Volatile(vv.X) || Volatile(vv.I)
	}
	return false
}

// evalNumber evaluates e and insists on a number.
func evalNumber(rt *Runtime, f *Frame, e Expr, what string) (float64, error) {
	v, err := e.Eval(rt, f)
	if err != nil {
		return 0, err
	}
	n, ok := v.Float()
	if !ok {
		return 0, &TypeMismatch{Op: what, Left: v.Kind(), Right: NumberKind}
	}
	return n, nil
}

// N is shorthand for a numeric constant.
func N(f float64) Expr {
	return &Const{V: Num(f)}
}

// S is shorthand for a string constant.
func S(s string) Expr {
	return &Const{V: Str(s)}
}

// V is shorthand for a reference.
func V(name string) Expr {
	return &Ref{Name: name}
}

// Op is shorthand for a binary operation.
func Op(op string, x, y Expr) Expr {
	return &BinOp{Op: op, X: x, Y: y}
}
