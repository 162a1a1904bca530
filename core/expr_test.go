package core

import (
	"errors"
	"testing"
	"time"
)

func TestExprEval(t *testing.T) {
	rt := NewRuntime(NewManualClock(time.Second), nil)
	rt.Store.Declare("x", Num(3))
	f := NewFrame("test", nil)
	f.Define("y", Num(4))

	tests := []struct {
		name string
		e    Expr
		want Value
	}{
		{"arith", Op("+", Op("*", V("x"), V("y")), N(1)), Num(13)},
		{"pow", Op("^", N(2), N(10)), Num(1024)},
		{"compare", Op("<=", V("x"), V("y")), Num(1)},
		{"strings", Op("<", S("a"), S("b")), Num(1)},
		{"not", &Unary{Op: "!", X: N(0)}, Num(1)},
		{"neg", &Unary{Op: "-", X: V("x")}, Num(-3)},
		{"short-circuit", Op("||", N(1), V("undefined")), Num(1)},
		{"index", &Index{X: &ListExpr{Elems: []Expr{N(5), N(6)}}, I: N(1)}, Num(6)},
		{"call", &Call{Name: "max", Args: []Expr{V("x"), V("y")}}, Num(4)},
		{"frame shadows", Op("+", V("y"), N(0)), Num(4)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.e.Eval(rt, f)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("%s != %s", got, tc.want)
			}
		})
	}
}

func TestExprErrors(t *testing.T) {
	rt := NewRuntime(NewManualClock(time.Second), nil)

	if _, err := Op("/", N(1), N(0)).Eval(rt, nil); !errors.Is(err, DivisionByZero) {
		t.Fatal(err)
	}
	var undef *UndefinedIdentifier
	if _, err := V("nope").Eval(rt, nil); !errors.As(err, &undef) {
		t.Fatal(err)
	}
	var oor *IndexOutOfRange
	if _, err := (&Index{X: &ListExpr{}, I: N(0)}).Eval(rt, nil); !errors.As(err, &oor) {
		t.Fatal(err)
	}
	var arity *ArityMismatch
	if _, err := (&Call{Name: "sqrt"}).Eval(rt, nil); !errors.As(err, &arity) {
		t.Fatal(err)
	}
	if _, err := (&ScriptExpr{Lang: "nope", Src: "1"}).Eval(rt, nil); !errors.Is(err, InterpreterNotFound) {
		t.Fatal(err)
	}
}

func TestRefsAndVolatile(t *testing.T) {
	e := Op("+", V("b"), Op("*", V("a"), &Call{Name: "f", Args: []Expr{V("b")}}))
	refs := Refs(e)
	if len(refs) != 2 || refs[0] != "a" || refs[1] != "b" {
		t.Fatal(refs)
	}
	if !Volatile(e) {
		t.Fatal("calls are volatile")
	}
	if Volatile(Op("+", V("a"), N(1))) {
		t.Fatal("not volatile")
	}
}
