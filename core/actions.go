package core

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/gorhill/cronexpr"
)

var (
	// InterpreterNotFound occurs when a script expression names an
	// interpreter that isn't in the Runtime's Scripts.
	InterpreterNotFound = errors.New("interpreter not found")

	// DefaultInterpreters is copied into every new Runtime.
	// Packages under interpreters/ register here.
	DefaultInterpreters = make(map[string]Script)
)

func numArgs(name string, args []Value, n int) ([]float64, error) {
	if len(args) != n {
		return nil, &ArityMismatch{Name: name, Want: n, Got: len(args)}
	}
	acc := make([]float64, n)
	for i, a := range args {
		f, ok := a.Float()
		if !ok {
			return nil, &TypeMismatch{Op: name, Left: a.Kind(), Right: NumberKind}
		}
		acc[i] = f
	}
	return acc, nil
}

// math1 makes a Native from a one-argument math function.
func math1(name string, f func(float64) float64) Native {
	return func(rt *Runtime, args []Value) (Value, error) {
		xs, err := numArgs(name, args, 1)
		if err != nil {
			return Void, err
		}
		return Num(f(xs[0])), nil
	}
}

// math2 makes a Native from a two-argument math function.
func math2(name string, f func(float64, float64) float64) Native {
	return func(rt *Runtime, args []Value) (Value, error) {
		xs, err := numArgs(name, args, 2)
		if err != nil {
			return Void, err
		}
		return Num(f(xs[0], xs[1])), nil
	}
}

// StandardNatives returns a fresh table of the built-in natives.
func StandardNatives() map[string]Native {
	return map[string]Native{
		"abs":   math1("abs", math.Abs),
		"sqrt":  math1("sqrt", math.Sqrt),
		"sin":   math1("sin", math.Sin),
		"cos":   math1("cos", math.Cos),
		"exp":   math1("exp", math.Exp),
		"log":   math1("log", math.Log),
		"round": math1("round", math.Round),
		"floor": math1("floor", math.Floor),
		"ceil":  math1("ceil", math.Ceil),
		"min":   math2("min", math.Min),
		"max":   math2("max", math.Max),
		"atan2": math2("atan2", math.Atan2),

		"random": func(rt *Runtime, args []Value) (Value, error) {
			xs, err := numArgs("random", args, 1)
			if err != nil {
				return Void, err
			}
			return Num(math.Floor(rand.Float64() * xs[0])), nil
		},

		// time is the current time in milliseconds.
		"time": func(rt *Runtime, args []Value) (Value, error) {
			if len(args) != 0 {
				return Void, &ArityMismatch{Name: "time", Want: 0, Got: len(args)}
			}
			return Num(float64(rt.Now().Milliseconds())), nil
		},

		"size": func(rt *Runtime, args []Value) (Value, error) {
			if len(args) != 1 {
				return Void, &ArityMismatch{Name: "size", Want: 1, Got: len(args)}
			}
			switch a := args[0]; a.Kind() {
			case ListKind:
				return Num(float64(len(a.List()))), nil
			case StringKind:
				s, _ := a.Text()
				return Num(float64(len(s))), nil
			case BinaryKind:
				return Num(float64(len(a.Binary().Data))), nil
			default:
				return Void, &TypeMismatch{Op: "size", Left: a.Kind(), Right: ListKind}
			}
		},

		"string": func(rt *Runtime, args []Value) (Value, error) {
			if len(args) != 1 {
				return Void, &ArityMismatch{Name: "string", Want: 1, Got: len(args)}
			}
			return Str(args[0].String()), nil
		},

		"number": func(rt *Runtime, args []Value) (Value, error) {
			if len(args) != 1 {
				return Void, &ArityMismatch{Name: "number", Want: 1, Got: len(args)}
			}
			if f, ok := args[0].Float(); ok {
				return Num(f), nil
			}
			s, ok := args[0].Text()
			if !ok {
				return Void, &TypeMismatch{Op: "number", Left: args[0].Kind(), Right: StringKind}
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return Void, &TypeMismatch{Op: "number", Left: StringKind, Right: NumberKind}
			}
			return Num(f), nil
		},

		// cronNext is the number of milliseconds until the next
		// time matching the cron expression.
		"cronNext": func(rt *Runtime, args []Value) (Value, error) {
			if len(args) != 1 {
				return Void, &ArityMismatch{Name: "cronNext", Want: 1, Got: len(args)}
			}
			s, ok := args[0].Text()
			if !ok {
				return Void, &TypeMismatch{Op: "cronNext", Left: args[0].Kind(), Right: StringKind}
			}
			sched, err := cronexpr.Parse(s)
			if err != nil {
				return Void, &InvalidModifier{Modifier: "cronNext", Reason: err.Error()}
			}
			now := rt.Clock.Epoch().Add(rt.Now())
			next := sched.Next(now)
			if next.IsZero() {
				return Void, nil
			}
			return Num(float64(next.Sub(now).Milliseconds())), nil
		},
	}
}
