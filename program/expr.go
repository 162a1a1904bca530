package program

import (
	"fmt"
	"sort"

	"github.com/Comcast/gait/core"
)

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "^": true, "**": true,
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"&&": true, "||": true,
}

// number converts the numeric types YAML and JSON decoders produce.
func number(x interface{}) (float64, bool) {
	switch vv := x.(type) {
	case float64:
		return vv, true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case uint64:
		return float64(vv), true
	}
	return 0, false
}

// single returns the only key of a map and its value.
func single(path string, m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", nil, &SyntaxError{Path: path, Msg: fmt.Sprintf("want one key, have %v", keys)}
	}
	for k, v := range m {
		return k, v, nil
	}
	panic("unreachable")
}

func exprs(path string, x interface{}) ([]core.Expr, error) {
	if x == nil {
		return nil, nil
	}
	xs, is := x.([]interface{})
	if !is {
		xs = []interface{}{x}
	}
	acc := make([]core.Expr, len(xs))
	for i, y := range xs {
		e, err := expr(fmt.Sprintf("%s[%d]", path, i), y)
		if err != nil {
			return nil, err
		}
		acc[i] = e
	}
	return acc, nil
}

func str(path string, x interface{}) (string, error) {
	s, is := x.(string)
	if !is {
		return "", &SyntaxError{Path: path, Msg: fmt.Sprintf("want a string, have %T", x)}
	}
	return s, nil
}

func expr(path string, x interface{}) (core.Expr, error) {
	if n, is := number(x); is {
		return core.N(n), nil
	}
	switch vv := x.(type) {
	case nil:
		return &core.Const{V: core.Void}, nil
	case bool:
		if vv {
			return core.N(1), nil
		}
		return core.N(0), nil
	case string:
		return core.S(vv), nil
	case []interface{}:
		elems, err := exprs(path, vv)
		if err != nil {
			return nil, err
		}
		return &core.ListExpr{Elems: elems}, nil
	case map[string]interface{}:
		return exprMap(path, vv)
	}
	return nil, &SyntaxError{Path: path, Msg: fmt.Sprintf("bad expression (%T)", x)}
}

func exprMap(path string, m map[string]interface{}) (core.Expr, error) {
	// {call: f, args: [...]} is the one two-key form.
	if name, have := m["call"]; have {
		s, err := str(path+".call", name)
		if err != nil {
			return nil, err
		}
		args, err := exprs(path+".args", m["args"])
		if err != nil {
			return nil, err
		}
		return &core.Call{Name: s, Args: args}, nil
	}

	k, v, err := single(path, m)
	if err != nil {
		return nil, err
	}
	at := path + "." + k

	if binaryOps[k] {
		args, err := exprs(at, v)
		if err != nil {
			return nil, err
		}
		if k == "-" && len(args) == 1 {
			return &core.Unary{Op: "-", X: args[0]}, nil
		}
		if len(args) < 2 {
			return nil, &SyntaxError{Path: at, Msg: "want at least two operands"}
		}
		// Left-associative.
		e := args[0]
		for _, y := range args[1:] {
			e = core.Op(k, e, y)
		}
		return e, nil
	}

	switch k {
	case "var":
		s, err := str(at, v)
		if err != nil {
			return nil, err
		}
		return core.V(s), nil
	case "deriv":
		s, err := str(at, v)
		if err != nil {
			return nil, err
		}
		return &core.Deriv{Name: s}, nil
	case "str":
		s, err := str(at, v)
		if err != nil {
			return nil, err
		}
		return core.S(s), nil
	case "not", "!":
		x, err := expr(at, v)
		if err != nil {
			return nil, err
		}
		return &core.Unary{Op: "!", X: x}, nil
	case "neg":
		x, err := expr(at, v)
		if err != nil {
			return nil, err
		}
		return &core.Unary{Op: "-", X: x}, nil
	case "list":
		elems, err := exprs(at, v)
		if err != nil {
			return nil, err
		}
		return &core.ListExpr{Elems: elems}, nil
	case "index":
		args, err := exprs(at, v)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, &SyntaxError{Path: at, Msg: "want [list, index]"}
		}
		return &core.Index{X: args[0], I: args[1]}, nil
	case "js", "goja":
		src, err := str(at, v)
		if err != nil {
			return nil, err
		}
		return &core.ScriptExpr{Lang: "goja", Src: src}, nil
	case "script":
		sm, is := v.(map[string]interface{})
		if !is {
			return nil, &SyntaxError{Path: at, Msg: "want {lang, src}"}
		}
		lang, err := str(at+".lang", sm["lang"])
		if err != nil {
			return nil, err
		}
		src, err := str(at+".src", sm["src"])
		if err != nil {
			return nil, err
		}
		return &core.ScriptExpr{Lang: lang, Src: src}, nil
	}
	return nil, &SyntaxError{Path: at, Msg: "unknown expression"}
}

// cond compiles an at/whenever condition: event matches combined
// with and/or/not, or any expression as a test.
func cond(path string, x interface{}) (core.Compound, error) {
	if m, is := x.(map[string]interface{}); is && len(m) == 1 {
		k, v, _ := single(path, m)
		at := path + "." + k
		switch k {
		case "event":
			em, err := eventMatch(at, v)
			if err != nil {
				return nil, err
			}
			return &core.MatchLeaf{Match: em}, nil
		case "and", "or":
			xs, is := v.([]interface{})
			if !is || len(xs) < 2 {
				return nil, &SyntaxError{Path: at, Msg: "want at least two conditions"}
			}
			acc, err := cond(at+"[0]", xs[0])
			if err != nil {
				return nil, err
			}
			for i, y := range xs[1:] {
				c, err := cond(fmt.Sprintf("%s[%d]", at, i+1), y)
				if err != nil {
					return nil, err
				}
				if k == "and" {
					acc = &core.AndNode{L: acc, R: c}
				} else {
					acc = &core.OrNode{L: acc, R: c}
				}
			}
			return acc, nil
		case "not":
			c, err := cond(at, v)
			if err != nil {
				return nil, err
			}
			return &core.NotNode{X: c}, nil
		}
	}
	e, err := expr(path, x)
	if err != nil {
		return nil, err
	}
	return &core.TestLeaf{Expr: e}, nil
}

// eventMatch compiles {name: e, args: [...]}.  A string argument
// that starts with '?' is a pattern variable; anything else is an
// expression the argument must equal.
func eventMatch(path string, x interface{}) (*core.EventMatch, error) {
	m, is := x.(map[string]interface{})
	if !is {
		return nil, &SyntaxError{Path: path, Msg: "want {name, args}"}
	}
	name, err := str(path+".name", m["name"])
	if err != nil {
		return nil, err
	}
	em := &core.EventMatch{Name: name}
	args, _ := m["args"].([]interface{})
	for i, a := range args {
		if s, is := a.(string); is && core.IsVariable(s) {
			em.Args = append(em.Args, core.Wild(s))
			continue
		}
		e, err := expr(fmt.Sprintf("%s.args[%d]", path, i), a)
		if err != nil {
			return nil, err
		}
		em.Args = append(em.Args, core.Lit(e))
	}
	return em, nil
}
