package goja

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// InlineRequires replaces top-level require("name") statements with
// the source the provider returns for that name.  The body of a
// program that is a single immediately invoked function counts as
// top level.
//
// Rewriting source (rather than defining a require() function at
// runtime) keeps scripts compilable ahead of time.
func InlineRequires(ctx context.Context, src string, provider func(context.Context, string) (string, error)) (string, error) {

	p, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return "", err
	}

	type required struct {
		from, to int
		name     string
	}

	var requires []required

	for _, s := range topLevel(p.Body) {
		exps, is := s.(*ast.ExpressionStatement)
		if !is {
			continue
		}
		call, is := exps.Expression.(*ast.CallExpression)
		if !is {
			continue
		}
		id, is := call.Callee.(*ast.Identifier)
		if !is || id.Name != "require" {
			continue
		}
		if len(call.ArgumentList) != 1 {
			return "", fmt.Errorf("bad require args: %#v", call.ArgumentList)
		}
		lit, is := call.ArgumentList[0].(*ast.StringLiteral)
		if !is {
			return "", fmt.Errorf("bad require arg: %#v", call.ArgumentList[0])
		}

		// Positions are 1-based.
		from, to := int(exps.Idx0())-1, int(exps.Idx1())-1
		if to < len(src) && src[to] == ';' {
			to++
		}
		requires = append(requires, required{
			from: from,
			to:   to,
			name: string(lit.Value),
		})
	}

	if len(requires) == 0 {
		return src, nil
	}

	var b strings.Builder
	at := 0
	for _, r := range requires {
		lib, err := provider(ctx, r.name)
		if err != nil {
			return "", err
		}
		b.WriteString(src[at:r.from])
		b.WriteString(lib)
		b.WriteString("\n")
		at = r.to
	}
	b.WriteString(src[at:])

	return b.String(), nil
}

// topLevel descends into a lone (function() {...}()) wrapper.
func topLevel(body []ast.Statement) []ast.Statement {
	if len(body) != 1 {
		return body
	}
	exps, is := body[0].(*ast.ExpressionStatement)
	if !is {
		return body
	}
	call, is := exps.Expression.(*ast.CallExpression)
	if !is || len(call.ArgumentList) != 0 {
		return body
	}
	fn, is := call.Callee.(*ast.FunctionLiteral)
	if !is || fn.Body == nil {
		return body
	}
	return fn.Body.List
}
