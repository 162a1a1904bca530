// Package goja lets expressions be written in ECMAScript.
//
// Register the interpreter under a name in Runtime.Scripts (init
// does that for "goja") and use a script expression with that
// language.  The source is either a plain expression or program,
// whose completion value is the result, or a function body that
// uses return.
package goja

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/match"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Eval if the execution takes
	// longer than the interpreter's Timeout.
	Interrupted = errors.New(InterruptedMessage)

	// DefaultTimeout is the Timeout for NewInterpreter.
	DefaultTimeout = 50 * time.Millisecond
)

func init() {
	core.DefaultInterpreters["goja"] = NewInterpreter()
}

// Interpreter implements core.Script using Goja.
//
// See https://github.com/dop251/goja.
type Interpreter struct {
	// Testing exposes sleep(ms).
	Testing bool

	// Timeout bounds one evaluation.  Scripts run inside a tick,
	// so this should be well under the tick period.
	Timeout time.Duration

	// LibraryProvider resolves the names given to top-level
	// require() calls.  When nil, DefaultLibraryProvider is
	// used.
	LibraryProvider func(ctx context.Context, i *Interpreter, libraryName string) (string, error)
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Timeout: DefaultTimeout,
	}
}

// ProvideLibrary resolves the library name into source.
func (i *Interpreter) ProvideLibrary(ctx context.Context, name string) (string, error) {
	if i.LibraryProvider != nil {
		return i.LibraryProvider(ctx, i, name)
	}
	return DefaultLibraryProvider(ctx, i, name)
}

var DefaultLibraryProvider = MakeFileLibraryProvider(".")

// MakeFileLibraryProvider makes a provider for names that are URLs
// with protocols "file", "http", and "https".  File names are
// relative to dir and can't climb out of it.
func MakeFileLibraryProvider(dir string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		parts := strings.SplitN(name, "://", 2)
		if 2 != len(parts) {
			return "", fmt.Errorf("bad link '%s'", name)
		}
		switch parts[0] {
		case "file":
			filename := filepath.Clean("/" + parts[1])
			bs, err := os.ReadFile(filepath.Join(dir, filename))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		case "http", "https":
			req, err := http.NewRequestWithContext(ctx, "GET", name, nil)
			if err != nil {
				return "", err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("library fetch status %s %d",
					resp.Status, resp.StatusCode)
			}
			bs, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("unknown protocol '%s'", parts[0])
		}
	}
}

func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// Compile inlines required libraries and calls goja.Compile.
//
// Source that doesn't parse as a program (typically because of a
// top-level return) is compiled as a function body instead.
//
// This method can block if the LibraryProvider blocks.
func (i *Interpreter) Compile(src string) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provide := func(ctx context.Context, name string) (string, error) {
		return i.ProvideLibrary(ctx, name)
	}

	if _, err := parser.ParseFile(nil, "", src, 0); err != nil {
		if _, werr := parser.ParseFile(nil, "", wrapSrc(src), 0); werr != nil {
			return nil, err
		}
		src = wrapSrc(src)
	}

	code, err := InlineRequires(ctx, src, provide)
	if err != nil {
		return nil, err
	}

	p, err := goja.Compile("", code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return p, nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// Eval implements core.Script.
//
// The following properties are available at _.
//
//	frame: the local bindings (nearest frame wins).
//	get(name): the value of a variable.
//	now(): the runtime's time in milliseconds.
//	tick(): the tick number.
//	call(name, args...): call a native function.
//	cronNext(expr): milliseconds until the next time matching expr.
//	gensym(): a random string.
//	esc(s): URL query-escape the given string.
//	match(pat, msg, bs): run the message pattern matcher.
//	log(x): log x at info level.
//
// With Testing, sleep(ms) is available at the top level.
//
// The result is converted with core.FromInterface, so objects come
// back as sorted [key, value] pairs.
func (i *Interpreter) Eval(rt *core.Runtime, f *core.Frame, src string, compiled interface{}) (core.Value, error) {
	if compiled == nil {
		var err error
		if compiled, err = i.Compile(src); err != nil {
			return core.Void, err
		}
	}
	p, is := compiled.(*goja.Program)
	if !is {
		return core.Void, fmt.Errorf("Goja bad compilation: %T %#v", compiled, compiled)
	}

	o := goja.New()
	env := map[string]interface{}{
		"frame": frameLocals(f),
	}
	o.Set("_", env)

	if i.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	env["get"] = func(name string) interface{} {
		v, err := rt.ResolveVariable(name)
		if err != nil {
			protest(o, err.Error())
		}
		return rt.Store.Read(v).Interface()
	}

	env["now"] = func() interface{} {
		return rt.Now().Milliseconds()
	}

	env["tick"] = func() interface{} {
		return rt.Tick()
	}

	call := func(name string, args ...goja.Value) interface{} {
		fn, have := rt.Natives[name]
		if !have {
			protest(o, (&core.UnknownFunction{Name: name}).Error())
		}
		vs := make([]core.Value, len(args))
		for j, a := range args {
			vs[j] = core.FromInterface(a.Export())
		}
		v, err := fn(rt, vs)
		if err != nil {
			protest(o, err.Error())
		}
		return v.Interface()
	}
	env["call"] = call

	env["cronNext"] = func(x goja.Value) interface{} {
		return call("cronNext", x)
	}

	env["gensym"] = func() interface{} {
		return core.Gensym(32)
	}

	env["esc"] = func(x goja.Value) interface{} {
		s, is := x.Export().(string)
		if !is {
			protest(o, "not a string")
		}
		return url.QueryEscape(s)
	}

	env["log"] = func(x goja.Value) interface{} {
		rt.Logger.Info("script log", "value", x.Export())
		return x
	}

	env["match"] = func(pat, msg, bs goja.Value) interface{} {
		bindings := match.NewBindings()
		if bs != nil && !goja.IsUndefined(bs) && !goja.IsNull(bs) {
			m, is := bs.Export().(map[string]interface{})
			if !is {
				protest(o, "bad bindings")
			}
			bindings = match.Bindings(m)
		}
		bss, err := match.Match(pat.Export(), msg.Export(), bindings)
		if err != nil {
			protest(o, err.Error())
		}
		acc := make([]interface{}, len(bss))
		for j, b := range bss {
			acc[j] = map[string]interface{}(b)
		}
		return acc
	}

	timeout := i.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	go func() {
		<-ctx.Done()
		// If Eval calls cancel() after RunProgram returns,
		// nothing is running to interrupt.
		if ctx.Err() == context.DeadlineExceeded {
			o.Interrupt(InterruptedMessage)
		}
	}()

	v, err := o.RunProgram(p)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return core.Void, Interrupted
		}
		return core.Void, err
	}
	if v == nil {
		return core.Void, nil
	}
	return core.FromInterface(v.Export()), nil
}

// frameLocals flattens a frame chain.
func frameLocals(f *core.Frame) map[string]interface{} {
	acc := make(map[string]interface{})
	var chain []*core.Frame
	for ; f != nil; f = f.Parent {
		chain = append(chain, f)
	}
	for j := len(chain) - 1; 0 <= j; j-- {
		for _, name := range chain[j].Names() {
			v, _ := chain[j].Lookup(name)
			acc[name] = v.Interface()
		}
	}
	return acc
}
