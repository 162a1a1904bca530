package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Comcast/gait/program"
	"github.com/Comcast/gait/util/logging"

	"github.com/dop251/goja"
	"github.com/jsccast/yaml"
)

// MacroExpander runs Javascript macros over a program body.
//
// A driver script defines expand(body), which returns the new body.
// Every .js file in the macros directory is loaded first, so the
// driver can call whatever they define.
type MacroExpander struct {
	JS     *goja.Runtime
	Logger *slog.Logger
}

func NewMacroExpander(logger *slog.Logger) *MacroExpander {
	m := &MacroExpander{
		JS:     goja.New(),
		Logger: logger,
	}
	env := make(map[string]interface{})
	m.JS.Set("_", env)

	env["log"] = func(x goja.Value) interface{} {
		m.Logger.Info("macro log", "value", x.Export())
		return x
	}

	return m
}

func (m *MacroExpander) Load(filename string) error {
	m.Logger.Debug("loading macro", "file", filename)

	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	_, err = m.JS.RunScript(filename, string(src))
	return err
}

func (m *MacroExpander) LoadDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".js") {
			continue
		}
		if err = m.Load(filepath.Join(dir, file.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Expand calls the driver's expand() on the body.
func (m *MacroExpander) Expand(body []interface{}) ([]interface{}, error) {
	js, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	v, err := m.JS.RunString(fmt.Sprintf("expand(%s)", js))
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON to get plain maps and float64s.
	x := v.Export()
	if js, err = json.Marshal(x); err != nil {
		return nil, err
	}
	var acc []interface{}
	if err = json.Unmarshal(js, &acc); err != nil {
		return nil, fmt.Errorf("expand() didn't return a list of statements: %w", err)
	}
	return acc, nil
}

// Expander is the "expand" subcommand.
type Expander struct {
	Driver string
	Macros string
}

func (c *Expander) Doc() string {
	return `
Expands macros: loads every .js file in the macros directory and then the
driver, which must define expand(body).  Writes the expanded program.
`
}

func (c *Expander) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("expand", flag.ContinueOnError)
	flags.StringVar(&c.Driver, "d", "driver.js", "driver script")
	flags.StringVar(&c.Macros, "m", "macros", "macros directory")
	return flags
}

func (c *Expander) F(p *program.Program, out io.Writer) error {
	m := NewMacroExpander(logging.Discard())
	if c.Macros != "" {
		if err := m.LoadDir(c.Macros); err != nil {
			return err
		}
	}
	if err := m.Load(c.Driver); err != nil {
		return err
	}
	body, err := m.Expand(p.Body)
	if err != nil {
		return err
	}
	p.Body = body
	if _, err := p.Compile(); err != nil {
		return err
	}

	bs, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	_, err = out.Write(bs)
	return err
}
