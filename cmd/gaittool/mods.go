package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Comcast/gait/core"
	"github.com/Comcast/gait/interpreters"
	"github.com/Comcast/gait/program"
	"github.com/Comcast/gait/tools"
	"github.com/Comcast/gait/tools/expect"
	"github.com/Comcast/gait/util/logging"

	"github.com/jsccast/yaml"
)

var Mods = map[string]Mod{
	"check":   &Checker{},
	"analyze": &Analyzer{},
	"dot":     &Grapher{},
	"png":     &Grapher{PNG: true},
	"mermaid": &Mermaider{},
	"html":    &Pager{},
	"expand":  &Expander{},
}

// Mod is a subcommand that works on one program.
type Mod interface {
	F(p *program.Program, out io.Writer) error
	Doc() string
	Flags() *flag.FlagSet
}

// checkConn keeps what a dry run reports.
type checkConn struct {
	errs []*core.DirectiveError
}

func (c *checkConn) Id() string                      { return "check" }
func (c *checkConn) Report(err *core.DirectiveError) { c.errs = append(c.errs, err) }
func (c *checkConn) Send(tag string, v core.Value)   {}

// Checker compiles a program and then runs it for a while without
// evaluating any scripts.
type Checker struct {
	Ticks  int
	Period time.Duration
}

func (c *Checker) Doc() string {
	return `
Compiles the program and runs it for a few ticks with scripts disabled.
Reports any directive errors.
`
}

func (c *Checker) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	flags.IntVar(&c.Ticks, "n", 10, "number of ticks to run")
	flags.DurationVar(&c.Period, "p", 100*time.Millisecond, "tick period")
	return flags
}

func (c *Checker) F(p *program.Program, out io.Writer) error {
	plan, err := p.Compile()
	if err != nil {
		return err
	}

	clock := core.NewManualClock(c.Period)
	rt := core.NewRuntime(clock, logging.Discard())
	rt.Scripts = interpreters.DryRun()
	s := core.NewScheduler(rt)

	conn := &checkConn{}
	s.Execute(conn, plan)
	ticks := 0
	for ; ticks < c.Ticks && !s.Idle(); ticks++ {
		if 0 < ticks {
			clock.Advance()
		}
		s.Tick()
	}

	for _, err := range conn.errs {
		fmt.Fprintf(out, "error %s\n", err)
	}
	if 0 < len(conn.errs) {
		return fmt.Errorf("%d errors", len(conn.errs))
	}
	fmt.Fprintf(out, "ok after %d ticks (idle: %v)\n", ticks, s.Idle())
	return nil
}

// Analyzer writes a tools.Analysis.
type Analyzer struct {
	YAML bool
}

func (c *Analyzer) Doc() string {
	return `
Writes an analysis of the program: declared, read and assigned variables,
events, tags, functions and likely problems.
`
}

func (c *Analyzer) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("analyze", flag.ContinueOnError)
	flags.BoolVar(&c.YAML, "y", false, "write YAML instead of JSON")
	return flags
}

func (c *Analyzer) F(p *program.Program, out io.Writer) error {
	a, err := tools.Analyze(p)
	if err != nil {
		return err
	}
	var bs []byte
	if c.YAML {
		bs, err = yaml.Marshal(a)
	} else {
		bs, err = json.MarshalIndent(a, "", "  ")
		bs = append(bs, '\n')
	}
	if err != nil {
		return err
	}
	_, err = out.Write(bs)
	return err
}

// Grapher renders the directive tree with Graphviz.
type Grapher struct {
	PNG       bool
	Basename  string
	Args      bool
	Highlight string
}

func (c *Grapher) Doc() string {
	if c.PNG {
		return `
Writes BASENAME.dot and BASENAME.png (requires Graphviz's dot).
`
	}
	return `
Writes a Graphviz dot graph of the directive tree.
`
}

func (c *Grapher) Flags() *flag.FlagSet {
	name := "dot"
	if c.PNG {
		name = "png"
	}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.BoolVar(&c.Args, "a", true, "show directive arguments")
	flags.StringVar(&c.Highlight, "h", "", "highlight directives with this tag")
	if c.PNG {
		flags.StringVar(&c.Basename, "o", "program", "output basename")
	}
	return flags
}

func (c *Grapher) F(p *program.Program, out io.Writer) error {
	opts := &tools.DotOpts{
		Args:      c.Args,
		Highlight: c.Highlight,
	}
	if !c.PNG {
		return tools.Dot(p, out, opts)
	}
	filename, err := tools.PNG(p, c.Basename, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", filename)
	return nil
}

// Mermaider renders the directive tree as a Mermaid flowchart.
type Mermaider struct {
	Args bool
}

func (c *Mermaider) Doc() string {
	return `
Writes a Mermaid flowchart of the directive tree.
`
}

func (c *Mermaider) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("mermaid", flag.ContinueOnError)
	flags.BoolVar(&c.Args, "a", true, "show directive arguments")
	return flags
}

func (c *Mermaider) F(p *program.Program, out io.Writer) error {
	return tools.Mermaid(p, out, &tools.MermaidOpts{
		ShowArgs:      c.Args,
		LeafFill:      "#bcf2db",
		ConstructFill: "#52aa5e",
	})
}

// Pager renders an HTML page.
type Pager struct {
	CSS      string
	Graph    bool
	Fragment bool
}

func (c *Pager) Doc() string {
	return `
Writes an HTML page with the program's documentation, analysis and statements.
`
}

func (c *Pager) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("html", flag.ContinueOnError)
	flags.StringVar(&c.CSS, "c", "/static/program-html.css", "stylesheet URL")
	flags.BoolVar(&c.Graph, "g", true, "include a Mermaid graph")
	flags.BoolVar(&c.Fragment, "f", false, "write just the HTML fragment")
	return flags
}

func (c *Pager) F(p *program.Program, out io.Writer) error {
	if c.Fragment {
		return tools.RenderProgramHTML(p, out)
	}
	return tools.RenderProgramPage(p, out, []string{c.CSS}, c.Graph)
}

// runExpect runs a test session file.
func runExpect(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("expect", flag.ContinueOnError)
	var (
		timeout = flags.Duration("t", 10*time.Second, "session timeout")
		verbose = flags.Bool("v", false, "log inputs and outputs")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("expect needs a session file")
	}

	for _, filename := range flags.Args() {
		bs, err := tools.ReadFileWithInlines(filename)
		if err != nil {
			return err
		}
		s, err := expect.ParseSession(bs)
		if err != nil {
			return err
		}
		if *verbose {
			s.Verbose = true
			logger, _, err := logging.New(os.Stderr, logging.Options{Level: "debug"})
			if err != nil {
				return err
			}
			s.Logger = logger
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		err = s.Run(ctx, filepath.Dir(filename))
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		fmt.Fprintf(out, "%s ok\n", filename)
	}
	return nil
}
