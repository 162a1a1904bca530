package tools

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"path/filepath"

	"github.com/jsccast/yaml"
	md "github.com/russross/blackfriday/v2"

	"github.com/Comcast/gait/program"
)

// RenderProgramHTML writes the program's documentation, analysis and
// statements as an HTML fragment.
func RenderProgramHTML(p *program.Program, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if p.Doc != "" {
		f(`<div class="programDoc doc">%s</div>`, md.Run([]byte(p.Doc)))
	}

	a, err := Analyze(p)
	if err != nil {
		return err
	}
	if 0 < len(a.Errors)+len(a.Warnings) {
		f(`<div class="problems"><ul>`)
		for _, s := range a.Errors {
			f(`<li class="error">%s</li>`, html.EscapeString(s))
		}
		for _, s := range a.Warnings {
			f(`<li class="warning">%s</li>`, html.EscapeString(s))
		}
		f(`</ul></div>`)
	}

	f(`<div class="summary"><table>`)
	row := func(what string, xs []string) {
		if len(xs) == 0 {
			return
		}
		f(`<tr><td>%s</td><td><code>%s</code></td></tr>`, what, html.EscapeString(fmt.Sprintf("%v", xs)))
	}
	row("variables", a.Declared)
	row("emits", a.Emitted)
	row("handles", a.Handled)
	row("tags", a.Tags)
	row("functions", a.Functions)
	f(`</table></div>`)

	f(`<div class="statements"><table>`)
	for i, x := range p.Body {
		src, err := yaml.Marshal(x)
		if err != nil {
			return err
		}
		f(`<tr class="statement"><td><span class="statementNum">%d</span></td>`, i)
		f(`<td><div class="code"><pre>%s</pre></div></td></tr>`, html.EscapeString(string(src)))
	}
	f(`</table></div>`)

	return nil
}

// RenderProgramPage writes a complete HTML page.  With includeGraph,
// the page draws the directive tree with Mermaid.
func RenderProgramPage(p *program.Program, out io.Writer, cssFiles []string, includeGraph bool) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/program-html.css"}
	}

	title := html.EscapeString(p.Name)
	fmt.Fprintf(out, `<!DOCTYPE html>
<html>
  <head>
  <meta charset="utf-8">
  <title>%s</title>
`, title)
	if includeGraph {
		fmt.Fprintf(out, `  <script type="module">
  import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.esm.min.mjs";
  mermaid.initialize({startOnLoad: true});
  </script>
`)
	}
	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}
	fmt.Fprintf(out, `  </head>
  <body>
    <h1>%s</h1>
`, title)

	if includeGraph {
		var g bytes.Buffer
		if err := Mermaid(p, &g, nil); err != nil {
			return err
		}
		fmt.Fprintf(out, "<pre class=\"mermaid\">\n%s</pre>\n", g.String())
	}

	if err := RenderProgramHTML(p, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)
	return nil
}

// ReadProgram reads a program file (with inlines).  The format
// follows the extension.
func ReadProgram(filename string) (*program.Program, error) {
	bs, err := ReadFileWithInlines(filename)
	if err != nil {
		return nil, err
	}
	format := "yaml"
	if filepath.Ext(filename) == ".json" {
		format = "json"
	}
	return program.Parse(bs, format)
}

func ReadAndRenderProgramPage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	p, err := ReadProgram(filename)
	if err != nil {
		return err
	}
	if p.Name == "" {
		p.Name = filepath.Base(filename)
	}
	return RenderProgramPage(p, out, cssFiles, includeGraph)
}
