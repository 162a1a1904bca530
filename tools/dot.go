/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"html"
	"io"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/Comcast/gait/program"
)

// DotOpts controls Dot.
type DotOpts struct {
	// Args renders each directive's arguments (as YAML) under its
	// name.
	Args bool

	// Highlight is a tag whose directives are drawn in red.
	Highlight string
}

const (
	combinatorFill = "#2d93ad"
	constructFill  = "#52aa5e"
	leafFill       = "#99ddc8"
)

func fill(t *Tree) string {
	switch {
	case listDirectives[t.Directive]:
		return combinatorFill
	case 0 < len(t.Kids):
		return constructFill
	}
	return leafFill
}

// argsLabel renders arguments as YAML for a label.
func argsLabel(args interface{}) string {
	if args == nil {
		return ""
	}
	bs, err := yaml.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	s := strings.TrimSpace(string(bs))
	if 200 < len(s) {
		s = s[:200] + "..."
	}
	return s
}

// Dot makes a Graphviz dot file for the program's directive tree.
func Dot(p *program.Program, w io.Writer, opts *DotOpts) error {
	if opts == nil {
		opts = &DotOpts{Args: true}
	}
	t, err := BuildTree(p)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="box" style="rounded,filled"]
  edge [fontsize = "12"]
`)
	if p.Name != "" {
		fmt.Fprintf(w, "  label=\"%s\"\n", escape(p.Name))
	}

	n := 0
	var walk func(t *Tree) string
	walk = func(t *Tree) string {
		id := fmt.Sprintf("n%d", n)
		n++

		label := html.EscapeString(t.Directive)
		if t.Tag != "" {
			label += " <I>#" + html.EscapeString(t.Tag) + "</I>"
		}
		if opts.Args {
			if s := argsLabel(t.Args); s != "" {
				s = strings.ReplaceAll(html.EscapeString(s), "\n", "<BR ALIGN='LEFT'/>")
				label += "<BR/><FONT POINT-SIZE='8'>" + s + "<BR ALIGN='LEFT'/></FONT>"
			}
		}
		color := "black"
		if opts.Highlight != "" && t.Tag == opts.Highlight {
			color = "red"
		}
		fmt.Fprintf(w, "  %s [label=<%s> fillcolor=\"%s\" color=\"%s\"]\n", id, label, fill(t), color)

		for _, k := range t.Kids {
			kid := walk(k)
			fmt.Fprintf(w, "  %s -> %s [label=\"%s\"]\n", id, kid, escape(k.Edge))
		}
		return id
	}
	walk(t)

	fmt.Fprintf(w, "}\n")
	return nil
}

// PNG generates a PNG image based on output from Dot.
//
// This function writes two files: basename.dot and basename.png.
// The dot executable has to be on the PATH.
func PNG(p *program.Program, basename string, opts *DotOpts) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	err = Dot(p, dotfile, opts)
	if cerr := dotfile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return pngname, err
	}
	if err := exec.Command("dot", "-Tpng", "-o", pngname, dotname).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func escape(s string) string {
	return strings.Replace(s, `"`, `\"`, -1)
}
