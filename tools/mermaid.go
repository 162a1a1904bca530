package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/gait/program"
)

type MermaidOpts struct {
	// ShowArgs adds each directive's arguments (as compact JSON)
	// to its box.
	ShowArgs bool `json:"showArgs"`

	// LeafFill is the fill color of leaf directives.
	LeafFill string `json:"leafFill,omitempty"`

	// ConstructFill is the fill color of directives with bodies.
	ConstructFill string `json:"constructFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaid.js.org/) flowchart for
// the program's directive tree.
func Mermaid(p *program.Program, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			ShowArgs:      true,
			LeafFill:      "#bcf2db",
			ConstructFill: "#52aa5e",
		}
	}
	t, err := BuildTree(p)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "graph TB\n")

	num := 0
	var walk func(t *Tree) string
	walk = func(t *Tree) string {
		nid := fmt.Sprintf("n%d", num)
		num++

		label := t.Directive
		if t.Tag != "" {
			label += " #" + t.Tag
		}
		if opts.ShowArgs && t.Args != nil {
			if js, err := json.Marshal(t.Args); err == nil {
				s := string(js)
				if 60 < len(s) {
					s = s[:60] + "..."
				}
				label += "<br/>" + s
			}
		}
		label = strings.Replace(label, `"`, `'`, -1)

		switch {
		case listDirectives[t.Directive]:
			fmt.Fprintf(w, "  %s{{\"%s\"}}\n", nid, label)
		case 0 < len(t.Kids):
			fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, label)
			if opts.ConstructFill != "" {
				fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.ConstructFill)
			}
		default:
			fmt.Fprintf(w, "  %s(\"%s\")\n", nid, label)
			if opts.LeafFill != "" {
				fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.LeafFill)
			}
		}

		for _, k := range t.Kids {
			kid := walk(k)
			fmt.Fprintf(w, "  %s -- %s --> %s\n", nid, k.Edge, kid)
		}
		return nid
	}
	walk(t)

	fmt.Fprintf(w, "\n")
	return nil
}
