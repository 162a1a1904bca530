package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestMermaid(t *testing.T) {
	var buf bytes.Buffer
	if err := Mermaid(parse(t, demo), &buf, nil); err != nil {
		t.Fatal(err)
	}
	g := buf.String()

	if !strings.HasPrefix(g, "graph TB\n") {
		t.Fatal(g)
	}
	if !strings.Contains(g, `n0{{"seq"}}`) {
		t.Fatal("root isn't a combinator")
	}
	if !strings.Contains(g, "whenever #watch") {
		t.Fatal("no tag")
	}
	if strings.Contains(g, `"'`) {
		t.Fatal("unescaped quote")
	}
	if !strings.Contains(g, " -- body --> ") {
		t.Fatal("no body edge")
	}
}

func TestMermaidNoArgs(t *testing.T) {
	var buf bytes.Buffer
	if err := Mermaid(parse(t, `body: [{echo: 42}]`), &buf, &MermaidOpts{}); err != nil {
		t.Fatal(err)
	}
	want := "graph TB\n  n0{{\"seq\"}}\n  n1(\"echo\")\n  n0 -- 0 --> n1\n\n"
	if buf.String() != want {
		t.Fatal(buf.String())
	}
}
