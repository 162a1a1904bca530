package tools

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestDot(t *testing.T) {
	p := parse(t, demo)

	var buf bytes.Buffer
	if err := Dot(p, &buf, &DotOpts{Args: true, Highlight: "watch"}); err != nil {
		t.Fatal(err)
	}
	g := buf.String()

	if !strings.HasPrefix(g, "digraph G {") || !strings.HasSuffix(g, "}\n") {
		t.Fatal(g)
	}
	if !strings.Contains(g, `label="porch"`) {
		t.Fatal("no graph label")
	}
	if !strings.Contains(g, "whenever <I>#watch</I>") || !strings.Contains(g, `color="red"`) {
		t.Fatal("tag not highlighted")
	}
	if !strings.Contains(g, `[label="body"]`) {
		t.Fatal("no body edge")
	}
	if !strings.Contains(g, "period: 60000") {
		t.Fatal("no args")
	}
}

func TestPNG(t *testing.T) {
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("no dot")
	}
	basename := filepath.Join(t.TempDir(), "porch")
	if _, err := PNG(parse(t, demo), basename, nil); err != nil {
		t.Fatal(err)
	}
}
