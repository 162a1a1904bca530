package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Comcast/gait/util/logging"
)

func TestRunFlags(t *testing.T) {
	var out bytes.Buffer
	ok, err := run([]string{
		"-p", `{"likes":"?liked"}`,
		"-m", `{"likes":"tacos","dislikes":"kale"}`,
		"-w", `[{"?liked":"tacos"}]`,
	}, &out, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if !ok || out.String() != "true\n" {
		t.Fatal(out.String())
	}

	out.Reset()
	if _, err = run([]string{"-p", `{n: "?n"}`, "-m", `{n: 3}`}, &out, logging.Discard()); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != `[{"?n":3}]` {
		t.Fatal(out.String())
	}
}

func TestRunCases(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cases.yaml")
	if err := os.WriteFile(filename, []byte(`
- doc: bound
  pattern: {event: "?e"}
  message: {event: lit}
  want: [{"?e": lit}]
- doc: wrong
  pattern: {event: "?e"}
  message: {event: dark}
  want: [{"?e": lit}]
- doc: prebound
  pattern: {event: "?e"}
  message: {event: dark}
  bindings: {"?e": lit}
  want: []
`), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	ok, err := run([]string{"-f", filename, "-bench", "2"}, &out, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("the second case should fail")
	}
	if out.String() != "bound: true\nwrong: false\nprebound: true\n" {
		t.Fatal(out.String())
	}
}
