package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInline(t *testing.T) {
	input := `
I like %inline("tacos"), and
I also like %inline ("queso").
Both are delicious.
`
	want := `
I like TACOS, and
I also like QUESO.
Both are delicious.
`

	find := func(name string) ([]byte, error) {
		return []byte(strings.ToUpper(name)), nil
	}

	got, err := Inline([]byte(input), find)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Fatalf("got %s", got)
	}
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	filename := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestReadFileWithInlines(t *testing.T) {
	dir := t.TempDir()
	main := write(t, dir, "main.yaml", `body: [{echo: {js: '%inline("lib/double.js") double(2)'}}]`)
	write(t, dir, "lib/double.js", `%inline("helper.js") function double(x) { return h(x) * 2; }`)
	write(t, dir, "lib/helper.js", `function h(x) { return x; }`)

	got, err := ReadFileWithInlines(main)
	if err != nil {
		t.Fatal(err)
	}
	want := `body: [{echo: {js: 'function h(x) { return x; } function double(x) { return h(x) * 2; } double(2)'}}]`
	if string(got) != want {
		t.Fatalf("got %s", got)
	}

	p, err := ReadProgram(main)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = p.Compile(); err != nil {
		t.Fatal(err)
	}
}

func TestInlineCycle(t *testing.T) {
	dir := t.TempDir()
	main := write(t, dir, "a.txt", `%inline("b.txt")`)
	write(t, dir, "b.txt", `%inline("a.txt")`)

	if _, err := ReadFileWithInlines(main); !errors.Is(err, ErrInlineDepth) {
		t.Fatal(err)
	}
}

func TestReadAllWithInlines(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "x", "42")
	got, err := ReadAllWithInlines(strings.NewReader(`{echo: %inline("x")}`), dir)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{echo: 42}` {
		t.Fatal(string(got))
	}
}
