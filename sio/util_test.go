package sio

import (
	"os/exec"
	"strings"
	"testing"
)

func TestJShort(t *testing.T) {
	if got := JShort(map[string]int{"x": 1}); got != `{"x":1}` {
		t.Fatal(got)
	}
	got := JShort(strings.Repeat("a", 100))
	if len(got) != 73 || !strings.HasSuffix(got, "...") {
		t.Fatal(got)
	}
	if JS(nil) != "null" {
		t.Fatal(JS(nil))
	}
}

func TestShellExpand(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip(err)
	}
	got, err := ShellExpand(`a <<echo -n b>> c <<printf d>>`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a b c d" {
		t.Fatal(got)
	}
	if got, _ = ShellExpand("plain"); got != "plain" {
		t.Fatal(got)
	}
	if _, err = ShellExpand(`<<exit 3>>`); err == nil {
		t.Fatal("expected an error")
	}
}
