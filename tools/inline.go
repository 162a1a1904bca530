package tools

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var inlinePattern = regexp.MustCompile(`%inline *\("([^"]*)"\)`)

// ErrInlineDepth is returned when inlines nest too deeply (probably
// a cycle).
var ErrInlineDepth = errors.New("inlines nested too deeply")

// MaxInlineDepth bounds nested inlining.
var MaxInlineDepth = 8

// Inline replaces '%inline("NAME")' with f(NAME).  Replacements are
// not themselves expanded.
func Inline(bs []byte, f func(string) ([]byte, error)) ([]byte, error) {
	var (
		acc  = make([]byte, 0, len(bs))
		last = 0
	)
	for _, loc := range inlinePattern.FindAllSubmatchIndex(bs, -1) {
		acc = append(acc, bs[last:loc[0]]...)
		replacement, err := f(string(bs[loc[2]:loc[3]]))
		if err != nil {
			return nil, err
		}
		acc = append(acc, replacement...)
		last = loc[1]
	}
	return append(acc, bs[last:]...), nil
}

// fileInliner reads names relative to dir and expands their inlines
// too.
func fileInliner(dir string, depth int) func(string) ([]byte, error) {
	return func(name string) ([]byte, error) {
		if MaxInlineDepth <= depth {
			return nil, ErrInlineDepth
		}
		filename := filepath.Join(dir, name)
		bs, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		return Inline(bs, fileInliner(filepath.Dir(filename), depth+1))
	}
}

// ReadFileWithInlines is a replacement for os.ReadFile that expands
// '%inline("NAME")' with the contents of NAME, relative to the
// directory of the file that mentions it.
func ReadFileWithInlines(filename string) ([]byte, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Inline(bs, fileInliner(filepath.Dir(filename), 0))
}

// ReadAllWithInlines is a replacement for io.ReadAll that expands
// inlines relative to the given directory.
func ReadAllWithInlines(in io.Reader, dir string) ([]byte, error) {
	bs, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	return Inline(bs, fileInliner(dir, 0))
}
