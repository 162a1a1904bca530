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

// Command gaittool checks, renders and tests program documents.
//
//	gaittool SUBCOMMAND [FLAGS] [FILE]
//
// Without a FILE, the program is read from stdin.  Run with no
// arguments to see the subcommands.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Comcast/gait/program"
	"github.com/Comcast/gait/tools"

	"github.com/jsccast/yaml"
)

func main() {
	if len(os.Args) < 2 {
		Usage(os.Stdout)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, in io.Reader, out io.Writer) error {
	switch cmd {
	case "yamltojson":
		pretty := false
		switch len(args) {
		case 0:
		case 1:
			if args[0] != "-p" {
				return fmt.Errorf("unsupported args: %v", args)
			}
			pretty = true
		default:
			return fmt.Errorf("unsupported args: %v", args)
		}

		p, err := readProgram("", in)
		if err != nil {
			return err
		}
		var bs []byte
		if pretty {
			bs, err = json.MarshalIndent(p, "", "  ")
		} else {
			bs, err = json.Marshal(p)
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", bs)
		return err

	case "jsontoyaml":
		bs, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		p, err := program.Parse(bs, "json")
		if err != nil {
			return err
		}
		if bs, err = yaml.Marshal(p); err != nil {
			return err
		}
		_, err = out.Write(bs)
		return err

	case "expect":
		return runExpect(args, out)

	case "inline":
		var bs []byte
		var err error
		if 0 < len(args) {
			bs, err = tools.ReadFileWithInlines(args[0])
		} else {
			bs, err = tools.ReadAllWithInlines(in, ".")
		}
		if err != nil {
			return err
		}
		_, err = out.Write(bs)
		return err
	}

	mod, have := Mods[cmd]
	if !have {
		Usage(out)
		return fmt.Errorf("unknown subcommand %q", cmd)
	}

	flags := mod.Flags()
	if err := flags.Parse(args); err != nil {
		return err
	}

	p, err := readProgram(flags.Arg(0), in)
	if err != nil {
		return err
	}
	return mod.F(p, out)
}

// readProgram reads the named file or, without a name, the reader
// (as YAML).
func readProgram(filename string, in io.Reader) (*program.Program, error) {
	if filename != "" {
		return tools.ReadProgram(filename)
	}
	bs, err := tools.ReadAllWithInlines(in, ".")
	if err != nil {
		return nil, err
	}
	return program.Parse(bs, "yaml")
}

func Usage(w io.Writer) {
	fmt.Fprintf(w, "Subcommands:\n\n")
	names := make([]string, 0, len(Mods))
	for name := range Mods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mod := Mods[name]
		flags := mod.Flags()
		flags.SetOutput(w)
		fmt.Fprintf(w, "%s:%s", name, mod.Doc())
		flags.PrintDefaults()
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "yamltojson:\n  -p    pretty-print\n\n")
	fmt.Fprintf(w, "jsontoyaml: (no arguments)\n\n")
	fmt.Fprintf(w, "expect [-t TIMEOUT] [-v] SESSION...: run test sessions\n\n")
	fmt.Fprintf(w, "inline [FILE]: expand %%inline(\"NAME\") references\n\n")
}
