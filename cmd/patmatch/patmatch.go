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

// Command patmatch invokes pattern matching from the command line.
//
//	patmatch -p '{"likes":"?liked"}' -m '{"likes":"tacos"}' -w '[{"?liked":"tacos"}]'
//
// With -f, it reads a YAML list of cases instead:
//
//   - pattern: {event: "?e"}
//     message: {event: lit}
//     want: [{"?e": lit}]
//
// Arguments are YAML, which includes JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"runtime"
	"time"

	"github.com/Comcast/gait/match"
	"github.com/Comcast/gait/util/logging"

	"github.com/jsccast/yaml"
)

// Case is one match to try.
type Case struct {
	Doc      string                 `yaml:"doc,omitempty"`
	Pattern  interface{}            `yaml:"pattern"`
	Message  interface{}            `yaml:"message"`
	Bindings map[string]interface{} `yaml:"bindings,omitempty"`

	// Want, if not nil, is the set of binding sets the match
	// must produce.
	Want []map[string]interface{} `yaml:"want,omitempty"`
}

func main() {
	logger, _, err := logging.New(os.Stderr, logging.Options{})
	if err != nil {
		panic(err)
	}
	ok, err := run(os.Args[1:], os.Stdout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if !ok {
		os.Exit(1)
	}
}

func parse(src string, x interface{}) error {
	if src == "" {
		return nil
	}
	return yaml.Unmarshal([]byte(src), x)
}

// run reports false if any wanted bindings didn't appear.
func run(args []string, out io.Writer, logger *slog.Logger) (bool, error) {
	flags := flag.NewFlagSet("patmatch", flag.ContinueOnError)
	var (
		messageSrc  = flags.String("m", "", "message")
		patternSrc  = flags.String("p", "", "pattern")
		bindingsSrc = flags.String("b", "{}", "bindings")
		wantSrc     = flags.String("w", "", "wanted bindings")
		filename    = flags.String("f", "", "file of cases")

		bench   = flags.Int("bench", 0, "number of times to run (and report time)")
		verbose = flags.Bool("v", false, "verbosity")
	)
	if err := flags.Parse(args); err != nil {
		return false, err
	}

	var cases []*Case
	if *filename != "" {
		bs, err := os.ReadFile(*filename)
		if err != nil {
			return false, err
		}
		if err = yaml.Unmarshal(bs, &cases); err != nil {
			return false, err
		}
	} else {
		c := &Case{}
		if err := parse(*patternSrc, &c.Pattern); err != nil {
			return false, err
		}
		if err := parse(*messageSrc, &c.Message); err != nil {
			return false, err
		}
		if err := parse(*bindingsSrc, &c.Bindings); err != nil {
			return false, err
		}
		if err := parse(*wantSrc, &c.Want); err != nil {
			return false, err
		}
		cases = []*Case{c}
	}

	happy := true
	for i, c := range cases {
		if 0 < *bench {
			benchmark(c, *bench, logger)
		}

		bss, err := match.Match(c.Pattern, c.Message, match.Bindings(c.Bindings))
		if err != nil {
			return false, fmt.Errorf("case %d: %w", i, err)
		}

		if c.Want == nil {
			js, err := json.Marshal(&bss)
			if err != nil {
				return false, err
			}
			fmt.Fprintf(out, "%s\n", js)
			continue
		}

		ok := Same(c.Want, bss, *verbose, out)
		if !ok {
			happy = false
		}
		if c.Doc != "" {
			fmt.Fprintf(out, "%s: %v\n", c.Doc, ok)
		} else {
			fmt.Fprintf(out, "%v\n", ok)
		}
	}
	return happy, nil
}

func benchmark(c *Case, n int, logger *slog.Logger) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	allocs := stats.TotalAlloc
	then := time.Now()
	for i := 0; i < n; i++ {
		if _, err := match.Match(c.Pattern, c.Message, match.Bindings(c.Bindings)); err != nil {
			break
		}
	}
	elapsed := time.Since(then)

	runtime.ReadMemStats(&stats)
	logger.Info("bench",
		"iterations", n,
		"meanNs", elapsed.Nanoseconds()/int64(n),
		"meanBytes", (stats.TotalAlloc-allocs)/uint64(n))
}

// Same checks that every wanted binding set appears in what we got
// and that nothing else did.
func Same(want []map[string]interface{}, have []match.Bindings, verbose bool, out io.Writer) bool {
	if len(want) != len(have) {
		if verbose {
			fmt.Fprintf(out, "want %d binding sets, have %d\n", len(want), len(have))
		}
		return false
	}
WANTED:
	for _, w := range want {
		for _, h := range have {
			if Subset(w, h, verbose, out) && Subset(h, w, false, out) {
				continue WANTED
			}
		}
		return false
	}
	return true
}

// Subset checks that every binding in x is also in y.
//
// Uses reflect.DeepEqual to do the hard work.
func Subset(x, y map[string]interface{}, verbose bool, out io.Writer) bool {
	for p, bx := range x {
		by, have := y[p]
		if !have {
			return false
		}
		if !reflect.DeepEqual(normalize(bx), normalize(by)) {
			if verbose {
				xjs, _ := json.Marshal(&bx)
				yjs, _ := json.Marshal(&by)
				fmt.Fprintf(out, "disagreement at %s: %s != %s\n", p, xjs, yjs)
			}
			return false
		}
	}
	return true
}

// normalize makes numbers comparable whatever their Go type.
func normalize(x interface{}) interface{} {
	js, err := json.Marshal(&x)
	if err != nil {
		return x
	}
	var y interface{}
	if err := json.Unmarshal(js, &y); err != nil {
		return x
	}
	return y
}
