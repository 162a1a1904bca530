// Package util has a few odds and ends shared by the commands and
// couplings.
package util

import (
	"fmt"
	"log/slog"
)

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf logs via slog.Default().
var Logging = false

// Logf is a silly utility function that logs (at debug level) if
// Logging is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	slog.Default().Debug(fmt.Sprintf(format, args...))
}
