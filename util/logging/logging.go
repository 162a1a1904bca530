// Package logging builds the process logger: a text handler on a
// writer, an optional JSON file, and the systemd journal when
// running as a service, fanned out to one slog.Logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Options says where logs go.
type Options struct {
	// Level is "debug", "info", "warn" or "error".  Default is
	// "info".
	Level string `yaml:"level" json:"level"`

	// File, if not empty, receives JSON lines.
	File string `yaml:"file" json:"file"`

	// Journal enables the systemd journal handler.  When the
	// process runs as a systemd service, the text handler is
	// skipped.
	Journal bool `yaml:"journal" json:"journal"`
}

// ParseLevel maps a name to a slog.Level.  Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns the logger and a function that closes the log file
// (if any).
func New(w io.Writer, opts Options) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))
	hopts := &slog.HandlerOptions{Level: level}

	var (
		handlers []slog.Handler
		closer   = func() error { return nil }
	)

	service := opts.Journal && isSystemdService()

	var terminal slog.Handler
	if !service && w != nil {
		terminal = slog.NewTextHandler(w, hopts)
		handlers = append(handlers, terminal)
	}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, hopts))
		closer = f.Close
	}

	if opts.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			if terminal != nil {
				record := slog.NewRecord(time.Now(), slog.LevelWarn, "new systemd journal handler", 0)
				record.Add("error", err)
				_ = terminal.Handle(context.Background(), record)
			}
		} else {
			handlers = append(handlers, journal)
		}
	}

	if len(handlers) == 0 {
		return Discard(), closer, nil
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// Discard is a logger that logs nothing.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(string(content), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(strings.TrimSpace(parts[2])), ".service")
}
