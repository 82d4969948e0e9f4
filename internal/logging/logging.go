// Package logging builds the slog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// TimeFormat is the timestamp layout of the text handler.
const TimeFormat = "2006-01-02 15:04:05.000Z07:00"

// errorColor is the ANSI color used for error attributes.
const errorColor = 9

// Supported handler formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel parses debug, info, warn (or warning) and error, ignoring case.
func ParseLevel(input string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q (allowed: debug, info, warn, error)", input)
	}
}

// ParseFormat parses text or json, ignoring case.
func ParseFormat(input string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported log format %q (allowed: %s, %s)", input, FormatText, FormatJSON)
	}
}

// New returns a logger writing to w at level in the given format. Text output
// is colored only when w is a terminal.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  TimeFormat,
		NoColor:     !isTerminal(w),
		ReplaceAttr: colorErrors,
	}))
}

func colorErrors(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindAny {
		if _, ok := a.Value.Any().(error); ok {
			return tint.Attr(errorColor, a)
		}
	}
	return a
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// FromStrings parses level and format and builds the logger.
func FromStrings(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return New(w, lvl, f), nil
}
