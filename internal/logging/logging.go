// Package logging wires log/slog for the luabundle CLI and its libraries.
//
// Loggers travel in the context so library code never touches the global
// default. Every handler built here writes to the writer it is given; the
// CLI always passes stderr because stdout carries the bundle.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrUnknownFormat is returned when an unrecognized log format is requested.
var ErrUnknownFormat = errors.New("unknown log format")

// Supported log formats.
const (
	FormatAuto   = "auto"
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

type _ctxKey struct{}

// ContextWithLogger returns a new context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, _ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx. Without one it returns a
// logger that discards everything, so library calls stay silent unless a
// caller opted in.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(_ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return _discard
}

var _discard = slog.New(slog.DiscardHandler)

// ResolveFormat maps "auto" onto a concrete format based on whether the
// output is an interactive terminal.
func ResolveFormat(format string, isTTY bool) string {
	if format != FormatAuto {
		return format
	}
	if isTTY {
		return FormatPretty
	}
	return FormatText
}

// NewLogger creates a logger for the given format and level.
// Supported formats: "pretty", "json", "text".
func NewLogger(out io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case FormatText:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	case FormatPretty:
		handler = NewPrettyHandler(out, level)
	default:
		return nil, fmt.Errorf("unknown format %q: %w", format, ErrUnknownFormat)
	}
	return slog.New(handler), nil
}
