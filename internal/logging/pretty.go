package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Compile-time interface check.
var _ slog.Handler = (*PrettyHandler)(nil)

// PrettyHandler writes one colored line per record. The level picks the
// color of the message; attributes follow it as dimmed key=val pairs, with
// file paths highlighted. Attributes from WithAttrs and WithGroup are kept
// as a prefix so they show on every line.
type PrettyHandler struct {
	out    io.Writer
	level  slog.Leveler
	mu     *sync.Mutex
	prefix string // accumulated "group.key=val " prefix
	group  string // dotted group path applied to inline attrs
}

// NewPrettyHandler returns a PrettyHandler that writes to out at the given level.
func NewPrettyHandler(out io.Writer, level slog.Leveler) *PrettyHandler {
	return &PrettyHandler{
		out:   out,
		level: level,
		mu:    &sync.Mutex{},
	}
}

var (
	_warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	_errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	_debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // dim
	_pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
)

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes the record's message with ANSI color based on level.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var msg string
	switch {
	case r.Level >= slog.LevelError:
		msg = _errorStyle.Render(r.Message)
	case r.Level >= slog.LevelWarn:
		msg = _warnStyle.Render(r.Message)
	case r.Level < slog.LevelInfo:
		msg = _debugStyle.Render(r.Message)
	default:
		msg = r.Message
	}

	var sb strings.Builder
	if h.prefix != "" {
		sb.WriteString(_debugStyle.Render(strings.TrimSpace(h.prefix)))
		sb.WriteByte(' ')
	}
	sb.WriteString(msg)
	r.Attrs(func(a slog.Attr) bool {
		sb.WriteByte(' ')
		sb.WriteString(renderAttr(h.group, a))
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func renderAttr(group string, a slog.Attr) string {
	key := group + a.Key
	val := a.Value.Resolve().String()
	if a.Key == "path" || a.Key == "root" {
		return _debugStyle.Render(key+"=") + _pathStyle.Render(val)
	}
	return _debugStyle.Render(key + "=" + val)
}

// WithAttrs returns a new handler that prepends the given attributes to messages.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	buf := make([]byte, 0, len(h.prefix)+len(attrs)*16)
	buf = append(buf, h.prefix...)
	for _, a := range attrs {
		buf = append(buf, h.group...)
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = append(buf, a.Value.Resolve().String()...)
		buf = append(buf, ' ')
	}
	return &PrettyHandler{out: h.out, level: h.level, mu: h.mu, prefix: string(buf), group: h.group}
}

// WithGroup returns a new handler that qualifies subsequent attributes with
// the group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PrettyHandler{out: h.out, level: h.level, mu: h.mu, prefix: h.prefix, group: h.group + name + "."}
}
