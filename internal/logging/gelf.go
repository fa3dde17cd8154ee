package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// MessageWriter sends one GELF message. *gelf.Writer satisfies it.
type MessageWriter interface {
	WriteMessage(m *gelf.Message) error
}

// GelfHandler is a slog.Handler that ships records to a Graylog server.
type GelfHandler struct {
	w        MessageWriter
	level    slog.Leveler
	host     string
	facility string
	fields   map[string]any
	group    string
}

// NewGelfHandler dials addr over UDP and returns a handler writing GELF messages.
func NewGelfHandler(addr, facility string, level string) (*GelfHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("dialing graylog at %s: %w", addr, err)
	}
	w.Facility = facility
	return NewGelfHandlerWithWriter(w, facility, level), nil
}

// NewGelfHandlerWithWriter wraps an existing message writer.
func NewGelfHandlerWithWriter(w MessageWriter, facility string, level string) *GelfHandler {
	host, _ := os.Hostname()
	return &GelfHandler{
		w:        w,
		level:    parseLevel(level),
		host:     host,
		facility: facility,
	}
}

// Enabled reports whether the handler accepts the level.
func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle converts the record to a GELF message and sends it. Attributes
// become additional fields, prefixed with an underscore.
func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, len(h.fields)+r.NumAttrs())
	for k, v := range h.fields {
		extra[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		extra["_"+h.key(a.Key)] = a.Value.Resolve().Any()
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return h.w.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(ts.UnixNano()) / float64(time.Second),
		Level:    gelfLevel(r.Level),
		Facility: h.facility,
		Extra:    extra,
	})
}

// WithAttrs returns a handler that adds attrs to every message.
func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = make(map[string]any, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		clone.fields[k] = v
	}
	for _, a := range attrs {
		clone.fields["_"+h.key(a.Key)] = a.Value.Resolve().Any()
	}
	return &clone
}

// WithGroup returns a handler that prefixes later attribute keys with name.
func (h *GelfHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.key(name)
	return &clone
}

func (h *GelfHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// gelfLevel maps slog levels onto syslog severities.
func gelfLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return gelf.LOG_ERR
	case l >= slog.LevelWarn:
		return gelf.LOG_WARNING
	case l >= slog.LevelInfo:
		return gelf.LOG_INFO
	default:
		return gelf.LOG_DEBUG
	}
}
