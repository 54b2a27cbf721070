// Package devicelog bridges log/slog to the diagnostic UART and an
// in-memory ring of recent events. A remote telemetry push queue is out
// of scope here (no relay exists in this subsystem); what survives is
// the same shape: every log line goes to the
// console text handler, and INFO-and-above lines are additionally appended
// to a fixed-capacity ring the update manager's progress events (and any
// future console/telemetry link) can drain.
package devicelog

import (
	"context"
	"log/slog"
	"strings"
)

// ringCapacity bounds the ring's memory footprint to something reasonable
// for an MCU with limited RAM: a preallocated, fixed-size buffer.
const ringCapacity = 32

// Event is one retained log line.
type Event struct {
	Level   slog.Level
	Message string
}

// Ring is a fixed-capacity circular buffer of Events. The zero value is
// ready to use.
type Ring struct {
	buf  [ringCapacity]Event
	head int
	size int
}

// Push appends e, overwriting the oldest retained event once the ring is
// full.
func (r *Ring) Push(e Event) {
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// Drain returns every retained event, oldest first, and empties the ring.
func (r *Ring) Drain() []Event {
	out := make([]Event, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	r.size = 0
	r.head = 0
	return out
}

// Len reports how many events are currently retained.
func (r *Ring) Len() int { return r.size }

// Handler is a slog.Handler that writes to a text handler (normally wired
// to the diagnostic UART) and, for INFO and above, appends a compact
// rendering of the record to a Ring.
type Handler struct {
	text  slog.Handler
	ring  *Ring
	group string
}

// New wraps text (e.g. slog.NewTextHandler(uartWriter, opts)) with ring
// retention. ring may be nil to disable retention entirely.
func New(text slog.Handler, ring *Ring) *Handler {
	return &Handler{text: text, ring: ring}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.text.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	err := h.text.Handle(ctx, r)
	if h.ring != nil && r.Level >= slog.LevelInfo {
		h.ring.Push(Event{Level: r.Level, Message: h.render(r)})
	}
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{text: h.text.WithAttrs(attrs), ring: h.ring, group: h.group}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &Handler{text: h.text.WithGroup(name), ring: h.ring, group: group}
}

// render builds "group:msg key=val key2=val2", the same compact shape
// telemetry.buildTelemetryMessage produces, without that function's
// fixed-byte-buffer machinery (no OTLP transport here to size a wire
// message for).
func (h *Handler) render(r slog.Record) string {
	var b strings.Builder
	if h.group != "" {
		b.WriteString(h.group)
		b.WriteByte(':')
	}
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
		return true
	})
	return b.String()
}
