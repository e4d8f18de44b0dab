package logs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is a log record kept in memory by Ring.
type Entry struct {
	TimeStamp time.Time  `json:"timestamp"`
	Level     slog.Level `json:"level"`
	Message   string     `json:"message"`
}

type ringBuffer struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
}

// Ring is a slog.Handler that keeps the last maxSize records in memory and
// forwards every record to an optional next handler.
//
// Handlers derived with WithAttrs/WithGroup share the same buffer.
type Ring struct {
	buf   *ringBuffer
	level slog.Leveler
	next  slog.Handler
}

// level: minimum level to record (e.g. slog.LevelInfo)
//
// maxSize: maximum number of entries kept in memory
//
// next: handler to forward to, may be nil
func NewRing(maxSize int, level slog.Leveler, next slog.Handler) *Ring {
	if maxSize < 1 {
		maxSize = 1
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &Ring{
		buf: &ringBuffer{
			entries: make([]Entry, 0, maxSize),
			maxSize: maxSize,
		},
		level: level,
		next:  next,
	}
}

func (r *Ring) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= r.level.Level() {
		return true
	}
	return r.next != nil && r.next.Enabled(ctx, level)
}

// Handle records rec when it passes the ring's level and forwards it to next.
func (r *Ring) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= r.level.Level() {
		r.buf.add(Entry{
			TimeStamp: rec.Time,
			Level:     rec.Level,
			Message:   rec.Message,
		})
	}
	if r.next != nil && r.next.Enabled(ctx, rec.Level) {
		return r.next.Handle(ctx, rec)
	}
	return nil
}

func (r *Ring) WithAttrs(attrs []slog.Attr) slog.Handler {
	if r.next == nil {
		return r
	}
	return &Ring{buf: r.buf, level: r.level, next: r.next.WithAttrs(attrs)}
}

func (r *Ring) WithGroup(name string) slog.Handler {
	if r.next == nil {
		return r
	}
	return &Ring{buf: r.buf, level: r.level, next: r.next.WithGroup(name)}
}

// GetLast returns up to n most recent entries, oldest first.
func (r *Ring) GetLast(n int) []Entry {
	return r.buf.last(n)
}

func (b *ringBuffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.maxSize {
		// remove oldest entry (ring behavior)
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, e)
}

func (b *ringBuffer) last(n int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > len(b.entries) {
		n = len(b.entries)
	}
	if n < 0 {
		n = 0
	}

	start := len(b.entries) - n
	out := make([]Entry, n)
	copy(out, b.entries[start:])
	return out
}
