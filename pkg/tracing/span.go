// Package tracing records in-process span trees for a search request. Spans
// nest through the context and the root logs the whole tree via slog when
// it ends.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
)

type contextKey struct{}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	Err       error

	parent *Span
	mu     sync.Mutex
}

// Start opens a span. Without a parent span in ctx it becomes a root whose
// trace ID is the request ID, when one is set.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	if parent := FromContext(ctx); parent != nil {
		span.parent = parent
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = logger.RequestID(ctx)
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// End records the duration and, for a root span, logs the tree at debug
// level, or at warn level when any span failed.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
	if s.parent == nil {
		s.log(slog.Default())
	}
}

// Fail marks the span as failed. Nil errors are ignored.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// FromContext extracts the current Span from ctx, or nil if none.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// Run wraps fn in a child span named name.
func Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := Start(ctx, name)
	err := fn(ctx)
	span.Fail(err)
	span.End()
	return err
}

func (s *Span) failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return true
	}
	for _, c := range s.Children {
		if c.failed() {
			return true
		}
	}
	return false
}

func (s *Span) log(l *slog.Logger) {
	level := slog.LevelDebug
	if s.failed() {
		level = slog.LevelWarn
	}
	s.logRecursive(l.With("component", "tracing"), level, 0)
}

func (s *Span) logRecursive(l *slog.Logger, level slog.Level, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	l.Log(context.Background(), level, "span", attrs...)
	for _, child := range children {
		child.logRecursive(l, level, depth+1)
	}
}
