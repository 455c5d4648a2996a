// Package fuzzmatch is the host-facing API of the matching engine.
//
// A Handle owns one engine over byte payloads. Hosts push payloads, set the
// query with Reparse, call Drive periodically with a time budget and read
// results from the current Snapshot. Progress is reported through a
// callback that runs on a dedicated goroutine, never inside Drive, and
// through the channel returned by Notify.
package fuzzmatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/pattern"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
)

// Entry is a stored payload with its identity. In anonymous mode the
// identity is the store index.
type Entry struct {
	ID      uint32
	Payload []byte
}

// Text returns the payload as a string.
func (e Entry) Text() string {
	return string(e.Payload)
}

type options struct {
	name     string
	identity bool
	workers  int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Handle.
type Option func(*options)

// WithIdentity makes pushed ids the join identity of each item. Without it
// the store index is used and ids passed to Push are ignored.
func WithIdentity() Option {
	return func(o *options) { o.identity = true }
}

// WithWorkers sets the scoring goroutine limit. The default is 1.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithName labels logs and metrics of the handle.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Handle is one engine instance. All methods are safe for concurrent use,
// but onProgress must not block for long and Destroy must be the last call.
type Handle struct {
	eng      *engine.Engine[Entry]
	injector *engine.Injector[Entry]
	identity bool
	name     string
	logger   *slog.Logger
	metrics  *metrics.Metrics

	onProgress func()
	progress   chan struct{}
	notify     chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
	closed     atomic.Bool
}

// New creates a handle. onProgress may be nil.
func New(onProgress func(), opts ...Option) *Handle {
	o := options{name: "default", workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger.With("component", "fuzzmatch", "source", o.name)

	h := &Handle{
		identity:   o.identity,
		name:       o.name,
		logger:     logger,
		metrics:    o.metrics,
		onProgress: onProgress,
		progress:   make(chan struct{}, 1),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	cfg := engine.Config[Entry]{
		Workers:       o.workers,
		CaseMatching:  pattern.CaseIgnore,
		Normalization: pattern.NormalizeSmart,
		Notify:        func() { signal(h.progress) },
		Logger:        logger,
	}
	if o.identity {
		cfg.Identity = func(_ uint32, e Entry) uint32 { return e.ID }
	}
	if o.metrics != nil {
		cfg.Observer = &observer{m: o.metrics, source: o.name}
	}
	h.eng = engine.New(cfg)
	h.injector = h.eng.Injector()

	h.wg.Add(1)
	go h.dispatch()
	return h
}

func (h *Handle) dispatch() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case <-h.progress:
			if h.onProgress != nil {
				h.onProgress()
			}
			signal(h.notify)
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Name returns the handle label.
func (h *Handle) Name() string {
	return h.name
}

// Notify returns a channel that receives after scoring passes complete.
// Signals coalesce.
func (h *Handle) Notify() <-chan struct{} {
	return h.notify
}

// Destroy stops background work and releases all items. Every later call
// on the handle or its snapshots returns ErrEngineClosed.
func (h *Handle) Destroy() error {
	if !h.closed.CompareAndSwap(false, true) {
		return apperrors.ErrEngineClosed
	}
	err := h.eng.Close()
	close(h.done)
	h.wg.Wait()
	h.logger.Info("engine destroyed")
	return err
}

// Drive runs the scoring pipeline for at most budgetMs milliseconds.
func (h *Handle) Drive(budgetMs uint32) (engine.Status, error) {
	if h.closed.Load() {
		return engine.Status{}, apperrors.ErrEngineClosed
	}
	start := time.Now()
	st, err := h.eng.Drive(time.Duration(budgetMs) * time.Millisecond)
	if h.metrics != nil {
		h.metrics.DriveDuration.WithLabelValues(h.name).Observe(time.Since(start).Seconds())
	}
	return st, err
}

// Settle drives in steps of stepMs until no work is left or ctx is done,
// in which case it returns ErrTimeout.
func (h *Handle) Settle(ctx context.Context, stepMs uint32) (engine.Status, error) {
	if h.closed.Load() {
		return engine.Status{}, apperrors.ErrEngineClosed
	}
	start := time.Now()
	st, err := h.eng.DriveUntilIdle(ctx, time.Duration(stepMs)*time.Millisecond)
	if h.metrics != nil {
		h.metrics.DriveDuration.WithLabelValues(h.name).Observe(time.Since(start).Seconds())
	}
	return st, err
}

func transform(e Entry) (string, error) {
	if !utf8.Valid(e.Payload) {
		return "", fmt.Errorf("payload of %d bytes: %w", len(e.Payload), apperrors.ErrInvalidUTF8)
	}
	return string(e.Payload), nil
}

// Push stores a copy of payload. id is the join identity when the handle
// was created WithIdentity and is ignored otherwise. A payload that is not
// valid UTF-8 is still stored but never matches a non-empty pattern.
func (h *Handle) Push(payload []byte, id uint32) error {
	if h.closed.Load() {
		return apperrors.ErrEngineClosed
	}
	h.injector.Push(Entry{ID: id, Payload: bytes.Clone(payload)}, transform)
	return nil
}

// PushAll pushes payloads one by one. ids must be as long as payloads when
// the handle carries identities; in anonymous mode it may be nil.
func (h *Handle) PushAll(payloads [][]byte, ids []uint32) error {
	if h.closed.Load() {
		return apperrors.ErrEngineClosed
	}
	if (h.identity || ids != nil) && len(ids) != len(payloads) {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"%d payloads but %d ids", len(payloads), len(ids))
	}
	entries := make([]Entry, len(payloads))
	for i, p := range payloads {
		entries[i] = Entry{Payload: bytes.Clone(p)}
		if ids != nil {
			entries[i].ID = ids[i]
		}
	}
	h.injector.PushAll(entries, transform)
	return nil
}

// Reparse sets the query. appendHint asserts that the previous query is a
// prefix of the new one; a wrong hint is not detected and can hide matches
// until the next full rescore.
func (h *Handle) Reparse(query []byte, appendHint bool) error {
	if h.closed.Load() {
		return apperrors.ErrEngineClosed
	}
	if !utf8.Valid(query) {
		return fmt.Errorf("pattern: %w", apperrors.ErrInvalidUTF8)
	}
	_, err := h.eng.Reparse(string(query), appendHint)
	return err
}

// Query returns the current pattern text.
func (h *Handle) Query() string {
	return h.eng.Pattern()
}

// ItemCount is the number of pushed items, scored or not.
func (h *Handle) ItemCount() uint32 {
	return h.eng.ItemCount()
}

// Snapshot returns the current snapshot. It stays readable until the next
// Drive publishes a newer one.
func (h *Handle) Snapshot() (*Snapshot, error) {
	if h.closed.Load() {
		return nil, apperrors.ErrEngineClosed
	}
	snap, err := h.eng.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Snapshot{h: h, snap: snap}, nil
}
