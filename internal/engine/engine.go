// Package engine keeps a growing pool of items ranked against a pattern.
//
// Items are pushed through an Injector from any goroutine. Scoring runs in
// background passes that Drive starts and waits on for a bounded time; each
// completed pass publishes a new Snapshot and bumps the engine generation,
// which invalidates older snapshots.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/pattern"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
)

// IdentityFunc maps a stored item to the identity used when snapshots of
// different engines are joined.
type IdentityFunc[T any] func(index uint32, data T) uint32

// IndexIdentity uses the store index as identity.
func IndexIdentity[T any](index uint32, _ T) uint32 {
	return index
}

// Observer receives engine events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ItemInjected(transformFailed bool)
	PassCompleted(kind PassKind, items, matched int, elapsed time.Duration)
	Reparsed(status pattern.Status)
}

type nopObserver struct{}

func (nopObserver) ItemInjected(bool) {}

func (nopObserver) PassCompleted(PassKind, int, int, time.Duration) {}

func (nopObserver) Reparsed(pattern.Status) {}

// Config configures an Engine. The zero value is a single worker, index
// identity, ignore-case matching and smart normalization.
type Config[T any] struct {
	Workers       int
	Identity      IdentityFunc[T]
	CaseMatching  pattern.CaseMatching
	Normalization pattern.Normalization
	// Notify is called from the pass goroutine when a pass finishes. It
	// must not call back into the engine synchronously.
	Notify   func()
	Logger   *slog.Logger
	Observer Observer
}

// Status is the outcome of a Drive call.
type Status struct {
	// Changed is set when a new snapshot was published.
	Changed bool
	// Running is set when work remains: a pass outlived the budget or new
	// input arrived while it ran.
	Running bool
}

// Engine is safe for concurrent use.
type Engine[T any] struct {
	store    *store[T]
	workers  int
	identity IdentityFunc[T]
	notify   func()
	logger   *slog.Logger
	observer Observer

	caseMatching  pattern.CaseMatching
	normalization pattern.Normalization

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pattern  *pattern.Pattern
	snapshot *Snapshot[T]
	matched  *roaring.Bitmap
	running  *pass[T]

	generation atomic.Uint64
	closed     atomic.Bool
}

// New creates an engine with an empty pattern.
func New[T any](cfg Config[T]) *Engine[T] {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Identity == nil {
		cfg.Identity = IndexIdentity[T]
	}
	if cfg.Notify == nil {
		cfg.Notify = func() {}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine[T]{
		store:         newStore[T](),
		workers:       cfg.Workers,
		identity:      cfg.Identity,
		notify:        cfg.Notify,
		logger:        cfg.Logger.With("component", "engine"),
		observer:      cfg.Observer,
		caseMatching:  cfg.CaseMatching,
		normalization: cfg.Normalization,
		ctx:           ctx,
		cancel:        cancel,
		pattern:       pattern.New("", cfg.CaseMatching, cfg.Normalization),
		matched:       roaring.New(),
	}
	e.snapshot = &Snapshot[T]{owner: e}
	return e
}

// Injector returns the producer handle of the engine.
func (e *Engine[T]) Injector() *Injector[T] {
	return &Injector[T]{e: e}
}

// Reparse replaces the pattern. See pattern.Pattern.Reparse for the
// meaning of appendHint.
func (e *Engine[T]) Reparse(text string, appendHint bool) (pattern.Status, error) {
	if e.closed.Load() {
		return pattern.StatusUnchanged, apperrors.ErrEngineClosed
	}
	e.mu.Lock()
	status := e.pattern.Reparse(text, e.caseMatching, e.normalization, appendHint)
	e.mu.Unlock()
	e.observer.Reparsed(status)
	e.logger.Debug("pattern reparsed",
		"pattern", text,
		"append_hint", appendHint,
		"status", status.String(),
	)
	return status, nil
}

// Pattern returns the current pattern text.
func (e *Engine[T]) Pattern() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pattern.Text()
}

// Drive starts a pass if there is pending work and none is running, then
// waits for the running pass for at most budget. A pass that outlives the
// budget keeps running and is collected by a later Drive. Drive on an idle
// engine returns immediately and leaves the current snapshot valid.
func (e *Engine[T]) Drive(budget time.Duration) (Status, error) {
	if e.closed.Load() {
		return Status{}, apperrors.ErrEngineClosed
	}
	e.mu.Lock()
	p := e.running
	if p == nil {
		p = e.startPassLocked()
	}
	e.mu.Unlock()
	if p == nil {
		return Status{}, nil
	}

	if !wait(p.done, budget) {
		return Status{Running: true}, nil
	}
	changed, err := e.collect(p)
	if err != nil {
		return Status{}, err
	}
	return Status{Changed: changed, Running: e.pending()}, nil
}

// DriveUntilIdle drives until no work is left or ctx is done.
func (e *Engine[T]) DriveUntilIdle(ctx context.Context, step time.Duration) (Status, error) {
	var total Status
	for {
		st, err := e.Drive(step)
		if err != nil {
			return total, err
		}
		total.Changed = total.Changed || st.Changed
		total.Running = st.Running
		if !st.Running {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, apperrors.ErrTimeout
		}
	}
}

// Snapshot returns the latest published snapshot.
func (e *Engine[T]) Snapshot() (*Snapshot[T], error) {
	if e.closed.Load() {
		return nil, apperrors.ErrEngineClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot, nil
}

// ItemCount is the number of stored items, including ones not yet scored.
func (e *Engine[T]) ItemCount() uint32 {
	return e.store.len()
}

// Close stops any running pass and releases the store. Further calls on
// the engine or its snapshots return ErrEngineClosed.
func (e *Engine[T]) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return apperrors.ErrEngineClosed
	}
	e.cancel()
	e.mu.Lock()
	p := e.running
	e.mu.Unlock()
	if p != nil {
		<-p.done
	}

	e.mu.Lock()
	e.running = nil
	e.snapshot = &Snapshot[T]{owner: e}
	e.matched = roaring.New()
	e.mu.Unlock()
	e.store.reset()
	e.logger.Debug("engine closed")
	return nil
}

func (e *Engine[T]) startPassLocked() *pass[T] {
	items := e.store.view()
	prev := e.snapshot

	var kind PassKind
	switch status := e.pattern.TakeStatus(); {
	case status == pattern.StatusRescore:
		kind = PassFull
	case status == pattern.StatusUpdate:
		kind = PassNarrow
	case len(items) > len(prev.items):
		kind = PassIncremental
	default:
		return nil
	}

	p := newPass(kind, items, e.pattern.Clone(), prev, e.matched)
	e.running = p
	go func() {
		defer close(p.done)
		p.run(e.ctx, e.workers)
		if p.err == nil {
			e.notify()
		}
	}()
	return p
}

// collect publishes the result of a finished pass. It reports false when
// another Drive already collected it.
func (e *Engine[T]) collect(p *pass[T]) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running != p {
		return false, nil
	}
	e.running = nil
	if p.err != nil {
		if e.closed.Load() {
			return false, apperrors.ErrEngineClosed
		}
		return false, p.err
	}
	gen := e.generation.Add(1)
	e.snapshot = &Snapshot[T]{
		owner:      e,
		generation: gen,
		items:      p.items,
		matches:    p.matches,
	}
	e.matched = p.matched
	elapsed := time.Since(p.started)
	e.observer.PassCompleted(p.kind, len(p.items), len(p.matches), elapsed)
	e.logger.Debug("scoring pass published",
		"kind", p.kind.String(),
		"generation", gen,
		"candidates", p.candidates.GetCardinality(),
		"items", len(p.items),
		"matched", len(p.matches),
		"elapsed", elapsed,
	)
	return true, nil
}

// pending reports whether a Drive would have work to do.
func (e *Engine[T]) pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running != nil || e.pattern.Pending() != pattern.StatusUnchanged {
		return true
	}
	return e.store.len() > uint32(len(e.snapshot.items))
}

func wait(done <-chan struct{}, budget time.Duration) bool {
	if budget <= 0 {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
