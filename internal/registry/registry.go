// Package registry owns the named candidate sources of matchd. Each source
// is backed by its own fuzzmatch.Handle, so sources score independently and
// results across them are combined with a join.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/fuzzmatch"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
)

// Source is one named engine. A query cycle (reparse, drive, read) must hold
// the source lock so that no other cycle publishes a snapshot underneath it.
type Source struct {
	Name     string
	Kind     string
	Identity bool
	Handle   *fuzzmatch.Handle

	mu        sync.Mutex
	lastQuery string

	pushMu sync.Mutex
	ids    *roaring.Bitmap
}

// PushAll adds items to the source. Identity sources refuse an id they
// already hold, or one repeated within the batch, with ErrDuplicateIdentity
// and push nothing: a repeated identity would make every later join fail.
// Anonymous sources ignore ids.
func (s *Source) PushAll(payloads [][]byte, ids []uint32) error {
	if !s.Identity {
		return s.Handle.PushAll(payloads, nil)
	}
	if len(ids) != len(payloads) {
		return s.Handle.PushAll(payloads, ids)
	}

	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	batch := roaring.New()
	for _, id := range ids {
		if s.ids.Contains(id) || !batch.CheckedAdd(id) {
			return apperrors.Newf(apperrors.ErrDuplicateIdentity, http.StatusConflict,
				"source %s already holds identity %d", s.Name, id)
		}
	}
	if err := s.Handle.PushAll(payloads, ids); err != nil {
		return err
	}
	s.ids.Or(batch)
	return nil
}

// Lock acquires the query-cycle lock of the source.
func (s *Source) Lock() { s.mu.Lock() }

// Unlock releases the query-cycle lock.
func (s *Source) Unlock() { s.mu.Unlock() }

// SetQuery reparses the handle with query. The append hint is passed when
// query extends the previous query of this source. Callers hold the lock.
func (s *Source) SetQuery(query string) error {
	hint := s.lastQuery != "" && len(query) > len(s.lastQuery) && strings.HasPrefix(query, s.lastQuery)
	if err := s.Handle.Reparse([]byte(query), hint); err != nil {
		return fmt.Errorf("source %s: %w", s.Name, err)
	}
	s.lastQuery = query
	return nil
}

// Stats summarises a source for the sources endpoint.
type Stats struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Identity   bool   `json:"identity"`
	Items      uint32 `json:"items"`
	Matched    uint32 `json:"matched"`
	Query      string `json:"query"`
	Generation uint64 `json:"generation"`
}

// Stats reads the current snapshot without driving the engine.
func (s *Source) Stats() (Stats, error) {
	st := Stats{Name: s.Name, Kind: s.Kind, Identity: s.Identity, Items: s.Handle.ItemCount(), Query: s.Handle.Query()}
	snap, err := s.Handle.Snapshot()
	if err != nil {
		return st, err
	}
	st.Matched = snap.MatchedItemCount()
	st.Generation = snap.Generation()
	return st, nil
}

// Registry maps source names to their engines.
type Registry struct {
	sources map[string]*Source
	mu      sync.RWMutex
	engine  config.EngineConfig
	logger  *slog.Logger
}

// New creates one handle per configured source.
func New(sources []config.SourceConfig, engineCfg config.EngineConfig, m *metrics.Metrics) (*Registry, error) {
	r := &Registry{
		sources: make(map[string]*Source, len(sources)),
		engine:  engineCfg,
		logger:  slog.Default().With("component", "registry"),
	}
	for _, sc := range sources {
		if _, dup := r.sources[sc.Name]; dup {
			r.closeAll()
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "duplicate source %q", sc.Name)
		}
		opts := []fuzzmatch.Option{
			fuzzmatch.WithName(sc.Name),
			fuzzmatch.WithWorkers(engineCfg.Workers),
		}
		if sc.Identity {
			opts = append(opts, fuzzmatch.WithIdentity())
		}
		if m != nil {
			opts = append(opts, fuzzmatch.WithMetrics(m))
		}
		r.sources[sc.Name] = &Source{
			Name:     sc.Name,
			Kind:     sc.Kind,
			Identity: sc.Identity,
			Handle:   fuzzmatch.New(nil, opts...),
			ids:      roaring.New(),
		}
		r.logger.Info("source initialized", "source", sc.Name, "kind", sc.Kind, "identity", sc.Identity)
	}
	r.logger.Info("registry ready", "sources", len(r.sources), "workers", engineCfg.Workers)
	return r, nil
}

// Get returns the named source or ErrUnknownSource.
func (r *Registry) Get(name string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownSource, http.StatusNotFound, "source %q is not configured", name)
	}
	return src, nil
}

// Resolve returns the named sources without duplicates, in the order first
// named. No names means every source, ordered by name.
func (r *Registry) Resolve(names []string) ([]*Source, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]*Source, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		src, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// All returns every source ordered by name.
func (r *Registry) All() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Source, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LockAll locks the given sources in name order and returns the unlock.
func LockAll(sources []*Source) (unlock func()) {
	ordered := append([]*Source(nil), sources...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	for _, src := range ordered {
		src.Lock()
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].Unlock()
		}
	}
}

// Run keeps every source's pipeline moving so that items arriving from
// feeds are scored between queries. Sources busy with a query are skipped
// for that tick.
func (r *Registry) Run(ctx context.Context) {
	interval := r.engine.PollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	budget := uint32(max(r.engine.DriveBudget.Milliseconds(), 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, src := range r.All() {
				if !src.mu.TryLock() {
					continue
				}
				if _, err := src.Handle.Drive(budget); err != nil {
					r.logger.Debug("background drive failed", "source", src.Name, "error", err)
				}
				src.mu.Unlock()
			}
		}
	}
}

// Close destroys every source engine.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Registry) closeAll() error {
	var firstErr error
	for name, src := range r.sources {
		if err := src.Handle.Destroy(); err != nil {
			r.logger.Error("close failed", "source", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.sources = make(map[string]*Source)
	return firstErr
}
