// Package executor runs a fuzzy query against one or more sources: it
// reparses each source, drives the engines until their passes settle, then
// reads the ranking directly or joins it across sources by identity.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/fuzzmatch"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/tracing"
)

// Request names the query, the sources in join order (none means all) and
// the number of hits wanted.
type Request struct {
	Query   string
	Sources []string
	Limit   int
}

// Hit is one ranked candidate. ID is the join identity, or the store index
// for anonymous sources.
type Hit struct {
	Source string `json:"source"`
	ID     uint32 `json:"id"`
	Score  uint32 `json:"score"`
	Rank   uint32 `json:"rank"`
	Text   string `json:"text"`
}

type SearchResult struct {
	Query       string            `json:"query"`
	Sources     []string          `json:"sources"`
	Matched     int               `json:"matched"`
	Hits        []Hit             `json:"hits"`
	Generations map[string]uint64 `json:"generations"`
}

const defaultLimit = 10

type Executor struct {
	registry *registry.Registry
	timeout  time.Duration
	stepMs   uint32
	logger   *slog.Logger
}

func New(reg *registry.Registry, searchCfg config.SearchConfig, engineCfg config.EngineConfig) *Executor {
	return &Executor{
		registry: reg,
		timeout:  searchCfg.Timeout,
		stepMs:   uint32(max(engineCfg.DriveBudget.Milliseconds(), 1)),
		logger:   slog.Default().With("component", "query-executor"),
	}
}

// Resolve returns the canonical source names of req, in join order.
func (e *Executor) Resolve(req Request) ([]*registry.Source, error) {
	return e.registry.Resolve(req.Sources)
}

// Execute runs req. Sources are locked for the whole cycle so concurrent
// queries on a source serialize instead of staling each other's snapshots.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	sources, err := e.Resolve(req)
	if err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	ctx, span := tracing.Start(ctx, "search")
	span.SetAttr("query", req.Query)
	span.SetAttr("sources", len(sources))
	defer span.End()

	unlock := registry.LockAll(sources)
	defer unlock()

	err = tracing.Run(ctx, "reparse", func(context.Context) error {
		for _, src := range sources {
			if err := src.SetQuery(req.Query); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.Fail(err)
		return nil, err
	}

	err = tracing.Run(ctx, "drive", func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, e.timeout, "settle", func(ctx context.Context) error {
			return e.settle(ctx, sources)
		})
	})
	if err != nil {
		span.Fail(err)
		return nil, err
	}

	result := &SearchResult{
		Query:       req.Query,
		Sources:     make([]string, len(sources)),
		Hits:        []Hit{},
		Generations: make(map[string]uint64, len(sources)),
	}
	snaps := make([]*fuzzmatch.Snapshot, len(sources))
	for i, src := range sources {
		snap, err := src.Handle.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		snaps[i] = snap
		result.Sources[i] = src.Name
		result.Generations[src.Name] = snap.Generation()
	}

	if len(snaps) == 1 {
		err = e.readSingle(snaps[0], req.Limit, result)
	} else {
		err = tracing.Run(ctx, "join", func(context.Context) error {
			return e.readJoined(snaps, req.Limit, result)
		})
	}
	if err != nil {
		span.Fail(err)
		return nil, err
	}

	span.SetAttr("matched", result.Matched)
	e.logger.Debug("query executed",
		"query", req.Query,
		"sources", result.Sources,
		"matched", result.Matched,
		"returned", len(result.Hits),
	)
	return result, nil
}

// settle drives every source concurrently until idle.
func (e *Executor) settle(ctx context.Context, sources []*registry.Source) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			if _, err := src.Handle.Settle(ctx, e.stepMs); err != nil {
				return fmt.Errorf("settling %s: %w", src.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Executor) readSingle(snap *fuzzmatch.Snapshot, limit int, result *SearchResult) error {
	matched := snap.MatchedItemCount()
	result.Matched = int(matched)
	end := min(uint32(limit), matched)
	name := snap.Handle().Name()
	return snap.MatchedRange(0, end, func(m fuzzmatch.Matched) bool {
		result.Hits = append(result.Hits, Hit{
			Source: name,
			ID:     m.Entry.ID,
			Score:  m.Score,
			Rank:   m.Rank,
			Text:   m.Entry.Text(),
		})
		return true
	})
}

func (e *Executor) readJoined(snaps []*fuzzmatch.Snapshot, limit int, result *SearchResult) error {
	merged, err := fuzzmatch.JoinAll(snaps...)
	if err != nil {
		return err
	}
	defer merged.Release()

	result.Matched = merged.Len()
	for _, entry := range merged.Top(limit) {
		item, err := entry.Item()
		if err != nil {
			return err
		}
		result.Hits = append(result.Hits, Hit{
			Source: entry.Snapshot.Handle().Name(),
			ID:     entry.Identity,
			Score:  entry.Score,
			Rank:   entry.Rank,
			Text:   item.Entry.Text(),
		})
	}
	return nil
}
