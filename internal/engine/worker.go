package engine

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/pattern"
)

const chunkSize = 1024

// PassKind tells which items a scoring pass looks at.
type PassKind int

const (
	// PassFull rescores every stored item.
	PassFull PassKind = iota
	// PassNarrow rescores the previous matches plus items stored since.
	PassNarrow
	// PassIncremental keeps the previous matches and scores only items
	// stored since the last pass.
	PassIncremental
)

func (k PassKind) String() string {
	switch k {
	case PassFull:
		return "full"
	case PassNarrow:
		return "narrow"
	case PassIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

// Match is a scored item reference.
type Match struct {
	Score uint32
	Index uint32
}

// compareMatches orders by score descending, then store index ascending.
func compareMatches(a, b Match) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// pass is one background scoring run. Its fields other than done are owned
// by the pass goroutine until done is closed.
type pass[T any] struct {
	kind    PassKind
	started time.Time
	done    chan struct{}

	items      []Item[T]
	pattern    *pattern.Pattern
	candidates *roaring.Bitmap
	previous   []Match

	matches []Match
	matched *roaring.Bitmap
	err     error
}

func newPass[T any](kind PassKind, items []Item[T], pat *pattern.Pattern, prev *Snapshot[T], prevMatched *roaring.Bitmap) *pass[T] {
	n := uint64(len(items))
	scored := uint64(len(prev.items))
	candidates := roaring.New()
	switch kind {
	case PassFull:
		candidates.AddRange(0, n)
	case PassNarrow:
		candidates.Or(prevMatched)
		candidates.AddRange(scored, n)
	case PassIncremental:
		candidates.AddRange(scored, n)
	}
	p := &pass[T]{
		kind:       kind,
		started:    time.Now(),
		done:       make(chan struct{}),
		items:      items,
		pattern:    pat,
		candidates: candidates,
	}
	if kind == PassIncremental {
		p.previous = prev.matches
	}
	return p
}

// run scores the candidates with at most workers goroutines. The caller
// closes done.
func (p *pass[T]) run(ctx context.Context, workers int) {
	indexes := p.candidates.ToArray()
	chunks := (len(indexes) + chunkSize - 1) / chunkSize
	results := make([][]Match, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := 0; c < chunks; c++ {
		lo := c * chunkSize
		hi := min(lo+chunkSize, len(indexes))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found := make([]Match, 0, hi-lo)
			for _, idx := range indexes[lo:hi] {
				score, ok := p.pattern.Match(p.items[idx].hay)
				if ok {
					found = append(found, Match{Score: score, Index: idx})
				}
			}
			results[c] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.err = err
		return
	}

	total := len(p.previous)
	for _, r := range results {
		total += len(r)
	}
	matches := make([]Match, 0, total)
	matches = append(matches, p.previous...)
	for _, r := range results {
		matches = append(matches, r...)
	}
	slices.SortFunc(matches, compareMatches)

	matched := roaring.New()
	for _, m := range matches {
		matched.Add(m.Index)
	}
	p.matches = matches
	p.matched = matched
}
