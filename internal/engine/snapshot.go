package engine

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
)

// Snapshot is the result of one completed pass: the items the pass saw and
// the ranked matches among them. The data is immutable, but a snapshot is
// only readable while it is the engine's latest one; once a newer pass is
// published or the engine is closed, readers get ErrStaleSnapshot or
// ErrEngineClosed.
type Snapshot[T any] struct {
	owner      *Engine[T]
	generation uint64
	items      []Item[T]
	matches    []Match
}

// Matched is a ranked match resolved to its item.
type Matched[T any] struct {
	Rank  uint32
	Score uint32
	Index uint32
	Item  Item[T]
}

// Generation identifies the pass that produced the snapshot.
func (s *Snapshot[T]) Generation() uint64 {
	return s.generation
}

// ItemCount is the number of items the snapshot covers.
func (s *Snapshot[T]) ItemCount() uint32 {
	return uint32(len(s.items))
}

// MatchedItemCount is the number of matched items. It never exceeds
// ItemCount.
func (s *Snapshot[T]) MatchedItemCount() uint32 {
	return uint32(len(s.matches))
}

// Valid returns nil while the snapshot may be read.
func (s *Snapshot[T]) Valid() error {
	if s.owner.closed.Load() {
		return apperrors.ErrEngineClosed
	}
	if current := s.owner.generation.Load(); current != s.generation {
		return fmt.Errorf("%w: generation %d, engine at %d", apperrors.ErrStaleSnapshot, s.generation, current)
	}
	return nil
}

// GetItem returns the item at a store index.
func (s *Snapshot[T]) GetItem(index uint32) (Item[T], error) {
	if err := s.Valid(); err != nil {
		return Item[T]{}, err
	}
	if index >= s.ItemCount() {
		return Item[T]{}, apperrors.OutOfRange("item index", index, s.ItemCount())
	}
	return s.items[index], nil
}

// GetMatchedItem returns the match at rank, best first.
func (s *Snapshot[T]) GetMatchedItem(rank uint32) (Matched[T], error) {
	if err := s.Valid(); err != nil {
		return Matched[T]{}, err
	}
	if rank >= s.MatchedItemCount() {
		return Matched[T]{}, apperrors.OutOfRange("match rank", rank, s.MatchedItemCount())
	}
	return s.resolve(rank), nil
}

// MatchedRange calls fn for each match in the half-open rank range
// [start, end), in rank order, until fn returns false.
func (s *Snapshot[T]) MatchedRange(start, end uint32, fn func(Matched[T]) bool) error {
	if err := s.Valid(); err != nil {
		return err
	}
	if start > end {
		return apperrors.OutOfRange("range start", start, end)
	}
	if end > s.MatchedItemCount() {
		return apperrors.OutOfRange("range end", end, s.MatchedItemCount())
	}
	for rank := start; rank < end; rank++ {
		if !fn(s.resolve(rank)) {
			break
		}
	}
	return nil
}

// Matches returns a copy of the ranked match list.
func (s *Snapshot[T]) Matches() ([]Match, error) {
	if err := s.Valid(); err != nil {
		return nil, err
	}
	out := make([]Match, len(s.matches))
	copy(out, s.matches)
	return out, nil
}

// MatchedIdentity returns the identity and score of the match at rank.
func (s *Snapshot[T]) MatchedIdentity(rank uint32) (uint32, uint32, error) {
	if err := s.Valid(); err != nil {
		return 0, 0, err
	}
	if rank >= s.MatchedItemCount() {
		return 0, 0, apperrors.OutOfRange("match rank", rank, s.MatchedItemCount())
	}
	m := s.matches[rank]
	return s.owner.identity(m.Index, s.items[m.Index].Data), m.Score, nil
}

func (s *Snapshot[T]) resolve(rank uint32) Matched[T] {
	m := s.matches[rank]
	return Matched[T]{
		Rank:  rank,
		Score: m.Score,
		Index: m.Index,
		Item:  s.items[m.Index],
	}
}
