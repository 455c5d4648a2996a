package fuzzmatch

import (
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/engine"
)

// Snapshot is a read view of one completed scoring pass. Reads fail with
// ErrStaleSnapshot once a later Drive publishes a newer pass and with
// ErrEngineClosed after Destroy.
type Snapshot struct {
	h    *Handle
	snap *engine.Snapshot[Entry]
}

// Matched is a ranked match.
type Matched struct {
	Rank  uint32
	Score uint32
	Entry Entry
}

// Handle returns the handle that produced the snapshot.
func (s *Snapshot) Handle() *Handle {
	return s.h
}

// Generation identifies the scoring pass behind the snapshot.
func (s *Snapshot) Generation() uint64 {
	return s.snap.Generation()
}

func (s *Snapshot) ItemCount() uint32 {
	return s.snap.ItemCount()
}

func (s *Snapshot) MatchedItemCount() uint32 {
	return s.snap.MatchedItemCount()
}

// Valid returns nil while the snapshot is current.
func (s *Snapshot) Valid() error {
	return s.snap.Valid()
}

// GetItem returns the entry at a store index.
func (s *Snapshot) GetItem(index uint32) (Entry, error) {
	item, err := s.snap.GetItem(index)
	if err != nil {
		return Entry{}, err
	}
	return s.entry(index, item), nil
}

// GetMatchedItem returns the match at rank, best first.
func (s *Snapshot) GetMatchedItem(rank uint32) (Matched, error) {
	m, err := s.snap.GetMatchedItem(rank)
	if err != nil {
		return Matched{}, err
	}
	return s.matched(m), nil
}

// MatchedRange calls fn for ranks in [start, end) until fn returns false.
func (s *Snapshot) MatchedRange(start, end uint32, fn func(Matched) bool) error {
	return s.snap.MatchedRange(start, end, func(m engine.Matched[Entry]) bool {
		return fn(s.matched(m))
	})
}

// Matches returns a copy of the ranked (score, store index) list.
func (s *Snapshot) Matches() ([]engine.Match, error) {
	return s.snap.Matches()
}

// MatchedIdentity returns the identity and score at rank.
func (s *Snapshot) MatchedIdentity(rank uint32) (uint32, uint32, error) {
	return s.snap.MatchedIdentity(rank)
}

func (s *Snapshot) matched(m engine.Matched[Entry]) Matched {
	return Matched{
		Rank:  m.Rank,
		Score: m.Score,
		Entry: s.entry(m.Index, m.Item),
	}
}

func (s *Snapshot) entry(index uint32, item engine.Item[Entry]) Entry {
	e := item.Data
	if !s.h.identity {
		e.ID = index
	}
	return e
}
