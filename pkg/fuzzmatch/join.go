package fuzzmatch

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/join"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
)

// MergedEntry is one identity of a joined result, resolved to the snapshot
// and rank that won it.
type MergedEntry struct {
	Score    uint32
	Identity uint32
	Rank     uint32
	Snapshot *Snapshot
}

// Item resolves the entry to its stored payload.
func (e MergedEntry) Item() (Matched, error) {
	return e.Snapshot.GetMatchedItem(e.Rank)
}

// MergedList is the result of Join. Release drops its storage.
type MergedList struct {
	entries []join.Entry[*Snapshot]
}

// Join merges two snapshots with one entry per identity; see JoinAll.
func Join(a, b *Snapshot) (*MergedList, error) {
	return JoinAll(a, b)
}

// JoinAll merges snapshots from independent handles that share an identity
// space. The strictly higher score wins an identity and ties keep the
// earlier snapshot. Entries of the first snapshot keep their rank order and
// identities first seen later are appended in their snapshot's order. A
// snapshot holding one identity twice fails with ErrDuplicateIdentity.
func JoinAll(snapshots ...*Snapshot) (*MergedList, error) {
	for i, s := range snapshots {
		if s == nil {
			return nil, fmt.Errorf("snapshot %d is nil: %w", i, apperrors.ErrInvalidInput)
		}
	}
	entries, err := join.JoinAll(snapshots...)
	recordJoin(snapshots, err)
	if err != nil {
		return nil, err
	}
	return &MergedList{entries: entries}, nil
}

func recordJoin(snapshots []*Snapshot, err error) {
	var m *metrics.Metrics
	for _, s := range snapshots {
		if s.h.metrics != nil {
			m = s.h.metrics
			break
		}
	}
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, apperrors.ErrDuplicateIdentity):
		status = "duplicate_identity"
	case err != nil:
		status = "error"
	}
	m.JoinsTotal.WithLabelValues(status).Inc()
}

// Len returns the number of entries; zero after Release.
func (l *MergedList) Len() int {
	return len(l.entries)
}

// At returns entry i, or ErrIndexOutOfRange.
func (l *MergedList) At(i int) (MergedEntry, error) {
	if i < 0 || i >= len(l.entries) {
		return MergedEntry{}, apperrors.OutOfRange("merged index", uint32(max(i, 0)), uint32(len(l.entries)))
	}
	return toMerged(l.entries[i]), nil
}

// Each calls fn for every entry in order until fn returns false.
func (l *MergedList) Each(fn func(MergedEntry) bool) {
	for _, e := range l.entries {
		if !fn(toMerged(e)) {
			return
		}
	}
}

// Top returns up to limit entries ordered by score, best first.
func (l *MergedList) Top(limit int) []MergedEntry {
	top := join.Top(l.entries, limit)
	out := make([]MergedEntry, len(top))
	for i, e := range top {
		out[i] = toMerged(e)
	}
	return out
}

// Release drops the entries.
func (l *MergedList) Release() {
	l.entries = nil
}

func toMerged(e join.Entry[*Snapshot]) MergedEntry {
	return MergedEntry{
		Score:    e.Score,
		Identity: e.Identity,
		Rank:     e.Rank,
		Snapshot: e.Source,
	}
}
