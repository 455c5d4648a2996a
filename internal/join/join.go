// Package join merges the ranked matches of independent engines that share
// an identity space into one list with a single entry per identity.
package join

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/RoaringBitmap/roaring/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
)

// Source is a ranked match list whose entries carry an identity.
type Source interface {
	MatchedItemCount() uint32
	MatchedIdentity(rank uint32) (identity uint32, score uint32, err error)
}

// Entry is the winning match for one identity.
type Entry[S Source] struct {
	Identity uint32
	Score    uint32
	// Rank is the position of the match within Source.
	Rank   uint32
	Source S
}

// Join merges two sources. Entries of a come first in a's rank order,
// followed by identities only b matched, in b's rank order. When both
// matched an identity the strictly higher score wins and the entry keeps
// its position; on a tie a's entry stays.
func Join[S Source](a, b S) ([]Entry[S], error) {
	return JoinAll(a, b)
}

// JoinAll generalizes Join to any number of sources, folded left to right.
// A source that reports the same identity at two ranks is corrupt and
// fails the whole join with ErrDuplicateIdentity.
func JoinAll[S Source](sources ...S) ([]Entry[S], error) {
	logger := slog.Default().With("component", "join")

	capacity := 0
	for _, src := range sources {
		capacity += int(src.MatchedItemCount())
	}
	out := make([]Entry[S], 0, capacity)
	position := make(map[uint32]int, capacity)

	for si, src := range sources {
		seen := roaring.New()
		firstRank := make(map[uint32]uint32)
		n := src.MatchedItemCount()
		for rank := uint32(0); rank < n; rank++ {
			id, score, err := src.MatchedIdentity(rank)
			if err != nil {
				return nil, fmt.Errorf("reading source %d rank %d: %w", si, rank, err)
			}
			if !seen.CheckedAdd(id) {
				logger.Error("duplicate identity within one source",
					"source", si,
					"identity", id,
					"first_rank", firstRank[id],
					"rank", rank,
				)
				return nil, apperrors.Newf(apperrors.ErrDuplicateIdentity, http.StatusInternalServerError,
					"source %d has identity %d at ranks %d and %d", si, id, firstRank[id], rank)
			}
			firstRank[id] = rank

			entry := Entry[S]{Identity: id, Score: score, Rank: rank, Source: src}
			if pos, ok := position[id]; ok {
				if score > out[pos].Score {
					out[pos] = entry
				}
				continue
			}
			position[id] = len(out)
			out = append(out, entry)
		}
	}

	logger.Debug("sources joined",
		"sources", len(sources),
		"candidates", capacity,
		"entries", len(out),
	)
	return out, nil
}
