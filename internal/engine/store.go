package engine

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/pattern"
)

// Item is one stored candidate. Items never change after they are stored.
type Item[T any] struct {
	Data T
	// Text is the derived match text; empty when the transform failed.
	Text string
	hay  *pattern.Haystack
}

// Matchable reports whether the item has match text. Items without it only
// match the empty pattern.
func (it Item[T]) Matchable() bool {
	return it.hay != nil
}

// store is the append-only item list. Published views share the backing
// array; appends only ever write past the end of every earlier view.
type store[T any] struct {
	mu    sync.RWMutex
	items []Item[T]
}

func newStore[T any]() *store[T] {
	return &store[T]{
		items: make([]Item[T], 0, 64),
	}
}

func (s *store[T]) push(item Item[T]) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := uint32(len(s.items))
	s.items = append(s.items, item)
	return idx
}

func (s *store[T]) len() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint32(len(s.items))
}

// view returns the current items with capacity clipped so that the caller
// can never observe a later append.
func (s *store[T]) view() []Item[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.items)
	return s.items[:n:n]
}

func (s *store[T]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
