package engine

import (
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/pattern"
)

// Transform derives the match text of an item. It runs once, on the
// pushing goroutine.
type Transform[T any] func(data T) (string, error)

// Injector is the producer side of an Engine. It may be used from any
// number of goroutines while a scoring pass is running; pushed items are
// picked up by the next pass.
type Injector[T any] struct {
	e *Engine[T]
}

// Push stores data and returns its store index. When transform fails the
// item is still stored, without match text, and the failure is logged.
func (in *Injector[T]) Push(data T, transform Transform[T]) uint32 {
	item := Item[T]{Data: data}
	text, err := transform(data)
	if err != nil {
		in.e.logger.Warn("transform failed, storing item without match text",
			"error", err,
		)
	} else {
		item.Text = text
		item.hay = pattern.NewHaystack(text)
	}
	idx := in.e.store.push(item)
	in.e.observer.ItemInjected(err != nil)
	return idx
}

// PushAll pushes each element in order and returns the store index of the
// first one. There is no atomicity across the batch.
func (in *Injector[T]) PushAll(data []T, transform Transform[T]) uint32 {
	first := in.e.store.len()
	for i, d := range data {
		idx := in.Push(d, transform)
		if i == 0 {
			first = idx
		}
	}
	return first
}
