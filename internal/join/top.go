package join

import "container/heap"

// Top returns the limit best entries by score, best first. Entries with
// equal scores keep their relative order.
func Top[S Source](entries []Entry[S], limit int) []Entry[S] {
	if limit <= 0 {
		limit = 10
	}
	h := &entryHeap[S]{}
	heap.Init(h)
	for i, e := range entries {
		heap.Push(h, ranked[S]{entry: e, pos: i})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]Entry[S], h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranked[S]).entry
	}
	return result
}

type ranked[S Source] struct {
	entry Entry[S]
	pos   int
}

// entryHeap is a min-heap: the root is the entry evicted first.
type entryHeap[S Source] []ranked[S]

func (h entryHeap[S]) Len() int { return len(h) }

func (h entryHeap[S]) Less(i, j int) bool {
	if h[i].entry.Score != h[j].entry.Score {
		return h[i].entry.Score < h[j].entry.Score
	}
	return h[i].pos > h[j].pos
}

func (h entryHeap[S]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[S]) Push(x any) {
	*h = append(*h, x.(ranked[S]))
}

func (h *entryHeap[S]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
