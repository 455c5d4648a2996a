package fuzzmatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
)

func benchPaths(n int) [][]byte {
	dirs := []string{"cmd", "internal/engine", "internal/pattern", "pkg/fuzzmatch", "vendor/github.com/x"}
	out := make([][]byte, n)
	for i := range out {
		out[i] = fmt.Appendf(nil, "%s/file_%05d.go", dirs[i%len(dirs)], i)
	}
	return out
}

func benchSettle(b *testing.B, h *Handle) *Snapshot {
	if _, err := h.Settle(context.Background(), 50); err != nil {
		b.Fatal(err)
	}
	snap, err := h.Snapshot()
	if err != nil {
		b.Fatal(err)
	}
	return snap
}

// BenchmarkQuery measures a full reparse and rescore over stores of
// increasing size with one and four workers.
func BenchmarkQuery(b *testing.B) {
	for _, items := range []int{1_000, 50_000} {
		for _, workers := range []int{1, 4} {
			b.Run(fmt.Sprintf("items=%d/workers=%d", items, workers), func(b *testing.B) {
				h := New(nil, WithLogger(logger.Discard()), WithWorkers(workers))
				defer h.Destroy()
				if err := h.PushAll(benchPaths(items), nil); err != nil {
					b.Fatal(err)
				}
				benchSettle(b, h)

				queries := [][]byte{[]byte("engfile"), []byte("pkgfz")}
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := h.Reparse(queries[i%2], false); err != nil {
						b.Fatal(err)
					}
					benchSettle(b, h)
				}
			})
		}
	}
}

// BenchmarkAppendQuery measures typing one character at a time, where each
// step only rescores the previous matches.
func BenchmarkAppendQuery(b *testing.B) {
	h := New(nil, WithLogger(logger.Discard()), WithWorkers(4))
	defer h.Destroy()
	if err := h.PushAll(benchPaths(50_000), nil); err != nil {
		b.Fatal(err)
	}
	benchSettle(b, h)

	typed := "internalfile"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for n := 1; n <= len(typed); n++ {
			if err := h.Reparse([]byte(typed[:n]), n > 1); err != nil {
				b.Fatal(err)
			}
			benchSettle(b, h)
		}
	}
}

func BenchmarkJoin(b *testing.B) {
	paths := benchPaths(20_000)
	ids := make([]uint32, len(paths))
	for i := range ids {
		ids[i] = uint32(i)
	}
	snaps := make([]*Snapshot, 2)
	for i := range snaps {
		h := New(nil, WithLogger(logger.Discard()), WithIdentity(), WithWorkers(2))
		defer h.Destroy()
		if err := h.PushAll(paths, ids); err != nil {
			b.Fatal(err)
		}
		if err := h.Reparse([]byte("file"), false); err != nil {
			b.Fatal(err)
		}
		snaps[i] = benchSettle(b, h)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		merged, err := Join(snaps[0], snaps[1])
		if err != nil {
			b.Fatal(err)
		}
		merged.Top(50)
		merged.Release()
	}
}
