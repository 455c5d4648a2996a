package fuzzmatch

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/metrics"
)

func newHandle(t *testing.T, opts ...Option) *Handle {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	h := New(nil, opts...)
	t.Cleanup(func() { _ = h.Destroy() })
	return h
}

func settle(t *testing.T, h *Handle) *Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.Settle(ctx, 10)
	require.NoError(t, err)
	snap, err := h.Snapshot()
	require.NoError(t, err)
	return snap
}

func TestHandleLifecycle(t *testing.T) {
	h := New(nil, WithLogger(logger.Discard()))

	require.NoError(t, h.PushAll([][]byte{[]byte("cmd/matchd/main.go"), []byte("internal/engine/engine.go")}, nil))
	require.NoError(t, h.Reparse([]byte("main"), false))
	snap := settle(t, h)

	assert.Equal(t, uint32(2), snap.ItemCount())
	require.Equal(t, uint32(1), snap.MatchedItemCount())
	m, err := snap.GetMatchedItem(0)
	require.NoError(t, err)
	assert.Equal(t, "cmd/matchd/main.go", m.Entry.Text())
	assert.Equal(t, uint32(0), m.Entry.ID, "anonymous handles use the store index")

	_, err = snap.GetMatchedItem(1)
	assert.ErrorIs(t, err, apperrors.ErrIndexOutOfRange)
	matches, err := snap.Matches()
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(0), matches[0].Index)

	require.NoError(t, h.Destroy())
	assert.ErrorIs(t, h.Destroy(), apperrors.ErrEngineClosed)
	assert.ErrorIs(t, h.Push([]byte("x"), 0), apperrors.ErrEngineClosed)
	_, err = h.Drive(1)
	assert.ErrorIs(t, err, apperrors.ErrEngineClosed)
	_, err = snap.GetItem(0)
	assert.ErrorIs(t, err, apperrors.ErrEngineClosed)
}

func TestProgressCallbackRunsOffDrive(t *testing.T) {
	called := make(chan struct{}, 4)
	h := New(func() { called <- struct{}{} }, WithLogger(logger.Discard()))
	defer h.Destroy()

	require.NoError(t, h.Push([]byte("hello"), 0))
	settle(t, h)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("progress callback not invoked")
	}
	select {
	case <-h.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("notify channel not signalled")
	}
}

func TestInvalidUTF8(t *testing.T) {
	h := newHandle(t)

	require.NoError(t, h.Push([]byte("valid"), 0))
	require.NoError(t, h.Push([]byte{0xc3, 0x28}, 0))
	require.NoError(t, h.Reparse([]byte("v"), false))
	snap := settle(t, h)

	assert.Equal(t, uint32(2), snap.ItemCount())
	assert.Equal(t, uint32(1), snap.MatchedItemCount())

	err := h.Reparse([]byte{0xff}, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidUTF8)
	assert.Equal(t, "v", h.Query(), "a rejected pattern leaves the old one")
}

func TestPushAllRequiresIDsWithIdentity(t *testing.T) {
	h := newHandle(t, WithIdentity())
	err := h.PushAll([][]byte{[]byte("a"), []byte("b")}, []uint32{1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))

	err = h.PushAll([][]byte{[]byte("a")}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, h.ItemCount())
}

func TestPushCopiesPayload(t *testing.T) {
	h := newHandle(t)
	buf := []byte("original")
	require.NoError(t, h.Push(buf, 0))
	copy(buf, "mutated!")

	snap := settle(t, h)
	e, err := snap.GetItem(0)
	require.NoError(t, err)
	assert.Equal(t, "original", e.Text())
}

func TestJoinAcrossHandles(t *testing.T) {
	a := newHandle(t, WithIdentity(), WithName("a"))
	b := newHandle(t, WithIdentity(), WithName("b"))

	require.NoError(t, a.PushAll([][]byte{[]byte("gamma"), []byte("g_a_m")}, []uint32{1, 2}))
	require.NoError(t, b.PushAll([][]byte{[]byte("gamut"), []byte("xxgxxaxxm")}, []uint32{2, 3}))
	for _, h := range []*Handle{a, b} {
		require.NoError(t, h.Reparse([]byte("gam"), false))
	}
	snapA, snapB := settle(t, a), settle(t, b)

	merged, err := Join(snapA, snapB)
	require.NoError(t, err)
	require.Equal(t, 3, merged.Len())

	byID := map[uint32]MergedEntry{}
	merged.Each(func(e MergedEntry) bool {
		byID[e.Identity] = e
		return true
	})
	require.Len(t, byID, 3)
	assert.Same(t, snapA, byID[1].Snapshot)
	assert.Same(t, snapB, byID[2].Snapshot, "higher score from b wins identity 2")
	assert.Same(t, snapB, byID[3].Snapshot)

	item, err := byID[3].Item()
	require.NoError(t, err)
	assert.Equal(t, "xxgxxaxxm", item.Entry.Text(), "entries resolve through their own snapshot")

	first, err := merged.At(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first.Identity)
	_, err = merged.At(3)
	assert.ErrorIs(t, err, apperrors.ErrIndexOutOfRange)

	top := merged.Top(1)
	require.Len(t, top, 1)
	assert.Equal(t, uint32(1), top[0].Identity, "equal scores keep merged order")

	merged.Release()
	assert.Zero(t, merged.Len())
}

func TestJoinRejectsDuplicateIdentity(t *testing.T) {
	a := newHandle(t, WithIdentity())
	b := newHandle(t, WithIdentity())
	require.NoError(t, a.PushAll([][]byte{[]byte("seven"), []byte("seventy")}, []uint32{7, 7}))
	require.NoError(t, b.Push([]byte("seven"), 8))
	for _, h := range []*Handle{a, b} {
		require.NoError(t, h.Reparse([]byte("seven"), false))
	}

	_, err := Join(settle(t, a), settle(t, b))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateIdentity)
}

func TestStaleSnapshotInJoin(t *testing.T) {
	a := newHandle(t)
	b := newHandle(t)
	require.NoError(t, a.Push([]byte("x"), 0))
	require.NoError(t, b.Push([]byte("x"), 0))
	snapA, snapB := settle(t, a), settle(t, b)

	require.NoError(t, a.Push([]byte("y"), 0))
	settle(t, a)

	_, err := Join(snapA, snapB)
	assert.ErrorIs(t, err, apperrors.ErrStaleSnapshot)
}

func TestMetricsObserved(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := newHandle(t, WithName("paths"), WithMetrics(m))

	require.NoError(t, h.Push([]byte("ok"), 0))
	require.NoError(t, h.Push([]byte{0xff}, 0))
	require.NoError(t, h.Reparse([]byte("o"), false))
	settle(t, h)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsInjectedTotal.WithLabelValues("paths")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransformFailuresTotal.WithLabelValues("paths")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreItems.WithLabelValues("paths")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchedItems.WithLabelValues("paths")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReparseTotal.WithLabelValues("rescore")))
}
