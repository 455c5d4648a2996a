package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "search")

	require.NoError(t, Run(ctx, "reparse", func(ctx context.Context) error {
		_, inner := Start(ctx, "drive")
		inner.SetAttr("source", "files")
		inner.End()
		return nil
	}))
	boom := errors.New("boom")
	assert.ErrorIs(t, Run(ctx, "join", func(context.Context) error { return boom }), boom)
	root.End()

	assert.Equal(t, "req-1", root.TraceID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "reparse", root.Children[0].Name)
	require.Len(t, root.Children[0].Children, 1)
	drive := root.Children[0].Children[0]
	assert.Equal(t, "req-1", drive.TraceID)
	assert.Equal(t, "files", drive.Attrs["source"])
	assert.ErrorIs(t, root.Children[1].Err, boom)
	assert.True(t, root.failed())
	assert.Same(t, root, FromContext(ctx))
}
