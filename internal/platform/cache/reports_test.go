package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Total float64 `json:"total"`
}

func newTestCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewReportCache(client, time.Minute), mr
}

func TestReportCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var out payload
	require.ErrorIs(t, c.Get(ctx, "reports:credit:30", &out), ErrMiss)

	require.NoError(t, c.Set(ctx, "reports:credit:30", payload{Total: 1250.5}))
	require.NoError(t, c.Get(ctx, "reports:credit:30", &out))
	require.InDelta(t, 1250.5, out.Total, 0.0001)
}

func TestReportCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "reports:credit:30", payload{Total: 1}))
	require.NoError(t, c.Set(ctx, "reports:nettax:30", payload{Total: 2}))
	require.NoError(t, c.Invalidate(ctx, "reports:*"))

	var out payload
	require.ErrorIs(t, c.Get(ctx, "reports:credit:30", &out), ErrMiss)
	require.ErrorIs(t, c.Get(ctx, "reports:nettax:30", &out), ErrMiss)
}
