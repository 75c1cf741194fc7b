package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpline-labs/escalation-gateway/internal/idempotency"
	"github.com/helpline-labs/escalation-gateway/internal/observability"
	"github.com/helpline-labs/escalation-gateway/internal/ratelimit"
)

type countingStore struct {
	mu     sync.Mutex
	sweeps int
	size   int
}

func (c *countingStore) Sweep(time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps++
	removed := c.size
	c.size = 0
	return removed
}

func (c *countingStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *countingStore) Sweeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweeps
}

func TestSweeperRunOnceEvictsExpiredEntries(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	now := base
	clock := func() time.Time { return now }

	limiter := ratelimit.NewLimiter(10, time.Second, clock)
	limiter.Allow("a")
	limiter.Allow("b")

	cache := idempotency.NewCache[string](time.Minute, clock)
	_, err := cache.CheckOrReserve(context.Background(), "committed", "h1")
	require.NoError(t, err)
	require.NoError(t, cache.Commit("committed", "resp"))
	_, err = cache.CheckOrReserve(context.Background(), "pending", "h2")
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	s := NewSweeper(time.Minute, metrics, nil)
	s.now = func() time.Time { return now }
	s.Register("rate_limit", limiter)
	s.Register("idempotency", cache)

	now = base.Add(2 * time.Minute)
	assert.Equal(t, 3, s.RunOnce())
	assert.Equal(t, 0, limiter.Len())
	assert.Equal(t, 1, cache.Len())
	count, err := testutil.GatherAndCount(metrics.Registry(), "escalation_gateway_store_entries")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSweeperStartStop(t *testing.T) {
	store := &countingStore{size: 3}
	s := NewSweeper(5*time.Millisecond, nil, nil)
	s.Register("fake", store)

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return store.Sweeps() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := store.Sweeps()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, store.Sweeps())
	s.Stop()
}
