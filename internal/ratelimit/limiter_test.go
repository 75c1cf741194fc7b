package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEleventhRequestInWindowIsDenied(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewLimiter(10, time.Second, clock.Now)

	for i := 0; i < 10; i++ {
		d := l.Allow("agent-1")
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 9-i, d.Remaining)
		clock.Advance(10 * time.Millisecond)
	}

	denied := l.Allow("agent-1")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 0, denied.Remaining)
	assert.Greater(t, denied.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, denied.RetryAfter, time.Second)
	assert.Equal(t, 900*time.Millisecond, denied.RetryAfter)

	clock.Advance(denied.RetryAfter)
	assert.True(t, l.Allow("agent-1").Allowed)
}

func TestKeysAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewLimiter(1, time.Second, clock.Now)

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
}

func TestSweepPrunesIdleBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewLimiter(5, time.Second, clock.Now)

	l.Allow("a")
	l.Allow("b")
	clock.Advance(500 * time.Millisecond)
	l.Allow("c")
	assert.Equal(t, 3, l.Len())

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, 2, l.Sweep(clock.Now()))
	assert.Equal(t, 1, l.Len())
}

func TestConcurrentAllowNeverExceedsMax(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewLimiter(10, time.Second, clock.Now)

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
