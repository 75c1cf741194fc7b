package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helpline-labs/escalation-gateway/internal/observability"
)

const DefaultSweepInterval = time.Minute

// Sweepable is an in-memory store with TTL bounded entries.
type Sweepable interface {
	Sweep(now time.Time) int
	Len() int
}

// Sweeper periodically evicts expired entries from every registered store.
type Sweeper struct {
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	names  []string
	stores map[string]Sweepable
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper ticking every interval.
func NewSweeper(interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		stores:   make(map[string]Sweepable),
	}
}

// Register adds a store under name. Registering a name twice replaces the store.
func (s *Sweeper) Register(name string, store Sweepable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[name]; !ok {
		s.names = append(s.names, name)
	}
	s.stores[name] = store
}

// Start launches the sweep loop. It returns immediately; the loop ends when
// ctx is canceled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("sweeper stopped")
				return
			case <-ticker.C:
				s.RunOnce()
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce sweeps every store and returns the total number of evicted entries.
func (s *Sweeper) RunOnce() int {
	s.mu.Lock()
	names := append([]string(nil), s.names...)
	stores := make([]Sweepable, len(names))
	for i, name := range names {
		stores[i] = s.stores[name]
	}
	s.mu.Unlock()

	now := s.now()
	total := 0
	for i, store := range stores {
		removed := store.Sweep(now)
		size := store.Len()
		s.metrics.RecordSweep(names[i], removed, size)
		total += removed
		if removed > 0 {
			s.logger.Debug("store swept",
				zap.String("store", names[i]),
				zap.Int("removed", removed),
				zap.Int("size", size))
		}
	}
	return total
}
