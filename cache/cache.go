package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is a cached step result.
type Entry struct {
	Key      string         `json:"key" msgpack:"key"`
	Workflow string         `json:"workflow" msgpack:"workflow"`
	Step     string         `json:"step" msgpack:"step"`
	Output   map[string]any `json:"output" msgpack:"output"`
	StoredAt time.Time      `json:"stored_at" msgpack:"stored_at"`
	TTL      time.Duration  `json:"ttl" msgpack:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at now.
// A zero TTL means the entry never expires.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.StoredAt.Add(e.TTL))
}

// Store persists cache entries. Lookup must treat expired entries as
// absent; implementations may delete them on read or leave reclamation
// to Sweep.
type Store interface {
	Lookup(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error

	// Sweep removes expired entries and returns how many were reclaimed.
	// Stores with native TTL support (e.g. Redis) may return 0 without
	// scanning.
	Sweep(ctx context.Context) (int, error)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets how often the sweeper scans for expired entries.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

// Sweeper reclaims expired cache entries on a tick loop.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a Sweeper.
func NewSweeper(store Store, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		store:    store,
		logger:   logger,
		interval: 1 * time.Minute,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the sweep goroutine.
func (s *Sweeper) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("cache sweeper started", slog.Duration("interval", s.interval))
	return nil
}

// Stop signals the sweeper to stop and waits for the goroutine to finish.
func (s *Sweeper) Stop(_ context.Context) error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cache sweeper stopped")
	return nil
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	n, err := s.store.Sweep(ctx)
	if err != nil {
		s.logger.Error("cache sweep error", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Debug("cache sweep reclaimed entries", slog.Int("count", n))
	}
}
