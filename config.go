package weft

import "time"

// Config holds engine-wide configuration.
type Config struct {
	// DefaultStepTimeout applies to steps that do not declare a timeout.
	DefaultStepTimeout time.Duration

	// DefaultMaxRetries applies to steps that do not declare a retry policy.
	DefaultMaxRetries int

	// CacheSweepInterval is how often the background cache sweeper runs.
	// Zero disables the sweeper (expired entries are still removed lazily
	// at lookup time).
	CacheSweepInterval time.Duration

	// ScheduleTick is how often the schedule trigger checks for due entries.
	ScheduleTick time.Duration

	// QueueConcurrency is the maximum number of queue messages processed
	// concurrently by the queue trigger consumer.
	QueueConcurrency int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultStepTimeout: 5 * time.Minute,
		DefaultMaxRetries:  3,
		CacheSweepInterval: 1 * time.Minute,
		ScheduleTick:       1 * time.Second,
		QueueConcurrency:   10,
		ShutdownTimeout:    30 * time.Second,
	}
}
