// Package store defines the aggregate persistence interface. Each
// subsystem (record, event, cache) defines its own store interface; the
// composite Store composes them all. Backends: Postgres, Redis, and
// Memory.
package store

import (
	"context"

	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/record"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// implements all of them.
type Store interface {
	record.Store
	event.Store
	cache.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
