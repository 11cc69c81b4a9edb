// Package database holds connection and timeout helpers for the record store.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds point lookups and aggregate reads.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds a single insert or conditional update.
	DefaultWriteTimeout = 10 * time.Second
)

// QueryContext derives a context bounded by DefaultQueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext derives a context bounded by DefaultWriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}
