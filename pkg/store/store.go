// Package store opens the record store selected by database.type.
package store

import "context"

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// memoryAdapter backs the in-process store, which is always healthy.
type memoryAdapter struct{}

func (memoryAdapter) HealthCheck(context.Context) error { return nil }

func (memoryAdapter) Close() error { return nil }
