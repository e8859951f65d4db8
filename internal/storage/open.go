package storage

import (
	"context"

	"report-approval-workflow/internal/config"
)

// Backend is a transactional store the services can run against.
type Backend interface {
	TxRunner
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the in-memory store for local runs and Postgres otherwise.
func Open(cfg config.Config) (Backend, error) {
	if cfg.IsLocal() {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(cfg.PostgresDSN)
}
