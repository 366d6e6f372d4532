package store

import (
	"context"
	"errors"

	"github.com/dunamismax/pixelmod/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	// UpdateStatus sets status and the failure message (empty on success).
	UpdateStatus(ctx context.Context, id, status, errMsg string) (domain.Job, error)
}

// Open returns a Postgres store for a non-empty dsn and an in-memory store
// otherwise. The returned func closes whatever was opened.
func Open(ctx context.Context, dsn string) (JobStore, func() error, error) {
	if dsn == "" {
		return NewMemoryJobStore(), func() error { return nil }, nil
	}
	pg, err := NewPostgresJobStore(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
