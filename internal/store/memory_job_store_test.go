package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelmod/internal/domain"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	job := domain.Job{
		ID:     "job-1",
		Status: domain.JobStatusCreated,
		Request: domain.ModifyRequest{
			SourceType: domain.SourceTypeLocalFile,
			Source:     "in.png",
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Create(ctx, job))
	assert.Error(t, s.Create(ctx, job))

	updated, err := s.UpdateStatus(ctx, "job-1", domain.JobStatusFailed, "boom")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, updated.Status)
	assert.Equal(t, "boom", updated.Error)

	got, ok, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, updated, got)

	_, err = s.UpdateStatus(ctx, "missing", domain.JobStatusQueued, "")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenWithoutDSNUsesMemory(t *testing.T) {
	jobs, closeFn, err := Open(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryJobStore{}, jobs)
	assert.NoError(t, closeFn())
}
