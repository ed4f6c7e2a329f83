// Package store persists job records. Every implementation serializes
// updates to the same key and refuses status transitions out of a
// terminal state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/model"
)

var (
	ErrNotFound          = apperr.New(apperr.KindNotFound, "store", "job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// JobStore is the keyed record store for jobs.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) (string, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, id string, upd model.JobUpdate) error
	IncrementListens(ctx context.Context, id string) (int64, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Job, error)
}

// prepareNew fills the id and timestamps of a job about to be created.
func prepareNew(job *model.Job, now time.Time) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusProcessing
	}
	if job.Status != model.JobStatusProcessing {
		return fmt.Errorf("new job must start as %s, got %s", model.JobStatusProcessing, job.Status)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	return nil
}

func validateUpdate(upd model.JobUpdate) error {
	if upd.Status == nil {
		return nil
	}
	switch *upd.Status {
	case model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown status %q", *upd.Status)
	}
}

func checkTransition(current model.JobStatus, upd model.JobUpdate) error {
	if upd.Status == nil || current.CanTransition(*upd.Status) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, *upd.Status)
}

func normalizeListLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 100:
		return 100
	default:
		return limit
	}
}
