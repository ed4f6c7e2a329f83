package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/makeasinger/songgen/internal/model"
)

// MemoryStore keeps jobs in process memory. Used in development and tests.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*model.Job),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, job *model.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := prepareNew(job, s.now()); err != nil {
		return "", err
	}
	stored := *job
	s.jobs[job.ID] = &stored
	return job.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, upd model.JobUpdate) error {
	if err := validateUpdate(upd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(job.Status, upd); err != nil {
		return err
	}
	upd.Apply(job, s.now())
	return nil
}

func (s *MemoryStore) IncrementListens(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return 0, ErrNotFound
	}
	job.ListenCount++
	return job.ListenCount, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, ownerID string, limit int) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []*model.Job
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	limit = normalizeListLimit(limit)
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func cloneJob(job *model.Job) *model.Job {
	c := *job
	if job.Error != nil {
		msg := *job.Error
		c.Error = &msg
	}
	if job.UpdatedAt != nil {
		ts := *job.UpdatedAt
		c.UpdatedAt = &ts
	}
	return &c
}
