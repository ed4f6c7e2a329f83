package service

import (
	"context"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/model"
	"github.com/makeasinger/songgen/internal/store"
)

const (
	opStatus  = "library.status"
	opPublish = "library.publish"
)

// LibraryService serves job views, listings and the publish toggle
type LibraryService struct {
	store    store.JobStore
	resolver *ResolverService
}

func NewLibraryService(jobStore store.JobStore, resolver *ResolverService) *LibraryService {
	return &LibraryService{store: jobStore, resolver: resolver}
}

// Status returns the public view of a job readable by requesterID.
func (s *LibraryService) Status(ctx context.Context, jobID, requesterID string) (*model.JobStatusResponse, error) {
	job, err := loadReadable(ctx, s.store, opStatus, jobID, requesterID)
	if err != nil {
		return nil, err
	}
	view := s.view(ctx, job)
	return &view, nil
}

// List returns the owner's jobs, newest first, with cover URLs where
// derivable.
func (s *LibraryService) List(ctx context.Context, ownerID string, limit int) (*model.JobListResponse, error) {
	jobs, err := s.store.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}

	resp := &model.JobListResponse{Jobs: make([]model.JobStatusResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, s.view(ctx, job))
	}
	return resp, nil
}

// SetPublished toggles whether non-owners may read the job.
func (s *LibraryService) SetPublished(ctx context.Context, jobID, requesterID string, published bool) (*model.JobStatusResponse, error) {
	job, err := loadReadable(ctx, s.store, opPublish, jobID, requesterID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != requesterID {
		return nil, apperr.New(apperr.KindUnauthorized, opPublish, "only the owner may publish")
	}

	if err := s.store.Update(ctx, jobID, model.JobUpdate{Published: model.Ptr(published)}); err != nil {
		return nil, err
	}
	job.Published = published

	view := s.view(ctx, job)
	return &view, nil
}

func (s *LibraryService) view(ctx context.Context, job *model.Job) model.JobStatusResponse {
	view := model.JobStatusResponse{
		JobID:       job.ID,
		Title:       job.Title,
		Status:      job.Status,
		Mode:        job.Inputs.Mode(),
		HasAudio:    job.AudioURL != "" || job.AudioRef != "",
		ListenCount: job.ListenCount,
		Published:   job.Published,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
	}
	if s.resolver != nil {
		// missing covers are normal for processing jobs
		if url, err := s.resolver.coverURL(ctx, job); err == nil {
			view.CoverURL = url
		}
	}
	return view
}
