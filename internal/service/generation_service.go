package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/client"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
	"github.com/makeasinger/songgen/internal/store"
)

const (
	opSubmit  = "generation.submit"
	opExecute = "generation.execute"

	DefaultRenderDeadline = 2 * time.Minute
	DefaultGuidanceScale  = 7.5
)

// GenerationService drives a job from submission to a terminal status.
type GenerationService struct {
	store         store.JobStore
	backend       client.RenderBackend
	dispatcher    Dispatcher
	notifier      Notifier
	fallback      *CatalogFallback
	deadline      time.Duration
	guidanceScale float64
}

// GenerationOptions carries the tunables of the orchestrator.
type GenerationOptions struct {
	Deadline      time.Duration
	GuidanceScale float64
}

func NewGenerationService(
	jobStore store.JobStore,
	backend client.RenderBackend,
	dispatcher Dispatcher,
	notifier Notifier,
	fallback *CatalogFallback,
	opts GenerationOptions,
) *GenerationService {
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultRenderDeadline
	}
	if opts.GuidanceScale <= 0 {
		opts.GuidanceScale = DefaultGuidanceScale
	}
	return &GenerationService{
		store:         jobStore,
		backend:       backend,
		dispatcher:    dispatcher,
		notifier:      notifier,
		fallback:      fallback,
		deadline:      opts.Deadline,
		guidanceScale: opts.GuidanceScale,
	}
}

// Submit persists a new processing job and schedules its background unit.
// It returns once the job is durably created and dispatched.
func (s *GenerationService) Submit(ctx context.Context, ownerID string, req *model.GenerateRequest) (*model.Job, error) {
	if ownerID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, opSubmit, "owner is required")
	}
	if req == nil || req.IsEmpty() {
		return nil, apperr.New(apperr.KindInvalidArgument, opSubmit, "at least one input is required")
	}

	inputs := req.Inputs()
	job := &model.Job{
		OwnerID:       ownerID,
		Title:         model.DeriveTitle(inputs),
		Inputs:        inputs,
		GuidanceScale: s.guidanceScale,
		Status:        model.JobStatusProcessing,
	}

	jobID, err := s.store.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	log := logger.WithJob(jobID)

	// Announced before dispatch so watchers never see the outcome first.
	notify(ctx, s.notifier, model.JobEvent{
		Type:    model.WSMessageTypeSubmitted,
		JobID:   jobID,
		OwnerID: ownerID,
		Title:   job.Title,
		Status:  model.JobStatusProcessing,
	})

	if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
		log.WithError(err).Error("Failed to dispatch generation")
		s.fail(ctx, job, err, "dispatch failed")
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	log.WithField("mode", inputs.Mode()).Infof("Generation submitted: %q", job.Title)
	return job, nil
}

// Execute is the background unit: one render call, then the outcome is
// applied to the job. Jobs already terminal are skipped, so a duplicate
// delivery is harmless. The returned error is for logging only; the job
// status already reflects it.
func (s *GenerationService) Execute(ctx context.Context, jobID string) error {
	log := logger.WithJob(jobID)

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status.IsTerminal() {
		log.Infof("Job already %s, skipping", job.Status)
		return nil
	}

	req := s.backend.BuildRequest(job.Inputs, job.GuidanceScale)
	log.WithField("mode", req.Mode).Info("Starting render")

	result, err := s.backend.Invoke(ctx, req, s.deadline)
	if err != nil {
		s.fail(ctx, job, err, failureReason(err))
		return apperr.Wrap(apperr.KindOf(err), opExecute, "render failed", err)
	}

	if err := s.complete(ctx, job, result); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			log.WithError(err).Warn("Job reached a terminal status concurrently")
			return nil
		}
		s.fail(ctx, job, err, failureReason(err))
		return fmt.Errorf("failed to apply render result: %w", err)
	}
	return nil
}

// complete applies a successful result in a single update. Partial
// results count as success.
func (s *GenerationService) complete(ctx context.Context, job *model.Job, result *client.RenderResult) error {
	upd := model.JobUpdate{Status: model.Ptr(model.JobStatusCompleted)}
	if result.AudioRef != "" {
		upd.AudioRef = model.Ptr(result.AudioRef)
	}
	if result.AudioURL != "" {
		upd.AudioURL = model.Ptr(result.AudioURL)
	}
	if result.CoverRef != "" {
		upd.CoverRef = model.Ptr(result.CoverRef)
	}
	if result.CoverURL != "" {
		upd.CoverURL = model.Ptr(result.CoverURL)
	}

	if err := s.store.Update(ctx, job.ID, upd); err != nil {
		return err
	}

	log := logger.WithJob(job.ID)
	log.WithField("categories", result.Categories).Info("Generation completed")

	if !result.HasAudio() && s.fallback != nil {
		log.Warn("Render result carried no audio, running catalog fallback")
		upd.Apply(job, time.Now())
		s.fallback.Recover(ctx, job)
	}

	notify(ctx, s.notifier, model.JobEvent{
		Type:    model.WSMessageTypeComplete,
		JobID:   job.ID,
		OwnerID: job.OwnerID,
		Title:   job.Title,
		Status:  model.JobStatusCompleted,
	})
	return nil
}

func (s *GenerationService) fail(ctx context.Context, job *model.Job, cause error, reason string) {
	log := logger.WithJob(job.ID).WithField("kind", apperr.KindOf(cause))
	log.WithError(cause).Error("Generation failed")

	if err := s.store.Update(ctx, job.ID, model.JobUpdate{
		Status: model.Ptr(model.JobStatusFailed),
		Error:  model.Ptr(reason),
	}); err != nil {
		log.WithError(err).Error("Failed to mark job as failed")
		return
	}

	notify(ctx, s.notifier, model.JobEvent{
		Type:    model.WSMessageTypeError,
		JobID:   job.ID,
		OwnerID: job.OwnerID,
		Title:   job.Title,
		Status:  model.JobStatusFailed,
		Reason:  reason,
	})
}

func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindTimeout:
		return "render backend timed out"
	case apperr.KindTransport:
		return "render backend unreachable"
	case apperr.KindBackendError:
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Status != 0 {
			return fmt.Sprintf("render backend returned status %d", appErr.Status)
		}
		return "render backend error"
	case apperr.KindInvalidArgument:
		return "invalid render request"
	default:
		return "failed to store render result"
	}
}
