package service

import (
	"context"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/client"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
	"github.com/makeasinger/songgen/internal/store"
)

const (
	opResolvePlay  = "resolver.play_url"
	opResolveCover = "resolver.cover_url"
)

// audioTier tries one source. A nil resolution with a nil error means
// the tier had nothing to offer.
type audioTier struct {
	name    Tier
	resolve func(ctx context.Context, job *model.Job) (*Resolution, error)
}

// ResolverService is the read path: it turns a job into a playable URL,
// healing the job record with whatever it discovers.
type ResolverService struct {
	store    store.JobStore
	assets   client.AssetURLResolver
	fallback *CatalogFallback
	tiers    []audioTier
}

func NewResolverService(jobStore store.JobStore, assets client.AssetURLResolver, fallback *CatalogFallback) *ResolverService {
	s := &ResolverService{
		store:    jobStore,
		assets:   assets,
		fallback: fallback,
	}
	s.tiers = []audioTier{
		{name: TierStoredURL, resolve: s.fromStoredURL},
		{name: TierStoredRef, resolve: s.fromStoredRef},
		{name: TierCatalogMatch, resolve: s.fromCatalog},
	}
	return s
}

// ResolvePlayURL returns a playable URL for the job. Only the owner may
// resolve an unpublished job. Each successful call counts one listen.
func (s *ResolverService) ResolvePlayURL(ctx context.Context, jobID, requesterID string) (string, error) {
	job, err := loadReadable(ctx, s.store, opResolvePlay, jobID, requesterID)
	if err != nil {
		return "", err
	}

	switch job.Status {
	case model.JobStatusProcessing:
		return "", apperr.New(apperr.KindNotReady, opResolvePlay, "generation is still processing")
	case model.JobStatusFailed:
		return "", apperr.New(apperr.KindGenerationFailed, opResolvePlay, "generation failed")
	}

	res, err := s.resolveAudio(ctx, job)
	if err != nil {
		return "", err
	}

	if _, err := s.store.IncrementListens(ctx, jobID); err != nil {
		logger.WithJob(jobID).WithError(err).Warn("Failed to count listen")
	}
	return res.URL, nil
}

func (s *ResolverService) resolveAudio(ctx context.Context, job *model.Job) (*Resolution, error) {
	log := logger.WithJob(job.ID)
	for _, tier := range s.tiers {
		res, err := tier.resolve(ctx, job)
		if err != nil {
			log.WithError(err).WithField("tier", tier.name).Warn("Resolution tier failed")
			continue
		}
		if res != nil {
			log.WithField("tier", res.Tier).Debug("Play URL resolved")
			return res, nil
		}
	}
	return nil, apperr.New(apperr.KindAssetUnavailable, opResolvePlay, "no audio found for job")
}

func (s *ResolverService) fromStoredURL(_ context.Context, job *model.Job) (*Resolution, error) {
	if job.AudioURL == "" {
		return nil, nil
	}
	return &Resolution{Tier: TierStoredURL, URL: job.AudioURL, Ref: job.AudioRef}, nil
}

func (s *ResolverService) fromStoredRef(ctx context.Context, job *model.Job) (*Resolution, error) {
	if job.AudioRef == "" || s.assets == nil {
		return nil, nil
	}
	url, err := s.assets.ResolveAudio(ctx, job.AudioRef)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, job.ID, model.JobUpdate{AudioURL: model.Ptr(url)}); err != nil {
		logger.WithJob(job.ID).WithError(err).Error("Failed to persist resolved audio URL")
	}
	return &Resolution{Tier: TierStoredRef, URL: url, Ref: job.AudioRef}, nil
}

// fromCatalog covers both the matching and the most-recent tiers.
func (s *ResolverService) fromCatalog(ctx context.Context, job *model.Job) (*Resolution, error) {
	if s.fallback == nil {
		return nil, nil
	}
	return s.fallback.ResolveAudio(ctx, job)
}

// ResolveCoverURL returns the cover thumbnail URL: the stored URL, else
// one built from the stored ref and written back.
func (s *ResolverService) ResolveCoverURL(ctx context.Context, jobID, requesterID string) (string, error) {
	job, err := loadReadable(ctx, s.store, opResolveCover, jobID, requesterID)
	if err != nil {
		return "", err
	}
	return s.coverURL(ctx, job)
}

func (s *ResolverService) coverURL(ctx context.Context, job *model.Job) (string, error) {
	if job.CoverURL != "" {
		return job.CoverURL, nil
	}
	if job.CoverRef == "" || s.assets == nil {
		return "", apperr.New(apperr.KindAssetUnavailable, opResolveCover, "no cover for job")
	}

	url, err := s.assets.ResolveCover(ctx, job.CoverRef)
	if err != nil {
		return "", err
	}
	if err := s.store.Update(ctx, job.ID, model.JobUpdate{CoverURL: model.Ptr(url)}); err != nil {
		logger.WithJob(job.ID).WithError(err).Error("Failed to persist resolved cover URL")
	}
	return url, nil
}

// loadReadable fetches a job and checks read access. Missing jobs fail
// first, then access, before any status check by the caller.
func loadReadable(ctx context.Context, jobStore store.JobStore, op, jobID, requesterID string) (*model.Job, error) {
	job, err := jobStore.Get(ctx, jobID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, op, "job not found", err)
		}
		return nil, err
	}
	if !job.CanRead(requesterID) {
		return nil, apperr.New(apperr.KindUnauthorized, op, "job is not accessible")
	}
	return job, nil
}
