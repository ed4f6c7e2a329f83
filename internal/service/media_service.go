package service

import (
	"context"
	"fmt"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/client"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
	"github.com/makeasinger/songgen/internal/store"
)

const opDeleteMedia = "media.delete"

// MediaService removes a job's backing media from the asset store. The
// job record itself is kept.
type MediaService struct {
	store   store.JobStore
	catalog client.AssetCatalog
}

// NewMediaService creates a new media service
func NewMediaService(jobStore store.JobStore, catalog client.AssetCatalog) *MediaService {
	return &MediaService{
		store:   jobStore,
		catalog: catalog,
	}
}

// DeleteMedia deletes the audio and cover of a job. Only the owner may
// delete. Deleting media that is already gone succeeds.
func (s *MediaService) DeleteMedia(ctx context.Context, jobID, requesterID string) error {
	job, err := loadReadable(ctx, s.store, opDeleteMedia, jobID, requesterID)
	if err != nil {
		return err
	}
	if job.OwnerID != requesterID {
		return apperr.New(apperr.KindUnauthorized, opDeleteMedia, "only the owner may delete media")
	}

	if s.catalog == nil {
		return nil // Mock: no-op
	}

	log := logger.WithJob(jobID)
	if job.AudioRef != "" {
		if err := s.catalog.Delete(ctx, model.AssetKindAudio, job.AudioRef); err != nil {
			return fmt.Errorf("failed to delete audio: %w", err)
		}
		log.Infof("Deleted audio %s", job.AudioRef)
	}
	if job.CoverRef != "" {
		if err := s.catalog.Delete(ctx, model.AssetKindImage, job.CoverRef); err != nil {
			return fmt.Errorf("failed to delete cover: %w", err)
		}
		log.Infof("Deleted cover %s", job.CoverRef)
	}
	return nil
}
