package service

import (
	"context"
	"strings"

	"github.com/makeasinger/songgen/internal/client"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
	"github.com/makeasinger/songgen/internal/store"
)

// Tier names the source a URL was resolved from.
type Tier string

const (
	TierStoredURL    Tier = "stored_url"
	TierStoredRef    Tier = "stored_ref"
	TierCatalogMatch Tier = "catalog_match"
	TierMostRecent   Tier = "most_recent"
)

// Resolution is a successfully resolved audio location.
type Resolution struct {
	Tier Tier
	URL  string
	Ref  string
}

// CatalogFallback recovers a job's media from the asset catalog when the
// render result did not reach the job record. The resolver and the
// orchestrator share it.
type CatalogFallback struct {
	catalog client.AssetCatalog
	store   store.JobStore
	folder  string
	limit   int
}

func NewCatalogFallback(catalog client.AssetCatalog, jobStore store.JobStore, folder string, limit int) *CatalogFallback {
	if limit <= 0 {
		limit = client.DefaultCatalogLimit
	}
	return &CatalogFallback{
		catalog: catalog,
		store:   jobStore,
		folder:  folder,
		limit:   limit,
	}
}

// MatchAudio picks the descriptor for job: a stable id containing the job
// id wins over one containing the title, and with neither the most recent
// asset is taken. Descriptors are expected most-recent-first.
func MatchAudio(job *model.Job, assets []model.AssetDescriptor) (model.AssetDescriptor, Tier, bool) {
	usable := make([]model.AssetDescriptor, 0, len(assets))
	for _, a := range assets {
		if a.URL != "" {
			usable = append(usable, a)
		}
	}
	if len(usable) == 0 {
		return model.AssetDescriptor{}, "", false
	}

	id := strings.ToLower(job.ID)
	if id != "" {
		for _, a := range usable {
			if strings.Contains(strings.ToLower(a.StableID), id) {
				return a, TierCatalogMatch, true
			}
		}
	}
	for _, a := range usable {
		if job.TitleMatches(a.StableID) {
			return a, TierCatalogMatch, true
		}
	}
	return usable[0], TierMostRecent, true
}

// ResolveAudio scans recent audio for the job and persists what it finds.
// A nil resolution with a nil error means the catalog had nothing.
func (f *CatalogFallback) ResolveAudio(ctx context.Context, job *model.Job) (*Resolution, error) {
	assets, err := f.catalog.ListRecent(ctx, model.AssetKindAudio, f.folder, f.limit)
	if err != nil {
		return nil, err
	}

	asset, tier, ok := MatchAudio(job, assets)
	if !ok {
		return nil, nil
	}

	f.persist(ctx, job.ID, model.JobUpdate{
		Status:   model.Ptr(model.JobStatusCompleted),
		AudioRef: model.Ptr(asset.StableID),
		AudioURL: model.Ptr(asset.URL),
	}, tier)

	return &Resolution{Tier: tier, URL: asset.URL, Ref: asset.StableID}, nil
}

// Recover runs once after a job completed without any audio location. It
// lists both media, attaches the matched audio and, when the job has no
// cover, the most recent image.
func (f *CatalogFallback) Recover(ctx context.Context, job *model.Job) {
	log := logger.WithJob(job.ID)

	catalog, err := f.catalog.ListAll(ctx, f.folder, f.limit)
	if err != nil {
		log.WithError(err).Warn("Catalog fallback unavailable")
		return
	}

	upd := model.JobUpdate{}
	tier := Tier("")
	if asset, t, ok := MatchAudio(job, catalog.Audio); ok {
		upd.AudioRef = model.Ptr(asset.StableID)
		upd.AudioURL = model.Ptr(asset.URL)
		tier = t
	}
	if job.CoverRef == "" && job.CoverURL == "" {
		for _, img := range catalog.Images {
			if img.URL != "" {
				upd.CoverRef = model.Ptr(img.StableID)
				upd.CoverURL = model.Ptr(img.URL)
				break
			}
		}
	}

	if upd.IsEmpty() {
		log.Warn("Catalog fallback found no media")
		return
	}
	upd.Status = model.Ptr(model.JobStatusCompleted)
	f.persist(ctx, job.ID, upd, tier)
}

// persist writes a fallback result. Failures are logged, the caller still
// uses the value it found.
func (f *CatalogFallback) persist(ctx context.Context, jobID string, upd model.JobUpdate, tier Tier) {
	log := logger.WithJob(jobID).WithField("tier", tier)
	if tier == TierMostRecent {
		log.Warn("No catalog match, attaching most recent asset")
	}
	if err := f.store.Update(ctx, jobID, upd); err != nil {
		log.WithError(err).Error("Failed to persist catalog fallback")
	}
}
