package client

import (
	"context"
	"fmt"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/model"
)

const DefaultCatalogLimit = 30

// AssetURLResolver builds playable/display URLs from stable identifiers
// without a network round trip.
type AssetURLResolver interface {
	ResolveAudio(ctx context.Context, ref string) (string, error)
	ResolveCover(ctx context.Context, ref string) (string, error)
}

// AssetCatalog lists and deletes media in the external object store.
type AssetCatalog interface {
	ListRecent(ctx context.Context, kind model.AssetKind, scope string, limit int) ([]model.AssetDescriptor, error)
	ListAll(ctx context.Context, scope string, limit int) (*model.Catalog, error)
	Delete(ctx context.Context, kind model.AssetKind, ref string) error
}

// AssetProvider is a storage backend offering both capabilities.
type AssetProvider interface {
	AssetURLResolver
	AssetCatalog
	IsConfigured() bool
}

// NewAssetProvider builds the provider selected by storage.provider.
func NewAssetProvider(cfg *config.Config) (AssetProvider, error) {
	switch cfg.Storage.Provider {
	case "", "cloudinary":
		return NewCloudinaryClient(&cfg.Cloudinary)
	case "s3", "r2":
		return NewS3Client(&cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

// listAll performs one listing per medium. Either failing fails the whole.
func listAll(ctx context.Context, catalog AssetCatalog, scope string, limit int) (*model.Catalog, error) {
	audio, err := catalog.ListRecent(ctx, model.AssetKindAudio, scope, limit)
	if err != nil {
		return nil, asCatalogUnavailable("catalog.list_all", err)
	}
	images, err := catalog.ListRecent(ctx, model.AssetKindImage, scope, limit)
	if err != nil {
		return nil, asCatalogUnavailable("catalog.list_all", err)
	}
	return &model.Catalog{Audio: audio, Images: images}, nil
}

func asCatalogUnavailable(op string, err error) error {
	if apperr.Is(err, apperr.KindCatalogUnavailable) {
		return err
	}
	return apperr.Wrap(apperr.KindCatalogUnavailable, op, "catalog listing failed", err)
}

func normalizeLimit(limit, max int) int {
	if limit <= 0 {
		limit = DefaultCatalogLimit
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
