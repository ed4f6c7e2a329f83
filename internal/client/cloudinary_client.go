package client

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/asset"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
)

// CoverTransformation is the fixed thumbnail applied to cover images.
const CoverTransformation = "w_300,h_300,c_fill,q_auto,f_auto"

const cloudinaryMaxResults = 500

// CloudinaryClient implements AssetProvider for Cloudinary
type CloudinaryClient struct {
	cld       *cloudinary.Cloudinary
	cloudName string
	apiKey    string
	apiSecret string
}

// NewCloudinaryClient creates a new Cloudinary client
func NewCloudinaryClient(cfg *config.CloudinaryConfig) (*CloudinaryClient, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	if cfg.APIBaseURL != "" {
		cld.Config.API.UploadPrefix = cfg.APIBaseURL
	}
	cld.Config.URL.Secure = true
	cld.Config.URL.SignURL = cfg.SignURLs && cfg.APISecret != ""
	// Delivery URLs are written back to jobs and must be stable.
	cld.Config.URL.Analytics = false
	cld.Config.URL.ForceVersion = false

	return &CloudinaryClient{
		cld:       cld,
		cloudName: cfg.CloudName,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
	}, nil
}

// assetType maps an asset kind to Cloudinary's resource category.
// Audio is stored under "video".
func assetType(kind model.AssetKind) api.AssetType {
	if kind == model.AssetKindAudio {
		return api.Video
	}
	return api.Image
}

// ResolveAudio builds the delivery URL of an audio asset
func (c *CloudinaryClient) ResolveAudio(_ context.Context, ref string) (string, error) {
	const op = "cloudinary.resolve_audio"
	if ref == "" {
		return "", apperr.New(apperr.KindInvalidArgument, op, "empty public id")
	}
	a, err := c.cld.Video(ref)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidArgument, op, "invalid public id", err)
	}
	return deliveryURL(op, a)
}

// ResolveCover builds the thumbnail URL of a cover image
func (c *CloudinaryClient) ResolveCover(_ context.Context, ref string) (string, error) {
	const op = "cloudinary.resolve_cover"
	if ref == "" {
		return "", apperr.New(apperr.KindInvalidArgument, op, "empty public id")
	}
	a, err := c.cld.Image(ref)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidArgument, op, "invalid public id", err)
	}
	a.Transformation = CoverTransformation
	return deliveryURL(op, a)
}

func deliveryURL(op string, a *asset.Asset) (string, error) {
	u, err := a.String()
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidArgument, op, "failed to build delivery url", err)
	}
	return u, nil
}

// ListRecent lists the most recent assets of one kind under scope
func (c *CloudinaryClient) ListRecent(ctx context.Context, kind model.AssetKind, scope string, limit int) ([]model.AssetDescriptor, error) {
	const op = "cloudinary.list_recent"
	log := logger.WithComponent("cloudinary")
	limit = normalizeLimit(limit, cloudinaryMaxResults)

	log.Debugf("→ list %s prefix=%q max=%d", assetType(kind), scope, limit)
	res, err := c.cld.Admin.Assets(ctx, admin.AssetsParams{
		AssetType:    assetType(kind),
		DeliveryType: string(api.Upload),
		Prefix:       scope,
		MaxResults:   limit,
	})
	if err != nil {
		log.Warnf("✗ list %s failed: %v", assetType(kind), err)
		return nil, apperr.Wrap(apperr.KindCatalogUnavailable, op, "failed to list assets", err)
	}
	if res.Error.Message != "" {
		log.Warnf("✗ list %s rejected: %s", assetType(kind), res.Error.Message)
		return nil, apperr.New(apperr.KindCatalogUnavailable, op, "cloudinary API error: "+res.Error.Message)
	}

	assets := make([]model.AssetDescriptor, 0, len(res.Assets))
	for _, r := range res.Assets {
		if r.PublicID == "" {
			continue
		}
		d := model.AssetDescriptor{Kind: kind, StableID: r.PublicID, URL: r.SecureURL}
		if !r.CreatedAt.IsZero() {
			ts := r.CreatedAt
			d.CreatedAt = &ts
		}
		assets = append(assets, d)
	}
	log.Debugf("← %d %s assets", len(assets), assetType(kind))

	sortMostRecentFirst(assets)
	if len(assets) > limit {
		assets = assets[:limit]
	}
	return assets, nil
}

// ListAll lists recent audio and images under scope
func (c *CloudinaryClient) ListAll(ctx context.Context, scope string, limit int) (*model.Catalog, error) {
	return listAll(ctx, c, scope, limit)
}

// Delete destroys an asset. A missing asset counts as deleted.
func (c *CloudinaryClient) Delete(ctx context.Context, kind model.AssetKind, ref string) error {
	const op = "cloudinary.delete"
	if ref == "" {
		return nil
	}

	invalidate := true
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     ref,
		Type:         string(api.Upload),
		ResourceType: string(assetType(kind)),
		Invalidate:   &invalidate,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindCatalogUnavailable, op, "failed to destroy asset", err)
	}
	if res.Error.Message != "" {
		return apperr.New(apperr.KindCatalogUnavailable, op, "cloudinary API error: "+res.Error.Message)
	}

	switch res.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("failed to delete %s %s: %s", kind, ref, res.Result)
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *CloudinaryClient) IsConfigured() bool {
	return c.cloudName != "" && c.apiKey != "" && c.apiSecret != ""
}

// sortMostRecentFirst orders by creation time when every asset carries
// one; otherwise the provider's order is kept.
func sortMostRecentFirst(assets []model.AssetDescriptor) {
	for _, a := range assets {
		if a.CreatedAt == nil {
			return
		}
	}
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].CreatedAt.After(*assets[j].CreatedAt)
	})
}
