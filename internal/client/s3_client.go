package client

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/model"
)

// S3Client implements AssetProvider for S3 and S3-compatible stores (R2).
// Audio and images live under separate key prefixes.
type S3Client struct {
	s3Client    *s3.Client
	presigner   *s3.PresignClient
	bucketName  string
	publicURL   string
	audioPrefix string
	imagePrefix string
	signedTTL   time.Duration

	maxListPages int
}

// NewS3Client creates a new S3 storage client
func NewS3Client(cfg *config.S3Config) (*S3Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 configuration incomplete")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL: endpoint,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = endpoint != ""
	})

	return &S3Client{
		s3Client:    s3Client,
		presigner:   s3.NewPresignClient(s3Client),
		bucketName:  cfg.BucketName,
		publicURL:   strings.TrimRight(cfg.PublicURL, "/"),
		audioPrefix: strings.Trim(cfg.AudioPrefix, "/"),
		imagePrefix: strings.Trim(cfg.ImagePrefix, "/"),
		signedTTL:   time.Duration(cfg.SignedURLTTL) * time.Minute,

		maxListPages: s3MaxListPages,
	}, nil
}

// ResolveAudio returns a URL for an audio key
func (c *S3Client) ResolveAudio(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", apperr.New(apperr.KindInvalidArgument, "s3.resolve_audio", "empty key")
	}
	return c.urlFor(ctx, c.keyFor(model.AssetKindAudio, ref))
}

// ResolveCover returns a URL for a cover image key. S3 has no image
// transformations, so the original is served.
func (c *S3Client) ResolveCover(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", apperr.New(apperr.KindInvalidArgument, "s3.resolve_cover", "empty key")
	}
	return c.urlFor(ctx, c.keyFor(model.AssetKindImage, ref))
}

func (c *S3Client) prefixFor(kind model.AssetKind) string {
	if kind == model.AssetKindAudio {
		return c.audioPrefix
	}
	return c.imagePrefix
}

// keyFor places ref under the medium's prefix unless it already is.
func (c *S3Client) keyFor(kind model.AssetKind, ref string) string {
	ref = strings.TrimLeft(ref, "/")
	prefix := c.prefixFor(kind)
	if prefix == "" || strings.HasPrefix(ref, prefix+"/") {
		return ref
	}
	return prefix + "/" + ref
}

// urlFor presigns locally when a TTL is configured, else builds the public URL.
func (c *S3Client) urlFor(ctx context.Context, key string) (string, error) {
	if c.signedTTL > 0 {
		return c.GetSignedURL(ctx, key, c.signedTTL)
	}
	return c.GetPublicURL(key), nil
}

// s3MaxListPages bounds how many ListObjectsV2 pages (1000 keys each) a
// listing scans. Keys past the bound are not considered for recency.
const s3MaxListPages = 20

// ListRecent lists keys under the medium prefix and scope, most recently
// modified first. S3 lists in key order, so every page up to
// s3MaxListPages is scanned before ordering by LastModified.
func (c *S3Client) ListRecent(ctx context.Context, kind model.AssetKind, scope string, limit int) ([]model.AssetDescriptor, error) {
	const op = "s3.list_recent"
	log := logger.WithComponent("s3")
	limit = normalizeLimit(limit, 1000)

	prefix := path.Join(c.prefixFor(kind), scope)
	if prefix != "" && prefix != "." {
		prefix += "/"
	} else {
		prefix = ""
	}

	type object struct {
		key      string
		modified time.Time
	}
	var objects []object

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucketName),
		Prefix: aws.String(prefix),
	})
	for pages := 0; paginator.HasMorePages(); pages++ {
		if pages == c.maxListPages {
			log.Warnf("Listing %q stopped after %d pages", prefix, pages)
			break
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.Warnf("✗ list %s: %v", prefix, err)
			return nil, apperr.Wrap(apperr.KindCatalogUnavailable, op, "failed to list objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, object{key: key, modified: aws.ToTime(obj.LastModified)})
		}
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].modified.After(objects[j].modified)
	})
	if len(objects) > limit {
		objects = objects[:limit]
	}

	assets := make([]model.AssetDescriptor, 0, len(objects))
	for _, obj := range objects {
		assetURL, err := c.urlFor(ctx, obj.key)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindCatalogUnavailable, op, "failed to build URL", err)
		}
		modified := obj.modified
		assets = append(assets, model.AssetDescriptor{
			Kind:      kind,
			StableID:  obj.key,
			URL:       assetURL,
			CreatedAt: &modified,
		})
	}
	return assets, nil
}

// ListAll lists recent audio and images under scope
func (c *S3Client) ListAll(ctx context.Context, scope string, limit int) (*model.Catalog, error) {
	return listAll(ctx, c, scope, limit)
}

// Delete removes an object. S3 deletes are idempotent.
func (c *S3Client) Delete(ctx context.Context, kind model.AssetKind, ref string) error {
	if ref == "" {
		return nil
	}
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(c.keyFor(kind, ref)),
	}

	_, err := c.s3Client.DeleteObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// GetSignedURL generates a presigned URL for temporary access
func (c *S3Client) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	}

	presignedReq, err := c.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}

// GetPublicURL returns the public CDN URL for a key
func (c *S3Client) GetPublicURL(key string) string {
	if c.publicURL != "" {
		return fmt.Sprintf("%s/%s", c.publicURL, key)
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", c.bucketName, key)
}

// IsConfigured returns true if the client has valid configuration
func (c *S3Client) IsConfigured() bool {
	return c.s3Client != nil && c.bucketName != ""
}
