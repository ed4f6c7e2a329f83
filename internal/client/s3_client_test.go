package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/model"
)

func newTestS3(t *testing.T, ttl int) *S3Client {
	return newTestS3At(t, "http://localhost:9000", ttl)
}

func newTestS3At(t *testing.T, endpoint string, ttl int) *S3Client {
	t.Helper()
	c, err := NewS3Client(&config.S3Config{
		Endpoint:        endpoint,
		Region:          "auto",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		BucketName:      "songs",
		PublicURL:       "https://cdn.example.com/",
		AudioPrefix:     "audio",
		ImagePrefix:     "images",
		SignedURLTTL:    ttl,
	})
	require.NoError(t, err)
	return c
}

func TestNewS3Client_Incomplete(t *testing.T) {
	_, err := NewS3Client(&config.S3Config{BucketName: "songs"})
	assert.Error(t, err)
}

func TestS3_KeyFor(t *testing.T) {
	c := newTestS3(t, 0)

	assert.Equal(t, "audio/songs/abc123", c.keyFor(model.AssetKindAudio, "songs/abc123"))
	assert.Equal(t, "audio/songs/abc123", c.keyFor(model.AssetKindAudio, "audio/songs/abc123"))
	assert.Equal(t, "images/cover.png", c.keyFor(model.AssetKindImage, "/cover.png"))
}

func TestS3_ResolvePublic(t *testing.T) {
	c := newTestS3(t, 0)

	u, err := c.ResolveAudio(context.Background(), "songs/abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/audio/songs/abc123", u)

	u, err = c.ResolveCover(context.Background(), "cover.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/cover.png", u)

	_, err = c.ResolveAudio(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestS3_ResolvePresigned(t *testing.T) {
	c := newTestS3(t, 15)

	u, err := c.ResolveAudio(context.Background(), "songs/abc123")
	require.NoError(t, err)
	assert.Contains(t, u, "audio/songs/abc123")
	assert.Contains(t, u, "X-Amz-Signature")
}

func listBucketXML(token string, keys map[string]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>songs</Name>`)
	fmt.Fprintf(&b, "<KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys>", len(keys))
	if token != "" {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%s</NextContinuationToken>", token)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for key, modified := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><LastModified>%s</LastModified><Size>1</Size></Contents>", key, modified)
	}
	b.WriteString("</ListBucketResult>")
	return b.String()
}

// newListingServer serves two ListObjectsV2 pages in key order; the most
// recently modified key is on the second page.
func newListingServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu     sync.Mutex
		tokens []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/songs", r.URL.Path)
		assert.Equal(t, "audio/music-generator/", r.URL.Query().Get("prefix"))

		token := r.URL.Query().Get("continuation-token")
		mu.Lock()
		tokens = append(tokens, token)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/xml")
		if token == "" {
			_, _ = w.Write([]byte(listBucketXML("page-2", map[string]string{
				"audio/music-generator/a.wav": "2026-01-01T10:00:00.000Z",
				"audio/music-generator/b.wav": "2026-01-03T10:00:00.000Z",
			})))
			return
		}
		_, _ = w.Write([]byte(listBucketXML("", map[string]string{
			"audio/music-generator/z.wav": "2026-01-05T10:00:00.000Z",
		})))
	}))
	t.Cleanup(srv.Close)
	return srv, &tokens
}

func TestS3_ListRecentScansAllPages(t *testing.T) {
	srv, tokens := newListingServer(t)
	c := newTestS3At(t, srv.URL, 0)

	assets, err := c.ListRecent(context.Background(), model.AssetKindAudio, "music-generator", 2)
	require.NoError(t, err)

	require.Len(t, assets, 2)
	assert.Equal(t, "audio/music-generator/z.wav", assets[0].StableID)
	assert.Equal(t, "audio/music-generator/b.wav", assets[1].StableID)
	assert.Equal(t, "https://cdn.example.com/audio/music-generator/z.wav", assets[0].URL)
	assert.Equal(t, model.AssetKindAudio, assets[0].Kind)
	require.NotNil(t, assets[0].CreatedAt)
	assert.Equal(t, []string{"", "page-2"}, *tokens)
}

func TestS3_ListRecentStopsAtPageBound(t *testing.T) {
	srv, tokens := newListingServer(t)
	c := newTestS3At(t, srv.URL, 0)
	c.maxListPages = 1

	assets, err := c.ListRecent(context.Background(), model.AssetKindAudio, "music-generator", 5)
	require.NoError(t, err)

	require.Len(t, assets, 2)
	assert.Equal(t, "audio/music-generator/b.wav", assets[0].StableID)
	assert.Len(t, *tokens, 1)
}

func TestS3_ListRecentUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer srv.Close()

	c := newTestS3At(t, srv.URL, 0)
	_, err := c.ListAll(context.Background(), "music-generator", 10)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCatalogUnavailable))
}

func TestS3_Delete(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		mu.Lock()
		deleted = append(deleted, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestS3At(t, srv.URL, 0)
	require.NoError(t, c.Delete(context.Background(), model.AssetKindAudio, "songs/abc123"))
	require.NoError(t, c.Delete(context.Background(), model.AssetKindImage, "images/cover.png"))
	require.NoError(t, c.Delete(context.Background(), model.AssetKindImage, ""))

	assert.Equal(t, []string{"/songs/audio/songs/abc123", "/songs/images/cover.png"}, deleted)
}
