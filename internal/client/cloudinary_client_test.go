package client

import (
	"context"
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

func newTestCloudinary(t *testing.T, apiBase string, signed bool) *CloudinaryClient {
	t.Helper()
	c, err := NewCloudinaryClient(&config.CloudinaryConfig{
		CloudName:  "demo",
		APIKey:     "key",
		APISecret:  "secret",
		APIBaseURL: apiBase,
		SignURLs:   signed,
	})
	require.NoError(t, err)
	return c
}

func TestCloudinary_ResolveAudio(t *testing.T) {
	c := newTestCloudinary(t, "", false)

	u, err := c.ResolveAudio(context.Background(), "songs/abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/video/upload/songs/abc123", u)
}

func TestCloudinary_ResolveCover(t *testing.T) {
	c := newTestCloudinary(t, "", false)

	u, err := c.ResolveCover(context.Background(), "covers/abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/w_300,h_300,c_fill,q_auto,f_auto/covers/abc123", u)
}

func TestCloudinary_ResolveEmptyRef(t *testing.T) {
	c := newTestCloudinary(t, "", false)

	_, err := c.ResolveAudio(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	_, err = c.ResolveCover(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestCloudinary_SignedURLIsDeterministic(t *testing.T) {
	c := newTestCloudinary(t, "", true)

	first, err := c.ResolveAudio(context.Background(), "songs/abc123")
	require.NoError(t, err)
	second, err := c.ResolveAudio(context.Background(), "songs/abc123")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "/video/upload/s--")
	assert.True(t, strings.HasSuffix(first, "--/songs/abc123"))
}

func TestCloudinary_ListRecent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v1_1/demo/resources/video"), r.URL.Path)
		assert.Equal(t, "music-generator", r.URL.Query().Get("prefix"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resources":[
			{"public_id":"music-generator/older","secure_url":"https://cdn/older.wav","created_at":"2026-01-01T10:00:00Z"},
			{"public_id":"music-generator/newest","secure_url":"https://cdn/newest.wav","created_at":"2026-01-02T10:00:00Z"},
			{"public_id":"music-generator/middle","secure_url":"https://cdn/middle.wav","created_at":"2026-01-01T12:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	c := newTestCloudinary(t, srv.URL, false)
	assets, err := c.ListRecent(context.Background(), model.AssetKindAudio, "music-generator", 2)
	require.NoError(t, err)

	require.Len(t, assets, 2)
	assert.Equal(t, "music-generator/newest", assets[0].StableID)
	assert.Equal(t, "music-generator/middle", assets[1].StableID)
	assert.Equal(t, model.AssetKindAudio, assets[0].Kind)
	assert.Equal(t, "https://cdn/newest.wav", assets[0].URL)
}

func TestCloudinary_ListAllFailsWhenEitherCallFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/v1_1/demo/resources/image") {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"internal error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"resources":[{"public_id":"a","secure_url":"https://cdn/a"}]}`))
	}))
	defer srv.Close()

	c := newTestCloudinary(t, srv.URL, false)
	_, err := c.ListAll(context.Background(), "music-generator", 30)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCatalogUnavailable))
}

func TestCloudinary_ListUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestCloudinary(t, srv.URL, false)
	_, err := c.ListRecent(context.Background(), model.AssetKindImage, "", 5)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCatalogUnavailable))
}

func TestCloudinary_ListAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/v1_1/demo/resources/image") {
			_, _ = w.Write([]byte(`{"resources":[{"public_id":"img","secure_url":"https://cdn/img.png"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"resources":[{"public_id":"aud","secure_url":"https://cdn/aud.wav"}]}`))
	}))
	defer srv.Close()

	c := newTestCloudinary(t, srv.URL, false)
	catalog, err := c.ListAll(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, catalog.Audio, 1)
	require.Len(t, catalog.Images, 1)
	assert.Equal(t, model.AssetKindImage, catalog.Images[0].Kind)
	assert.Equal(t, "aud", catalog.Audio[0].StableID)
}

func TestCloudinary_DeleteIsIdempotent(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.URL.Path)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("public_id") == "gone" {
			_, _ = w.Write([]byte(`{"result":"not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	c := newTestCloudinary(t, srv.URL, false)

	require.NoError(t, c.Delete(context.Background(), model.AssetKindAudio, "songs/abc"))
	require.NoError(t, c.Delete(context.Background(), model.AssetKindImage, "gone"))
	require.NoError(t, c.Delete(context.Background(), model.AssetKindImage, ""))

	assert.Equal(t, []string{"/v1_1/demo/video/destroy", "/v1_1/demo/image/destroy"}, calls)
}

func TestCloudinary_IsConfigured(t *testing.T) {
	assert.True(t, newTestCloudinary(t, "", false).IsConfigured())

	c, err := NewCloudinaryClient(&config.CloudinaryConfig{CloudName: "demo"})
	require.NoError(t, err)
	assert.False(t, c.IsConfigured())
}
