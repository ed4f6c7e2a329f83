package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/model"
)

var catalogAudio = []model.AssetDescriptor{
	{Kind: model.AssetKindAudio, StableID: "music-generator/newest-upload", URL: "https://cdn/newest.wav"},
	{Kind: model.AssetKindAudio, StableID: "music-generator/summer-rain-42", URL: "https://cdn/summer.wav"},
	{Kind: model.AssetKindAudio, StableID: "music-generator/older", URL: "https://cdn/older.wav"},
}

func TestResolvePlayURL_StoredURLWins(t *testing.T) {
	f := newFixture()
	f.catalog.audio = catalogAudio
	id := f.seed("user-a", model.Inputs{DescribedLyrics: "summer rain"}, model.JobUpdate{
		Status:   model.Ptr(model.JobStatusCompleted),
		AudioURL: model.Ptr("https://cdn/stored.wav"),
		AudioRef: model.Ptr("music-generator/stored"),
	})

	url, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/stored.wav", url)
	assert.Zero(t, f.catalog.listCalls())
}

func TestResolvePlayURL_Idempotent(t *testing.T) {
	f := newFixture()
	f.catalog.audio = catalogAudio
	id := f.seed("user-a", model.Inputs{DescribedLyrics: "summer rain"}, model.JobUpdate{
		Status: model.Ptr(model.JobStatusCompleted),
	})

	first, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 1, f.catalog.listCalls())

	second, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.catalog.listCalls())

	job, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), job.ListenCount)
}

func TestResolvePlayURL_RefFallback(t *testing.T) {
	f := newFixture()
	id := f.seed("user-a", model.Inputs{Lyrics: "x"}, model.JobUpdate{
		Status:   model.Ptr(model.JobStatusCompleted),
		AudioRef: model.Ptr("songs/abc123"),
	})

	url, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	require.NoError(t, err)
	assert.Contains(t, url, "songs/abc123")
	assert.Contains(t, url, "/video/upload/")
	assert.Zero(t, f.catalog.listCalls())

	job, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, url, job.AudioURL)
	assert.Equal(t, int64(1), job.ListenCount)
}

func TestResolvePlayURL_CatalogTitleMatch(t *testing.T) {
	f := newFixture()
	f.catalog.audio = catalogAudio
	id := f.seed("user-a", model.Inputs{DescribedLyrics: "SUMMER-RAIN"}, model.JobUpdate{
		Status: model.Ptr(model.JobStatusCompleted),
	})

	url, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/summer.wav", url)

	job, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/summer.wav", job.AudioURL)
	assert.Equal(t, "music-generator/summer-rain-42", job.AudioRef)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestResolvePlayURL_IDMatchPreferredOverTitle(t *testing.T) {
	f := newFixture()
	id := f.seed("user-a", model.Inputs{DescribedLyrics: "summer-rain"}, model.JobUpdate{
		Status: model.Ptr(model.JobStatusCompleted),
	})
	f.catalog.audio = append([]model.AssetDescriptor{}, catalogAudio...)
	f.catalog.audio = append(f.catalog.audio, model.AssetDescriptor{
		Kind: model.AssetKindAudio, StableID: "music-generator/" + id, URL: "https://cdn/by-id.wav",
	})

	url, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/by-id.wav", url)
}

func TestResolvePlayURL_MostRecentWhenNoMatch(t *testing.T) {
	f := newFixture()
	f.catalog.audio = catalogAudio
	id := f.seed("user-a", model.Inputs{DescribedLyrics: "something else"}, model.JobUpdate{
		Status: model.Ptr(model.JobStatusCompleted),
	})

	url, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/newest.wav", url)
}

func TestResolvePlayURL_AssetUnavailable(t *testing.T) {
	f := newFixture()
	id := f.seed("user-a", model.Inputs{Lyrics: "x"}, model.JobUpdate{Status: model.Ptr(model.JobStatusCompleted)})

	_, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	assert.True(t, apperr.Is(err, apperr.KindAssetUnavailable))

	f.catalog.err = errors.New("catalog down")
	_, err = f.resolver.ResolvePlayURL(context.Background(), id, "user-a")
	assert.True(t, apperr.Is(err, apperr.KindAssetUnavailable))

	job, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, job.ListenCount)
}

func TestResolvePlayURL_StatusGates(t *testing.T) {
	f := newFixture()
	processing := f.seed("user-a", model.Inputs{Lyrics: "x"}, model.JobUpdate{})
	failed := f.seed("user-a", model.Inputs{Lyrics: "x"}, model.JobUpdate{Status: model.Ptr(model.JobStatusFailed)})

	_, err := f.resolver.ResolvePlayURL(context.Background(), processing, "user-a")
	assert.True(t, apperr.Is(err, apperr.KindNotReady))

	_, err = f.resolver.ResolvePlayURL(context.Background(), failed, "user-a")
	assert.True(t, apperr.Is(err, apperr.KindGenerationFailed))

	_, err = f.resolver.ResolvePlayURL(context.Background(), "missing", "user-a")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestResolvePlayURL_UnauthorizedRegardlessOfStatus(t *testing.T) {
	f := newFixture()
	statuses := []model.JobUpdate{
		{},
		{Status: model.Ptr(model.JobStatusFailed)},
		{Status: model.Ptr(model.JobStatusCompleted), AudioURL: model.Ptr("https://cdn/a.wav")},
	}

	for _, upd := range statuses {
		id := f.seed("user-a", model.Inputs{Lyrics: "x"}, upd)
		_, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-b")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)
	}
}

func TestResolvePlayURL_PublishedReadableByOthers(t *testing.T) {
	f := newFixture()
	id := f.seed("user-a", model.Inputs{Lyrics: "x"}, model.JobUpdate{
		Status:    model.Ptr(model.JobStatusCompleted),
		AudioURL:  model.Ptr("https://cdn/a.wav"),
		Published: model.Ptr(true),
	})

	url, err := f.resolver.ResolvePlayURL(context.Background(), id, "user-b")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.wav", url)
}

func TestResolveCoverURL(t *testing.T) {
	f := newFixture()
	withRef := f.seed("user-a", model.Inputs{Lyrics: "x"}, model.JobUpdate{
		Status:   model.Ptr(model.JobStatusCompleted),
		CoverRef: model.Ptr("covers/abc"),
	})
	without := f.seed("user-a", model.Inputs{Lyrics: "x"}, model.JobUpdate{Status: model.Ptr(model.JobStatusCompleted)})

	url, err := f.resolver.ResolveCoverURL(context.Background(), withRef, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/w_300,h_300,c_fill,q_auto,f_auto/covers/abc", url)

	job, err := f.store.Get(context.Background(), withRef)
	require.NoError(t, err)
	assert.Equal(t, url, job.CoverURL)

	_, err = f.resolver.ResolveCoverURL(context.Background(), without, "user-a")
	assert.True(t, apperr.Is(err, apperr.KindAssetUnavailable))
}

func TestMatchAudio_SkipsAssetsWithoutURL(t *testing.T) {
	job := &model.Job{ID: "job-1", Title: "Untitled"}
	_, _, ok := MatchAudio(job, []model.AssetDescriptor{{StableID: "job-1"}})
	assert.False(t, ok)

	asset, tier, ok := MatchAudio(job, []model.AssetDescriptor{
		{StableID: "a", URL: "https://cdn/a"},
		{StableID: "prefix-JOB-1", URL: "https://cdn/b"},
	})
	require.True(t, ok)
	assert.Equal(t, TierCatalogMatch, tier)
	assert.Equal(t, "https://cdn/b", asset.URL)
}
