package service

import (
	"context"
	"sync"
	"time"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/client"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/model"
	"github.com/makeasinger/songgen/internal/store"
)

type fakeBackend struct {
	mu       sync.Mutex
	result   *client.RenderResult
	err      error
	requests []*client.RenderRequest
}

func (b *fakeBackend) BuildRequest(in model.Inputs, guidanceScale float64) *client.RenderRequest {
	return &client.RenderRequest{
		Mode:     in.Mode(),
		Endpoint: "http://render.invalid/" + string(in.Mode()),
		Payload: client.RenderPayload{
			Lyrics:        in.Lyrics,
			GuidanceScale: guidanceScale,
		},
	}
}

func (b *fakeBackend) Invoke(_ context.Context, req *client.RenderRequest, _ time.Duration) (*client.RenderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

type fakeCatalog struct {
	mu      sync.Mutex
	audio   []model.AssetDescriptor
	images  []model.AssetDescriptor
	err     error
	lists   int
	deleted []string
}

func (c *fakeCatalog) ListRecent(_ context.Context, kind model.AssetKind, _ string, limit int) ([]model.AssetDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	if c.err != nil {
		return nil, c.err
	}
	assets := c.audio
	if kind == model.AssetKindImage {
		assets = c.images
	}
	if len(assets) > limit {
		assets = assets[:limit]
	}
	return assets, nil
}

func (c *fakeCatalog) ListAll(ctx context.Context, scope string, limit int) (*model.Catalog, error) {
	audio, err := c.ListRecent(ctx, model.AssetKindAudio, scope, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalogUnavailable, "fake", "listing failed", err)
	}
	images, err := c.ListRecent(ctx, model.AssetKindImage, scope, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalogUnavailable, "fake", "listing failed", err)
	}
	return &model.Catalog{Audio: audio, Images: images}, nil
}

func (c *fakeCatalog) Delete(_ context.Context, kind model.AssetKind, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, string(kind)+":"+ref)
	return nil
}

func (c *fakeCatalog) listCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.JobEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event model.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var types []string
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

type failingDispatcher struct{ err error }

func (d failingDispatcher) Dispatch(context.Context, string) error { return d.err }

// observingDispatcher records the notifications already sent when a job is
// dispatched.
type observingDispatcher struct {
	seen       func() []string
	atDispatch []string
}

func (d *observingDispatcher) Dispatch(context.Context, string) error {
	d.atDispatch = d.seen()
	return nil
}

// failingStore wraps a store and fails updates carrying a given status.
type failingStore struct {
	store.JobStore
	failOn model.JobStatus
}

func (s *failingStore) Update(ctx context.Context, id string, upd model.JobUpdate) error {
	if upd.Status != nil && *upd.Status == s.failOn {
		return apperr.New(apperr.KindInternal, "fake", "store unreachable")
	}
	return s.JobStore.Update(ctx, id, upd)
}

func testCloudinary() *client.CloudinaryClient {
	c, err := client.NewCloudinaryClient(&config.CloudinaryConfig{
		CloudName: "demo",
		APIKey:    "key",
		APISecret: "secret",
	})
	if err != nil {
		panic(err)
	}
	return c
}

// fixture wires the services over a memory store with inline dispatch.
type fixture struct {
	store      *store.MemoryStore
	backend    *fakeBackend
	catalog    *fakeCatalog
	notifier   *recordingNotifier
	dispatcher *InlineDispatcher
	generation *GenerationService
	resolver   *ResolverService
	library    *LibraryService
	media      *MediaService
}

func newFixture() *fixture {
	f := &fixture{
		store:      store.NewMemoryStore(),
		backend:    &fakeBackend{result: &client.RenderResult{}},
		catalog:    &fakeCatalog{},
		notifier:   &recordingNotifier{},
		dispatcher: NewInlineDispatcher(),
	}
	fallback := NewCatalogFallback(f.catalog, f.store, "music-generator", 30)
	f.generation = NewGenerationService(f.store, f.backend, f.dispatcher, f.notifier, fallback, GenerationOptions{})
	f.dispatcher.Bind(f.generation)
	f.resolver = NewResolverService(f.store, testCloudinary(), fallback)
	f.library = NewLibraryService(f.store, f.resolver)
	f.media = NewMediaService(f.store, f.catalog)
	return f
}

// seed creates a job directly in the store and applies upd.
func (f *fixture) seed(owner string, in model.Inputs, upd model.JobUpdate) string {
	id, err := f.store.Create(context.Background(), &model.Job{
		OwnerID:       owner,
		Title:         model.DeriveTitle(in),
		Inputs:        in,
		GuidanceScale: DefaultGuidanceScale,
	})
	if err != nil {
		panic(err)
	}
	if !upd.IsEmpty() {
		if err := f.store.Update(context.Background(), id, upd); err != nil {
			panic(err)
		}
	}
	return id
}
