package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songgen/internal/client"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/service"
	"github.com/makeasinger/songgen/internal/store"
	ws "github.com/makeasinger/songgen/internal/websocket"
)

// taskSlack is added to the render deadline for the store and catalog
// work a task does around the render call.
const taskSlack = time.Minute

// components is the wired service graph shared by every subcommand.
type components struct {
	cfg *config.Config

	redis       *redis.Client
	asynqClient *asynq.Client
	pool        *pgxpool.Pool

	store    store.JobStore
	assets   client.AssetProvider
	render   *client.RenderClient
	hub      *ws.Hub
	events   *service.RedisNotifier
	inline   *service.InlineDispatcher
	fallback *service.CatalogFallback

	generation *service.GenerationService
	resolver   *service.ResolverService
	library    *service.LibraryService
	media      *service.MediaService
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{cfg: cfg, hub: ws.NewHub()}

	c.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := c.redis.Ping(ctx).Err(); err != nil {
		logger.Warnf("Redis not available: %v", err)
	}

	if err := c.openStore(ctx); err != nil {
		c.Close()
		return nil, err
	}

	assets, err := client.NewAssetProvider(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create asset provider: %w", err)
	}
	if !assets.IsConfigured() {
		logger.Warnf("Storage provider %q is not fully configured", cfg.Storage.Provider)
	}
	c.assets = assets

	c.render = client.NewRenderClient(&cfg.Render)
	if !c.render.IsConfigured() {
		logger.Warnf("No render endpoint configured, submissions will fail")
	}

	c.fallback = service.NewCatalogFallback(assets, c.store, cfg.Storage.Folder, cfg.Storage.CatalogLimit)
	c.events = service.NewRedisNotifier(c.redis)

	var (
		dispatcher service.Dispatcher
		notifier   service.Notifier
	)
	switch cfg.Queue.Mode {
	case "", "asynq":
		c.asynqClient = asynq.NewClient(redisOpt(cfg))
		dispatcher = service.NewAsynqDispatcher(c.asynqClient, cfg.Render.Deadline()+taskSlack)
		// Workers may run elsewhere; the hub is fed by the relay.
		notifier = c.events
	case "inline":
		c.inline = service.NewInlineDispatcher()
		dispatcher = c.inline
		notifier = service.MultiNotifier{c.hub, c.events}
	default:
		c.Close()
		return nil, fmt.Errorf("unknown queue mode %q", cfg.Queue.Mode)
	}

	c.generation = service.NewGenerationService(c.store, c.render, dispatcher, notifier, c.fallback, service.GenerationOptions{
		Deadline:      cfg.Render.Deadline(),
		GuidanceScale: cfg.Render.GuidanceScale,
	})
	if c.inline != nil {
		c.inline.Bind(c.generation)
	}
	c.resolver = service.NewResolverService(c.store, assets, c.fallback)
	c.library = service.NewLibraryService(c.store, c.resolver)
	c.media = service.NewMediaService(c.store, assets)

	return c, nil
}

func (c *components) openStore(ctx context.Context) error {
	switch c.cfg.Store.Driver {
	case "", "redis":
		ttl := time.Duration(c.cfg.Store.JobTTLHours) * time.Hour
		c.store = store.NewRedisStore(c.redis, ttl)
	case "postgres":
		if c.cfg.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres store")
		}
		pool, err := pgxpool.New(ctx, c.cfg.Store.PostgresURL)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		c.pool = pool
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate postgres store: %w", err)
		}
		c.store = pg
	case "memory":
		logger.Warnf("Using in-memory job store, records are lost on restart")
		c.store = store.NewMemoryStore()
	default:
		return fmt.Errorf("unknown store driver %q", c.cfg.Store.Driver)
	}
	logger.Infof("Job store: %s", c.storeName())
	return nil
}

func (c *components) storeName() string {
	if c.cfg.Store.Driver == "" {
		return "redis"
	}
	return c.cfg.Store.Driver
}

// Close waits for inline units and releases connections.
func (c *components) Close() {
	if c.inline != nil {
		c.inline.Wait()
	}
	if c.asynqClient != nil {
		_ = c.asynqClient.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}
