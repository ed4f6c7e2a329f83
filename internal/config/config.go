package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Store      StoreConfig
	Queue      QueueConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Zitadel    ZitadelConfig
	Gateway    GatewayConfig
	Render     RenderConfig
	Storage    StorageConfig
	Cloudinary CloudinaryConfig
	S3         S3Config
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StoreConfig selects the job record backend: "redis", "postgres" or "memory".
type StoreConfig struct {
	Driver      string
	PostgresURL string
	JobTTLHours int // redis only, 0 keeps records forever
}

// QueueConfig selects how background units are dispatched: "asynq" or "inline".
type QueueConfig struct {
	Mode        string
	Concurrency int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	GeneratePerHour int
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

// RenderConfig holds the three mode-specific render endpoints and the
// fixed generation parameters sent with every request.
type RenderConfig struct {
	DescriptionURL     string
	DescribedLyricsURL string
	LyricsURL          string
	Key                string
	Secret             string
	Timeout            int // seconds
	GuidanceScale      float64
	AudioDuration      int
	Seed               int
	InferStep          int
}

// Deadline returns the render call deadline.
func (c RenderConfig) Deadline() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// StorageConfig selects the asset provider: "cloudinary" or "s3".
type StorageConfig struct {
	Provider     string
	Folder       string
	CatalogLimit int
}

type CloudinaryConfig struct {
	CloudName  string
	APIKey     string
	APISecret  string
	APIBaseURL string
	SignURLs   bool
}

// S3Config covers AWS S3 and S3-compatible stores such as Cloudflare R2.
type S3Config struct {
	AccountID       string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	AudioPrefix     string
	ImagePrefix     string
	SignedURLTTL    int // minutes, 0 disables presigning
}

func Load() (*Config, error) {
	// Optional .env for local development; real env vars win.
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("POSTGRES_URL")
	readSecret("MODAL_KEY")
	readSecret("MODAL_SECRET")
	readSecret("CLOUDINARY_API_KEY")
	readSecret("CLOUDINARY_API_SECRET")
	readSecret("S3_ACCESS_KEY_ID")
	readSecret("S3_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("store.driver", "STORE_DRIVER")
	_ = v.BindEnv("store.postgres_url", "POSTGRES_URL")
	_ = v.BindEnv("store.job_ttl_hours", "JOB_TTL_HOURS")
	_ = v.BindEnv("queue.mode", "QUEUE_MODE")
	_ = v.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("render.description_url", "GENERATE_FROM_DESCRIPTION")
	_ = v.BindEnv("render.described_lyrics_url", "GENERATE_FROM_DESCRIBED_LYRICS")
	_ = v.BindEnv("render.lyrics_url", "GENERATE_WITH_LYRICS")
	_ = v.BindEnv("render.key", "MODAL_KEY")
	_ = v.BindEnv("render.secret", "MODAL_SECRET")
	_ = v.BindEnv("render.timeout", "RENDER_TIMEOUT")
	_ = v.BindEnv("render.guidance_scale", "RENDER_GUIDANCE_SCALE")
	_ = v.BindEnv("storage.provider", "STORAGE_PROVIDER")
	_ = v.BindEnv("storage.folder", "STORAGE_FOLDER")
	_ = v.BindEnv("storage.catalog_limit", "STORAGE_CATALOG_LIMIT")
	_ = v.BindEnv("cloudinary.cloud_name", "CLOUDINARY_CLOUD_NAME")
	_ = v.BindEnv("cloudinary.api_key", "CLOUDINARY_API_KEY")
	_ = v.BindEnv("cloudinary.api_secret", "CLOUDINARY_API_SECRET")
	_ = v.BindEnv("cloudinary.sign_urls", "CLOUDINARY_SIGN_URLS")
	_ = v.BindEnv("s3.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("s3.region", "AWS_REGION")
	_ = v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = v.BindEnv("s3.bucket_name", "S3_BUCKET_NAME")
	_ = v.BindEnv("s3.public_url", "S3_PUBLIC_URL")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", "redis")
	v.SetDefault("store.job_ttl_hours", 0)
	v.SetDefault("queue.mode", "asynq")
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.generate_per_hour", 10)

	// Render defaults
	v.SetDefault("render.timeout", 120)
	v.SetDefault("render.guidance_scale", 7.5)
	v.SetDefault("render.audio_duration", 180)
	v.SetDefault("render.seed", -1)
	v.SetDefault("render.infer_step", 60)

	// Storage defaults
	v.SetDefault("storage.provider", "cloudinary")
	v.SetDefault("storage.folder", "music-generator")
	v.SetDefault("storage.catalog_limit", 30)
	v.SetDefault("cloudinary.api_base_url", "https://api.cloudinary.com")
	v.SetDefault("cloudinary.sign_urls", false)
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.audio_prefix", "audio")
	v.SetDefault("s3.image_prefix", "images")
	v.SetDefault("s3.signed_url_ttl", 60)

	v.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			LogFormat: v.GetString("server.log_format"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("store.driver")),
			PostgresURL: v.GetString("store.postgres_url"),
			JobTTLHours: v.GetInt("store.job_ttl_hours"),
		},
		Queue: QueueConfig{
			Mode:        strings.ToLower(v.GetString("queue.mode")),
			Concurrency: v.GetInt("queue.concurrency"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		Render: RenderConfig{
			DescriptionURL:     v.GetString("render.description_url"),
			DescribedLyricsURL: v.GetString("render.described_lyrics_url"),
			LyricsURL:          v.GetString("render.lyrics_url"),
			Key:                v.GetString("render.key"),
			Secret:             v.GetString("render.secret"),
			Timeout:            v.GetInt("render.timeout"),
			GuidanceScale:      v.GetFloat64("render.guidance_scale"),
			AudioDuration:      v.GetInt("render.audio_duration"),
			Seed:               v.GetInt("render.seed"),
			InferStep:          v.GetInt("render.infer_step"),
		},
		Storage: StorageConfig{
			Provider:     strings.ToLower(v.GetString("storage.provider")),
			Folder:       v.GetString("storage.folder"),
			CatalogLimit: v.GetInt("storage.catalog_limit"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName:  v.GetString("cloudinary.cloud_name"),
			APIKey:     v.GetString("cloudinary.api_key"),
			APISecret:  v.GetString("cloudinary.api_secret"),
			APIBaseURL: v.GetString("cloudinary.api_base_url"),
			SignURLs:   v.GetBool("cloudinary.sign_urls"),
		},
		S3: S3Config{
			AccountID:       v.GetString("s3.account_id"),
			Endpoint:        v.GetString("s3.endpoint"),
			Region:          v.GetString("s3.region"),
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			BucketName:      v.GetString("s3.bucket_name"),
			PublicURL:       v.GetString("s3.public_url"),
			AudioPrefix:     v.GetString("s3.audio_prefix"),
			ImagePrefix:     v.GetString("s3.image_prefix"),
			SignedURLTTL:    v.GetInt("s3.signed_url_ttl"),
		},
	}

	return cfg, nil
}
