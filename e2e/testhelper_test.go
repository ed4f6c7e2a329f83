package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songgen/internal/auth"
	"github.com/makeasinger/songgen/internal/client"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/handler"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/middleware"
	"github.com/makeasinger/songgen/internal/service"
	"github.com/makeasinger/songgen/internal/store"
	"github.com/makeasinger/songgen/internal/worker"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUserID    = "test-user-123"
	testDB        = 15 // use DB 15 for tests to avoid collision
)

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.RedisStore
}

func redisAddr() string {
	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// setupApp creates a Fiber app wired like cmd/server: redis job store,
// asynq dispatch and an asynq worker in-process. The render backend and
// the Cloudinary admin API are httptest servers; renderBody is what the
// render backend answers.
func setupApp(t *testing.T, renderBody string) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr(),
		DB:   testDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping: redis not available at %s: %v", redisAddr(), err)
	}
	t.Cleanup(func() { redisClient.Close() })

	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(renderBody))
	}))
	t.Cleanup(render.Close)

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"result":"ok"}`))
			return
		}
		_, _ = w.Write([]byte(`{"resources":[]}`))
	}))
	t.Cleanup(catalog.Close)

	assets, err := client.NewCloudinaryClient(&config.CloudinaryConfig{
		CloudName:  "demo",
		APIKey:     "key",
		APISecret:  "secret",
		APIBaseURL: catalog.URL,
	})
	if err != nil {
		t.Fatalf("failed to create cloudinary client: %v", err)
	}
	renderClient := client.NewRenderClient(&config.RenderConfig{
		DescriptionURL:     render.URL + "/description",
		DescribedLyricsURL: render.URL + "/described-lyrics",
		LyricsURL:          render.URL + "/lyrics",
		AudioDuration:      180,
		Seed:               -1,
		InferStep:          60,
	})

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr(), DB: testDB}
	asynqClient := asynq.NewClient(redisOpt)
	t.Cleanup(func() { asynqClient.Close() })

	jobStore := store.NewRedisStore(redisClient, time.Hour)
	fallback := service.NewCatalogFallback(assets, jobStore, "music-generator", 30)
	dispatcher := service.NewAsynqDispatcher(asynqClient, time.Minute)
	generation := service.NewGenerationService(jobStore, renderClient, dispatcher, service.NewRedisNotifier(redisClient), fallback, service.GenerationOptions{
		Deadline: 10 * time.Second,
	})
	resolver := service.NewResolverService(jobStore, assets, fallback)
	library := service.NewLibraryService(jobStore, resolver)
	media := service.NewMediaService(jobStore, assets)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{service.QueueGeneration: 1},
		Logger:      logger.WithComponent("asynq"),
		LogLevel:    asynq.WarnLevel,
	})
	mux := asynq.NewServeMux()
	worker.NewGenerationWorker(generation).Register(mux)
	if err := srv.Start(mux); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	authn := auth.NewAuthenticator(auth.NewLegacyVerifier(testJWTSecret))
	authHandler := handler.NewAuthHandler(authn)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	generationHandler := handler.NewGenerationHandler(generation, resolver, library, media, validator.New())

	app := fiber.New()
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"store":   "redis",
				"queue":   "asynq",
				"render":  renderClient.IsConfigured(),
				"storage": assets.IsConfigured(),
				"auth":    true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// Use a very high rate limit so tests don't get blocked
	api := app.Group("/api", middleware.Authenticate(authn))
	generationHandler.Register(api.Group("/generation"), rateLimiter.GenerateLimit(10000))

	return &testApp{app: app, store: jobStore}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.NewLegacyVerifier(testJWTSecret).Issue(userID, userID+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request authenticated as userID.
func doAuthRequest(t *testing.T, app *fiber.App, userID, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, userID)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode returns error.code of an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

// waitForStatus polls the status endpoint until the job leaves processing.
func waitForStatus(t *testing.T, app *fiber.App, jobID string, timeout time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, app, testUserID, http.MethodGet, "/api/generation/status/"+jobID, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body := parseJSON(t, resp)
		if status, _ := body["status"].(string); status != "processing" {
			return status
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("job %s still processing after %v", jobID, timeout)
	return ""
}
