package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/makeasinger/songgen/internal/auth"
	"github.com/makeasinger/songgen/internal/config"
	"github.com/makeasinger/songgen/internal/handler"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/middleware"
	"github.com/makeasinger/songgen/pkg/response"
)

func newServeCmd(c *cli) *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with an embedded generation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.cfg, !noWorker)
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "do not run the asynq worker in this process")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, embedWorker bool) error {
	comps, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	go comps.hub.Run(ctx)

	if comps.asynqClient != nil {
		go func() {
			if err := comps.events.Relay(ctx, comps.hub); err != nil {
				logger.WithComponent("relay").WithError(err).Error("Job event relay stopped")
			}
		}()
		if embedWorker {
			go func() {
				if err := runWorker(ctx, comps); err != nil {
					logger.WithComponent("worker").WithError(err).Error("Embedded worker stopped")
				}
			}()
		}
	}

	app := newApp(cfg, comps, newAuthenticator(ctx, cfg))

	go func() {
		<-ctx.Done()
		logger.Infof("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	logger.Infof("Server starting on %s", addr)
	return app.Listen(addr)
}

// newAuthenticator tries Zitadel OIDC tokens first, then legacy HMAC
// tokens when a secret is configured.
func newAuthenticator(ctx context.Context, cfg *config.Config) *auth.Authenticator {
	var verifiers []auth.Verifier
	if cfg.Zitadel.Issuer != "" {
		jwks, err := auth.NewJWKSVerifier(ctx, &cfg.Zitadel)
		if err != nil {
			logger.Warnf("JWKS verifier not initialized: %v", err)
		} else {
			verifiers = append(verifiers, jwks)
		}
	}
	if cfg.JWT.Secret != "" {
		verifiers = append(verifiers, auth.NewLegacyVerifier(cfg.JWT.Secret))
	}
	return auth.NewAuthenticator(verifiers...)
}

func newApp(cfg *config.Config, comps *components, authn *auth.Authenticator) *fiber.App {
	authHandler := handler.NewAuthHandler(authn)

	apiAuthMiddleware := middleware.Authenticate(authn)
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		logger.Infof("Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.Gateway()
	}
	rateLimiter := middleware.NewRateLimiter(comps.redis)

	generationHandler := handler.NewGenerationHandler(comps.generation, comps.resolver, comps.library, comps.media, validator.New())

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"store":   comps.storeName(),
				"queue":   cfg.Queue.Mode,
				"render":  comps.render.IsConfigured(),
				"storage": comps.assets.IsConfigured(),
				"auth":    authn.Configured() || cfg.Gateway.Enabled,
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuthMiddleware)
	generationHandler.Register(api.Group("/generation"), rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour))

	// WebSocket routes carry the token as a query parameter.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, apiAuthMiddleware)

	app.Get("/ws/jobs/:jobId", generationHandler.AuthorizeWatch, websocket.New(func(c *websocket.Conn) {
		comps.hub.HandleConnection(c, c.Params("jobId"))
	}))

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		logger.Errorf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
