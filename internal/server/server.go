// Package server contains the HTTP handlers of the content-graph API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"unify/internal/bootstrap"
	"unify/internal/config"
	"unify/internal/docstore"
	"unify/internal/featureflags"
	"unify/internal/middleware"
	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/search"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

// The collector registers on the default Prometheus registry, which accepts
// each metric name once per process.
var httpMetrics = sync.OnceValue(func() *fiberprometheus.FiberPrometheus {
	return middleware.InitMetrics("unify-api")
})

var readyProbe = docstore.Collection("health").Doc("ready")

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	runtime        *bootstrap.Runtime
	store          docstore.Store
	redis          *redis.Client
	index          search.Index
	featureFlags   *featureflags.Manager
	svc            *bootstrap.Services
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
}

// NewServer connects every configured backend and creates a server over them.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("runtime initialization failed: %w", err)
	}
	return NewServerWithDeps(cfg, rt)
}

// NewServerWithDeps creates a Server using an already-initialized runtime.
// Use this in tests or when a bootstrap layer has established the backends.
func NewServerWithDeps(cfg *config.Config, rt *bootstrap.Runtime) (*Server, error) {
	if rt == nil || rt.Store == nil {
		return nil, errors.New("server requires a document store")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:         cfg,
		runtime:        rt,
		store:          rt.Store,
		redis:          rt.Redis,
		index:          rt.Index,
		featureFlags:   rt.Flags,
		svc:            rt.Services(cfg),
		promMiddleware: httpMetrics(),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so short-circuited responses keep their headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/feature-flags", s.GetFeatureFlags)

	posts := api.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id/comments", s.GetCommentTree)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)

	api.Get("/threads", s.GetThreadsByIDs)
	api.Get("/market/:category", s.GetMarketThreads)

	hubs := api.Group("/hubs")
	hubs.Get("/", s.SuggestHubs)
	hubs.Get("/:name/threads", s.GetHubThreads)
	hubs.Get("/:id/cascade", s.GetCascadeStatus)
	hubs.Delete("/:id", s.DeleteHub)

	users := api.Group("/users/:uid", middleware.Actor("uid"))
	users.Get("/threads", s.GetUserThreads)
	users.Get("/hubs", s.GetUserHubs)
	users.Get("/activity/:kind", s.GetActivity)

	for _, kind := range []models.ListKind{models.ListSaved, models.ListCart} {
		list := users.Group("/" + string(kind))
		toggle := middleware.RateLimit(s.redis, 60, time.Minute, "toggle_"+string(kind))
		list.Get("/", s.GetList(kind))
		list.Get("/:postId", s.GetListMembership(kind))
		list.Post("/:postId/toggle", toggle, s.ToggleListEntry(kind))
		list.Post("/:postId", toggle, s.AddListEntry(kind))
		list.Delete("/:postId", toggle, s.RemoveListEntry(kind))
	}
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports the document store and cache connectivity. The
// search index is reported but never blocks readiness; market search falls
// back to in-process filtering while it is down.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if _, err := s.store.Get(ctx, readyProbe); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		storeStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	searchStatus := "unavailable"
	if s.index != nil {
		searchStatus = "healthy"
		if !s.index.Healthy() {
			searchStatus = "degraded"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"docstore": storeStatus,
			"redis":    redisStatus,
			"search":   searchStatus,
		},
		"time": time.Now(),
	})
}

// ResumeCascades replays unfinished hub deletions in the background.
func (s *Server) ResumeCascades() {
	go func() {
		ctx := s.shutdownCtx
		results, err := s.svc.Lifecycle.ResumePending(ctx)
		if err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "resume cascades failed", slog.String("error", err.Error()))
			return
		}
		for _, r := range results {
			observability.GlobalLogger.InfoContext(ctx, "cascade resumed",
				slog.String("hub_id", r.HubID),
				slog.String("state", string(r.State)),
				slog.Int("deleted", r.Deleted),
			)
		}
	}()
}

// Start builds the Fiber app and listens on the configured port.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "Unify API",
		BodyLimit: 10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.GlobalLogger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.config.ResumeCascadesOnStart {
		s.ResumeCascades()
	}

	observability.GlobalLogger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.GlobalLogger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.runtime != nil {
		if err := s.runtime.Close(ctx); err != nil {
			return fmt.Errorf("closing runtime: %w", err)
		}
	}

	observability.GlobalLogger.Info("server shutdown complete")
	return nil
}
