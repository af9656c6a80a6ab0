// Package bootstrap connects the configured backends and wires the services
// shared by the server and the command-line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"unify/internal/cache"
	"unify/internal/config"
	"unify/internal/database"
	"unify/internal/docstore"
	"unify/internal/docstore/gormstore"
	"unify/internal/docstore/mongostore"
	"unify/internal/featureflags"
	"unify/internal/media"
	"unify/internal/observability"
	"unify/internal/repository"
	"unify/internal/search"
	"unify/internal/service"

	"github.com/redis/go-redis/v9"
)

// Equality-queried fields per collection name, for backends that index them.
var queriedFields = map[string][]string{
	repository.PostsCollection:       {"authorId"},
	repository.CommentsSubcollection: {"authorId"},
	repository.HubsCollection:        {"nameLowercase", "creatorId"},
}

// Runtime holds the connected backends.
type Runtime struct {
	Store docstore.Store
	Redis *redis.Client
	Sets  cache.IDSetCache
	Media media.Store
	Index search.Index
	Flags *featureflags.Manager

	meili *search.Meili
}

// InitRuntime opens the document store selected by DOCSTORE_BACKEND and the
// optional Redis, MinIO and Meilisearch backends. Optional backends that are
// not configured are left nil.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		Store: docstore.NewInstrumented(store, cfg.DocstoreBackend),
		Flags: featureflags.NewManager(cfg.FeatureFlags),
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	rt.Redis = cache.GetClient()
	if rt.Redis != nil {
		rt.Sets = cache.NewRedisSetCache(rt.Redis, cfg.SavedSetTTL())
	} else {
		rt.Sets = cache.NewMemorySetCache()
	}

	if cfg.MinioEndpoint != "" {
		m, err := media.NewMinioStore(ctx, media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("media store: %w", err)
		}
		rt.Media = m
	}

	if cfg.MeiliURL != "" {
		rt.meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		rt.Index = rt.meili
	}

	observability.GlobalLogger.Info("runtime initialized",
		slog.String("docstore", cfg.DocstoreBackend),
		slog.Bool("redis", rt.Redis != nil),
		slog.Bool("media", rt.Media != nil),
		slog.Bool("search", rt.Index != nil),
	)
	return rt, nil
}

// OpenStore opens the raw document store for cfg.DocstoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.DocstoreBackend {
	case config.BackendMemory:
		return docstore.NewMemoryStore(), nil
	case config.BackendPostgres, config.BackendSQLite:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		s := gormstore.New(db)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("docstore migration failed: %w", err)
		}
		return s, nil
	case config.BackendMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx, queriedFields); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown docstore backend %q", cfg.DocstoreBackend)
}

// Close releases every backend connection.
func (r *Runtime) Close(ctx context.Context) error {
	if r.meili != nil {
		r.meili.Close()
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			observability.GlobalLogger.Warn("error closing redis", slog.String("error", err.Error()))
		}
	}
	if r.Store != nil {
		return r.Store.Close(ctx)
	}
	return nil
}

// Services bundles the domain services over one document store.
type Services struct {
	Threads   repository.ThreadRepository
	Comments  repository.CommentRepository
	Hubs      repository.HubRepository
	Lists     repository.UserListRepository
	Jobs      repository.CascadeJobRepository
	Posts     *service.PostService
	Discuss   *service.CommentService
	HubNames  *service.HubService
	Index     *service.SavedCartIndex
	Activity  *service.ActivityAggregator
	Lifecycle *service.HubLifecycleManager
}

// NewServices wires repositories and services over store. mediaStore and
// index may be nil.
func NewServices(
	store docstore.Store,
	sets cache.IDSetCache,
	flags *featureflags.Manager,
	mediaStore media.Store,
	index search.Index,
	maxInFlight int,
) *Services {
	s := &Services{
		Threads:  repository.NewThreadRepository(store),
		Comments: repository.NewCommentRepository(store),
		Hubs:     repository.NewHubRepository(store),
		Lists:    repository.NewUserListRepository(store),
		Jobs:     repository.NewCascadeJobRepository(store),
	}
	s.HubNames = service.NewHubService(s.Hubs)
	s.Index = service.NewSavedCartIndex(s.Lists, s.Threads, sets)
	s.Discuss = service.NewCommentService(s.Comments, s.Threads)
	s.Posts = service.NewPostService(s.Threads, s.Comments, s.HubNames, s.Index, mediaStore, index)
	s.Activity = service.NewActivityAggregator(s.Threads, s.Comments, flags, int64(maxInFlight))
	s.Lifecycle = service.NewHubLifecycleManager(s.Hubs, s.Threads, s.Comments, s.Jobs, maxInFlight, s.Posts.Hooks()...)
	return s
}

// Services wires the domain services over this runtime's backends.
func (r *Runtime) Services(cfg *config.Config) *Services {
	return NewServices(r.Store, r.Sets, r.Flags, r.Media, r.Index, cfg.ActivityMaxInFlight)
}
