package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/castlegate/castlegate/internal/connection"
	"github.com/castlegate/castlegate/internal/dependencies/clock"
	"github.com/castlegate/castlegate/internal/dependencies/random"
	"github.com/castlegate/castlegate/internal/rules"
	"github.com/castlegate/castlegate/internal/services/auth"
	"github.com/castlegate/castlegate/internal/services/manager"
	"github.com/castlegate/castlegate/internal/services/matchmaker"
	"github.com/castlegate/castlegate/internal/services/reconnect"
	"github.com/castlegate/castlegate/internal/services/session"
	"github.com/castlegate/castlegate/internal/storage"
	"github.com/castlegate/castlegate/internal/storage/memory"
	redisstorage "github.com/castlegate/castlegate/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	Storage  storage.Store
	Cache    *storage.SessionCache
	Registry *connection.Registry

	Clock  clock.Clock
	Random random.Random
	Engine rules.Engine

	Matchmaker        *matchmaker.Service
	SessionController *session.Controller
	Reconnect         *reconnect.Coordinator
	SessionManager    *manager.Manager
	AuthService       *auth.Service
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional; no-op if nil)
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis").
	// Memory storage is single-process only; multi-process deployments
	// need redis so every process shares the queue and sessions.
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// AuthConfig holds auth service settings; the secret is required
	AuthConfig auth.Config
	// ManagerConfig holds orchestration settings (leave policy)
	ManagerConfig manager.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Store
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	if cfg.AuthConfig.Secret == "" {
		return nil, errors.New("auth secret is required")
	}

	return newWithDependencies(store, clock.New(), random.New(), cfg, logger), nil
}

// newWithDependencies wires an App from the given seams (useful for testing)
func newWithDependencies(store storage.Store, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) *App {
	registry := connection.NewRegistry(logger)
	cache := storage.NewSessionCache(store, logger)
	engine := rules.NewChessEngine()

	sessionController := session.NewController(store, cache, engine, registry, clk, logger)
	coordinator := reconnect.NewCoordinator(store, sessionController, logger)
	mm := matchmaker.New(store, registry, clk, rnd, logger)
	sessionManager := manager.New(cfg.ManagerConfig, store, registry, mm, sessionController, coordinator, logger)
	authService := auth.New(store, clk, cfg.AuthConfig, logger)

	return &App{
		Storage:           store,
		Cache:             cache,
		Registry:          registry,
		Clock:             clk,
		Random:            rnd,
		Engine:            engine,
		Matchmaker:        mm,
		SessionController: sessionController,
		Reconnect:         coordinator,
		SessionManager:    sessionManager,
		AuthService:       authService,
	}
}
