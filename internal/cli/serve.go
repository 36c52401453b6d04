package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/castlegate/castlegate/internal/api"
	"github.com/castlegate/castlegate/internal/factory"
	"github.com/castlegate/castlegate/internal/services/auth"
	"github.com/castlegate/castlegate/internal/services/manager"
	redisstorage "github.com/castlegate/castlegate/internal/storage/redis"
	"github.com/castlegate/castlegate/internal/ws"
)

// serveOptions holds the serve command's configuration, resolved from
// flags with environment variable fallbacks.
type serveOptions struct {
	host        string
	port        int
	storageType string
	redisURL    string
	jwtSecret   string
	leavePolicy string
	logLevel    string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	defaultPort := 8080
	if p, err := strconv.Atoi(os.Getenv("CASTLEGATE_PORT")); err == nil {
		defaultPort = p
	}

	cmd.Flags().StringVar(&opts.host, "host", os.Getenv("CASTLEGATE_HOST"), "Listen host (env: CASTLEGATE_HOST)")
	cmd.Flags().IntVar(&opts.port, "port", defaultPort, "Listen port (env: CASTLEGATE_PORT)")
	cmd.Flags().StringVar(&opts.storageType, "storage", envOrDefault("CASTLEGATE_STORAGE_TYPE", factory.StorageTypeMemory),
		"Storage backend: memory or redis (env: CASTLEGATE_STORAGE_TYPE)")
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", os.Getenv("CASTLEGATE_REDIS_URL"),
		"Redis URL, required for redis storage (env: CASTLEGATE_REDIS_URL)")
	cmd.Flags().StringVar(&opts.jwtSecret, "jwt-secret", os.Getenv("CASTLEGATE_JWT_SECRET"),
		"Secret for signing auth tokens, shared by all processes (env: CASTLEGATE_JWT_SECRET)")
	cmd.Flags().StringVar(&opts.leavePolicy, "leave-policy", envOrDefault("CASTLEGATE_LEAVE_POLICY", string(manager.LeaveWait)),
		"What a disconnect does to an active session: wait or notify (env: CASTLEGATE_LEAVE_POLICY)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", envOrDefault("CASTLEGATE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: CASTLEGATE_LOG_LEVEL)")

	return cmd
}

func runServe(opts *serveOptions) error {
	logger := newLogger(opts.logLevel)
	slog.SetDefault(logger)

	if opts.jwtSecret == "" {
		return errors.New("a JWT secret is required (--jwt-secret or CASTLEGATE_JWT_SECRET)")
	}

	leavePolicy := manager.LeavePolicy(opts.leavePolicy)
	if !leavePolicy.Valid() {
		return errors.New("leave policy must be 'wait' or 'notify'")
	}

	cfg := factory.Config{
		Logger:        logger,
		StorageType:   opts.storageType,
		AuthConfig:    auth.Config{Secret: opts.jwtSecret},
		ManagerConfig: manager.Config{LeavePolicy: leavePolicy},
	}

	if opts.storageType == factory.StorageTypeRedis {
		if opts.redisURL == "" {
			return errors.New("a Redis URL is required for redis storage (--redis-url or CASTLEGATE_REDIS_URL)")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = opts.redisURL
		cfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(cfg)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		AuthService:      app.AuthService,
		WebsocketHandler: ws.NewHandler(app.AuthService, app.SessionManager, logger),
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = opts.host
	serverConfig.Port = opts.port
	server := api.NewServer(router, serverConfig, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", opts.storageType),
		slog.String("leave_policy", string(leavePolicy)),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return server.Shutdown(context.Background())
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
