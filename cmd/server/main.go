package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Rooms/internal/adapters/conference"
	router "github.com/dkeye/Rooms/internal/adapters/http"
	"github.com/dkeye/Rooms/internal/adapters/queue"
	statusfeed "github.com/dkeye/Rooms/internal/adapters/signal"
	"github.com/dkeye/Rooms/internal/adapters/store"
	"github.com/dkeye/Rooms/internal/app"
	"github.com/dkeye/Rooms/internal/app/join"
	"github.com/dkeye/Rooms/internal/config"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
	"github.com/dkeye/Rooms/internal/logging"
	"github.com/dkeye/Rooms/internal/observability"
)

// worker consumes queued tasks until ctx ends.
type worker interface {
	core.TaskScheduler
	Run(ctx context.Context, handle core.TaskHandler) error
}

type roomStore interface {
	core.RoomStore
	core.RecordingStore
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Console logger until the config says otherwise.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("rooms server failed")
	}
}

func run(ctx context.Context) error {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	shutdownTracing, err := observability.Setup(ctx, cfg.Tracing, cfg.Env, log.Logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	var readiness []func(context.Context) error

	rooms, dbReady, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if dbReady != nil {
		readiness = append(readiness, dbReady)
	}

	gateway, err := conference.NewGateway(cfg.Servers, conference.Dial(cfg.RequestTimeout))
	if err != nil {
		return fmt.Errorf("conference servers: %w", err)
	}

	policy, err := newPolicy(cfg.Policy)
	if err != nil {
		return err
	}

	registry := app.NewRegistry()

	tasks, locker, redisClient, err := openQueue(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		readiness = append(readiness, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	updater := &app.MeetingUpdater{
		Rooms:     rooms,
		Status:    gateway,
		Publisher: registry,
		Locker:    locker,
	}

	handler := &router.Handler{
		Rooms: &app.RoomService{
			Rooms:      rooms,
			Recordings: rooms,
			Servers:    gateway,
			Conference: gateway,
			Publisher:  registry,
		},
		Policy: policy,
		Resolver: &join.Resolver{
			Status:     gateway,
			Authorizer: policy,
			Options:    policy,
			Creator:    gateway,
			Tokens:     gateway,
			URLs:       gateway,
			Scheduler:  tasks,
		},
		Servers:  gateway,
		Status:   statusfeed.NewStatusWSController(registry, cfg.ReadLimit, cfg.PingPeriod),
		Attempts: router.NewAttemptLimiter(cfg.Auth.AttemptLimit, cfg.Auth.AttemptWindow),
		Ready: func(ctx context.Context) error {
			for _, check := range readiness {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}

	r := router.SetupRouter(ctx, cfg, handler)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Rooms server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return tasks.Run(gctx, updater.Handle)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

// loadEnvFiles reads .env then .env.local, later files winning. Missing files are fine.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Overload(name); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("load env file")
		}
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (roomStore, func(context.Context) error, error) {
	if cfg.Driver != "postgres" {
		log.Info().Str("module", "store").Msg("using in-memory room store")
		return store.NewMemoryStore(), nil, nil
	}
	db, err := store.Connect(store.DBConfig{
		DSN:             cfg.DSN,
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := store.AutoMigrate(ctx, db, log.With().Str("module", "store").Logger()); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve sql db: %w", err)
	}
	return store.NewPostgresStore(db), sqlDB.PingContext, nil
}

func openQueue(ctx context.Context, cfg config.QueueConfig) (worker, app.Locker, redis.UniversalClient, error) {
	if cfg.Driver != "redis" {
		log.Info().Str("module", "queue").Msg("using in-process task queue")
		return queue.NewMemoryQueue(), nil, nil, nil
	}
	client, err := queue.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return queue.NewRedisQueue(client, cfg.Key, cfg.Concurrency), queue.NewRedisLocker(client), client, nil
}

func newPolicy(cfg config.PolicyConfig) (app.DefaultPolicy, error) {
	roles := make([]domain.Role, 0, len(cfg.CreateRoles))
	for _, name := range cfg.CreateRoles {
		role, err := domain.ParseRole(name)
		if err != nil {
			return app.DefaultPolicy{}, fmt.Errorf("policy.create_roles: %w", err)
		}
		roles = append(roles, role)
	}
	return app.DefaultPolicy{CreateRoles: roles, ExtraCreateOptions: cfg.CreateOptions}, nil
}
