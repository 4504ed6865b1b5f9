package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/installment-tracker/internal/config"
	"github.com/segyhp/installment-tracker/internal/handler"
	"github.com/segyhp/installment-tracker/internal/logger"
	"github.com/segyhp/installment-tracker/internal/repository"
	"github.com/segyhp/installment-tracker/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)

	// Initialize storage
	repo, db, redisClient, err := initStorage(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	if db != nil {
		defer db.Close()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	windows, err := cfg.GetTimelineWindows()
	if err != nil {
		log.WithError(err).Fatal("Invalid timeline windows")
	}

	// Initialize service
	planService := service.NewPlanService(repo, log,
		service.WithLocation(cfg.GetLocation()),
		service.WithTimelineWindows(windows),
	)
	planHandler := handler.NewPlanHandler(planService, log)
	healthHandler := handler.NewHealthHandler(cfg.Storage.Backend, repo, db, redisClient)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler.NewRouter(planHandler, healthHandler, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server exited")
}

// initStorage builds the plan repository for the configured backend, wrapped in the
// redis cache when enabled. db and redisClient are nil when unused.
func initStorage(cfg *config.Config, log *logrus.Logger) (repository.PlanRepository, *sqlx.DB, *redis.Client, error) {
	var (
		repo repository.PlanRepository
		db   *sqlx.DB
	)

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		var err error
		db, err = initDB(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		repo = repository.NewPostgresPlanRepository(db)
	default:
		storeLog := logger.Component(log, "file_repository")
		repo = repository.NewFilePlanRepository(cfg.Storage.DataDir, func(file string, err error) {
			storeLog.WithError(err).WithField("file", file).Warn("Skipping unreadable plan file")
		})
	}
	log.WithField("backend", cfg.Storage.Backend).Info("Storage initialized")

	if !cfg.Redis.Enabled {
		return repo, db, nil, nil
	}

	redisClient := initRedis(cfg)
	cacheLog := logger.Component(log, "plan_cache")
	repo = repository.NewCachedPlanRepository(repo, repository.NewRedisCache(redisClient), cfg.Redis.CacheTTL,
		func(planID string, err error) {
			cacheLog.WithError(err).WithField(logger.FieldPlanID, planID).Warn("Plan cache not refreshed after write")
		},
	)
	log.WithField("addr", cfg.Redis.Addr()).Info("Redis plan cache enabled")

	return repo, db, redisClient, nil
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
