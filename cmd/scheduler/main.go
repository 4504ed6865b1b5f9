package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/installment-tracker/internal/config"
	"github.com/segyhp/installment-tracker/internal/logger"
	"github.com/segyhp/installment-tracker/internal/repository"
	"github.com/segyhp/installment-tracker/internal/scheduler"
	"github.com/segyhp/installment-tracker/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)
	log.Info("Starting payment reminder scheduler...")

	repo, closeRepo, err := initRepository(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer closeRepo()

	loc := cfg.GetLocation()
	planService := service.NewPlanService(repo, log, service.WithLocation(loc))
	job := scheduler.NewReminderJob(planService, log, cfg.Scheduler.ReminderWindowDays)

	// Initialize cron scheduler
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc))

	if _, err := job.Register(c, cfg.Scheduler.Spec); err != nil {
		log.WithError(err).Fatal("Error scheduling payment reminder job")
	}

	// Start the scheduler
	c.Start()
	log.WithFields(logrus.Fields{
		"spec":     cfg.Scheduler.Spec,
		"timezone": loc.String(),
	}).Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

// initRepository opens the configured plan store. The reminder job only reads,
// so the redis cache is not used here.
func initRepository(cfg *config.Config, log *logrus.Logger) (repository.PlanRepository, func(), error) {
	if cfg.Storage.Backend != config.StoragePostgres {
		storeLog := logger.Component(log, "file_repository")
		repo := repository.NewFilePlanRepository(cfg.Storage.DataDir, func(file string, err error) {
			storeLog.WithError(err).WithField("file", file).Warn("Skipping unreadable plan file")
		})
		return repo, func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return repository.NewPostgresPlanRepository(db), func() { db.Close() }, nil
}
