// The worker binary consumes comparison runs from the durable queue and
// executes the analysis pipeline. It shares the database and storage with the
// API but talks to the vision model itself.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inspection_backend/internal/adapters/storage"
	"inspection_backend/internal/comparisons/analyzer"
	comparisonsrepo "inspection_backend/internal/comparisons/repository"
	comparisonssvc "inspection_backend/internal/comparisons/service"
	creditsrepo "inspection_backend/internal/credits/repository"
	creditssvc "inspection_backend/internal/credits/service"
	"inspection_backend/internal/scheduler"
	"inspection_backend/platform/config"
	"inspection_backend/platform/db"
	"inspection_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting comparison worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	roomAnalyzer, err := analyzer.NewGeminiAnalyzer(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize vision analyzer", "error", err)
		panic("failed to initialize vision analyzer: " + err.Error())
	}
	log.Info("vision analyzer initialized", "model", cfg.GetVisionModel())

	creditsService := creditssvc.New(creditsrepo.New(pool), log)

	comparisonsService := comparisonssvc.New(comparisonsrepo.New(pool), creditsService, log)
	comparisonsService.SetAnalyzer(roomAnalyzer)
	comparisonsService.SetPhotoStore(storageSvc, cfg.GetMinioBucketInspectionPhotos())

	worker, err := scheduler.NewWorker(cfg, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}
	worker.SetComparisonRunner(comparisonsService)

	log.Info("worker listening", "queue", cfg.GetAsynqQueueName(), "concurrency", cfg.GetAsynqConcurrency())
	worker.Run(ctx)
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
