package scheduler

import (
	"context"
	"fmt"

	"inspection_backend/platform/config"
	"inspection_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ComparisonRunner executes one comparison run end to end. Implemented by the
// comparisons service.
type ComparisonRunner interface {
	Run(ctx context.Context, comparisonID uuid.UUID) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner ComparisonRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		log:    log,
	}

	mux.HandleFunc(TaskComparisonRun, w.handleComparisonRun)

	return w, nil
}

// SetComparisonRunner injects the run executor (set after construction to
// break circular deps).
func (w *Worker) SetComparisonRunner(runner ComparisonRunner) {
	w.runner = runner
}

func (w *Worker) handleComparisonRun(ctx context.Context, task *asynq.Task) error {
	if w.runner == nil {
		return fmt.Errorf("comparison runner not configured")
	}

	payload, err := ParseComparisonRunPayload(task)
	if err != nil {
		return err
	}

	comparisonID, err := uuid.Parse(payload.ComparisonID)
	if err != nil {
		return err
	}

	w.log.Info("comparison run started", "comparison_id", comparisonID, "user_id", payload.UserID)
	return w.runner.Run(ctx, comparisonID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("comparison worker stopped", "error", err)
	}
}
