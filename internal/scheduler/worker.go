package scheduler

import (
	"context"
	"errors"
	"fmt"

	"crm_automation_backend/internal/governance/dispatch"
	"crm_automation_backend/internal/governance/service"
	"crm_automation_backend/platform/apperr"
	"crm_automation_backend/platform/config"
	"crm_automation_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Governance is the orchestrator work the worker retries.
type Governance interface {
	RequestStop(ctx context.Context, leadID uuid.UUID, reason string) (dispatch.StopAck, error)
	DetectAndClassify(ctx context.Context, leadID uuid.UUID, in service.ClassifyInput) (service.Derived, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	gov    Governance
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, gov Governance, log *logger.Logger) (*Worker, error) {
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

	w := newWorker(gov, log)
	w.server = server
	return w, nil
}

func newWorker(gov Governance, log *logger.Logger) *Worker {
	w := &Worker{
		mux: asynq.NewServeMux(),
		gov: gov,
		log: log,
	}
	w.mux.HandleFunc(TaskStopRetry, w.handleStopRetry)
	w.mux.HandleFunc(TaskClassifyRetry, w.handleClassifyRetry)
	return w
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
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleStopRetry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseStopRetryPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	_, err = w.gov.RequestStop(alertContext(ctx), leadID, payload.Reason)
	return w.outcome(TaskStopRetry, leadID, err)
}

func (w *Worker) handleClassifyRetry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseClassifyRetryPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	_, err = w.gov.DetectAndClassify(ctx, leadID, service.ClassifyInput{})
	return w.outcome(TaskClassifyRetry, leadID, err)
}

// alertContext mutes stop failure alerts on every attempt but the last. The
// failure that scheduled the task has already alerted operators.
func alertContext(ctx context.Context) context.Context {
	if finalAttempt(ctx) {
		return ctx
	}
	return service.WithoutFailureAlerts(ctx)
}

// finalAttempt is true when asynq will not retry a failure, or when the
// task carries no retry metadata.
func finalAttempt(ctx context.Context) bool {
	retried, okRetried := asynq.GetRetryCount(ctx)
	maxRetry, okMax := asynq.GetMaxRetry(ctx)
	return lastTry(retried, maxRetry, okRetried && okMax)
}

func lastTry(retried, maxRetry int, known bool) bool {
	return !known || retried >= maxRetry
}

// outcome lets asynq retry only failures that may clear up on their own.
func (w *Worker) outcome(task string, leadID uuid.UUID, err error) error {
	if err == nil {
		w.log.Info("governance retry succeeded", "task", task, "lead_id", leadID)
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Retryable() {
		return err
	}

	w.log.Warn("governance retry abandoned", "task", task, "lead_id", leadID, "error", err)
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}
