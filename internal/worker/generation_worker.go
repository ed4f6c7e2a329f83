package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/internal/service"
)

// GenerationWorker processes generation tasks
type GenerationWorker struct {
	executor service.Executor
}

// NewGenerationWorker creates a new generation worker
func NewGenerationWorker(executor service.Executor) *GenerationWorker {
	return &GenerationWorker{executor: executor}
}

// ProcessTask runs the background unit for the task's job. Failures are
// already recorded on the job, so the task is never retried.
func (w *GenerationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.GenerateTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("task payload has no job id: %w", asynq.SkipRetry)
	}

	log := logger.WithJob(payload.JobID)
	log.Info("Starting generation job")

	if err := w.executor.Execute(ctx, payload.JobID); err != nil {
		log.WithError(err).Warn("Generation job finished with error")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log.Info("Generation job finished")
	return nil
}

// Register adds the worker's handlers to mux.
func (w *GenerationWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(service.TaskTypeGenerate, w.ProcessTask)
}
