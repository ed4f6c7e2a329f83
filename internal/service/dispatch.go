package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/songgen/internal/logger"
)

const (
	TaskTypeGenerate = "generation:execute"
	QueueGeneration  = "generation"
)

// Dispatcher schedules the background unit for a job.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Executor runs the background unit for a job.
type Executor interface {
	Execute(ctx context.Context, jobID string) error
}

// GenerateTaskPayload is the asynq payload of a generation task.
type GenerateTaskPayload struct {
	JobID string `json:"jobId"`
}

func NewGenerateTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(GenerateTaskPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerate, data), nil
}

// AsynqDispatcher enqueues generation tasks. The job id doubles as the
// task id, so dispatching the same job twice enqueues it once. Tasks are
// never retried.
type AsynqDispatcher struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewAsynqDispatcher creates a dispatcher. timeout bounds the task as a
// whole and should exceed the render deadline.
func NewAsynqDispatcher(asynqClient *asynq.Client, timeout time.Duration) *AsynqDispatcher {
	return &AsynqDispatcher{client: asynqClient, timeout: timeout}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string) error {
	task, err := NewGenerateTask(jobID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueGeneration),
		asynq.TaskID(jobID),
		asynq.MaxRetry(0),
		asynq.Timeout(d.timeout),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// InlineDispatcher runs each background unit in its own goroutine in the
// current process. Used when no queue is configured and in tests.
type InlineDispatcher struct {
	mu       sync.Mutex
	executor Executor
	wg       sync.WaitGroup
}

func NewInlineDispatcher() *InlineDispatcher {
	return &InlineDispatcher{}
}

// Bind sets the executor. It must be called before the first Dispatch.
func (d *InlineDispatcher) Bind(executor Executor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executor = executor
}

func (d *InlineDispatcher) Dispatch(_ context.Context, jobID string) error {
	d.mu.Lock()
	executor := d.executor
	d.mu.Unlock()

	if executor == nil {
		return errors.New("inline dispatcher has no executor")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// detached from the submitting request
		if err := executor.Execute(context.Background(), jobID); err != nil {
			logger.WithJob(jobID).WithError(err).Error("Background generation failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched unit has returned.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
