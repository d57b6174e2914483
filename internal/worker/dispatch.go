package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/soundwall/api/internal/model"
)

// AsynqDispatcher enqueues variant tasks on the render queue. Tasks
// are never retried automatically: a variant failure is final and is
// reported through the session instead.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, task *model.VariantTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	_, err = d.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeRenderVariant, payload),
		asynq.Queue(QueueRender),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// GoDispatcher runs the variant worker in a goroutine, used when no
// Redis is configured. The job keeps running after the originating
// request returns, so the worker gets a fresh context.
type GoDispatcher struct {
	worker *VariantWorker
	wg     sync.WaitGroup
}

func NewGoDispatcher(worker *VariantWorker) *GoDispatcher {
	return &GoDispatcher{worker: worker}
}

func (d *GoDispatcher) Dispatch(ctx context.Context, task *model.VariantTask) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.worker.Run(context.Background(), task); err != nil {
			log.Printf("Variant %s of session %s: %v", task.ColorScheme, task.SessionID, err)
		}
	}()
	return nil
}

// Wait blocks until all dispatched variants have finished.
func (d *GoDispatcher) Wait() {
	d.wg.Wait()
}
