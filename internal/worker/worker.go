package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/blurbox/internal/job"
	"github.com/andresmejia3/blurbox/internal/pipeline"
	"github.com/andresmejia3/blurbox/internal/queue"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/sirupsen/logrus"
)

// Source is the part of the queue a worker consumes. *queue.Queue satisfies it.
type Source interface {
	Next(ctx context.Context, consumer string, block time.Duration) (*queue.Message, error)
	Ack(ctx context.Context, id string) error
	SetStatus(ctx context.Context, st types.JobStatus) error
}

// Processor runs one job. *pipeline.Runner satisfies it.
type Processor interface {
	Run(ctx context.Context, spec *job.Spec) (*pipeline.Result, error)
}

// QueueWorker pulls jobs off the queue and runs them one at a time.
type QueueWorker struct {
	ID        string
	Source    Source
	Processor Processor
	Block     time.Duration
	// Backoff is how long to wait after a queue read error.
	Backoff time.Duration
}

func NewQueueWorker(id string, src Source, proc Processor) *QueueWorker {
	return &QueueWorker{
		ID:        id,
		Source:    src,
		Processor: proc,
		Block:     5 * time.Second,
		Backoff:   2 * time.Second,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *QueueWorker) Run(ctx context.Context) error {
	log := logrus.WithField("consumer", w.ID)
	log.Info("Worker started")
	for {
		if err := ctx.Err(); err != nil {
			log.Info("Worker stopping")
			return nil
		}
		_, err := w.ProcessOne(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.WithError(err).Warn("Queue read failed")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.Backoff):
		}
	}
}

// ProcessOne waits for a single job and runs it.
// It reports whether a job was handled. Job failures are recorded in the
// job's status, not returned; only queue errors are returned.
func (w *QueueWorker) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := w.Source.Next(ctx, w.ID, w.Block)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	log := logrus.WithFields(logrus.Fields{"consumer": w.ID, "job": msg.ID})
	if err := w.Source.SetStatus(ctx, types.JobStatus{ID: msg.ID, State: types.JobRunning, Consumer: w.ID}); err != nil {
		log.WithError(err).Warn("Failed to mark job running")
	}

	status := types.JobStatus{ID: msg.ID, State: types.JobDone, Consumer: w.ID}
	res, runErr := w.Processor.Run(ctx, msg.Spec)
	if runErr != nil && ctx.Err() != nil {
		// Interrupted, not failed: leave it pending so another worker reclaims it.
		log.WithError(runErr).Warn("Job interrupted, returning it to the queue")
		requeued := types.JobStatus{ID: msg.ID, State: types.JobQueued}
		if err := w.Source.SetStatus(context.Background(), requeued); err != nil {
			return true, fmt.Errorf("failed to store status for %s: %w", msg.ID, err)
		}
		return true, nil
	}
	if runErr != nil {
		status.State = types.JobFailed
		status.Error = runErr.Error()
		log.WithError(runErr).Error("Job failed")
	} else {
		log.WithFields(logrus.Fields{"output": res.Output, "frames": res.Frames}).Info("Job finished")
	}

	// Use Background so a Ctrl+C mid-job still records the outcome.
	if err := w.Source.SetStatus(context.Background(), status); err != nil {
		return true, fmt.Errorf("failed to store status for %s: %w", msg.ID, err)
	}
	if err := w.Source.Ack(context.Background(), msg.ID); err != nil {
		return true, fmt.Errorf("failed to ack %s: %w", msg.ID, err)
	}
	return true, nil
}
