package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/metrics"
)

// Compile-time check: *TrainWorker must satisfy domain.TrainQueue.
var _ domain.TrainQueue = (*TrainWorker)(nil)

// TrainJob asks for one merchant to be retrained.
type TrainJob struct {
	MerchantID string
	Trigger    string
}

// TrainWorker runs retrains off the request path. A merchant already waiting
// in the queue is not queued twice. Failed runs are logged, never retried.
type TrainWorker struct {
	trainer     domain.TrainingService
	log         *logrus.Logger
	jobs        chan TrainJob
	concurrency int

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewTrainWorker creates a worker with the given queue capacity and concurrency.
func NewTrainWorker(trainer domain.TrainingService, log *logrus.Logger, queueSize, concurrency int) *TrainWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	if concurrency <= 0 {
		concurrency = 2
	}

	return &TrainWorker{
		trainer:     trainer,
		log:         log,
		jobs:        make(chan TrainJob, queueSize),
		concurrency: concurrency,
		pending:     make(map[string]struct{}),
	}
}

// Enqueue schedules a retrain. Non-blocking; returns false if the queue is
// full and the request was dropped.
func (w *TrainWorker) Enqueue(merchantID, trigger string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.pending[merchantID]; ok {
		return true
	}

	select {
	case w.jobs <- TrainJob{MerchantID: merchantID, Trigger: trigger}:
		w.pending[merchantID] = struct{}{}
		metrics.TrainQueueDepth.Set(float64(len(w.jobs)))
		return true
	default:
		w.log.WithField("merchant_id", merchantID).Warn("train queue full, dropping job")
		return false
	}
}

// Pending returns the number of merchants waiting in the queue.
func (w *TrainWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.pending)
}

// Run spawns the worker goroutines and blocks until the context is cancelled
// and every worker has returned. Call in a goroutine.
func (w *TrainWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	w.log.WithField("concurrency", w.concurrency).Info("starting train workers")

	for i := range w.concurrency {
		g.Go(func() error {
			w.runWorker(gctx, i)
			return nil
		})
	}

	err := g.Wait()
	w.log.Info("all train workers stopped")

	return err
}

func (w *TrainWorker) runWorker(ctx context.Context, id int) {
	w.log.WithField("worker_id", id).Debug("train worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.mu.Lock()
			delete(w.pending, job.MerchantID)
			metrics.TrainQueueDepth.Set(float64(len(w.jobs)))
			w.mu.Unlock()

			w.process(ctx, job)
		}
	}
}

func (w *TrainWorker) process(ctx context.Context, job TrainJob) {
	log := w.log.WithFields(logrus.Fields{"merchant_id": job.MerchantID, "trigger": job.Trigger})

	res, err := w.trainer.Train(ctx, job.MerchantID, job.Trigger)
	if err != nil {
		log.WithError(err).Warn("background training failed")
		return
	}

	log.WithField("success", res.Success).Debug("background training finished")
}
