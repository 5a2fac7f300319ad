package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
)

// AdminStore is the data-access interface AdminService depends on.
type AdminStore interface {
	domain.MerchantLister
	domain.TrainingRunStore
}

// Compile-time check: *AdminService must satisfy domain.AdminService.
var _ domain.AdminService = (*AdminService)(nil)

// AdminService covers backfills and the training ledger.
type AdminService struct {
	store AdminStore
	queue domain.TrainQueue
	log   *logrus.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(store AdminStore, queue domain.TrainQueue, log *logrus.Logger) *AdminService {
	return &AdminService{store: store, queue: queue, log: log}
}

// RetrainAll queues every merchant with transaction history and returns how
// many were accepted by the queue.
func (s *AdminService) RetrainAll(ctx context.Context) (int, error) {
	merchants, err := s.store.ListActiveMerchants(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing merchants: %w", err)
	}

	queued := 0
	for _, id := range merchants {
		if s.queue.Enqueue(id, models.TriggerBackfill) {
			queued++
		}
	}

	s.log.WithFields(logrus.Fields{
		"merchants": len(merchants),
		"queued":    queued,
	}).Info("audit: retrain-all requested")

	return queued, nil
}

// ListTrainingRuns returns the most recent training runs of a merchant (pass-through).
func (s *AdminService) ListTrainingRuns(ctx context.Context, merchantID string, limit int) ([]models.TrainingRun, error) {
	s.log.WithFields(logrus.Fields{
		"merchant_id": merchantID,
		"limit":       limit,
	}).Debug("admin.list_training_runs")

	return s.store.ListTrainingRuns(ctx, merchantID, limit)
}
