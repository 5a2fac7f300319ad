package service

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
)

// Compile-time check: *ModelManager must satisfy domain.ModelService.
var _ domain.ModelService = (*ModelManager)(nil)

// ArtifactAdmin inspects and removes a merchant's artifact set.
type ArtifactAdmin interface {
	Info(ctx context.Context, merchantID string) (*models.ModelInfo, error)
	Delete(ctx context.Context, merchantID string) error
}

// ModelManager exposes the live model of a merchant to the API.
type ModelManager struct {
	artifacts ArtifactAdmin
	locks     *MerchantLocks
	events    EventBroadcaster
	log       *logrus.Logger
}

// NewModelManager creates a ModelManager. locks should be the same table the
// Trainer uses so a delete never interleaves with a save.
func NewModelManager(artifacts ArtifactAdmin, locks *MerchantLocks, events EventBroadcaster, log *logrus.Logger) *ModelManager {
	if locks == nil {
		locks = NewMerchantLocks()
	}

	return &ModelManager{artifacts: artifacts, locks: locks, events: events, log: log}
}

// ModelInfo returns the manifest of the merchant's live model (pass-through).
func (m *ModelManager) ModelInfo(ctx context.Context, merchantID string) (*models.ModelInfo, error) {
	return m.artifacts.Info(ctx, merchantID)
}

// DeleteModel removes the merchant's artifacts; recommendations go empty
// until the next successful training run.
func (m *ModelManager) DeleteModel(ctx context.Context, merchantID string) error {
	unlock := m.locks.Lock(merchantID)
	defer unlock()

	if err := m.artifacts.Delete(ctx, merchantID); err != nil {
		return err
	}

	m.log.WithField("merchant_id", merchantID).Info("audit: model deleted")

	if m.events != nil {
		data, _ := json.Marshal(map[string]string{"merchant_id": merchantID}) //nolint:errcheck // static shape, cannot fail.
		m.events.BroadcastEvent(EventModelDeleted, merchantID, data)
	}

	return nil
}
