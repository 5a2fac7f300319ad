// Package domain defines the canonical interfaces shared between the service
// layer, the stores and the API. Consumers should depend on these interfaces
// rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/persistorai/cobuy/internal/models"
)

// HistorySource reads a merchant's committed transactions with their line items.
type HistorySource interface {
	GetTransactionHistory(ctx context.Context, merchantID string) ([]models.Transaction, error)
}

// ProductCatalog resolves product IDs to their current catalog details.
// Products that no longer exist are omitted from the result.
type ProductCatalog interface {
	GetProductDetails(ctx context.Context, merchantID string, productIDs []string) ([]models.ProductDetail, error)
}

// TrainingRunStore keeps the ledger of training attempts.
type TrainingRunStore interface {
	RecordTrainingRun(ctx context.Context, run *models.TrainingRun) error
	ListTrainingRuns(ctx context.Context, merchantID string, limit int) ([]models.TrainingRun, error)
}

// MerchantLister enumerates merchants that have transaction history.
type MerchantLister interface {
	ListActiveMerchants(ctx context.Context) ([]string, error)
}

// MerchantResolver maps a raw API key to the merchant it belongs to. Only
// the key's SHA-256 hash is ever stored.
type MerchantResolver interface {
	GetMerchantByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// Backend bundles every collaborator a storage backend provides.
type Backend interface {
	HistorySource
	ProductCatalog
	TrainingRunStore
	MerchantLister
	MerchantResolver
	Ping(ctx context.Context) error
}

// TrainingService trains a merchant's co-purchase model from scratch.
type TrainingService interface {
	Train(ctx context.Context, merchantID, trigger string) (*models.TrainResult, error)
}

// RecommendationService serves co-purchase suggestions for a cart.
type RecommendationService interface {
	Recommend(ctx context.Context, merchantID string, cart []string, limit int) []models.Recommendation
	Score(ctx context.Context, merchantID string, cart []string, limit int) ([]models.ScoredProduct, error)
}

// ModelService exposes the live artifact set of a merchant.
type ModelService interface {
	ModelInfo(ctx context.Context, merchantID string) (*models.ModelInfo, error)
	DeleteModel(ctx context.Context, merchantID string) error
}

// TrainQueue accepts asynchronous retrain requests.
type TrainQueue interface {
	Enqueue(merchantID, trigger string) bool
}

// AdminService covers backfills and the training ledger.
type AdminService interface {
	RetrainAll(ctx context.Context) (int, error)
	ListTrainingRuns(ctx context.Context, merchantID string, limit int) ([]models.TrainingRun, error)
}
