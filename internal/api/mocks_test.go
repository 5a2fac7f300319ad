package api_test

import (
	"context"
	"sync"

	"github.com/persistorai/cobuy/internal/models"
)

// mockTrainer implements domain.TrainingService for testing.
type mockTrainer struct {
	trainFn func(ctx context.Context, merchantID, trigger string) (*models.TrainResult, error)
}

func (m *mockTrainer) Train(ctx context.Context, merchantID, trigger string) (*models.TrainResult, error) {
	return m.trainFn(ctx, merchantID, trigger)
}

// mockQueue implements domain.TrainQueue for testing.
type mockQueue struct {
	mu     sync.Mutex
	accept bool
	jobs   []string
}

func (m *mockQueue) Enqueue(merchantID, trigger string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.accept {
		return false
	}
	m.jobs = append(m.jobs, merchantID+":"+trigger)

	return true
}

func (m *mockQueue) queued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.jobs...)
}

// mockRecommender implements domain.RecommendationService for testing.
type mockRecommender struct {
	recommendFn func(ctx context.Context, merchantID string, cart []string, limit int) []models.Recommendation
	scoreFn     func(ctx context.Context, merchantID string, cart []string, limit int) ([]models.ScoredProduct, error)
}

func (m *mockRecommender) Recommend(ctx context.Context, merchantID string, cart []string, limit int) []models.Recommendation {
	return m.recommendFn(ctx, merchantID, cart, limit)
}

func (m *mockRecommender) Score(ctx context.Context, merchantID string, cart []string, limit int) ([]models.ScoredProduct, error) {
	return m.scoreFn(ctx, merchantID, cart, limit)
}

// mockModels implements domain.ModelService for testing.
type mockModels struct {
	infoFn   func(ctx context.Context, merchantID string) (*models.ModelInfo, error)
	deleteFn func(ctx context.Context, merchantID string) error
}

func (m *mockModels) ModelInfo(ctx context.Context, merchantID string) (*models.ModelInfo, error) {
	return m.infoFn(ctx, merchantID)
}

func (m *mockModels) DeleteModel(ctx context.Context, merchantID string) error {
	return m.deleteFn(ctx, merchantID)
}

// mockAdmin implements domain.AdminService for testing.
type mockAdmin struct {
	retrainFn func(ctx context.Context) (int, error)
	runsFn    func(ctx context.Context, merchantID string, limit int) ([]models.TrainingRun, error)
}

func (m *mockAdmin) RetrainAll(ctx context.Context) (int, error) {
	return m.retrainFn(ctx)
}

func (m *mockAdmin) ListTrainingRuns(ctx context.Context, merchantID string, limit int) ([]models.TrainingRun, error) {
	return m.runsFn(ctx, merchantID, limit)
}

// mockBackend implements domain.Backend for testing. Only key lookup and
// Ping carry behavior.
type mockBackend struct {
	keys    map[string]string
	pingErr error
}

func (m *mockBackend) GetTransactionHistory(context.Context, string) ([]models.Transaction, error) {
	return nil, nil
}

func (m *mockBackend) GetProductDetails(context.Context, string, []string) ([]models.ProductDetail, error) {
	return nil, nil
}

func (m *mockBackend) RecordTrainingRun(context.Context, *models.TrainingRun) error { return nil }

func (m *mockBackend) ListTrainingRuns(context.Context, string, int) ([]models.TrainingRun, error) {
	return nil, nil
}

func (m *mockBackend) ListActiveMerchants(context.Context) ([]string, error) { return nil, nil }

func (m *mockBackend) GetMerchantByAPIKey(_ context.Context, apiKey string) (string, error) {
	if id, ok := m.keys[apiKey]; ok {
		return id, nil
	}

	return "", models.ErrMerchantNotFound
}

func (m *mockBackend) Ping(context.Context) error { return m.pingErr }
