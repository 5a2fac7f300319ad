package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/models"
)

// mockHistory records calls and returns configured responses.
type mockHistory struct {
	mu    sync.Mutex
	calls []string

	getHistory func(ctx context.Context, merchantID string) ([]models.Transaction, error)
}

func (m *mockHistory) GetTransactionHistory(ctx context.Context, merchantID string) ([]models.Transaction, error) {
	m.mu.Lock()
	m.calls = append(m.calls, merchantID)
	m.mu.Unlock()

	return m.getHistory(ctx, merchantID)
}

// mockCatalog records requested product IDs and returns configured responses.
type mockCatalog struct {
	mu        sync.Mutex
	requested [][]string

	getDetails func(ctx context.Context, merchantID string, ids []string) ([]models.ProductDetail, error)
}

func (m *mockCatalog) GetProductDetails(ctx context.Context, merchantID string, ids []string) ([]models.ProductDetail, error) {
	m.mu.Lock()
	m.requested = append(m.requested, append([]string(nil), ids...))
	m.mu.Unlock()

	if m.getDetails == nil {
		out := make([]models.ProductDetail, 0, len(ids))
		for _, id := range ids {
			out = append(out, models.ProductDetail{ID: id, Name: "Product " + id, Status: "active"})
		}
		return out, nil
	}

	return m.getDetails(ctx, merchantID, ids)
}

func (m *mockCatalog) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requested)
}

// mockRunStore keeps recorded training runs in memory.
type mockRunStore struct {
	mu        sync.Mutex
	runs      []models.TrainingRun
	merchants []string
	listErr   error
}

func (m *mockRunStore) RecordTrainingRun(_ context.Context, run *models.TrainingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockRunStore) ListTrainingRuns(_ context.Context, merchantID string, limit int) ([]models.TrainingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.TrainingRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].MerchantID == merchantID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *mockRunStore) ListActiveMerchants(context.Context) ([]string, error) {
	return m.merchants, m.listErr
}

func (m *mockRunStore) getRuns() []models.TrainingRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TrainingRun(nil), m.runs...)
}

// mockBroadcaster records broadcast event types.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (m *mockBroadcaster) BroadcastEvent(eventType, _ string, _ json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

func (m *mockBroadcaster) getEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// mockLoader returns a fixed artifact set or error.
type mockLoader struct {
	set *artifact.Set
	err error
}

func (m *mockLoader) Load(context.Context, string) (*artifact.Set, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.set == nil {
		return nil, artifact.ErrNotTrained
	}
	return m.set, nil
}

// mockTrainer records Train calls.
type mockTrainer struct {
	mu    sync.Mutex
	calls []TrainJob
	done  chan struct{}

	train func(ctx context.Context, merchantID, trigger string) (*models.TrainResult, error)
}

func (m *mockTrainer) Train(ctx context.Context, merchantID, trigger string) (*models.TrainResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, TrainJob{MerchantID: merchantID, Trigger: trigger})
	m.mu.Unlock()

	if m.done != nil {
		defer func() { m.done <- struct{}{} }()
	}

	if m.train == nil {
		return &models.TrainResult{Success: true}, nil
	}
	return m.train(ctx, merchantID, trigger)
}

func (m *mockTrainer) getCalls() []TrainJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TrainJob(nil), m.calls...)
}

// mockQueue records enqueued merchants.
type mockQueue struct {
	mu     sync.Mutex
	queued []string
	accept bool
}

func (m *mockQueue) Enqueue(merchantID, _ string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.accept {
		return false
	}
	m.queued = append(m.queued, merchantID)
	return true
}
