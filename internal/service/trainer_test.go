package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/models"
)

const (
	merchantM = "6f1d2c3b-4a5e-4f60-8a7b-9c0d1e2f3a4b"
	merchantN = "0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func basket(ids ...string) models.Transaction {
	items := make([]models.LineItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.LineItem{ProductID: id, Quantity: 1})
	}
	return models.Transaction{ID: "tx", Items: items}
}

func staticHistory(txs ...models.Transaction) *mockHistory {
	return &mockHistory{
		getHistory: func(context.Context, string) ([]models.Transaction, error) {
			return txs, nil
		},
	}
}

func testTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Dim:           16,
		Epochs:        3,
		BatchSize:     32,
		LearningRate:  0.01,
		NegativeRatio: 0.5,
		MaxSamples:    1000,
		Timeout:       10 * time.Second,
		Seed:          42,
	}
}

type trainerFixture struct {
	trainer *Trainer
	store   *artifact.Store
	runs    *mockRunStore
	events  *mockBroadcaster
}

func newTrainerFixture(t *testing.T, history *mockHistory) *trainerFixture {
	t.Helper()

	store, err := artifact.NewStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}

	runs := &mockRunStore{}
	events := &mockBroadcaster{}

	return &trainerFixture{
		trainer: NewTrainer(history, store, runs, events, NewMerchantLocks(), testLogger(), testTrainerConfig()),
		store:   store,
		runs:    runs,
		events:  events,
	}
}

func TestTrainer_EndToEnd(t *testing.T) {
	f := newTrainerFixture(t, staticHistory(
		basket("P1", "P2"),
		basket("P1", "P2"),
		basket("P1", "P3"),
	))
	ctx := context.Background()

	res, err := f.trainer.Train(ctx, merchantM, models.TriggerAPI)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.VocabSize != 3 {
		t.Errorf("vocab size = %d, want 3", res.VocabSize)
	}
	if res.PairsCount != 6 {
		t.Errorf("pairs = %d, want 6", res.PairsCount)
	}
	if res.SampleCount < res.PairsCount {
		t.Errorf("samples = %d, want at least %d", res.SampleCount, res.PairsCount)
	}

	set, err := f.store.Load(ctx, merchantM)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string][]string{"P1": {"P2", "P3"}, "P2": {"P1"}, "P3": {"P1"}}
	got := set.Adjacency.ToLists()
	if len(got) != len(want) {
		t.Fatalf("adjacency = %v, want %v", got, want)
	}
	for id, neighbors := range want {
		if len(got[id]) != len(neighbors) {
			t.Errorf("adjacency[%s] = %v, want %v", id, got[id], neighbors)
			continue
		}
		for i := range neighbors {
			if got[id][i] != neighbors[i] {
				t.Errorf("adjacency[%s] = %v, want %v", id, got[id], neighbors)
			}
		}
	}

	rec := NewRecommender(f.store, &mockCatalog{}, testLogger(), 0)
	recs := rec.Recommend(ctx, merchantM, []string{"P1"}, 0)
	if len(recs) == 0 || len(recs) > 2 {
		t.Fatalf("recommendations = %d, want 1..2", len(recs))
	}
	for i, r := range recs {
		if r.ID != "P2" && r.ID != "P3" {
			t.Errorf("unexpected candidate %s", r.ID)
		}
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %v outside [0,1]", r.Score)
		}
		if i > 0 && recs[i-1].Score < r.Score {
			t.Errorf("results not descending: %v then %v", recs[i-1].Score, r.Score)
		}
	}

	runs := f.runs.getRuns()
	if len(runs) != 1 || !runs[0].Success || runs[0].Trigger != models.TriggerAPI {
		t.Errorf("runs = %+v, want one successful api run", runs)
	}
	if ev := f.events.getEvents(); len(ev) != 1 || ev[0] != EventModelTrained {
		t.Errorf("events = %v, want [%s]", ev, EventModelTrained)
	}
}

func TestTrainer_InsufficientData(t *testing.T) {
	tests := []struct {
		name       string
		txs        []models.Transaction
		wantReason string
	}{
		{name: "no transactions", txs: nil, wantReason: models.ReasonNoPairs},
		{name: "single item baskets", txs: []models.Transaction{basket("A"), basket("B")}, wantReason: models.ReasonNoPairs},
		{name: "repeated item", txs: []models.Transaction{basket("A", "A", "A")}, wantReason: models.ReasonNoPairs},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newTrainerFixture(t, staticHistory(tc.txs...))

			res, err := f.trainer.Train(context.Background(), merchantM, models.TriggerSale)
			if err != nil {
				t.Fatalf("Train: %v", err)
			}
			if res.Success {
				t.Fatal("expected unsuccessful result")
			}
			if res.Reason != tc.wantReason {
				t.Errorf("reason = %q, want %q", res.Reason, tc.wantReason)
			}

			if _, err := f.store.Load(context.Background(), merchantM); !errors.Is(err, artifact.ErrNotTrained) {
				t.Errorf("Load err = %v, want ErrNotTrained", err)
			}
			if ev := f.events.getEvents(); len(ev) != 0 {
				t.Errorf("events = %v, want none", ev)
			}
			runs := f.runs.getRuns()
			if len(runs) != 1 || runs[0].Success || runs[0].Reason != tc.wantReason {
				t.Errorf("runs = %+v", runs)
			}
		})
	}
}

func TestTrainer_InsufficientDataKeepsPriorModel(t *testing.T) {
	var txs []models.Transaction
	history := &mockHistory{
		getHistory: func(context.Context, string) ([]models.Transaction, error) {
			return txs, nil
		},
	}
	f := newTrainerFixture(t, history)
	ctx := context.Background()

	txs = []models.Transaction{basket("A", "B")}
	if res, err := f.trainer.Train(ctx, merchantM, models.TriggerAPI); err != nil || !res.Success {
		t.Fatalf("first Train = %+v, %v", res, err)
	}
	before, err := f.store.Info(ctx, merchantM)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}

	txs = nil
	res, err := f.trainer.Train(ctx, merchantM, models.TriggerAPI)
	if err != nil {
		t.Fatalf("second Train: %v", err)
	}
	if res.Success {
		t.Fatal("expected unsuccessful second run")
	}

	after, err := f.store.Info(ctx, merchantM)
	if err != nil {
		t.Fatalf("Info after: %v", err)
	}
	if after.Generation != before.Generation {
		t.Errorf("generation changed from %s to %s", before.Generation, after.Generation)
	}
}

func TestTrainer_HistoryFailure(t *testing.T) {
	history := &mockHistory{
		getHistory: func(context.Context, string) ([]models.Transaction, error) {
			return nil, errors.New("db down")
		},
	}
	f := newTrainerFixture(t, history)

	res, err := f.trainer.Train(context.Background(), merchantM, models.TriggerSale)
	if err == nil {
		t.Fatalf("expected error, got %+v", res)
	}

	runs := f.runs.getRuns()
	if len(runs) != 1 || runs[0].Success || runs[0].Reason != models.ReasonTrainingFailed {
		t.Errorf("runs = %+v, want one failed run", runs)
	}
	if ev := f.events.getEvents(); len(ev) != 1 || ev[0] != EventModelTrainFailed {
		t.Errorf("events = %v, want [%s]", ev, EventModelTrainFailed)
	}
}

func TestTrainer_Timeout(t *testing.T) {
	history := &mockHistory{
		getHistory: func(ctx context.Context, _ string) ([]models.Transaction, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	f := newTrainerFixture(t, history)
	f.trainer.cfg.Timeout = 20 * time.Millisecond

	_, err := f.trainer.Train(context.Background(), merchantM, models.TriggerSale)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestTrainer_InvalidMerchant(t *testing.T) {
	f := newTrainerFixture(t, staticHistory())

	_, err := f.trainer.Train(context.Background(), "../../etc", models.TriggerAPI)
	if !errors.Is(err, models.ErrInvalidMerchant) {
		t.Errorf("err = %v, want ErrInvalidMerchant", err)
	}
}

func TestTrainer_RetrainReplacesState(t *testing.T) {
	var txs []models.Transaction
	history := &mockHistory{
		getHistory: func(context.Context, string) ([]models.Transaction, error) {
			return txs, nil
		},
	}
	f := newTrainerFixture(t, history)
	ctx := context.Background()

	txs = []models.Transaction{basket("A", "B"), basket("A", "C")}
	if _, err := f.trainer.Train(ctx, merchantM, models.TriggerAPI); err != nil {
		t.Fatalf("first Train: %v", err)
	}

	txs = []models.Transaction{basket("X", "Y"), basket("Y", "Z")}
	if _, err := f.trainer.Train(ctx, merchantM, models.TriggerAPI); err != nil {
		t.Fatalf("second Train: %v", err)
	}

	set, err := f.store.Load(ctx, merchantM)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, stale := range []string{"A", "B", "C"} {
		if _, ok := set.Adjacency[stale]; ok {
			t.Errorf("adjacency still has %s from the first run", stale)
		}
	}
	if !set.Adjacency.Has("Y", "Z") || !set.Adjacency.Has("X", "Y") {
		t.Errorf("adjacency = %v, want second run data", set.Adjacency.ToLists())
	}

	rec := NewRecommender(f.store, &mockCatalog{}, testLogger(), 0)
	if got := rec.Recommend(ctx, merchantM, []string{"A"}, 0); len(got) != 0 {
		t.Errorf("recommend(A) = %v, want empty after retrain", got)
	}
}

func TestTrainer_SerializesPerMerchant(t *testing.T) {
	var active, peak atomic.Int32
	history := &mockHistory{
		getHistory: func(context.Context, string) ([]models.Transaction, error) {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return []models.Transaction{basket("A", "B")}, nil
		},
	}
	f := newTrainerFixture(t, history)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.trainer.Train(context.Background(), merchantM, models.TriggerSale); err != nil {
				t.Errorf("Train: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("peak concurrent trainings = %d, want 1", peak.Load())
	}
	if len(f.runs.getRuns()) != 5 {
		t.Errorf("runs = %d, want 5", len(f.runs.getRuns()))
	}
}
