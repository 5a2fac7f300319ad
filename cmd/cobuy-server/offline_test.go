package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/models"
	"github.com/persistorai/cobuy/internal/service"
	"github.com/persistorai/cobuy/internal/sqlitestore"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type stubTrainer struct {
	fail map[string]bool
}

func (s *stubTrainer) Train(_ context.Context, merchantID, _ string) (*models.TrainResult, error) {
	if s.fail[merchantID] {
		return nil, errors.New("boom")
	}
	return &models.TrainResult{Success: true, VocabSize: 2}, nil
}

func decodeOutcomes(t *testing.T, out *bytes.Buffer) []trainOutcome {
	t.Helper()

	var outcomes []trainOutcome
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var o trainOutcome
		if err := json.Unmarshal(sc.Bytes(), &o); err != nil {
			t.Fatalf("bad output line %q: %v", sc.Text(), err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func TestTrainMerchants_ContinuesAfterFailure(t *testing.T) {
	var out bytes.Buffer
	trainer := &stubTrainer{fail: map[string]bool{"m2": true}}

	err := trainMerchants(context.Background(), trainer, quietLogger(), []string{"m1", "m2", "m3"}, models.TriggerCLI, &out)
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Fatalf("err = %v, want 1 of 3 failed", err)
	}

	outcomes := decodeOutcomes(t, &out)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	if outcomes[1].Error == "" || outcomes[1].Result != nil {
		t.Errorf("m2 outcome = %+v, want error", outcomes[1])
	}
	if outcomes[2].Result == nil || !outcomes[2].Result.Success {
		t.Errorf("m3 outcome = %+v, want success", outcomes[2])
	}
}

func TestTrainMerchants_SQLite(t *testing.T) {
	ctx := context.Background()
	log := quietLogger()

	s, err := sqlitestore.Open(ctx, ":memory:", log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup.

	var keyOut bytes.Buffer
	if err := createMerchant(ctx, s, "Corner Cafe", &keyOut); err != nil {
		t.Fatalf("createMerchant: %v", err)
	}
	key := strings.TrimSpace(strings.TrimPrefix(strings.Split(keyOut.String(), "\n")[1], "api_key:"))
	if !strings.HasPrefix(key, apiKeyPrefix) {
		t.Fatalf("api key %q lacks prefix", key)
	}
	merchantID, err := s.GetMerchantByAPIKey(ctx, key)
	if err != nil {
		t.Fatalf("printed key does not resolve: %v", err)
	}

	now := time.Now()
	for i, basket := range [][]string{{"P1", "P2"}, {"P1", "P2"}, {"P1", "P3"}} {
		items := make([]models.LineItem, 0, len(basket))
		for _, p := range basket {
			items = append(items, models.LineItem{ProductID: p, Quantity: 1})
		}
		if _, err := s.RecordSale(ctx, merchantID, items, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordSale: %v", err)
		}
	}

	artifacts, err := artifact.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	trainer := service.NewTrainer(s, artifacts, s, nil, nil, log, service.TrainerConfig{
		Dim: 8, Epochs: 3, BatchSize: 32, LearningRate: 0.01, NegativeRatio: 0.5,
		MaxSamples: 1000, Timeout: 30 * time.Second, Seed: 1,
	})

	merchants, err := s.ListActiveMerchants(ctx)
	if err != nil {
		t.Fatalf("ListActiveMerchants: %v", err)
	}

	var out bytes.Buffer
	if err := trainMerchants(ctx, trainer, log, merchants, models.TriggerBackfill, &out); err != nil {
		t.Fatalf("trainMerchants: %v", err)
	}

	outcomes := decodeOutcomes(t, &out)
	if len(outcomes) != 1 || outcomes[0].Result == nil || !outcomes[0].Result.Success {
		t.Fatalf("outcomes = %+v", outcomes)
	}

	runs, err := s.ListTrainingRuns(ctx, merchantID, 10)
	if err != nil {
		t.Fatalf("ListTrainingRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger != models.TriggerBackfill {
		t.Errorf("runs = %+v, want one backfill run", runs)
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	a, err := generateAPIKey()
	if err != nil {
		t.Fatal(err)
	}
	b, err := generateAPIKey()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("generated identical keys")
	}
	if len(a) != len(apiKeyPrefix)+64 {
		t.Errorf("key length = %d", len(a))
	}
}

func TestTrainCmd_ArgValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "nothing", args: []string{"train"}},
		{name: "both", args: []string{"train", "--all", "m1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)
			if err := root.Execute(); err == nil {
				t.Error("expected argument error")
			}
		})
	}
}
