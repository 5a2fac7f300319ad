// Package service wires the co-purchase pipeline between the API, the
// collaborator stores and the artifact store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/cooccur"
	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/embedding"
	"github.com/persistorai/cobuy/internal/metrics"
	"github.com/persistorai/cobuy/internal/models"
)

// Compile-time check: *Trainer must satisfy domain.TrainingService.
var _ domain.TrainingService = (*Trainer)(nil)

// Model lifecycle events pushed to WebSocket clients.
const (
	EventModelTrained     = "model.trained"
	EventModelTrainFailed = "model.train_failed"
	EventModelDeleted     = "model.deleted"
)

// ArtifactWriter persists a freshly trained artifact set.
type ArtifactWriter interface {
	Save(ctx context.Context, merchantID string, set *artifact.Set) (*artifact.Manifest, error)
}

// EventBroadcaster pushes a typed event to a merchant's subscribers.
type EventBroadcaster interface {
	BroadcastEvent(eventType, merchantID string, data json.RawMessage)
}

// TrainerConfig holds training hyperparameters and limits.
type TrainerConfig struct {
	Dim           int
	Epochs        int
	BatchSize     int
	LearningRate  float64
	NegativeRatio float64
	MaxSamples    int
	Timeout       time.Duration
	// Seed makes runs reproducible per merchant when non-zero.
	Seed uint64
}

// Trainer rebuilds a merchant's model from its full transaction history.
type Trainer struct {
	history   domain.HistorySource
	artifacts ArtifactWriter
	runs      domain.TrainingRunStore
	events    EventBroadcaster
	locks     *MerchantLocks
	log       *logrus.Logger
	cfg       TrainerConfig
}

// NewTrainer creates a Trainer. runs and events may be nil.
func NewTrainer(
	history domain.HistorySource, artifacts ArtifactWriter, runs domain.TrainingRunStore,
	events EventBroadcaster, locks *MerchantLocks, log *logrus.Logger, cfg TrainerConfig,
) *Trainer {
	if locks == nil {
		locks = NewMerchantLocks()
	}

	return &Trainer{
		history:   history,
		artifacts: artifacts,
		runs:      runs,
		events:    events,
		locks:     locks,
		log:       log,
		cfg:       cfg,
	}
}

func (t *Trainer) rng(merchantID string) *rand.Rand {
	if t.cfg.Seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // sampling, not crypto.
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(merchantID)) //nolint:errcheck // hash writes never fail.

	return rand.New(rand.NewPCG(t.cfg.Seed, h.Sum64())) //nolint:gosec // sampling, not crypto.
}

// Train runs the full pipeline for merchantID: history, pairs, vocabulary,
// samples, fit, save. Too little data yields an unsuccessful result and
// leaves any existing artifacts untouched. Runtime failures are returned as
// errors. At most one Train runs per merchant at a time.
func (t *Trainer) Train(ctx context.Context, merchantID, trigger string) (*models.TrainResult, error) {
	if _, err := uuid.Parse(merchantID); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidMerchant, merchantID)
	}

	unlock := t.locks.Lock(merchantID)
	defer unlock()

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	result, err := t.train(ctx, merchantID)
	elapsed := time.Since(started)

	t.finish(merchantID, trigger, started, elapsed, result, err)

	if err != nil {
		return nil, err
	}

	result.DurationMS = elapsed.Milliseconds()

	return result, nil
}

func (t *Trainer) train(ctx context.Context, merchantID string) (*models.TrainResult, error) {
	txs, err := t.history.GetTransactionHistory(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction history: %w", err)
	}

	pairs := cooccur.ExtractPairs(txs)
	if len(pairs) == 0 {
		return models.InsufficientData(models.ReasonNoPairs), nil
	}

	vocab, err := cooccur.BuildVocabulary(pairs)
	if errors.Is(err, cooccur.ErrInsufficientVocabulary) {
		res := models.InsufficientData(models.ReasonInsufficientVocabulary)
		res.VocabSize = vocab.Size()
		res.PairsCount = len(pairs)
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("building vocabulary: %w", err)
	}

	rng := t.rng(merchantID)

	samples := cooccur.GenerateSamples(pairs, vocab, cooccur.SampleOptions{
		NegativeRatio: t.cfg.NegativeRatio,
		MaxSamples:    t.cfg.MaxSamples,
		Rand:          rng,
	})
	if samples.Count == 0 {
		res := models.InsufficientData(models.ReasonNoSamples)
		res.VocabSize = vocab.Size()
		res.PairsCount = len(pairs)
		return res, nil
	}

	model, err := embedding.New(vocab.Size(), embedding.Config{
		Dim:          t.cfg.Dim,
		LearningRate: t.cfg.LearningRate,
		BatchSize:    t.cfg.BatchSize,
		Epochs:       t.cfg.Epochs,
		Rand:         rng,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model: %w", err)
	}

	stats, err := model.Fit(ctx, samples.A, samples.B, samples.Labels)
	if err != nil {
		return nil, fmt.Errorf("fitting model: %w", err)
	}

	t.log.WithFields(logrus.Fields{
		"merchant_id": merchantID,
		"steps":       stats.Steps,
		"loss":        stats.FinalLoss(),
	}).Debug("model fitted")

	set := &artifact.Set{
		Model:     model,
		Vocab:     vocab,
		Pairs:     pairs,
		Adjacency: cooccur.BuildAdjacency(pairs),
		Manifest: artifact.Manifest{
			TrainedAt:   time.Now().UTC(),
			SampleCount: samples.Count,
		},
	}
	if _, err := t.artifacts.Save(ctx, merchantID, set); err != nil {
		return nil, fmt.Errorf("saving artifacts: %w", err)
	}

	return &models.TrainResult{
		Success:     true,
		VocabSize:   vocab.Size(),
		PairsCount:  len(pairs),
		SampleCount: samples.Count,
	}, nil
}

// finish records metrics, the ledger row and the model event for one run.
func (t *Trainer) finish(merchantID, trigger string, started time.Time, elapsed time.Duration, res *models.TrainResult, err error) {
	run := &models.TrainingRun{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		Trigger:    trigger,
		DurationMS: elapsed.Milliseconds(),
		StartedAt:  started.UTC(),
	}

	fields := logrus.Fields{
		"merchant_id": merchantID,
		"trigger":     trigger,
		"duration":    elapsed.String(),
	}

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failed"
		run.Reason = models.ReasonTrainingFailed
		t.log.WithError(err).WithFields(fields).Error("training failed")
	case !res.Success:
		outcome = "insufficient_data"
		run.Reason = res.Reason
		run.VocabSize, run.PairsCount = res.VocabSize, res.PairsCount
		t.log.WithFields(fields).WithField("reason", res.Reason).Info("training skipped")
	default:
		run.Success = true
		run.VocabSize, run.PairsCount, run.SampleCount = res.VocabSize, res.PairsCount, res.SampleCount
		fields["vocab_size"] = res.VocabSize
		fields["pairs"] = res.PairsCount
		fields["samples"] = res.SampleCount
		t.log.WithFields(fields).Info("audit: model trained")
	}

	metrics.TrainingRunsTotal.WithLabelValues(outcome).Inc()
	metrics.TrainingDuration.Observe(elapsed.Seconds())

	t.record(run)
	t.broadcast(run, err)
}

func (t *Trainer) record(run *models.TrainingRun) {
	if t.runs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.runs.RecordTrainingRun(ctx, run); err != nil {
		t.log.WithError(err).WithField("merchant_id", run.MerchantID).Warn("recording training run failed")
	}
}

func (t *Trainer) broadcast(run *models.TrainingRun, err error) {
	if t.events == nil {
		return
	}
	if !run.Success && err == nil {
		return
	}

	eventType := EventModelTrained
	if err != nil {
		eventType = EventModelTrainFailed
	}

	data, mErr := json.Marshal(run)
	if mErr != nil {
		t.log.WithError(mErr).Error("marshal training event")
		return
	}

	t.events.BroadcastEvent(eventType, run.MerchantID, data)
}
