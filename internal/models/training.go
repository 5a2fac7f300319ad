package models

import "time"

// Reasons reported on an unsuccessful TrainResult.
const (
	ReasonNoPairs                = "insufficient_data: no co-purchase pairs"
	ReasonInsufficientVocabulary = "insufficient_vocabulary"
	ReasonNoSamples              = "insufficient_data: no training samples"
	ReasonTrainingFailed         = "training_failed"
)

// TrainResult is the outcome of one training invocation for a merchant.
type TrainResult struct {
	Success     bool   `json:"success"`
	Reason      string `json:"reason,omitempty"`
	VocabSize   int    `json:"vocab_size,omitempty"`
	PairsCount  int    `json:"pairs_count,omitempty"`
	SampleCount int    `json:"sample_count,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// InsufficientData returns an unsuccessful result carrying the given reason.
func InsufficientData(reason string) *TrainResult {
	return &TrainResult{Success: false, Reason: reason}
}

// TrainingRun is a ledger row recording one training attempt.
type TrainingRun struct {
	ID          string    `json:"id"`
	MerchantID  string    `json:"merchant_id"`
	Trigger     string    `json:"trigger"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	VocabSize   int       `json:"vocab_size"`
	PairsCount  int       `json:"pairs_count"`
	SampleCount int       `json:"sample_count"`
	DurationMS  int64     `json:"duration_ms"`
	StartedAt   time.Time `json:"started_at"`
}

// Training triggers recorded on the ledger.
const (
	TriggerAPI      = "api"
	TriggerSale     = "sale"
	TriggerBackfill = "backfill"
	TriggerCLI      = "cli"
)

// ModelInfo describes the live artifact set of a merchant.
type ModelInfo struct {
	MerchantID   string    `json:"merchant_id"`
	Generation   string    `json:"generation"`
	TrainedAt    time.Time `json:"trained_at"`
	VocabSize    int       `json:"vocab_size"`
	EmbeddingDim int       `json:"embedding_dim"`
	PairsCount   int       `json:"pairs_count"`
	SampleCount  int       `json:"sample_count"`
	Checksum     string    `json:"checksum"`
}
