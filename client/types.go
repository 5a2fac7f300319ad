package client

import "time"

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	SchemaVersion int     `json:"schema_version,omitempty"`
	WSClients     int     `json:"ws_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadinessResponse is returned by the readiness endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// TrainResult is the outcome of a training run.
type TrainResult struct {
	Success     bool   `json:"success"`
	Reason      string `json:"reason,omitempty"`
	VocabSize   int    `json:"vocab_size,omitempty"`
	PairsCount  int    `json:"pairs_count,omitempty"`
	SampleCount int    `json:"sample_count,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// TrainingRun is one entry of the training ledger.
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

// Variant is a sellable variation of a product.
type Variant struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// Recommendation is a suggested product with its catalog details.
type Recommendation struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Image    string    `json:"image,omitempty"`
	Stock    int       `json:"stock"`
	Status   string    `json:"status"`
	Category string    `json:"category,omitempty"`
	Variants []Variant `json:"variants"`
	Score    float64   `json:"score"`
}

// ScoredProduct is a ranked candidate without catalog details.
type ScoredProduct struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
}

// RecommendRequest asks for suggestions for a cart.
type RecommendRequest struct {
	CartProductIDs []string `json:"cart_product_ids"`
	Limit          int      `json:"limit,omitempty"`
}

// ModelInfo describes a merchant's live model.
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
