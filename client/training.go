package client

import (
	"context"
	"net/url"
	"strconv"
)

// TrainingService triggers training and reads the training ledger.
type TrainingService struct {
	c *Client
}

// Train retrains the merchant's model synchronously. A failed run is
// reported through TrainResult.Success, not as an error.
func (s *TrainingService) Train(ctx context.Context) (*TrainResult, error) {
	var resp TrainResult
	if err := s.c.post(ctx, "/api/v1/train", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaleCommitted notifies the server that a sale was recorded so the model
// is refreshed in the background. transactionID may be empty.
func (s *TrainingService) SaleCommitted(ctx context.Context, transactionID string) error {
	body := map[string]string{"transaction_id": transactionID}
	return s.c.post(ctx, "/api/v1/sales/committed", body, nil)
}

// Runs returns the most recent training runs, newest first.
func (s *TrainingService) Runs(ctx context.Context, limit int) ([]TrainingRun, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Runs []TrainingRun `json:"runs"`
	}
	if err := s.c.get(ctx, "/api/v1/training-runs", params, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}
