package client

import "context"

// AdminService handles administrative operations.
type AdminService struct {
	c *Client
}

// RetrainAll queues a background retrain for every merchant with history
// and returns how many were queued.
func (s *AdminService) RetrainAll(ctx context.Context) (int, error) {
	var resp struct {
		Queued int `json:"queued"`
	}
	if err := s.c.post(ctx, "/api/v1/admin/retrain-all", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Queued, nil
}
