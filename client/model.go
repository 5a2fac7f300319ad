package client

import "context"

// ModelService reads and removes the merchant's live model.
type ModelService struct {
	c *Client
}

// Get returns the live model's manifest. Use IsNotTrained on the error to
// detect a merchant without a model.
func (s *ModelService) Get(ctx context.Context) (*ModelInfo, error) {
	var resp ModelInfo
	if err := s.c.get(ctx, "/api/v1/model", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes the merchant's model artifacts.
func (s *ModelService) Delete(ctx context.Context) error {
	return s.c.del(ctx, "/api/v1/model", nil)
}
