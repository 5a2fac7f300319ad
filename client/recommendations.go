package client

import "context"

// RecommendationService fetches co-purchase suggestions.
type RecommendationService struct {
	c *Client
}

// Get returns suggestions for the given cart. limit 0 uses the server default.
func (s *RecommendationService) Get(ctx context.Context, cart []string, limit int) ([]Recommendation, error) {
	var resp struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	req := RecommendRequest{CartProductIDs: cart, Limit: limit}
	if err := s.c.post(ctx, "/api/v1/recommendations", req, &resp); err != nil {
		return nil, err
	}
	return resp.Recommendations, nil
}

// Scores returns the raw ranked candidates for the cart.
func (s *RecommendationService) Scores(ctx context.Context, cart []string, limit int) ([]ScoredProduct, error) {
	var resp struct {
		Scores []ScoredProduct `json:"scores"`
	}
	req := RecommendRequest{CartProductIDs: cart, Limit: limit}
	if err := s.c.post(ctx, "/api/v1/recommendations/scores", req, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}
