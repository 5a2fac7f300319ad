package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/metrics"
	"github.com/persistorai/cobuy/internal/models"
)

// Compile-time check: *Recommender must satisfy domain.RecommendationService.
var _ domain.RecommendationService = (*Recommender)(nil)

// DefaultTopN is how many suggestions a checkout gets when no limit is given.
const DefaultTopN = 2

// ArtifactLoader loads a merchant's live artifact set.
type ArtifactLoader interface {
	Load(ctx context.Context, merchantID string) (*artifact.Set, error)
}

// Recommender scores co-purchase candidates for a cart. Only products that
// were bought together with at least one cart product are ever scored.
type Recommender struct {
	artifacts ArtifactLoader
	catalog   domain.ProductCatalog
	log       *logrus.Logger
	topN      int
}

// NewRecommender creates a Recommender. topN <= 0 uses DefaultTopN.
func NewRecommender(artifacts ArtifactLoader, catalog domain.ProductCatalog, log *logrus.Logger, topN int) *Recommender {
	if topN <= 0 {
		topN = DefaultTopN
	}

	return &Recommender{artifacts: artifacts, catalog: catalog, log: log, topN: topN}
}

// Score returns up to limit candidates ranked by descending co-purchase
// probability. Each candidate keeps the highest score it reached against any
// cart product. Cart products never appear in the result. A merchant without
// a trained model gets an empty result and artifact.ErrNotTrained.
func (r *Recommender) Score(ctx context.Context, merchantID string, cart []string, limit int) ([]models.ScoredProduct, error) {
	if limit <= 0 {
		limit = r.topN
	}

	set, err := r.artifacts.Load(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	inCart := make(map[string]struct{}, len(cart))
	var anchors []int
	var anchorIDs []string
	for _, id := range cart {
		if _, dup := inCart[id]; dup {
			continue
		}
		inCart[id] = struct{}{}

		if idx, ok := set.Vocab.Index(id); ok {
			anchors = append(anchors, idx)
			anchorIDs = append(anchorIDs, id)
		}
	}
	if len(anchors) == 0 {
		return []models.ScoredProduct{}, nil
	}

	best := make(map[string]float64)
	for i, anchor := range anchors {
		var candidates []int
		var candidateIDs []string
		for _, neighbor := range set.Adjacency.Neighbors(anchorIDs[i]) {
			idx, ok := set.Vocab.Index(neighbor)
			if !ok || idx == anchor {
				continue
			}
			candidates = append(candidates, idx)
			candidateIDs = append(candidateIDs, neighbor)
		}
		if len(candidates) == 0 {
			continue
		}

		scores, err := set.Model.PredictBatch(anchor, candidates)
		if err != nil {
			return nil, fmt.Errorf("scoring candidates for %s: %w", anchorIDs[i], err)
		}

		for j, id := range candidateIDs {
			if s, seen := best[id]; !seen || scores[j] > s {
				best[id] = scores[j]
			}
		}
	}

	ranked := make([]models.ScoredProduct, 0, len(best))
	for id, s := range best {
		if _, ok := inCart[id]; ok {
			continue
		}
		ranked = append(ranked, models.ScoredProduct{ProductID: id, Score: s})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked, nil
}

// Recommend returns enriched suggestions for cart. It never fails: any
// missing model, unknown cart product, catalog error or lack of candidates
// resolves to an empty list.
func (r *Recommender) Recommend(ctx context.Context, merchantID string, cart []string, limit int) []models.Recommendation {
	out := r.recommend(ctx, merchantID, cart, limit)
	metrics.RecommendationsServed.Observe(float64(len(out)))

	return out
}

func (r *Recommender) recommend(ctx context.Context, merchantID string, cart []string, limit int) []models.Recommendation {
	empty := []models.Recommendation{}
	log := r.log.WithField("merchant_id", merchantID)

	ranked, err := r.Score(ctx, merchantID, cart, limit)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrNotTrained):
			log.Debug("no trained model, skipping recommendations")
		case ctx.Err() != nil:
			log.WithError(err).Debug("request ended before scoring")
		default:
			metrics.ArtifactLoadFailures.Inc()
			log.WithError(err).Warn("scoring recommendations failed")
		}
		return empty
	}
	if len(ranked) == 0 {
		return empty
	}

	ids := make([]string, len(ranked))
	for i, sp := range ranked {
		ids[i] = sp.ProductID
	}

	details, err := r.catalog.GetProductDetails(ctx, merchantID, ids)
	if err != nil {
		log.WithError(err).Warn("product catalog lookup failed")
		return empty
	}

	byID := make(map[string]models.ProductDetail, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}

	out := make([]models.Recommendation, 0, len(ranked))
	for _, sp := range ranked {
		d, ok := byID[sp.ProductID]
		if !ok {
			continue
		}
		out = append(out, models.Recommendation{ProductDetail: d, Score: sp.Score})
	}

	return out
}
