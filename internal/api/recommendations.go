package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
)

// RecommendationHandler serves co-purchase suggestions.
type RecommendationHandler struct {
	svc domain.RecommendationService
	log *logrus.Logger
}

// NewRecommendationHandler creates a RecommendationHandler.
func NewRecommendationHandler(svc domain.RecommendationService, log *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{svc: svc, log: log}
}

// Recommend handles POST /api/v1/recommendations.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req models.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	h.serve(c, &req)
}

// RecommendQuery handles GET /api/v1/recommendations?cart=a,b&limit=n.
func (h *RecommendationHandler) RecommendQuery(c *gin.Context) {
	req := models.RecommendRequest{CartProductIDs: splitCart(c.Query("cart"))}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be an integer")

			return
		}
		req.Limit = limit
	}

	h.serve(c, &req)
}

func (h *RecommendationHandler) serve(c *gin.Context, req *models.RecommendRequest) {
	// An empty cart has nothing to anchor on; checkout gets no suggestions
	// rather than an error.
	if len(req.CartProductIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"recommendations": []models.Recommendation{}})

		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}

	recs := h.svc.Recommend(c.Request.Context(), merchantID, req.CartProductIDs, req.Limit)

	h.log.WithFields(logrus.Fields{
		"action":      "recommendation.get",
		"merchant_id": merchantID,
		"cart_size":   len(req.CartProductIDs),
		"count":       len(recs),
	}).Info("audit")

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// Scores handles POST /api/v1/recommendations/scores. It returns the ranked
// candidates without catalog enrichment and reports a missing model.
func (h *RecommendationHandler) Scores(c *gin.Context) {
	var req models.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}

	scored, err := h.svc.Score(c.Request.Context(), merchantID, req.CartProductIDs, req.Limit)
	if err != nil {
		if errors.Is(err, artifact.ErrNotTrained) {
			respondError(c, http.StatusNotFound, ErrCodeNotTrained, "no model trained for merchant")

			return
		}

		h.log.WithError(err).Error("scoring cart")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"scores": scored})
}
