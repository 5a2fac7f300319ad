package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/domain"
)

// AdminHandler serves the training ledger and backfill endpoints.
type AdminHandler struct {
	svc domain.AdminService
	log *logrus.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(svc domain.AdminService, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log}
}

// TrainingRuns handles GET /api/v1/training-runs.
func (h *AdminHandler) TrainingRuns(c *gin.Context) {
	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}
	limit := parseInt(c.DefaultQuery("limit", "20"), 20, maxRunsLimit)

	runs, err := h.svc.ListTrainingRuns(c.Request.Context(), merchantID, limit)
	if err != nil {
		h.log.WithError(err).Error("listing training runs")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// RetrainAll handles POST /api/v1/admin/retrain-all. Every merchant with
// transaction history is queued for a background retrain.
func (h *AdminHandler) RetrainAll(c *gin.Context) {
	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}

	queued, err := h.svc.RetrainAll(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("queueing retrain-all")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":      "admin.retrain_all",
		"merchant_id": merchantID,
		"queued":      queued,
	}).Info("audit")

	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}
