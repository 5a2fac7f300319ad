package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/models"
)

// TrainHandler serves synchronous training and the post-sale hook.
type TrainHandler struct {
	trainer domain.TrainingService
	queue   domain.TrainQueue
	log     *logrus.Logger
}

// NewTrainHandler creates a TrainHandler.
func NewTrainHandler(trainer domain.TrainingService, queue domain.TrainQueue, log *logrus.Logger) *TrainHandler {
	return &TrainHandler{trainer: trainer, queue: queue, log: log}
}

// Train handles POST /api/v1/train. Training failures are reported in the
// body with success=false; the status stays 200.
func (h *TrainHandler) Train(c *gin.Context) {
	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}

	result, err := h.trainer.Train(c.Request.Context(), merchantID, models.TriggerAPI)
	if err != nil {
		if errors.Is(err, models.ErrInvalidMerchant) {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid merchant id")

			return
		}

		h.log.WithError(err).WithField("merchant_id", merchantID).Error("training failed")
		result = &models.TrainResult{Success: false, Reason: models.ReasonTrainingFailed}
	}

	h.log.WithFields(logrus.Fields{
		"action":      "model.train",
		"merchant_id": merchantID,
		"success":     result.Success,
		"reason":      result.Reason,
	}).Info("audit")

	c.JSON(http.StatusOK, result)
}

// saleCommittedRequest optionally names the committed transaction.
type saleCommittedRequest struct {
	TransactionID string `json:"transaction_id"`
}

// SaleCommitted handles POST /api/v1/sales/committed. The sale itself is
// never blocked: the retrain is queued and the call returns 202.
func (h *TrainHandler) SaleCommitted(c *gin.Context) {
	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}

	var req saleCommittedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

			return
		}
	}

	if !h.queue.Enqueue(merchantID, models.TriggerSale) {
		respondError(c, http.StatusServiceUnavailable, ErrCodeQueueFull, "training queue is full")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":         "sale.committed",
		"merchant_id":    merchantID,
		"transaction_id": req.TransactionID,
	}).Info("audit")

	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}
