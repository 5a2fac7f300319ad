package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/domain"
)

// ModelHandler exposes the live model of the authenticated merchant.
type ModelHandler struct {
	svc domain.ModelService
	log *logrus.Logger
}

// NewModelHandler creates a ModelHandler.
func NewModelHandler(svc domain.ModelService, log *logrus.Logger) *ModelHandler {
	return &ModelHandler{svc: svc, log: log}
}

// Get handles GET /api/v1/model.
func (h *ModelHandler) Get(c *gin.Context) {
	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}

	info, err := h.svc.ModelInfo(c.Request.Context(), merchantID)
	if err != nil {
		h.respondModelError(c, err, "reading model info")

		return
	}

	c.JSON(http.StatusOK, info)
}

// Delete handles DELETE /api/v1/model.
func (h *ModelHandler) Delete(c *gin.Context) {
	merchantID := getMerchantID(c)
	if merchantID == "" {
		return
	}

	if err := h.svc.DeleteModel(c.Request.Context(), merchantID); err != nil {
		h.respondModelError(c, err, "deleting model")

		return
	}

	h.log.WithFields(logrus.Fields{"action": "model.delete", "merchant_id": merchantID}).Info("audit")

	c.Status(http.StatusNoContent)
}

func (h *ModelHandler) respondModelError(c *gin.Context, err error, op string) {
	if errors.Is(err, artifact.ErrNotTrained) {
		respondError(c, http.StatusNotFound, ErrCodeNotTrained, "no model trained for merchant")

		return
	}

	h.log.WithError(err).Error(op)
	respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
