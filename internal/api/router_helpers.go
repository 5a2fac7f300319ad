package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/middleware"
	"github.com/persistorai/cobuy/internal/ws"
)

// getMerchantID extracts the authenticated merchant ID from the Gin context
// and validates it is a proper UUID.
func getMerchantID(c *gin.Context) string {
	mid := c.GetString(middleware.MerchantIDKey)

	if _, err := uuid.Parse(mid); err != nil {
		respondError(c, 400, ErrCodeInvalidRequest, "invalid merchant id")

		return ""
	}

	return mid
}

func wsHandler(appCtx context.Context, log *logrus.Logger, hub *ws.Hub, corsOrigins []string, resolver domain.MerchantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		merchantID := getMerchantID(c)
		if merchantID == "" {
			return
		}

		// Kept for periodic re-validation of the key.
		apiKey := middleware.ExtractBearerToken(c)

		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:       corsOrigins,
			CompressionMode:      websocket.CompressionContextTakeover,
			CompressionThreshold: 128,
		})
		if err != nil {
			log.WithError(err).Error("websocket accept failed")

			return
		}

		client := ws.NewClient(hub, conn, merchantID, apiKey, resolver)
		hub.Register(client)

		// Cancels when either the server shuts down or the request ends.
		wsCtx, wsCancel := context.WithCancel(appCtx)
		go func() {
			select {
			case <-c.Request.Context().Done():
				wsCancel()
			case <-wsCtx.Done():
			}
		}()

		go client.WritePump(wsCtx)
		client.ReadPump(wsCtx)
		wsCancel()
	}
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		if mid := c.GetString(middleware.MerchantIDKey); mid != "" {
			fields["merchant_id"] = mid
		}
		log.WithFields(fields).Info("request")
	}
}

// maxRunsLimit caps the number of ledger rows per request.
const maxRunsLimit = 100

// parseInt returns fallback for missing, malformed or non-positive values and
// clamps the result to ceiling.
func parseInt(s string, fallback, ceiling int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}

	return min(v, ceiling)
}

// splitCart parses the comma separated cart query parameter, dropping blanks.
func splitCart(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	cart := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cart = append(cart, p)
		}
	}

	return cart
}
