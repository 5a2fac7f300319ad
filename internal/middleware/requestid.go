package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "request_id"

	// RequestIDHeader is the HTTP header used to propagate the request ID.
	RequestIDHeader = "X-Request-ID"
)

// RequestID assigns every request a canonical UUID. A checkout terminal that
// already tags its calls with a UUID keeps it, so POS and recommender logs
// line up. Anything else a client sends is logged as client_request_id and
// replaced.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)

		if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
			fresh := uuid.NewString()
			if id != "" {
				log.WithFields(logrus.Fields{
					"request_id":        fresh,
					"client_request_id": id,
				}).Debug("client request ID is not a UUID, replaced")
				c.Set("client_request_id", id)
			}
			id = fresh
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
