// Package httputil provides the JSON error envelope shared by the API,
// its middleware and the Go client.
package httputil

import "github.com/gin-gonic/gin"

// ErrorBody is the JSON body of every non-2xx API response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondError writes an ErrorBody and aborts the request.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString("request_id"),
	})
}
