package httputil_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/cobuy/internal/httputil"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		requestID string
	}{
		{name: "with request id", requestID: "req-1"},
		{name: "without request id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tc.requestID != "" {
				c.Set("request_id", tc.requestID)
			}

			httputil.RespondError(c, http.StatusNotFound, "not_trained", "no model for merchant")

			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", w.Code)
			}
			if !c.IsAborted() {
				t.Error("context not aborted")
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["code"] != "not_trained" || body["message"] != "no model for merchant" {
				t.Errorf("body = %v", body)
			}
			if _, ok := body["request_id"]; ok != (tc.requestID != "") {
				t.Errorf("request_id presence = %v, body %v", ok, body)
			}
		})
	}
}
