package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/persistorai/cobuy/internal/api"
	"github.com/persistorai/cobuy/internal/models"
)

func TestTrainingRuns(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{name: "default", query: "", wantLimit: 20},
		{name: "explicit", query: "?limit=5", wantLimit: 5},
		{name: "capped", query: "?limit=5000", wantLimit: 100},
		{name: "garbage", query: "?limit=abc", wantLimit: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			svc := &mockAdmin{
				runsFn: func(_ context.Context, merchantID string, limit int) ([]models.TrainingRun, error) {
					gotLimit = limit
					return []models.TrainingRun{{ID: "r1", MerchantID: merchantID, Trigger: models.TriggerAPI, Success: true}}, nil
				},
			}
			h := api.NewAdminHandler(svc, testLogger())

			r := newTestRouter()
			r.GET("/training-runs", h.TrainingRuns)

			w := doRequest(r, http.MethodGet, "/training-runs"+tt.query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", gotLimit, tt.wantLimit)
			}

			var body struct {
				Runs []models.TrainingRun `json:"runs"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if len(body.Runs) != 1 || body.Runs[0].ID != "r1" {
				t.Errorf("runs = %+v", body.Runs)
			}
		})
	}
}

func TestTrainingRuns_Error(t *testing.T) {
	svc := &mockAdmin{
		runsFn: func(context.Context, string, int) ([]models.TrainingRun, error) {
			return nil, errors.New("db down")
		},
	}
	h := api.NewAdminHandler(svc, testLogger())

	r := newTestRouter()
	r.GET("/training-runs", h.TrainingRuns)

	if w := doRequest(r, http.MethodGet, "/training-runs", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestRetrainAll(t *testing.T) {
	svc := &mockAdmin{
		retrainFn: func(context.Context) (int, error) { return 3, nil },
	}
	h := api.NewAdminHandler(svc, testLogger())

	r := newTestRouter()
	r.POST("/admin/retrain-all", h.RetrainAll)

	w := doRequest(r, http.MethodPost, "/admin/retrain-all", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["queued"] != 3 {
		t.Errorf("queued = %d, want 3", body["queued"])
	}
}
