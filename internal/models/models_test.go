package models_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/persistorai/cobuy/internal/models"
)

func assertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func assertErrorContains(t *testing.T, err error, want string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}

	if !strings.Contains(err.Error(), want) {
		t.Errorf("expected error containing %q, got %q", want, err.Error())
	}
}

func TestRecommendRequest_Validate(t *testing.T) {
	manyIDs := make([]string, models.MaxCartProducts+1)
	for i := range manyIDs {
		manyIDs[i] = "p"
	}

	tests := []struct {
		name    string
		req     models.RecommendRequest
		wantErr string
	}{
		{name: "valid", req: models.RecommendRequest{CartProductIDs: []string{"p1"}}},
		{name: "valid with limit", req: models.RecommendRequest{CartProductIDs: []string{"p1", "p2"}, Limit: 5}},
		{name: "max limit", req: models.RecommendRequest{CartProductIDs: []string{"p1"}, Limit: models.MaxRecommendLimit}},
		{name: "empty cart", req: models.RecommendRequest{}, wantErr: "cart_product_ids is required"},
		{name: "blank id", req: models.RecommendRequest{CartProductIDs: []string{"p1", ""}}, wantErr: "must not be empty"},
		{name: "id too long", req: models.RecommendRequest{CartProductIDs: []string{strings.Repeat("x", 256)}}, wantErr: "exceeds maximum length"},
		{name: "cart too large", req: models.RecommendRequest{CartProductIDs: manyIDs}, wantErr: "exceeds maximum length"},
		{name: "negative limit", req: models.RecommendRequest{CartProductIDs: []string{"p1"}, Limit: -1}, wantErr: "limit must be between"},
		{name: "limit too high", req: models.RecommendRequest{CartProductIDs: []string{"p1"}, Limit: models.MaxRecommendLimit + 1}, wantErr: "limit must be between"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr != "" {
				assertErrorContains(t, err, tc.wantErr)
				return
			}
			assertNoError(t, err)
		})
	}
}

func TestRecommendRequest_ValidateSentinels(t *testing.T) {
	err := (&models.RecommendRequest{}).Validate()
	if !errors.Is(err, models.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}

	err = (&models.RecommendRequest{CartProductIDs: []string{"p1"}, Limit: 99}).Validate()
	if !errors.Is(err, models.ErrLimitOutOfRange) {
		t.Errorf("expected ErrLimitOutOfRange, got %v", err)
	}
}

func TestTransaction_ProductIDs(t *testing.T) {
	tx := models.Transaction{Items: []models.LineItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "", Quantity: 1},
		{ProductID: "p2", Quantity: 3},
		{ProductID: "p1", Quantity: 1},
	}}

	got := tx.ProductIDs()
	want := []string{"p1", "p2", "p1"}
	if !slices.Equal(got, want) {
		t.Errorf("ProductIDs() = %v, want %v", got, want)
	}
}

func TestInsufficientData(t *testing.T) {
	res := models.InsufficientData(models.ReasonNoPairs)
	if res.Success || res.Reason != models.ReasonNoPairs {
		t.Errorf("InsufficientData() = %+v", res)
	}
}
