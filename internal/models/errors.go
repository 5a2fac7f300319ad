package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for request validation.
var (
	ErrEmptyCart        = errors.New("cart_product_ids is required")
	ErrMissingProductID = errors.New("product id must not be empty")
	ErrLimitOutOfRange  = fmt.Errorf("limit must be between 0 and %d", MaxRecommendLimit)
	ErrInvalidMerchant  = errors.New("invalid merchant id")
)

// ErrMerchantNotFound indicates an API key or merchant lookup found nothing.
var ErrMerchantNotFound = errors.New("merchant not found")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
