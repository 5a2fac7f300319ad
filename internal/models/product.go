package models

// Variant is a sellable variation of a product (size, colour, ...).
type Variant struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// ProductDetail is the catalog view of a product returned by the POS catalog.
type ProductDetail struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Image    string    `json:"image,omitempty"`
	Stock    int       `json:"stock"`
	Status   string    `json:"status"`
	Category string    `json:"category,omitempty"`
	Variants []Variant `json:"variants"`
}

// Recommendation is a catalog product enriched with its co-purchase score.
type Recommendation struct {
	ProductDetail
	Score float64 `json:"score"`
}

// ScoredProduct is a ranked candidate before catalog enrichment.
type ScoredProduct struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
}

// Limits applied to recommendation requests.
const (
	MaxCartProducts   = 200
	MaxRecommendLimit = 20
	maxProductIDLen   = 255
)

// RecommendRequest is the payload for requesting co-purchase suggestions.
type RecommendRequest struct {
	CartProductIDs []string `json:"cart_product_ids"`
	Limit          int      `json:"limit,omitempty"`
}

// Validate checks the cart is present and within limits.
func (r *RecommendRequest) Validate() error {
	if len(r.CartProductIDs) == 0 {
		return ErrEmptyCart
	}

	if len(r.CartProductIDs) > MaxCartProducts {
		return ErrFieldTooLong("cart_product_ids", MaxCartProducts)
	}

	for _, id := range r.CartProductIDs {
		if id == "" {
			return ErrMissingProductID
		}
		if len(id) > maxProductIDLen {
			return ErrFieldTooLong("product id", maxProductIDLen)
		}
	}

	if r.Limit < 0 || r.Limit > MaxRecommendLimit {
		return ErrLimitOutOfRange
	}

	return nil
}
