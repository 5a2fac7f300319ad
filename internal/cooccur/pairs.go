// Package cooccur turns a merchant's transaction history into the indexed,
// labeled training data consumed by the embedding model, and builds the
// co-occurrence adjacency used to gate candidates at inference time.
//
// Everything here is pure and allocation-local: no I/O, no shared state.
package cooccur

import "github.com/persistorai/cobuy/internal/models"

// Pair records that product A and product B were bought in the same
// transaction. Pairs are directional; every co-occurrence yields (A,B) and (B,A).
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// ExtractPairs emits both directional pairs for every unordered combination of
// two distinct products within each transaction. Baskets with fewer than two
// distinct products contribute nothing.
func ExtractPairs(txs []models.Transaction) []Pair {
	var pairs []Pair

	for i := range txs {
		products := distinct(txs[i].ProductIDs())
		if len(products) < 2 {
			continue
		}

		for x := 0; x < len(products); x++ {
			for y := x + 1; y < len(products); y++ {
				pairs = append(pairs,
					Pair{A: products[x], B: products[y]},
					Pair{A: products[y], B: products[x]},
				)
			}
		}
	}

	return pairs
}

// distinct keeps the first occurrence of each ID, preserving basket order.
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
