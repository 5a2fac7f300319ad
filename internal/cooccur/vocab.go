package cooccur

import (
	"errors"
	"fmt"
)

// ErrInsufficientVocabulary is returned when fewer than two distinct products
// appear in the pair list, leaving nothing for the model to discriminate.
var ErrInsufficientVocabulary = errors.New("insufficient vocabulary")

// Vocabulary is the bijection between product IDs and dense indices 0..N-1.
// Indices are only meaningful within the artifact set they were built for.
type Vocabulary struct {
	Forward map[string]int
	Reverse []string
}

// Size returns the number of distinct products.
func (v *Vocabulary) Size() int {
	return len(v.Reverse)
}

// Index returns the dense index of productID.
func (v *Vocabulary) Index(productID string) (int, bool) {
	idx, ok := v.Forward[productID]
	return idx, ok
}

// ReverseMap returns the index -> product table as a map, the shape it is
// persisted in.
func (v *Vocabulary) ReverseMap() map[int]string {
	m := make(map[int]string, len(v.Reverse))
	for i, id := range v.Reverse {
		m[i] = id
	}

	return m
}

// BuildVocabulary assigns indices to every product appearing on either side
// of a pair, in first-seen order. A vocabulary of size <= 1 is returned along
// with ErrInsufficientVocabulary.
func BuildVocabulary(pairs []Pair) (*Vocabulary, error) {
	v := &Vocabulary{Forward: make(map[string]int)}

	add := func(id string) {
		if _, ok := v.Forward[id]; ok {
			return
		}
		v.Forward[id] = len(v.Reverse)
		v.Reverse = append(v.Reverse, id)
	}

	for _, p := range pairs {
		add(p.A)
		add(p.B)
	}

	if v.Size() <= 1 {
		return v, fmt.Errorf("%d distinct products: %w", v.Size(), ErrInsufficientVocabulary)
	}

	return v, nil
}

// VocabularyFromReverse rebuilds a Vocabulary from a persisted reverse map.
// Indices must be contiguous from zero.
func VocabularyFromReverse(reverse map[int]string) (*Vocabulary, error) {
	v := &Vocabulary{
		Forward: make(map[string]int, len(reverse)),
		Reverse: make([]string, len(reverse)),
	}

	for idx, id := range reverse {
		if idx < 0 || idx >= len(reverse) {
			return nil, fmt.Errorf("vocabulary index %d out of range [0,%d)", idx, len(reverse))
		}
		if _, dup := v.Forward[id]; dup {
			return nil, fmt.Errorf("vocabulary product %q mapped twice", id)
		}
		v.Reverse[idx] = id
		v.Forward[id] = idx
	}

	return v, nil
}
