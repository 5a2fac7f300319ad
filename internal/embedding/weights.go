package embedding

import (
	"fmt"
	"math/rand/v2"
)

// Weights is the serializable state of a trained Model.
type Weights struct {
	VocabSize  int
	Dim        int
	Embeddings []float64
	Kernel     float64
	Bias       float64
}

// Weights returns a copy of the model parameters.
func (m *Model) Weights() *Weights {
	emb := make([]float64, len(m.emb))
	copy(emb, m.emb)

	return &Weights{
		VocabSize:  m.vocabSize,
		Dim:        m.dim,
		Embeddings: emb,
		Kernel:     m.kernel,
		Bias:       m.bias,
	}
}

// FromWeights rebuilds a Model ready for prediction. The returned model can
// also be trained further with the default Config.
func FromWeights(w *Weights) (*Model, error) {
	if w == nil || w.VocabSize <= 0 || w.Dim <= 0 {
		return nil, fmt.Errorf("empty weights: %w", ErrInvalidShape)
	}
	if len(w.Embeddings) != w.VocabSize*w.Dim {
		return nil, fmt.Errorf("embeddings length %d, want %d: %w", len(w.Embeddings), w.VocabSize*w.Dim, ErrInvalidShape)
	}

	emb := make([]float64, len(w.Embeddings))
	copy(emb, w.Embeddings)

	m := &Model{
		vocabSize: w.VocabSize,
		dim:       w.Dim,
		emb:       emb,
		kernel:    w.Kernel,
		bias:      w.Bias,
		cfg:       Config{Dim: w.Dim, Rand: rand.New(rand.NewPCG(0, 0))}.withDefaults(), //nolint:gosec // shuffling only.
	}

	if !m.finite() {
		return nil, fmt.Errorf("weights contain NaN or Inf: %w", ErrNumericFailure)
	}

	return m, nil
}
