// Package embedding implements the two-tower dot-product co-purchase
// classifier. Both towers share one embedding table; the dot product of two
// product vectors feeds a single sigmoid unit that estimates how likely the
// pair is to be bought together.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Training defaults.
const (
	DefaultDim          = 64
	DefaultLearningRate = 0.01
	DefaultBatchSize    = 32
	DefaultEpochs       = 3

	embeddingInitRange = 0.05
	lossEpsilon        = 1e-7
)

var (
	// ErrNumericFailure is returned when the loss or a weight becomes NaN or Inf.
	ErrNumericFailure = errors.New("numeric failure during training")

	// ErrIndexOutOfRange is returned when a sample references an index outside the vocabulary.
	ErrIndexOutOfRange = errors.New("product index out of range")

	// ErrInvalidShape is returned for a non-positive vocabulary size or dimension,
	// or mismatched sample arrays.
	ErrInvalidShape = errors.New("invalid model shape")
)

// Config controls model shape and training. Non-positive fields use the
// package defaults.
type Config struct {
	Dim          int
	LearningRate float64
	BatchSize    int
	Epochs       int
	Rand         *rand.Rand
}

func (c Config) withDefaults() Config {
	if c.Dim <= 0 {
		c.Dim = DefaultDim
	}
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Epochs <= 0 {
		c.Epochs = DefaultEpochs
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // weight init, not crypto.
	}

	return c
}

// Model is a trained or trainable co-purchase classifier. A Model is not
// safe for concurrent Fit calls; PredictBatch may run concurrently once
// training has finished.
type Model struct {
	vocabSize int
	dim       int

	// emb is the shared [vocabSize x dim] table, row-major.
	emb    []float64
	kernel float64
	bias   float64

	cfg Config
}

// FitStats summarizes one Fit call.
type FitStats struct {
	Epochs    int
	Steps     int
	EpochLoss []float64
}

// FinalLoss returns the mean loss of the last epoch.
func (s *FitStats) FinalLoss() float64 {
	if len(s.EpochLoss) == 0 {
		return 0
	}
	return s.EpochLoss[len(s.EpochLoss)-1]
}

// New returns a freshly initialized model for vocabSize products.
func New(vocabSize int, cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if vocabSize <= 0 {
		return nil, fmt.Errorf("vocab size %d: %w", vocabSize, ErrInvalidShape)
	}

	m := &Model{
		vocabSize: vocabSize,
		dim:       cfg.Dim,
		emb:       make([]float64, vocabSize*cfg.Dim),
		cfg:       cfg,
	}

	for i := range m.emb {
		m.emb[i] = (cfg.Rand.Float64()*2 - 1) * embeddingInitRange
	}

	// Glorot uniform for a 1x1 kernel: limit = sqrt(6 / (fanIn + fanOut)).
	limit := math.Sqrt(6.0 / 2.0)
	m.kernel = (cfg.Rand.Float64()*2 - 1) * limit

	return m, nil
}

// VocabSize returns the number of rows in the embedding table.
func (m *Model) VocabSize() int { return m.vocabSize }

// Dim returns the embedding dimension.
func (m *Model) Dim() int { return m.dim }

func (m *Model) row(i int) []float64 {
	return m.emb[i*m.dim : (i+1)*m.dim]
}

func dot(x, y []float64) float64 {
	var s float64
	for i := range x {
		s += x[i] * y[i]
	}
	return s
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func (m *Model) forward(a, b int) (p, s float64) {
	s = dot(m.row(a), m.row(b))
	return sigmoid(m.kernel*s + m.bias), s
}

// Fit trains the model on parallel sample arrays with binary cross-entropy
// and Adam. Samples are shuffled at the start of every epoch. The context is
// checked between batches.
func (m *Model) Fit(ctx context.Context, a, b []int, labels []float64) (*FitStats, error) {
	n := len(labels)
	if len(a) != n || len(b) != n {
		return nil, fmt.Errorf("sample arrays of length %d/%d/%d: %w", len(a), len(b), n, ErrInvalidShape)
	}
	for i := range n {
		if a[i] < 0 || a[i] >= m.vocabSize || b[i] < 0 || b[i] >= m.vocabSize {
			return nil, fmt.Errorf("sample %d (%d,%d): %w", i, a[i], b[i], ErrIndexOutOfRange)
		}
	}

	stats := &FitStats{}
	if n == 0 {
		return stats, nil
	}

	opt := newAdam(len(m.emb), m.cfg.LearningRate)
	grads := newGradients(len(m.emb))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		m.cfg.Rand.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		for start := 0; start < n; start += m.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("fit interrupted at epoch %d: %w", epoch, err)
			}

			end := min(start+m.cfg.BatchSize, n)
			loss := m.accumulate(grads, order[start:end], a, b, labels)
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return stats, fmt.Errorf("epoch %d batch %d loss %v: %w", epoch, start/m.cfg.BatchSize, loss, ErrNumericFailure)
			}
			epochLoss += loss * float64(end-start)

			opt.step(m, grads)
			grads.reset()
			stats.Steps++
		}

		stats.EpochLoss = append(stats.EpochLoss, epochLoss/float64(n))
		stats.Epochs++
	}

	if !m.finite() {
		return stats, fmt.Errorf("weights diverged: %w", ErrNumericFailure)
	}

	return stats, nil
}

// accumulate computes batch-averaged gradients into g and returns the mean
// batch loss.
func (m *Model) accumulate(g *gradients, batch, a, b []int, labels []float64) float64 {
	scale := 1 / float64(len(batch))
	var loss float64

	for _, k := range batch {
		ia, ib, y := a[k], b[k], labels[k]
		p, s := m.forward(ia, ib)

		pc := min(max(p, lossEpsilon), 1-lossEpsilon)
		loss -= y*math.Log(pc) + (1-y)*math.Log(1-pc)

		dz := (p - y) * scale
		g.kernel += dz * s
		g.bias += dz

		ds := dz * m.kernel
		ra, rb := m.row(ia), m.row(ib)
		ga, gb := g.row(ia, m.dim), g.row(ib, m.dim)
		for d := 0; d < m.dim; d++ {
			ga[d] += ds * rb[d]
			gb[d] += ds * ra[d]
		}
	}

	return loss * scale
}

func (m *Model) finite() bool {
	if !isFinite(m.kernel) || !isFinite(m.bias) {
		return false
	}
	for _, v := range m.emb {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Predict returns the co-purchase probability of products a and b.
func (m *Model) Predict(a, b int) (float64, error) {
	if a < 0 || a >= m.vocabSize || b < 0 || b >= m.vocabSize {
		return 0, fmt.Errorf("pair (%d,%d): %w", a, b, ErrIndexOutOfRange)
	}
	p, _ := m.forward(a, b)
	return p, nil
}

// PredictBatch scores product a against every index in bs in one pass.
func (m *Model) PredictBatch(a int, bs []int) ([]float64, error) {
	if a < 0 || a >= m.vocabSize {
		return nil, fmt.Errorf("anchor %d: %w", a, ErrIndexOutOfRange)
	}

	out := make([]float64, len(bs))
	for i, b := range bs {
		if b < 0 || b >= m.vocabSize {
			return nil, fmt.Errorf("candidate %d: %w", b, ErrIndexOutOfRange)
		}
		out[i], _ = m.forward(a, b)
	}

	return out, nil
}
