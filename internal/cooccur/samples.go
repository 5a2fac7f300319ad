package cooccur

import (
	"math"
	"math/rand/v2"
)

// Sampling defaults.
const (
	DefaultNegativeRatio = 0.5
	DefaultMaxSamples    = 1000

	// negativeRetries bounds the search for one negative sample. A slot that
	// exhausts it is skipped.
	negativeRetries = 50
)

// SampleOptions tunes GenerateSamples. Zero values fall back to the defaults.
// A negative NegativeRatio disables negative sampling.
type SampleOptions struct {
	NegativeRatio float64
	MaxSamples    int
	Rand          *rand.Rand
}

func (o SampleOptions) withDefaults() SampleOptions {
	if o.NegativeRatio == 0 {
		o.NegativeRatio = DefaultNegativeRatio
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = DefaultMaxSamples
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // sampling, not crypto.
	}

	return o
}

// Samples holds labeled training examples as parallel arrays.
type Samples struct {
	A      []int
	B      []int
	Labels []float64
	Count  int
}

func (s *Samples) add(a, b int, label float64) {
	s.A = append(s.A, a)
	s.B = append(s.B, b)
	s.Labels = append(s.Labels, label)
	s.Count++
}

// Positives returns the number of label-1 samples.
func (s *Samples) Positives() int {
	n := 0
	for _, l := range s.Labels {
		if l == 1 {
			n++
		}
	}

	return n
}

type indexPair struct{ a, b int }

// GenerateSamples turns pairs into label-1 samples and adds
// floor(positives*NegativeRatio) label-0 samples that never repeat a positive.
// When the combined count exceeds MaxSamples the set is shuffled and
// truncated. No positives yields an empty Samples.
func GenerateSamples(pairs []Pair, vocab *Vocabulary, opts SampleOptions) *Samples {
	opts = opts.withDefaults()
	s := &Samples{}

	positives := make(map[indexPair]struct{}, len(pairs))
	for _, p := range pairs {
		a, okA := vocab.Index(p.A)
		b, okB := vocab.Index(p.B)
		if !okA || !okB {
			continue
		}
		s.add(a, b, 1)
		positives[indexPair{a, b}] = struct{}{}
	}

	posCount := s.Count
	if posCount == 0 {
		return s
	}

	size := vocab.Size()
	target := max(0, int(math.Floor(float64(posCount)*opts.NegativeRatio)))

	for i := 0; i < target; i++ {
		a := s.A[i%posCount]

		for try := 0; try < negativeRetries; try++ {
			b := opts.Rand.IntN(size)
			if b == a {
				continue
			}
			if _, ok := positives[indexPair{a, b}]; ok {
				continue
			}
			s.add(a, b, 0)
			break
		}
	}

	if s.Count > opts.MaxSamples {
		opts.Rand.Shuffle(s.Count, s.swap)
		s.A = s.A[:opts.MaxSamples]
		s.B = s.B[:opts.MaxSamples]
		s.Labels = s.Labels[:opts.MaxSamples]
		s.Count = opts.MaxSamples
	}

	return s
}

func (s *Samples) swap(i, j int) {
	s.A[i], s.A[j] = s.A[j], s.A[i]
	s.B[i], s.B[j] = s.B[j], s.B[i]
	s.Labels[i], s.Labels[j] = s.Labels[j], s.Labels[i]
}
