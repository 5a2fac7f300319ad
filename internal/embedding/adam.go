package embedding

import "math"

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

type gradients struct {
	emb    []float64
	kernel float64
	bias   float64
}

func newGradients(size int) *gradients {
	return &gradients{emb: make([]float64, size)}
}

func (g *gradients) row(i, dim int) []float64 {
	return g.emb[i*dim : (i+1)*dim]
}

func (g *gradients) reset() {
	clear(g.emb)
	g.kernel, g.bias = 0, 0
}

// adam holds first and second moment estimates for every parameter. Updates
// are dense: rows without a gradient still see their moments decay.
type adam struct {
	lr float64
	t  int

	mEmb, vEmb       []float64
	mKernel, vKernel float64
	mBias, vBias     float64
}

func newAdam(size int, lr float64) *adam {
	return &adam{
		lr:   lr,
		mEmb: make([]float64, size),
		vEmb: make([]float64, size),
	}
}

func (o *adam) step(m *Model, g *gradients) {
	o.t++
	t := float64(o.t)
	lrT := o.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	update := func(param *float64, grad float64, mom, vel *float64) {
		*mom = adamBeta1*(*mom) + (1-adamBeta1)*grad
		*vel = adamBeta2*(*vel) + (1-adamBeta2)*grad*grad
		*param -= lrT * (*mom) / (math.Sqrt(*vel) + adamEpsilon)
	}

	for i := range m.emb {
		update(&m.emb[i], g.emb[i], &o.mEmb[i], &o.vEmb[i])
	}
	update(&m.kernel, g.kernel, &o.mKernel, &o.vKernel)
	update(&m.bias, g.bias, &o.mBias, &o.vBias)
}
