package ukf

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// psdTolerance is the relative size below which negative eigenvalues of a
// covariance are treated as rounding noise.
const psdTolerance = 1e-9

// SigmaPoints is a distribution of 2N+1 vectors on one layout, where N is the
// dimension of the source of the transform. Point 0 is the mean, points 1..N
// the positive and N+1..2N the negative perturbations.
type SigmaPoints struct {
	layout  *Layout
	params  Params
	weights Weights
	data    []float64
	points  []Vector
}

func newSigmaPoints(l *Layout, p Params, w Weights) *SigmaPoints {
	n := w.Points()
	sp := &SigmaPoints{
		layout:  l,
		params:  p,
		weights: w,
		data:    make([]float64, n*l.size),
		points:  make([]Vector, n),
	}
	for i := range sp.points {
		lo, hi := i*l.size, (i+1)*l.size
		sp.points[i] = Vector{layout: l, data: sp.data[lo:hi:hi]}
	}
	return sp
}

// Len returns the number of points.
func (sp *SigmaPoints) Len() int { return len(sp.points) }

// At returns point i. The vector shares storage with the distribution.
func (sp *SigmaPoints) At(i int) *Vector { return &sp.points[i] }

// Layout returns the layout of the points.
func (sp *SigmaPoints) Layout() *Layout { return sp.layout }

// Weights returns the weights of the transform that produced the points.
func (sp *SigmaPoints) Weights() Weights { return sp.weights }

// Params returns the parameters of the transform that produced the points.
func (sp *SigmaPoints) Params() Params { return sp.params }

// SigmaPoints generates the sigma point distribution of v with covariance
// cov. It fails with ErrNonPositiveDefinite when no square root of cov exists.
func (v *Vector) SigmaPoints(cov mat.Symmetric, p Params) (*SigmaPoints, error) {
	l := v.layout
	n := l.dim
	w, err := p.Weights(n)
	if err != nil {
		return nil, err
	}
	if r := cov.SymmetricDim(); r != n {
		return nil, errors.Wrapf(ErrDimensionMismatch, "covariance is %dx%d, vector dimension is %d", r, r, n)
	}
	root, err := sqrtCovariance(cov, p.Scale(n))
	if err != nil {
		return nil, err
	}

	sp := newSigmaPoints(l, p, w)
	copy(sp.points[0].data, v.data)
	col := make([]float64, n)
	for i := 0; i < n; i++ {
		mat.Col(col, i, root)
		l.retract(sp.points[1+i].data, v.data, col, 1)
		l.retract(sp.points[1+n+i].data, v.data, col, -1)
	}
	return sp, nil
}

// sqrtCovariance returns S with S·Sᵀ = c·cov: the Cholesky factor when cov is
// positive definite, else V·diag(√λ) from its eigendecomposition.
func sqrtCovariance(cov mat.Symmetric, c float64) (mat.Matrix, error) {
	n := cov.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if x := cov.At(i, j); math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, errors.Wrapf(ErrNonPositiveDefinite, "non-finite entry at (%d, %d)", i, j)
			}
		}
	}
	scaled := mat.NewSymDense(n, nil)
	scaled.ScaleSym(c, cov)

	var chol mat.Cholesky
	if chol.Factorize(scaled) {
		var root mat.TriDense
		chol.LTo(&root)
		return &root, nil
	}

	// Semi-definite, or not a covariance at all
	var eig mat.EigenSym
	if !eig.Factorize(scaled, true) {
		return nil, errors.Wrap(ErrNonPositiveDefinite, "eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var root mat.Dense
	eig.VectorsTo(&root)

	scale := 1.0
	for _, ev := range vals {
		scale = math.Max(scale, math.Abs(ev))
	}
	for j, ev := range vals {
		if math.IsNaN(ev) || ev < -psdTolerance*scale {
			return nil, errors.Wrapf(ErrNonPositiveDefinite, "eigenvalue %g", ev)
		}
		s := math.Sqrt(math.Max(ev, 0))
		for i := 0; i < n; i++ {
			root.Set(i, j, root.At(i, j)*s)
		}
	}
	return &root, nil
}
