package ukf

import (
	"github.com/pkg/errors"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/mat"
)

// Deltas holds the tangent-space offsets of a distribution from a reference
// vector, one column per sigma point, with the weights of the transform.
type Deltas struct {
	*mat.Dense
	Weights Weights
}

// Mean returns the weighted mean of the points. Vector and scalar fields are
// averaged directly, rotations with RotationMean.
func (sp *SigmaPoints) Mean() (*Vector, error) {
	l := sp.layout
	mean := &Vector{layout: l, data: make([]float64, l.size)}

	var (
		ws []float64
		qs []quaternion.Quaternion
	)
	for p, si := range l.fields {
		d := l.schema.decls[si]
		o := l.offset[p]
		if d.kind == KindRotation {
			if ws == nil {
				ws = make([]float64, len(sp.points))
				qs = make([]quaternion.Quaternion, len(sp.points))
				for i := range ws {
					ws[i] = sp.weights.Mean(i)
				}
			}
			for i := range sp.points {
				qs[i] = loadQuat(sp.points[i].data[o:])
			}
			q, err := RotationMean(qs, ws, sp.params.MeanTolerance, sp.params.MeanIterations)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", l.schema.name, d.label)
			}
			storeQuat(mean.data[o:], q)
			continue
		}
		for k := o; k < o+d.n; k++ {
			var s float64
			for i := range sp.points {
				s += sp.weights.Mean(i) * sp.points[i].data[k]
			}
			mean.data[k] = s
		}
	}
	return mean, nil
}

// Deltas returns the tangent offsets of every point from ref, which must be on
// the same layout.
func (sp *SigmaPoints) Deltas(ref *Vector) (*Deltas, error) {
	if !sp.layout.Equal(ref.layout) {
		return nil, errors.Wrap(ErrDimensionMismatch, "reference is on a different layout")
	}
	l := sp.layout
	out := mat.NewDense(l.dim, len(sp.points), nil)
	col := make([]float64, l.dim)
	for i := range sp.points {
		l.difference(col, sp.points[i].data, ref.data)
		out.SetCol(i, col)
	}
	return &Deltas{Dense: out, Weights: sp.weights}, nil
}

// Covariance returns the weighted covariance of the deltas without noise.
func (sp *SigmaPoints) Covariance(d *Deltas) (*mat.SymDense, error) {
	if r, _ := d.Dims(); r != sp.layout.dim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "deltas have %d rows, layout dimension is %d", r, sp.layout.dim)
	}
	return Covariance(d, nil)
}

// Covariance returns Σ wᵢ·dᵢ·dᵢᵀ over the columns of d, plus noise when it
// is not nil.
func Covariance(d *Deltas, noise mat.Symmetric) (*mat.SymDense, error) {
	r, c := d.Dims()
	if c != d.Weights.Points() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d deltas for %d sigma points", c, d.Weights.Points())
	}
	cov := mat.NewSymDense(r, nil)
	if noise != nil {
		if n := noise.SymmetricDim(); n != r {
			return nil, errors.Wrapf(ErrDimensionMismatch, "noise is %dx%d, deltas have %d rows", n, n, r)
		}
		cov.CopySym(noise)
	}
	col := mat.NewVecDense(r, nil)
	for i := 0; i < c; i++ {
		col.CopyVec(d.ColView(i))
		cov.SymRankOne(cov, d.Weights.Cov(i), col)
	}
	return cov, nil
}

// CrossCovariance returns Σ wᵢ·aᵢ·bᵢᵀ for deltas of two vectors taken from the
// same sigma point index, e.g. state and predicted measurement.
func CrossCovariance(a, b *Deltas) (*mat.Dense, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != cb || ca != a.Weights.Points() || a.Weights != b.Weights {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d and %d deltas from different transforms", ca, cb)
	}
	var aw mat.Dense
	aw.CloneFrom(a)
	for i := 0; i < ca; i++ {
		w := a.Weights.Cov(i)
		for j := 0; j < ra; j++ {
			aw.Set(j, i, w*aw.At(j, i))
		}
	}
	out := mat.NewDense(ra, rb, nil)
	out.Mul(&aw, b.T())
	return out, nil
}
