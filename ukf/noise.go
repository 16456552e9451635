package ukf

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Noise holds the per-field measurement noise of a measurement model, as
// variances, one per tangent dimension. It is shared by every measurement
// built from the model.
//
// Noise does no locking: populate it once before any covariance is computed
// and treat it as read-only afterwards. Changing it while another goroutine
// computes a covariance is a data race.
type Noise struct {
	full   *Layout
	values []float64 // by full-layout tangent offset
	set    []bool    // by schema index
}

func newNoise(full *Layout) *Noise {
	return &Noise{
		full:   full,
		values: make([]float64, full.dim),
		set:    make([]bool, len(full.fields)),
	}
}

func (n *Noise) store(f Field, variances []float64) error {
	p, err := n.full.locate(f)
	if err != nil {
		return err
	}
	d := n.full.schema.decls[p]
	if len(variances) != d.tangent() {
		return errors.Wrapf(ErrDimensionMismatch, "%s takes %d variances, got %d", d.label, d.tangent(), len(variances))
	}
	for _, v := range variances {
		if !(v >= 0) {
			return errors.Wrapf(ErrInvalidParams, "%s variance %g", d.label, v)
		}
	}
	copy(n.values[n.full.tangent[p]:], variances)
	n.set[p] = true
	return nil
}

// SetVector sets the variances of a vector field, one per component.
func (n *Noise) SetVector(f VectorField, variances ...float64) error {
	return n.store(f, variances)
}

// SetScalar sets the variance of a scalar field.
func (n *Noise) SetScalar(f ScalarField, variance float64) error {
	return n.store(f, []float64{variance})
}

// SetRotation sets the variances of the three tangent axes of a rotation
// field.
func (n *Noise) SetRotation(f RotationField, variances [3]float64) error {
	return n.store(f, variances[:])
}

// Variances returns the variances of f and whether they have been set.
func (n *Noise) Variances(f Field) ([]float64, bool) {
	p, err := n.full.locate(f)
	if err != nil || !n.set[p] {
		return nil, false
	}
	t := n.full.tangent[p]
	out := make([]float64, n.full.schema.decls[p].tangent())
	copy(out, n.values[t:])
	return out, true
}

// Configured reports whether every field active in l has been set.
func (n *Noise) Configured(l *Layout) bool {
	if l.schema != n.full.schema {
		return false
	}
	for _, si := range l.fields {
		if !n.set[si] {
			return false
		}
	}
	return true
}

// Reset forgets every variance.
func (n *Noise) Reset() {
	for i := range n.values {
		n.values[i] = 0
	}
	for i := range n.set {
		n.set[i] = false
	}
}

// Matrix assembles the diagonal noise covariance of the fields active in l,
// in declaration order. It fails with ErrUnconfiguredNoise if any of them has
// not been set.
func (n *Noise) Matrix(l *Layout) (*mat.SymDense, error) {
	if l.schema != n.full.schema {
		return nil, errors.Wrap(ErrInvalidSchema, "noise and layout come from different schemas")
	}
	out := mat.NewSymDense(l.dim, nil)
	for p, si := range l.fields {
		d := l.schema.decls[si]
		if !n.set[si] {
			return nil, errors.Wrapf(ErrUnconfiguredNoise, "%s.%s", l.schema.name, d.label)
		}
		src, dst := n.full.tangent[si], l.tangent[p]
		for k := 0; k < d.tangent(); k++ {
			out.SetSym(dst+k, dst+k, n.values[src+k])
		}
	}
	return out, nil
}
