package ukf

import (
	"github.com/pkg/errors"
	"github.com/westphae/quaternion"
)

// Vector is a composite vector laid out by a Layout. Scalars and vector
// fields start at zero, rotations at the identity.
//
// Accessing a field that the layout does not carry panics with a *FieldError,
// the same way an out-of-range index panics; use Has or Check first when the
// layout is a runtime-selected subset.
type Vector struct {
	layout *Layout
	data   []float64
}

// NewVector returns a vector on l.
func (l *Layout) NewVector() *Vector {
	v := &Vector{layout: l, data: make([]float64, l.size)}
	l.reset(v.data)
	return v
}

func (l *Layout) reset(data []float64) {
	for i := range data {
		data[i] = 0
	}
	for p, si := range l.fields {
		if l.schema.decls[si].kind == KindRotation {
			data[l.offset[p]] = 1
		}
	}
}

// Layout returns the vector's layout.
func (v *Vector) Layout() *Layout { return v.layout }

// Dim returns the tangent dimension of the vector.
func (v *Vector) Dim() int { return v.layout.dim }

// Has reports whether f is active in the vector.
func (v *Vector) Has(f Field) bool { return v.layout.Has(f) }

// Check returns a *FieldError wrapping ErrInactiveField if f is not active in
// the vector.
func (v *Vector) Check(f Field) error {
	_, err := v.layout.locate(f)
	return err
}

func (v *Vector) offset(f Field) int {
	p, err := v.layout.locate(f)
	if err != nil {
		panic(err)
	}
	return v.layout.offset[p]
}

// Scalar returns the value of a scalar field.
func (v *Vector) Scalar(f ScalarField) float64 {
	return v.data[v.offset(f)]
}

// SetScalar sets a scalar field.
func (v *Vector) SetScalar(f ScalarField, x float64) {
	v.data[v.offset(f)] = x
}

// Vec returns a copy of a vector field.
func (v *Vector) Vec(f VectorField) []float64 {
	o := v.offset(f)
	out := make([]float64, f.Len())
	copy(out, v.data[o:o+len(out)])
	return out
}

// SetVec sets a vector field. It panics if len(x) differs from the declared
// length.
func (v *Vector) SetVec(f VectorField, x ...float64) {
	o := v.offset(f)
	if len(x) != f.Len() {
		panic(errors.Wrapf(ErrDimensionMismatch, "%s has %d components, got %d", f.Label(), f.Len(), len(x)))
	}
	copy(v.data[o:], x)
}

// Rotation returns the value of a rotation field.
func (v *Vector) Rotation(f RotationField) quaternion.Quaternion {
	return loadQuat(v.data[v.offset(f):])
}

// SetRotation sets a rotation field, normalized to unit norm.
func (v *Vector) SetRotation(f RotationField, q quaternion.Quaternion) {
	storeQuat(v.data[v.offset(f):], normalize(q))
}

// Clone returns a copy of v.
func (v *Vector) Clone() *Vector {
	out := &Vector{layout: v.layout, data: make([]float64, len(v.data))}
	copy(out.data, v.data)
	return out
}

// CopyFrom overwrites v with src, which must have an equal layout.
func (v *Vector) CopyFrom(src *Vector) error {
	if !v.layout.Equal(src.layout) {
		return errors.Wrap(ErrDimensionMismatch, "copy between different layouts")
	}
	copy(v.data, src.data)
	return nil
}

// Retract returns v ⊕ delta, where delta is a tangent vector of length Dim.
func (v *Vector) Retract(delta []float64) (*Vector, error) {
	if len(delta) != v.layout.dim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "delta has %d components, want %d", len(delta), v.layout.dim)
	}
	out := &Vector{layout: v.layout, data: make([]float64, len(v.data))}
	v.layout.retract(out.data, v.data, delta, 1)
	return out, nil
}

// Difference returns the tangent vector from ref to v.
func (v *Vector) Difference(ref *Vector) ([]float64, error) {
	if !v.layout.Equal(ref.layout) {
		return nil, errors.Wrap(ErrDimensionMismatch, "difference between different layouts")
	}
	out := make([]float64, v.layout.dim)
	v.layout.difference(out, v.data, ref.data)
	return out, nil
}

// retract writes base ⊕ sign·delta into dst. Rotations compose on the right
// with the exponential of their tangent block and are renormalized.
func (l *Layout) retract(dst, base, delta []float64, sign float64) {
	for p, si := range l.fields {
		d := l.schema.decls[si]
		o, t := l.offset[p], l.tangent[p]
		if d.kind == KindRotation {
			dq := rotationExp(sign*delta[t], sign*delta[t+1], sign*delta[t+2])
			storeQuat(dst[o:], quaternion.Unit(quaternion.Prod(loadQuat(base[o:]), dq)))
			continue
		}
		for k := 0; k < d.n; k++ {
			dst[o+k] = base[o+k] + sign*delta[t+k]
		}
	}
}

// difference writes the tangent vector from ref to point into dst: plain
// subtraction, or log(ref⁻¹·point) for rotations.
func (l *Layout) difference(dst, point, ref []float64) {
	for p, si := range l.fields {
		d := l.schema.decls[si]
		o, t := l.offset[p], l.tangent[p]
		if d.kind == KindRotation {
			dst[t], dst[t+1], dst[t+2] = rotationLog(quaternion.Prod(quaternion.Conj(loadQuat(ref[o:])), loadQuat(point[o:])))
			continue
		}
		for k := 0; k < d.n; k++ {
			dst[t+k] = point[o+k] - ref[o+k]
		}
	}
}
