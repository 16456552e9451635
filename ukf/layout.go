// Package ukf implements the unscented transform over composite state and
// measurement vectors: sigma point generation, propagation through per-field
// prediction functions, and manifold-aware mean and covariance recovery.
//
// A vector is described by a Schema, an ordered list of labeled fields, each
// a real vector, a scalar or a unit quaternion. Declaring a field returns a
// typed key, and keys are the only way to read or write a field, so the set of
// addressable fields is fixed once the schema is built at startup.
package ukf

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the value type of a field.
type Kind int

const (
	KindVector   Kind = iota // n real components, n tangent dimensions
	KindScalar               // 1 component, 1 tangent dimension
	KindRotation             // unit quaternion, 4 stored, 3 tangent dimensions
)

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindScalar:
		return "scalar"
	case KindRotation:
		return "rotation"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type fieldDecl struct {
	label string
	kind  Kind
	n     int // stored components
}

// tangent returns the number of tangent-space dimensions of the field.
func (d fieldDecl) tangent() int {
	if d.kind == KindRotation {
		return 3
	}
	return d.n
}

// Field is a key for one declared field of a Schema.
type Field interface {
	Label() string
	Kind() Kind
	fieldKey() key
}

type key struct {
	schema *Schema
	index  int
}

func (k key) decl() fieldDecl { return k.schema.decls[k.index] }

// Label returns the label the field was declared with.
func (k key) Label() string { return k.decl().label }

// Kind returns the value type of the field.
func (k key) Kind() Kind { return k.decl().kind }

func (k key) fieldKey() key { return k }

func (k key) typed() Field {
	switch k.Kind() {
	case KindScalar:
		return ScalarField{k}
	case KindRotation:
		return RotationField{k}
	}
	return VectorField{k}
}

// VectorField addresses a real vector field.
type VectorField struct{ key }

// Len returns the number of components of the vector.
func (f VectorField) Len() int { return f.decl().n }

// ScalarField addresses a scalar field.
type ScalarField struct{ key }

// RotationField addresses a unit quaternion field.
type RotationField struct{ key }

// Schema is an ordered declaration of fields. Fields are declared once, at
// startup; the first call to Layout seals the schema.
type Schema struct {
	name  string
	decls []fieldDecl
	full  *Layout
}

// NewSchema returns an empty schema. The name only shows up in errors.
func NewSchema(name string) *Schema {
	return &Schema{name: name}
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Len returns the number of declared fields.
func (s *Schema) Len() int { return len(s.decls) }

func (s *Schema) declare(label string, kind Kind, n int) key {
	if s.full != nil {
		panic(fmt.Sprintf("ukf: schema %s is sealed, cannot declare %q", s.name, label))
	}
	s.decls = append(s.decls, fieldDecl{label: label, kind: kind, n: n})
	return key{schema: s, index: len(s.decls) - 1}
}

// Vector declares a real vector field of n components.
func (s *Schema) Vector(label string, n int) VectorField {
	return VectorField{s.declare(label, KindVector, n)}
}

// Scalar declares a scalar field.
func (s *Schema) Scalar(label string) ScalarField {
	return ScalarField{s.declare(label, KindScalar, 1)}
}

// Rotation declares a unit quaternion field.
func (s *Schema) Rotation(label string) RotationField {
	return RotationField{s.declare(label, KindRotation, 4)}
}

func (s *Schema) validate() error {
	if len(s.decls) == 0 {
		return errors.Wrapf(ErrInvalidSchema, "%s has no fields", s.name)
	}
	seen := make(map[string]bool, len(s.decls))
	for _, d := range s.decls {
		if d.label == "" {
			return errors.Wrapf(ErrInvalidSchema, "%s has a field with an empty label", s.name)
		}
		if seen[d.label] {
			return errors.Wrapf(ErrInvalidSchema, "%s declares %q twice", s.name, d.label)
		}
		seen[d.label] = true
		if d.n < 1 {
			return errors.Wrapf(ErrInvalidSchema, "%s.%s has %d components", s.name, d.label, d.n)
		}
	}
	return nil
}

// Layout seals the schema and returns the layout of all its fields.
// Later calls return the same layout.
func (s *Schema) Layout() (*Layout, error) {
	if s.full != nil {
		return s.full, nil
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	all := make([]int, len(s.decls))
	for i := range all {
		all[i] = i
	}
	s.full = s.newLayout(all)
	return s.full, nil
}

// MustLayout is like Layout but panics if the schema is invalid. It simplifies
// package-level schema definitions.
func (s *Schema) MustLayout() *Layout {
	l, err := s.Layout()
	if err != nil {
		panic(err)
	}
	return l
}

// Subset returns a layout over the given fields, kept in declaration order
// whatever the argument order. Repeated fields are counted once.
func (s *Schema) Subset(fields ...Field) (*Layout, error) {
	full, err := s.Layout()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%s: empty field subset", s.name)
	}
	active := make([]bool, len(s.decls))
	for _, f := range fields {
		k := f.fieldKey()
		if k.schema != s {
			return nil, errors.Wrapf(ErrInvalidSchema, "field does not belong to %s", s.name)
		}
		active[k.index] = true
	}
	var idx []int
	for i, ok := range active {
		if ok {
			idx = append(idx, i)
		}
	}
	if len(idx) == len(s.decls) {
		return full, nil
	}
	return s.newLayout(idx), nil
}

func (s *Schema) newLayout(fields []int) *Layout {
	l := &Layout{
		schema:  s,
		fields:  fields,
		pos:     make([]int, len(s.decls)),
		offset:  make([]int, len(fields)),
		tangent: make([]int, len(fields)),
	}
	for i := range l.pos {
		l.pos[i] = -1
	}
	for p, si := range fields {
		d := s.decls[si]
		l.pos[si] = p
		l.offset[p] = l.size
		l.tangent[p] = l.dim
		l.size += d.n
		l.dim += d.tangent()
	}
	return l
}

// Layout is the resolved storage plan for a set of active fields of a schema.
type Layout struct {
	schema  *Schema
	fields  []int // schema indices, declaration order
	pos     []int // schema index to position in fields, -1 when inactive
	offset  []int // stored offset by position
	tangent []int // tangent offset by position
	size    int
	dim     int
}

// Schema returns the schema the layout was built from.
func (l *Layout) Schema() *Schema { return l.schema }

// Size returns the number of stored floats.
func (l *Layout) Size() int { return l.size }

// Dim returns the tangent-space dimension L.
func (l *Layout) Dim() int { return l.dim }

// NumFields returns the number of active fields.
func (l *Layout) NumFields() int { return len(l.fields) }

// Full reports whether every declared field is active.
func (l *Layout) Full() bool { return len(l.fields) == len(l.schema.decls) }

// Has reports whether f is active in the layout.
func (l *Layout) Has(f Field) bool {
	k := f.fieldKey()
	return k.schema == l.schema && l.pos[k.index] >= 0
}

// Fields returns the active fields in declaration order.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	for p, si := range l.fields {
		out[p] = key{schema: l.schema, index: si}.typed()
	}
	return out
}

// TangentOffset returns the row of f's first tangent component in matrices
// built on this layout.
func (l *Layout) TangentOffset(f Field) (int, error) {
	p, err := l.locate(f)
	if err != nil {
		return 0, err
	}
	return l.tangent[p], nil
}

// Equal reports whether both layouts describe the same active fields of the
// same schema.
func (l *Layout) Equal(o *Layout) bool {
	if l == o {
		return true
	}
	if l == nil || o == nil || l.schema != o.schema || len(l.fields) != len(o.fields) {
		return false
	}
	for i := range l.fields {
		if l.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

func (l *Layout) locate(f Field) (int, error) {
	k := f.fieldKey()
	if k.schema != l.schema {
		label := "?"
		if k.schema != nil {
			label = k.Label()
		}
		return -1, &FieldError{Schema: l.schema.name, Label: label, Err: ErrInvalidSchema}
	}
	p := l.pos[k.index]
	if p < 0 {
		return -1, &FieldError{Schema: l.schema.name, Label: k.Label(), Err: ErrInactiveField}
	}
	return p, nil
}
