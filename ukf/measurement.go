package ukf

import (
	"github.com/pkg/errors"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/mat"
)

// Predictor binds one measurement field to the function predicting it from a
// state vector. Prediction functions must be pure.
type Predictor struct {
	field    key
	vector   func(state *Vector) []float64
	scalar   func(state *Vector) float64
	rotation func(state *Vector) quaternion.Quaternion
}

// PredictVector binds a vector field to its prediction function. The function
// must return exactly f.Len() components.
func PredictVector(f VectorField, fn func(state *Vector) []float64) Predictor {
	return Predictor{field: f.key, vector: fn}
}

// PredictScalar binds a scalar field to its prediction function.
func PredictScalar(f ScalarField, fn func(state *Vector) float64) Predictor {
	return Predictor{field: f.key, scalar: fn}
}

// PredictRotation binds a rotation field to its prediction function. The
// result is normalized.
func PredictRotation(f RotationField, fn func(state *Vector) quaternion.Quaternion) Predictor {
	return Predictor{field: f.key, rotation: fn}
}

func (p Predictor) defined() bool {
	return p.vector != nil || p.scalar != nil || p.rotation != nil
}

// MeasurementModel is a sensor schema together with a prediction function for
// every field and the noise of every field. Build one per sensor suite at
// startup, then derive fixed or dynamic measurements from it.
type MeasurementModel struct {
	layout  *Layout
	state   *Layout
	predict []Predictor // by schema index
	noise   *Noise
}

// NewMeasurementModel seals schema and binds its fields to predictors reading
// vectors on the state layout. Every declared field needs exactly one
// predictor.
func NewMeasurementModel(schema *Schema, state *Layout, predictors ...Predictor) (*MeasurementModel, error) {
	layout, err := schema.Layout()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errors.Wrapf(ErrInvalidSchema, "%s: nil state layout", schema.name)
	}
	m := &MeasurementModel{
		layout:  layout,
		state:   state,
		predict: make([]Predictor, schema.Len()),
		noise:   newNoise(layout),
	}
	for _, p := range predictors {
		if p.field.schema != schema {
			return nil, errors.Wrapf(ErrInvalidSchema, "predictor for a field outside %s", schema.name)
		}
		label := p.field.Label()
		if !p.defined() {
			return nil, errors.Wrapf(ErrMissingPredictor, "%s.%s: nil function", schema.name, label)
		}
		if m.predict[p.field.index].defined() {
			return nil, errors.Wrapf(ErrInvalidSchema, "%s.%s has two predictors", schema.name, label)
		}
		m.predict[p.field.index] = p
	}
	for i, p := range m.predict {
		if !p.defined() {
			return nil, errors.Wrapf(ErrMissingPredictor, "%s.%s", schema.name, schema.decls[i].label)
		}
	}
	return m, nil
}

// Layout returns the layout of all the model's fields.
func (m *MeasurementModel) Layout() *Layout { return m.layout }

// StateLayout returns the layout of the states the model predicts from.
func (m *MeasurementModel) StateLayout() *Layout { return m.state }

// Noise returns the model's noise configuration.
func (m *MeasurementModel) Noise() *Noise { return m.noise }

// Fixed returns a measurement over every field of the model.
func (m *MeasurementModel) Fixed() *FixedMeasurement {
	return &FixedMeasurement{measurement{model: m, layout: m.layout}}
}

// FixedMeasurement is a measurement whose field set is the whole schema.
type FixedMeasurement struct {
	measurement
}

// Dim returns the tangent dimension of the measurement.
func (f *FixedMeasurement) Dim() int { return f.layout.dim }

// measurement holds the operations shared by fixed and dynamic measurements,
// restricted to the fields of layout.
type measurement struct {
	model  *MeasurementModel
	layout *Layout
}

// Layout returns the layout of the active fields.
func (ms *measurement) Layout() *Layout { return ms.layout }

// Model returns the model the measurement was built from.
func (ms *measurement) Model() *MeasurementModel { return ms.model }

// NewMeasurement returns an empty measurement vector, to be filled with sensor
// readings.
func (ms *measurement) NewMeasurement() *Vector { return ms.layout.NewVector() }

// Predict returns the expected measurement for one state.
func (ms *measurement) Predict(state *Vector) (*Vector, error) {
	if !state.layout.Equal(ms.model.state) {
		return nil, errors.Wrap(ErrDimensionMismatch, "state is not on the model's state layout")
	}
	out := ms.layout.NewVector()
	if err := ms.predictInto(out, state); err != nil {
		return nil, err
	}
	return out, nil
}

// Propagate evaluates the prediction functions of the active fields at every
// state sigma point. The result has one point per input point and keeps the
// input's weights.
func (ms *measurement) Propagate(states *SigmaPoints) (*SigmaPoints, error) {
	if !states.layout.Equal(ms.model.state) {
		return nil, errors.Wrap(ErrDimensionMismatch, "sigma points are not on the model's state layout")
	}
	out := newSigmaPoints(ms.layout, states.params, states.weights)
	for i := range states.points {
		if err := ms.predictInto(&out.points[i], &states.points[i]); err != nil {
			return nil, errors.Wrapf(err, "sigma point %d", i)
		}
	}
	return out, nil
}

func (ms *measurement) predictInto(dst *Vector, state *Vector) error {
	l := ms.layout
	for p, si := range l.fields {
		pr := ms.model.predict[si]
		d := l.schema.decls[si]
		o := l.offset[p]
		switch d.kind {
		case KindScalar:
			dst.data[o] = pr.scalar(state)
		case KindRotation:
			storeQuat(dst.data[o:], normalize(pr.rotation(state)))
		default:
			x := pr.vector(state)
			if len(x) != d.n {
				return errors.Wrapf(ErrDimensionMismatch, "%s predicted %d components, want %d", d.label, len(x), d.n)
			}
			copy(dst.data[o:o+d.n], x)
		}
	}
	return nil
}

func (ms *measurement) check(sp *SigmaPoints) error {
	if !sp.layout.Equal(ms.layout) {
		return errors.Wrap(ErrDimensionMismatch, "sigma points are not on the measurement layout")
	}
	return nil
}

// Mean returns the predicted measurement mean of propagated sigma points.
func (ms *measurement) Mean(sp *SigmaPoints) (*Vector, error) {
	if err := ms.check(sp); err != nil {
		return nil, err
	}
	return sp.Mean()
}

// Deltas returns the offsets of propagated sigma points from mean.
func (ms *measurement) Deltas(sp *SigmaPoints, mean *Vector) (*Deltas, error) {
	if err := ms.check(sp); err != nil {
		return nil, err
	}
	return sp.Deltas(mean)
}

// Covariance returns the covariance of the deltas, without measurement noise.
func (ms *measurement) Covariance(d *Deltas) (*mat.SymDense, error) {
	if r, _ := d.Dims(); r != ms.layout.dim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "deltas have %d rows, measurement dimension is %d", r, ms.layout.dim)
	}
	return Covariance(d, nil)
}

// MeasurementNoise assembles the noise covariance of the active fields from
// the model's noise configuration.
func (ms *measurement) MeasurementNoise() (*mat.SymDense, error) {
	return ms.model.noise.Matrix(ms.layout)
}

// InnovationCovariance returns the covariance of the deltas plus the
// measurement noise.
func (ms *measurement) InnovationCovariance(d *Deltas) (*mat.SymDense, error) {
	if r, _ := d.Dims(); r != ms.layout.dim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "deltas have %d rows, measurement dimension is %d", r, ms.layout.dim)
	}
	noise, err := ms.MeasurementNoise()
	if err != nil {
		return nil, err
	}
	return Covariance(d, noise)
}

// Innovation returns the tangent residual of a measured vector from the
// predicted mean.
func (ms *measurement) Innovation(measured, mean *Vector) ([]float64, error) {
	if !measured.layout.Equal(ms.layout) {
		return nil, errors.Wrap(ErrDimensionMismatch, "measured vector is not on the measurement layout")
	}
	return measured.Difference(mean)
}
