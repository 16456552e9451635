package ukf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/mat"
)

const Tolerance = 1e-9

// testState mirrors an aircraft state: velocity, angular velocity, attitude
// and altitude, L = 10.
type testState struct {
	layout          *Layout
	velocity        VectorField
	angularVelocity VectorField
	attitude        RotationField
	altitude        ScalarField
}

func newTestState(t *testing.T) *testState {
	s := NewSchema("state")
	ts := &testState{
		velocity:        s.Vector("velocity", 3),
		angularVelocity: s.Vector("angular_velocity", 3),
		attitude:        s.Rotation("attitude"),
		altitude:        s.Scalar("altitude"),
	}
	l, err := s.Layout()
	require.NoError(t, err)
	ts.layout = l
	return ts
}

func (ts *testState) mean() *Vector {
	v := ts.layout.NewVector()
	v.SetVec(ts.velocity, 1, 2, 3)
	v.SetVec(ts.angularVelocity, 1, 0, 0)
	v.SetRotation(ts.attitude, quaternion.Quaternion{W: 1})
	v.SetScalar(ts.altitude, 1000)
	return v
}

// testSensors has accelerometer, gyroscope, static and dynamic pressure.
type testSensors struct {
	schema          *Schema
	accelerometer   VectorField
	gyroscope       VectorField
	staticPressure  ScalarField
	dynamicPressure ScalarField
	model           *MeasurementModel
	calls           map[string]int
}

func rotate(q quaternion.Quaternion, v [3]float64) []float64 {
	r := quaternion.Prod(q, quaternion.Quaternion{X: v[0], Y: v[1], Z: v[2]}, quaternion.Conj(q))
	return []float64{r.X, r.Y, r.Z}
}

func newTestSensors(t *testing.T, st *testState) *testSensors {
	s := NewSchema("sensors")
	ts := &testSensors{
		schema:          s,
		accelerometer:   s.Vector("accelerometer", 3),
		gyroscope:       s.Vector("gyroscope", 3),
		staticPressure:  s.Scalar("static_pressure"),
		dynamicPressure: s.Scalar("dynamic_pressure"),
		calls:           make(map[string]int),
	}
	var err error
	ts.model, err = NewMeasurementModel(s, st.layout,
		PredictVector(ts.accelerometer, func(x *Vector) []float64 {
			ts.calls["accelerometer"]++
			return rotate(x.Rotation(st.attitude), [3]float64{0, 0, -9.8})
		}),
		PredictVector(ts.gyroscope, func(x *Vector) []float64 {
			ts.calls["gyroscope"]++
			return x.Vec(st.angularVelocity)
		}),
		PredictScalar(ts.staticPressure, func(x *Vector) float64 {
			ts.calls["static_pressure"]++
			return 101.3 - 1.2*(x.Scalar(st.altitude)/100)
		}),
		PredictScalar(ts.dynamicPressure, func(x *Vector) float64 {
			ts.calls["dynamic_pressure"]++
			v := x.Vec(st.velocity)
			return 0.5 * 1.225 * (v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		}),
	)
	require.NoError(t, err)
	return ts
}

func diagonal(vals ...float64) *mat.SymDense {
	m := mat.NewSymDense(len(vals), nil)
	for i, v := range vals {
		m.SetSym(i, i, v)
	}
	return m
}

// stateCovariance returns a correlated covariance whose attitude block stays
// small enough for the sigma points to remain within π of the mean.
func stateCovariance() *mat.SymDense {
	a := mat.NewDense(10, 10, nil)
	for i := 0; i < 10; i++ {
		for j := 0; j <= i; j++ {
			a.Set(i, j, 0.1*math.Sin(float64(3*i+j+1)))
		}
		a.Set(i, i, 1)
	}
	for i := 6; i < 9; i++ {
		for j := 0; j < 10; j++ {
			a.Set(i, j, 0.1*a.At(i, j))
		}
	}
	var p mat.SymDense
	p.SymOuterK(1, a)
	return &p
}

func assertVectorsEqual(t *testing.T, want, got *Vector, tol float64) {
	t.Helper()
	require.True(t, want.layout.Equal(got.layout))
	d, err := got.Difference(want)
	require.NoError(t, err)
	for i, x := range d {
		assert.InDelta(t, 0, x, tol, "tangent component %d", i)
	}
}

func assertMatricesEqual(t *testing.T, want, got mat.Matrix, tol float64) {
	t.Helper()
	assert.True(t, mat.EqualApprox(want, got, tol), "want\n%v\ngot\n%v",
		mat.Formatted(want), mat.Formatted(got))
}
