package ukf

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/mat"
)

func TestPredict(t *testing.T) {
	st := newTestState(t)
	sn := newTestSensors(t, st)

	z, err := sn.model.Fixed().Predict(st.mean())
	require.NoError(t, err)

	acc := z.Vec(sn.accelerometer)
	assert.InDeltaSlice(t, []float64{0, 0, -9.8}, acc, Tolerance)
	assert.Equal(t, []float64{1, 0, 0}, z.Vec(sn.gyroscope))
	assert.InDelta(t, 89.3, z.Scalar(sn.staticPressure), Tolerance)
	assert.InDelta(t, 8.575, z.Scalar(sn.dynamicPressure), Tolerance)

	_, err = sn.model.Fixed().Predict(z)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestMeasurementModelErrors(t *testing.T) {
	st := newTestState(t)

	s := NewSchema("partial")
	a := s.Scalar("a")
	s.Scalar("b")
	_, err := NewMeasurementModel(s, st.layout,
		PredictScalar(a, func(*Vector) float64 { return 0 }))
	assert.True(t, errors.Is(err, ErrMissingPredictor))

	s = NewSchema("twice")
	a = s.Scalar("a")
	_, err = NewMeasurementModel(s, st.layout,
		PredictScalar(a, func(*Vector) float64 { return 0 }),
		PredictScalar(a, func(*Vector) float64 { return 1 }))
	assert.True(t, errors.Is(err, ErrInvalidSchema))

	s = NewSchema("nil")
	a = s.Scalar("a")
	_, err = NewMeasurementModel(s, st.layout, PredictScalar(a, nil))
	assert.True(t, errors.Is(err, ErrMissingPredictor))

	s = NewSchema("short")
	v := s.Vector("v", 3)
	m, err := NewMeasurementModel(s, st.layout,
		PredictVector(v, func(*Vector) []float64 { return []float64{1, 2} }))
	require.NoError(t, err)
	sp, err := st.mean().SigmaPoints(stateCovariance(), DefaultParams())
	require.NoError(t, err)
	_, err = m.Fixed().Propagate(sp)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestPropagateRotationField(t *testing.T) {
	st := newTestState(t)
	s := NewSchema("attitude")
	att := s.Rotation("attitude")
	m, err := NewMeasurementModel(s, st.layout,
		PredictRotation(att, func(x *Vector) quaternion.Quaternion {
			q := x.Rotation(st.attitude)
			return quaternion.Quaternion{W: 3 * q.W, X: 3 * q.X, Y: 3 * q.Y, Z: 3 * q.Z}
		}))
	require.NoError(t, err)

	mean := st.mean()
	mean.SetRotation(st.attitude, RotationExp([3]float64{0.1, 0.2, 0.3}))
	cov := stateCovariance()
	sp, err := mean.SigmaPoints(cov, DefaultParams())
	require.NoError(t, err)

	fixed := m.Fixed()
	zs, err := fixed.Propagate(sp)
	require.NoError(t, err)
	zm, err := fixed.Mean(zs)
	require.NoError(t, err)
	assert.InDelta(t, 1, quaternion.Norm(zs.At(3).Rotation(att)), Tolerance)
	off := RotationLog(quaternion.Prod(quaternion.Conj(mean.Rotation(st.attitude)), zm.Rotation(att)))
	for k := range off {
		assert.InDelta(t, 0, off[k], 1e-12)
	}

	// Identity measurement of the attitude recovers the attitude block
	d, err := fixed.Deltas(zs, zm)
	require.NoError(t, err)
	pzz, err := fixed.Covariance(d)
	require.NoError(t, err)
	assertMatricesEqual(t, cov.SliceSym(6, 9), pzz, 1e-8)
}

func runPipeline(t *testing.T, ms interface {
	Propagate(*SigmaPoints) (*SigmaPoints, error)
	Mean(*SigmaPoints) (*Vector, error)
	Deltas(*SigmaPoints, *Vector) (*Deltas, error)
	Covariance(*Deltas) (*mat.SymDense, error)
}, sp *SigmaPoints) (*SigmaPoints, *Vector, *Deltas, *mat.SymDense) {
	t.Helper()
	zs, err := ms.Propagate(sp)
	require.NoError(t, err)
	zm, err := ms.Mean(zs)
	require.NoError(t, err)
	d, err := ms.Deltas(zs, zm)
	require.NoError(t, err)
	pzz, err := ms.Covariance(d)
	require.NoError(t, err)
	return zs, zm, d, pzz
}

func TestFixedDynamicEquivalence(t *testing.T) {
	st := newTestState(t)
	sn := newTestSensors(t, st)

	mean := st.mean()
	mean.SetRotation(st.attitude, RotationExp([3]float64{0.2, -0.3, 0.1}))
	sp, err := mean.SigmaPoints(stateCovariance(), DefaultParams())
	require.NoError(t, err)

	fixed := sn.model.Fixed()
	dyn, err := sn.model.Dynamic(sn.dynamicPressure, sn.staticPressure, sn.gyroscope, sn.accelerometer)
	require.NoError(t, err)
	assert.Equal(t, fixed.Dim(), dyn.Size())
	assert.Equal(t, 8, dyn.Size())

	fs, fm, fd, fc := runPipeline(t, fixed, sp)
	ds, dm, dd, dc := runPipeline(t, dyn, sp)

	assert.Equal(t, 21, fs.Len())
	assert.Equal(t, 21, ds.Len())
	for i := 0; i < fs.Len(); i++ {
		assert.Equal(t, fs.At(i).data, ds.At(i).data, "sigma point %d", i)
	}
	assert.Equal(t, fm.data, dm.data)
	assert.True(t, mat.Equal(fd, dd))
	assert.True(t, mat.Equal(fc, dc))

	// The state/measurement cross-covariance is the same from both
	sd, err := sp.Deltas(mean)
	require.NoError(t, err)
	fx, err := CrossCovariance(sd, fd)
	require.NoError(t, err)
	dx, err := CrossCovariance(sd, dd)
	require.NoError(t, err)
	assert.True(t, mat.Equal(fx, dx))
	r, c := fx.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 8, c)
}

func TestDynamicSubset(t *testing.T) {
	st := newTestState(t)
	sn := newTestSensors(t, st)

	sp, err := st.mean().SigmaPoints(stateCovariance(), DefaultParams())
	require.NoError(t, err)

	_, fm, _, fc := runPipeline(t, sn.model.Fixed(), sp)

	dyn, err := sn.model.Dynamic(sn.gyroscope, sn.dynamicPressure)
	require.NoError(t, err)
	assert.Equal(t, 4, dyn.Size())
	assert.True(t, dyn.Active(sn.gyroscope))
	assert.False(t, dyn.Active(sn.accelerometer))

	for k := range sn.calls {
		delete(sn.calls, k)
	}
	ds, dm, _, dc := runPipeline(t, dyn, sp)
	assert.Equal(t, map[string]int{"gyroscope": 21, "dynamic_pressure": 21}, sn.calls,
		"inactive fields are never predicted")

	r, c := dc.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, fm.Vec(sn.gyroscope), dm.Vec(sn.gyroscope))
	assert.Equal(t, fm.Scalar(sn.dynamicPressure), dm.Scalar(sn.dynamicPressure))

	// Rows and columns of the subset are those of the fixed covariance
	rows := []int{3, 4, 5, 7}
	for i, fi := range rows {
		for j, fj := range rows {
			assert.InDelta(t, fc.At(fi, fj), dc.At(i, j), 1e-15, "(%d, %d)", i, j)
		}
	}

	assert.Panics(t, func() { ds.At(0).Vec(sn.accelerometer) })
	assert.True(t, errors.Is(ds.At(0).Check(sn.staticPressure), ErrInactiveField))

	// Results of one active set are rejected after a resize
	require.NoError(t, dyn.Activate(sn.accelerometer))
	assert.Equal(t, 3, dyn.Size())
	_, err = dyn.Mean(ds)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	assert.True(t, errors.Is(dyn.Activate(), ErrDimensionMismatch))
	_, err = sn.model.Dynamic()
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestMeasurementNoise(t *testing.T) {
	st := newTestState(t)
	sn := newTestSensors(t, st)
	noise := sn.model.Noise()
	fixed := sn.model.Fixed()

	_, err := fixed.MeasurementNoise()
	assert.True(t, errors.Is(err, ErrUnconfiguredNoise))

	require.NoError(t, noise.SetVector(sn.accelerometer, 1, 2, 3))
	require.NoError(t, noise.SetVector(sn.gyroscope, 4, 5, 6))
	require.NoError(t, noise.SetScalar(sn.staticPressure, 7))
	assert.False(t, noise.Configured(fixed.Layout()))
	require.NoError(t, noise.SetScalar(sn.dynamicPressure, 8))
	assert.True(t, noise.Configured(fixed.Layout()))

	// Layouts of other schemas are never configured
	foreign := NewSchema("foreign")
	for _, label := range []string{"a", "b", "c", "d", "e", "f"} {
		foreign.Scalar(label)
	}
	assert.False(t, noise.Configured(foreign.MustLayout()))
	assert.False(t, noise.Configured(st.layout))

	r, err := fixed.MeasurementNoise()
	require.NoError(t, err)
	assertMatricesEqual(t, diagonal(1, 2, 3, 4, 5, 6, 7, 8), r, 0)

	dyn, err := sn.model.Dynamic(sn.gyroscope, sn.dynamicPressure)
	require.NoError(t, err)
	r, err = dyn.MeasurementNoise()
	require.NoError(t, err)
	assertMatricesEqual(t, diagonal(4, 5, 6, 8), r, 0)

	// The innovation covariance is the propagated covariance plus noise
	sp, err := st.mean().SigmaPoints(stateCovariance(), DefaultParams())
	require.NoError(t, err)
	_, _, d, pzz := runPipeline(t, fixed, sp)
	s, err := fixed.InnovationCovariance(d)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.InDelta(t, pzz.At(i, i)+float64(i+1), s.At(i, i), 1e-9)
	}

	assert.True(t, errors.Is(noise.SetVector(sn.gyroscope, 1, 2), ErrDimensionMismatch))
	assert.True(t, errors.Is(noise.SetScalar(sn.staticPressure, -1), ErrInvalidParams))
	v, ok := noise.Variances(sn.gyroscope)
	assert.True(t, ok)
	assert.Equal(t, []float64{4, 5, 6}, v)

	noise.Reset()
	_, err = dyn.MeasurementNoise()
	assert.True(t, errors.Is(err, ErrUnconfiguredNoise))
	_, err = fixed.InnovationCovariance(d)
	assert.True(t, errors.Is(err, ErrUnconfiguredNoise))

	// A dynamic measurement only needs its active fields configured
	require.NoError(t, noise.SetVector(sn.gyroscope, 1, 1, 1))
	require.NoError(t, noise.SetScalar(sn.dynamicPressure, 2))
	_, err = dyn.MeasurementNoise()
	assert.NoError(t, err)
	_, err = fixed.MeasurementNoise()
	assert.True(t, errors.Is(err, ErrUnconfiguredNoise))
}

func TestInnovation(t *testing.T) {
	st := newTestState(t)
	sn := newTestSensors(t, st)
	dyn, err := sn.model.Dynamic(sn.staticPressure, sn.gyroscope)
	require.NoError(t, err)

	predicted, err := dyn.Predict(st.mean())
	require.NoError(t, err)
	measured := dyn.NewMeasurement()
	measured.SetVec(sn.gyroscope, 1.5, 0, -1)
	measured.SetScalar(sn.staticPressure, 90)

	y, err := dyn.Innovation(measured, predicted)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0, -1, 0.7}, y, Tolerance)

	_, err = dyn.Innovation(sn.model.Fixed().NewMeasurement(), predicted)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}
