package ukf

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/westphae/quaternion"
)

func TestLayoutDimensions(t *testing.T) {
	st := newTestState(t)
	l := st.layout

	assert.Equal(t, 10, l.Dim())
	assert.Equal(t, 11, l.Size())
	assert.Equal(t, 4, l.NumFields())
	assert.True(t, l.Full())

	for _, tc := range []struct {
		f    Field
		want int
	}{
		{st.velocity, 0},
		{st.angularVelocity, 3},
		{st.attitude, 6},
		{st.altitude, 9},
	} {
		off, err := l.TangentOffset(tc.f)
		require.NoError(t, err)
		assert.Equal(t, tc.want, off, tc.f.Label())
	}

	labels := []string{}
	for _, f := range l.Fields() {
		labels = append(labels, f.Label())
	}
	assert.Equal(t, []string{"velocity", "angular_velocity", "attitude", "altitude"}, labels)
	assert.Equal(t, KindRotation, l.Fields()[2].Kind())
}

func TestSchemaValidation(t *testing.T) {
	s := NewSchema("dup")
	s.Scalar("a")
	s.Scalar("a")
	_, err := s.Layout()
	assert.True(t, errors.Is(err, ErrInvalidSchema))

	_, err = NewSchema("empty").Layout()
	assert.True(t, errors.Is(err, ErrInvalidSchema))

	s = NewSchema("zero")
	s.Vector("v", 0)
	_, err = s.Layout()
	assert.True(t, errors.Is(err, ErrInvalidSchema))

	s = NewSchema("sealed")
	s.Scalar("a")
	s.MustLayout()
	assert.Panics(t, func() { s.Scalar("b") })
}

func TestSubset(t *testing.T) {
	st := newTestState(t)
	s := st.layout.Schema()

	l, err := s.Subset(st.altitude, st.velocity)
	require.NoError(t, err)
	assert.Equal(t, 4, l.Dim())
	assert.Equal(t, 4, l.Size())
	assert.False(t, l.Full())
	assert.True(t, l.Has(st.velocity))
	assert.False(t, l.Has(st.attitude))

	off, err := l.TangentOffset(st.altitude)
	require.NoError(t, err)
	assert.Equal(t, 3, off, "subset keeps declaration order")

	again, err := s.Subset(st.velocity, st.altitude, st.velocity)
	require.NoError(t, err)
	assert.True(t, l.Equal(again))
	assert.False(t, l.Equal(st.layout))

	full, err := s.Subset(st.velocity, st.angularVelocity, st.attitude, st.altitude)
	require.NoError(t, err)
	assert.Same(t, st.layout, full)

	_, err = s.Subset()
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	other := NewSchema("other")
	foreign := other.Scalar("x")
	_, err = s.Subset(foreign)
	assert.True(t, errors.Is(err, ErrInvalidSchema))
}

func TestVectorAccess(t *testing.T) {
	st := newTestState(t)
	v := st.layout.NewVector()

	assert.Equal(t, quaternion.Quaternion{W: 1}, v.Rotation(st.attitude))
	assert.Equal(t, []float64{0, 0, 0}, v.Vec(st.velocity))

	v.SetVec(st.velocity, 1, 2, 3)
	v.SetScalar(st.altitude, 1000)
	v.SetRotation(st.attitude, quaternion.Quaternion{W: 2, X: 0, Y: 0, Z: 0})
	assert.Equal(t, []float64{1, 2, 3}, v.Vec(st.velocity))
	assert.Equal(t, 1000.0, v.Scalar(st.altitude))
	assert.Equal(t, quaternion.Quaternion{W: 1}, v.Rotation(st.attitude), "rotations are normalized")

	got := v.Vec(st.velocity)
	got[0] = 99
	assert.Equal(t, []float64{1, 2, 3}, v.Vec(st.velocity), "Vec returns a copy")

	assert.Panics(t, func() { v.SetVec(st.velocity, 1, 2) })

	c := v.Clone()
	c.SetScalar(st.altitude, 5)
	assert.Equal(t, 1000.0, v.Scalar(st.altitude))
	require.NoError(t, v.CopyFrom(c))
	assert.Equal(t, 5.0, v.Scalar(st.altitude))
}

func TestInactiveFieldAccess(t *testing.T) {
	st := newTestState(t)
	l, err := st.layout.Schema().Subset(st.velocity)
	require.NoError(t, err)
	v := l.NewVector()

	err = v.Check(st.altitude)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "altitude", fe.Label)
	assert.True(t, errors.Is(err, ErrInactiveField))
	assert.NoError(t, v.Check(st.velocity))

	assert.Panics(t, func() { v.Scalar(st.altitude) })
	assert.Panics(t, func() { v.SetRotation(st.attitude, quaternion.Quaternion{W: 1}) })

	require.Error(t, v.CopyFrom(st.layout.NewVector()))
}
