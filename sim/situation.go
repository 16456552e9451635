// Package sim synthesizes flights: a situation is defined by piecewise-linear
// interpolation between knots, and produces the true aircraft state and the
// matching, optionally noisy, sensor readings at any time within it.
package sim

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/westphae/goukf/ahrs"
	"github.com/westphae/goukf/ukf"
	"github.com/westphae/quaternion"
)

// ErrOutsideSituation is returned for times before the first knot or after
// the last.
var ErrOutsideSituation = errors.New("sim: requested time is outside of scenario")

const rateStep = 0.001 // Time step for differentiating the attitude, s

// Knot is the aircraft's situation at one instant.
type Knot struct {
	T                    float64    // s
	U                    [3]float64 // Airspeed, m/s, aircraft frame [F/B, R/L, and U/D]
	Roll, Pitch, Heading float64    // rad [roll R/L, pitch U/D, heading N->E->S->W]
	Alt                  float64    // m
}

// Situation defines a scenario by piecewise-linear interpolation.
type Situation struct {
	state *ahrs.StateFields
	t     []float64
	knots []Knot
}

// Sensor is a measurement that can be synthesized: a ukf fixed or dynamic
// measurement.
type Sensor interface {
	Layout() *ukf.Layout
	Model() *ukf.MeasurementModel
	Predict(state *ukf.Vector) (*ukf.Vector, error)
}

// NewSituation returns the situation through knots, which need strictly
// increasing times.
func NewSituation(st *ahrs.StateFields, knots ...Knot) (*Situation, error) {
	if len(knots) < 2 {
		return nil, errors.Errorf("sim: %d knots, need at least 2", len(knots))
	}
	s := &Situation{state: st, t: make([]float64, len(knots)), knots: knots}
	for i, k := range knots {
		if i > 0 && !(k.T > knots[i-1].T) {
			return nil, errors.Errorf("sim: knot %d at %gs does not follow %gs", i, k.T, knots[i-1].T)
		}
		s.t[i] = k.T
	}
	return s, nil
}

// BeginTime returns the time stamp when the simulation begins
func (s *Situation) BeginTime() float64 { return s.t[0] }

// EndTime returns the time stamp when the simulation ends
func (s *Situation) EndTime() float64 { return s.t[len(s.t)-1] }

// State returns the state fields the situation produces.
func (s *Situation) State() *ahrs.StateFields { return s.state }

// knot returns the linear interpolation between knots at t.
func (s *Situation) knot(t float64) (Knot, error) {
	if t < s.t[0] || t > s.t[len(s.t)-1] {
		return Knot{}, errors.Wrapf(ErrOutsideSituation, "%gs", t)
	}
	ix := 0
	if t > s.t[0] {
		ix = sort.SearchFloat64s(s.t, t) - 1
	}
	a, b := s.knots[ix], s.knots[ix+1]
	f := (b.T - t) / (b.T - a.T)
	lerp := func(x, y float64) float64 { return f*x + (1-f)*y }

	return Knot{
		T:       t,
		U:       [3]float64{lerp(a.U[0], b.U[0]), lerp(a.U[1], b.U[1]), lerp(a.U[2], b.U[2])},
		Roll:    lerp(a.Roll, b.Roll),
		Pitch:   lerp(a.Pitch, b.Pitch),
		Heading: lerp(a.Heading, b.Heading),
		Alt:     lerp(a.Alt, b.Alt),
	}, nil
}

// Interpolate returns the true aircraft state at t. Body rates come from
// differentiating the attitude.
func (s *Situation) Interpolate(t float64) (*ukf.Vector, error) {
	k, err := s.knot(t)
	if err != nil {
		return nil, err
	}

	t0, t1 := t, t+rateStep
	if t1 > s.EndTime() {
		t1 = s.EndTime()
		t0 = math.Max(t1-rateStep, s.BeginTime())
	}
	k0, err := s.knot(t0)
	if err != nil {
		return nil, err
	}
	k1, err := s.knot(t1)
	if err != nil {
		return nil, err
	}
	q0 := ahrs.ToQuaternion(k0.Roll, k0.Pitch, k0.Heading)
	q1 := ahrs.ToQuaternion(k1.Roll, k1.Pitch, k1.Heading)
	w := ukf.RotationLog(quaternion.Prod(quaternion.Conj(q0), q1))

	x := s.state.NewState()
	x.SetVec(s.state.Velocity, k.U[:]...)
	x.SetVec(s.state.AngularVelocity, w[0]/(t1-t0), w[1]/(t1-t0), w[2]/(t1-t0))
	x.SetRotation(s.state.Attitude, ahrs.ToQuaternion(k.Roll, k.Pitch, k.Heading))
	x.SetScalar(s.state.Altitude, k.Alt)
	return x, nil
}

// Measure returns the sensor readings at t. With a nil rng they are exact.
// Otherwise each active field gets Gaussian noise with the variances
// configured in the sensor's model noise.
func (s *Situation) Measure(t float64, sensor Sensor, rng *rand.Rand) (*ukf.Vector, error) {
	x, err := s.Interpolate(t)
	if err != nil {
		return nil, err
	}
	z, err := sensor.Predict(x)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		return z, nil
	}

	l := sensor.Layout()
	noise := sensor.Model().Noise()
	delta := make([]float64, l.Dim())
	for _, f := range l.Fields() {
		v, ok := noise.Variances(f)
		if !ok {
			return nil, errors.Wrapf(ukf.ErrUnconfiguredNoise, "sim: %s", f.Label())
		}
		off, err := l.TangentOffset(f)
		if err != nil {
			return nil, err
		}
		for k := range v {
			delta[off+k] = math.Sqrt(v[k]) * rng.NormFloat64()
		}
	}
	return z.Retract(delta)
}

// Data to define a piecewise-linear turn, with entry and exit
const (
	airspeed = 60.0 // Nice airspeed for maneuvers, m/s
	altitude = 1000.0
)

// StandardTurn returns two full standard-rate turns at constant altitude:
// start, initiate roll-in, end roll-in, initiate roll-out, end roll-out, end.
func StandardTurn(st *ahrs.StateFields) *Situation {
	bank := math.Atan((2 * math.Pi * airspeed) / (ahrs.G * 120)) // Bank angle for std rate turn at given airspeed
	mush := -airspeed * math.Sin(math.Pi/90) / math.Cos(bank)   // Mush in a turn to maintain altitude
	knots := []Knot{
		{T: 0, U: [3]float64{airspeed, 0, 0}, Alt: altitude},
		{T: 10, U: [3]float64{airspeed, 0, 0}, Alt: altitude},
		{T: 15, U: [3]float64{airspeed, 0, mush}, Roll: bank, Pitch: math.Pi / 90, Alt: altitude},
		{T: 255, U: [3]float64{airspeed, 0, mush}, Roll: bank, Pitch: math.Pi / 90, Heading: 4 * math.Pi, Alt: altitude},
		{T: 260, U: [3]float64{airspeed, 0, 0}, Heading: 4 * math.Pi, Alt: altitude},
		{T: 270, U: [3]float64{airspeed, 0, 0}, Heading: 4 * math.Pi, Alt: altitude},
	}
	s, err := NewSituation(st, knots...)
	if err != nil {
		panic(err)
	}
	return s
}

// Takeoff returns a takeoff roll, climb-out and two climbing turns.
func Takeoff(st *ahrs.StateFields) *Situation {
	bank1 := math.Atan((2 * math.Pi * 49) / (ahrs.G * 120))
	bank2 := math.Atan((2 * math.Pi * 62) / (ahrs.G * 120))
	pi := math.Pi
	k := func(t, u1, u3, roll, pitch, heading, alt float64) Knot {
		return Knot{T: t, U: [3]float64{u1, 0, u3}, Roll: roll, Pitch: pitch, Heading: heading, Alt: alt}
	}
	s, err := NewSituation(st,
		k(0, 5, 0, 0, 0, 0, 0),
		k(10, 5, 0, 0, 0, 0, 0),
		k(30, 35, 0, 0, 0, 0, 0),
		k(35, 43, -1.5, 0, 0.2, 0, 10),
		k(55, 49, -1.5, 0, 0.2, 0, 200),
		k(115, 49, -1.5, 0, 0.2, 0, 760),
		k(120, 49, -1, -bank1, 0.12, 0, 800),
		k(150, 49, -1, -bank1, 0.12, -pi/2, 960),
		k(155, 49, -1, 0, 0.12, -pi/2, 990),
		k(175, 62, 0, 0, 0.03, -pi/2, 1030),
		k(180, 62, 0, -bank2, 0.03, -pi/2, 1040),
		k(210, 62, 0, -bank2, 0.03, -pi, 1100),
		k(215, 62, 0, 0, 0, -pi, 1105),
		k(230, 72, 0, 0, 0, -pi, 1105),
	)
	if err != nil {
		panic(err)
	}
	return s
}
