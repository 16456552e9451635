// Package ahrs describes an aircraft attitude and heading reference system in
// terms of the ukf core: the aircraft state, the sensors that observe it, the
// prediction functions linking the two, and adaptive estimation of sensor noise.
package ahrs

import (
	"math"

	"github.com/westphae/goukf/ukf"
)

const (
	Pi    = math.Pi
	G     = 9.8 // G is the acceleration due to gravity, m/s²
	Deg   = Pi / 180

	SeaLevelPressure = 101.3 // Static pressure at zero altitude, kPa
	PressureLapse    = 1.2   // Static pressure lost per 100 m of altitude, kPa
	AirDensity       = 1.225 // kg/m³

	MinAirspeed   = -2.5 // Forward airspeed below this is invalid, m/s
	MaxAirspeed   = 150  // m/s
	MaxSideslip   = 10   // Lateral and vertical airspeed above this is invalid, m/s
	MaxUncertain  = 2.5 * Deg
	NoiseDecay    = 1 - 1.0/50 // Exponential decay constant for measurement variances
	MinNoiseCount = 20         // Effective observations before a variance estimate is used
)

// StateFields are the keys of the aircraft state, in declaration order
// velocity, angular velocity, attitude, altitude, so the tangent dimension is
// 10.
// Aircraft frame is noninertial: 1 is to nose; 2 is to left wing; 3 is up.
type StateFields struct {
	Velocity        ukf.VectorField   // Airspeed, aircraft frame, m/s
	AngularVelocity ukf.VectorField   // Body rates, aircraft frame, rad/s
	Attitude        ukf.RotationField // Rotates aircraft frame to earth frame
	Altitude        ukf.ScalarField   // m

	Layout *ukf.Layout
}

// NewStateFields declares the aircraft state schema.
func NewStateFields() *StateFields {
	s := ukf.NewSchema("state")
	f := &StateFields{
		Velocity:        s.Vector("velocity", 3),
		AngularVelocity: s.Vector("angular_velocity", 3),
		Attitude:        s.Rotation("attitude"),
		Altitude:        s.Scalar("altitude"),
	}
	f.Layout = s.MustLayout()
	return f
}

// NewState returns a state at rest at zero altitude, heading east.
func (f *StateFields) NewState() *ukf.Vector {
	return f.Layout.NewVector()
}

// SensorFields are the keys of the sensor suite. Not every sensor reports
// every cycle, so measurements are usually taken over a subset.
type SensorFields struct {
	Accelerometer   ukf.VectorField // Sensor frame, m/s²
	Gyroscope       ukf.VectorField // Sensor frame, rad/s
	StaticPressure  ukf.ScalarField // kPa
	DynamicPressure ukf.ScalarField // Pa

	Schema *ukf.Schema
}

// sensors is the schema every SensorModel measures on.
var sensors = NewSensorFields()

// NewSensorFields declares the sensor schema. It is sealed when a model is
// built from it.
func NewSensorFields() *SensorFields {
	s := ukf.NewSchema("sensors")
	return &SensorFields{
		Accelerometer:   s.Vector("accelerometer", 3),
		Gyroscope:       s.Vector("gyroscope", 3),
		StaticPressure:  s.Scalar("static_pressure"),
		DynamicPressure: s.Scalar("dynamic_pressure"),
		Schema:          s,
	}
}
