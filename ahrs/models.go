package ahrs

import (
	"log/slog"
	"math"

	"github.com/westphae/goukf/ukf"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/mat"
)

// Accelerometer predicts the accelerometer reading: gravity rotated by the
// attitude.
func (f *StateFields) Accelerometer(s *ukf.Vector) []float64 {
	q := s.Rotation(f.Attitude)
	a := quaternion.Prod(q, quaternion.Quaternion{Z: -G}, quaternion.Conj(q))
	return []float64{a.X, a.Y, a.Z}
}

// Gyroscope predicts the gyro rates, which read the body rates directly.
func (f *StateFields) Gyroscope(s *ukf.Vector) []float64 {
	return s.Vec(f.AngularVelocity)
}

// StaticPressure predicts the static port pressure from the altitude.
func (f *StateFields) StaticPressure(s *ukf.Vector) float64 {
	return SeaLevelPressure - PressureLapse*(s.Scalar(f.Altitude)/100)
}

// DynamicPressure predicts the pitot-static pressure difference from the
// airspeed.
func (f *StateFields) DynamicPressure(s *ukf.Vector) float64 {
	u := s.Vec(f.Velocity)
	return 0.5 * AirDensity * (u[0]*u[0] + u[1]*u[1] + u[2]*u[2])
}

// SensorModel is the measurement model of the sensor suite against the
// aircraft state.
type SensorModel struct {
	*ukf.MeasurementModel
	State   *StateFields
	Sensors *SensorFields

	logger *slog.Logger
}

// Option configures a SensorModel.
type Option func(*SensorModel)

// WithLogger sets the logger used for warnings. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *SensorModel) { m.logger = l }
}

// NewSensorModel binds each sensor to its prediction function on st. Models
// share one sensor schema, so a measurement from one model can be fed to
// another. Noise starts unconfigured; set it from a Config or a
// NoiseEstimator.
func NewSensorModel(st *StateFields, opts ...Option) (*SensorModel, error) {
	sf := sensors
	mm, err := ukf.NewMeasurementModel(sf.Schema, st.Layout,
		ukf.PredictVector(sf.Accelerometer, st.Accelerometer),
		ukf.PredictVector(sf.Gyroscope, st.Gyroscope),
		ukf.PredictScalar(sf.StaticPressure, st.StaticPressure),
		ukf.PredictScalar(sf.DynamicPressure, st.DynamicPressure),
	)
	if err != nil {
		return nil, err
	}
	m := &SensorModel{
		MeasurementModel: mm,
		State:            st,
		Sensors:          sf,
		logger:           slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.logger.Debug("AHRS: sensor model ready",
		"state_dim", st.Layout.Dim(), "sensor_dim", mm.Layout().Dim())
	return m, nil
}

// Valid applies some heuristics to detect whether an estimated state is
// plausible: airspeed within limits, and roll and pitch known to within
// MaxUncertain.
func (m *SensorModel) Valid(s *ukf.Vector, cov mat.Symmetric) (ok bool) {
	ok = true

	u := s.Vec(m.State.Velocity)
	if u[0] < MinAirspeed || math.Abs(u[0]) > MaxAirspeed ||
		math.Abs(u[1]) > MaxSideslip || math.Abs(u[2]) > MaxSideslip {
		m.logger.Warn("AHRS: airspeed out of range", "u1", u[0], "u2", u[1], "u3", u[2])
		ok = false
	}

	droll, dpitch, dheading, err := m.State.RollPitchHeadingUncertainty(s, cov)
	if err != nil {
		m.logger.Warn("AHRS: can't compute attitude uncertainty", "err", err)
		return false
	}
	if droll > MaxUncertain || dpitch > MaxUncertain {
		roll, pitch, heading := m.State.RollPitchHeading(s)
		m.logger.Warn("AHRS: attitude too uncertain",
			"roll", roll/Deg, "droll", droll/Deg,
			"pitch", pitch/Deg, "dpitch", dpitch/Deg,
			"heading", heading/Deg, "dheading", dheading/Deg)
		ok = false
	}

	return ok
}
