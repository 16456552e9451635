package ahrs

import (
	"github.com/pkg/errors"
	"github.com/westphae/goukf/ukf"
)

// varianceAccumulator accumulates an exponentially weighted mean and variance
// with decay constant decay. It is initialized with a first observation.
type varianceAccumulator struct {
	decay float64
	n     float64 // Effective number of observations
	mean  float64
	v     float64
}

func newVarianceAccumulator(init, decay float64) *varianceAccumulator {
	return &varianceAccumulator{decay: decay, n: 1, mean: init}
}

func (a *varianceAccumulator) add(obs float64) {
	d := obs - a.mean
	dm := (1 - a.decay) * d

	a.n = 1 + a.decay*a.n
	a.mean += dm
	a.v = a.decay * (a.v + dm*d)
}

// NoiseEstimator tracks the running variance of every sensor channel from
// observed samples, and writes the estimates into the model's noise.
// A sensor at rest, or one whose true value is known, gives samples whose
// spread is the sensor noise.
type NoiseEstimator struct {
	model      *SensorModel
	decay      float64
	minSamples float64
	fields     []ukf.Field
	accums     [][]*varianceAccumulator // By field then component, nil before the first sample
}

// NewNoiseEstimator returns an estimator with decay constant decay, using an
// estimate once it rests on minSamples effective observations. minSamples
// must be reachable, below 1/(1-decay).
func (m *SensorModel) NewNoiseEstimator(decay, minSamples float64) (*NoiseEstimator, error) {
	if !(decay > 0 && decay < 1) {
		return nil, errors.Wrapf(ukf.ErrInvalidParams, "noise decay %g", decay)
	}
	if !(minSamples >= 1 && minSamples < 1/(1-decay)) {
		return nil, errors.Wrapf(ukf.ErrInvalidParams, "%g samples can't be reached with decay %g", minSamples, decay)
	}
	fields := m.Layout().Fields()
	return &NoiseEstimator{
		model:      m,
		decay:      decay,
		minSamples: minSamples,
		fields:     fields,
		accums:     make([][]*varianceAccumulator, len(fields)),
	}, nil
}

// Observe feeds the active fields of a sensor sample.
func (e *NoiseEstimator) Observe(sample *ukf.Vector) error {
	if sample.Layout().Schema() != e.model.Sensors.Schema {
		return errors.Wrap(ukf.ErrInvalidSchema, "sample is not a sensor measurement")
	}
	for i, f := range e.fields {
		if !sample.Has(f) {
			continue
		}
		var x []float64
		switch f := f.(type) {
		case ukf.VectorField:
			x = sample.Vec(f)
		case ukf.ScalarField:
			x = []float64{sample.Scalar(f)}
		default:
			continue // Rotation channels are not estimated
		}
		if e.accums[i] == nil {
			e.accums[i] = make([]*varianceAccumulator, len(x))
			for k := range x {
				e.accums[i][k] = newVarianceAccumulator(x[k], e.decay)
			}
			continue
		}
		for k := range x {
			e.accums[i][k].add(x[k])
		}
	}
	return nil
}

// Variances returns the current variance estimates of f, and false if f has
// too few observations.
func (e *NoiseEstimator) Variances(f ukf.Field) ([]float64, bool) {
	for i, g := range e.fields {
		if g != f {
			continue
		}
		if e.accums[i] == nil {
			return nil, false
		}
		out := make([]float64, len(e.accums[i]))
		for k, a := range e.accums[i] {
			if a.n < e.minSamples {
				return nil, false
			}
			out[k] = a.v
		}
		return out, true
	}
	return nil, false
}

// Apply writes every usable estimate into the model's noise and returns how
// many fields were updated. Estimates with a non-positive variance are
// rejected with a warning, leaving that field's noise as it was.
func (e *NoiseEstimator) Apply() (int, error) {
	noise := e.model.Noise()
	updated := 0
	for _, f := range e.fields {
		v, ok := e.Variances(f)
		if !ok {
			continue
		}
		if rejected := nonPositive(v); rejected >= 0 {
			e.model.logger.Warn("AHRS: rejecting noise estimate",
				"field", f.Label(), "component", rejected, "variance", v[rejected])
			continue
		}
		var err error
		switch f := f.(type) {
		case ukf.VectorField:
			err = noise.SetVector(f, v...)
		case ukf.ScalarField:
			err = noise.SetScalar(f, v[0])
		}
		if err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func nonPositive(v []float64) int {
	for k, x := range v {
		if !(x > 0) {
			return k
		}
	}
	return -1
}
