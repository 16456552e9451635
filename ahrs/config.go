package ahrs

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/westphae/goukf/ukf"
	"gopkg.in/yaml.v3"
)

// Config holds the tunable settings of an AHRS: the unscented transform
// parameters, the initial sensor noise and the noise estimator.
//
//	params:
//	  Alpha: 0.5
//	  Beta: 2
//	noise:
//	  accelerometer: [0.04, 0.04, 0.04]
//	  gyroscope: [1e-4, 1e-4, 1e-4]
//	  static_pressure: 0.0025
//	estimator:
//	  decay: 0.98
//	  min_samples: 20
type Config struct {
	// Params overrides ukf.DefaultParams, keyed by field name as accepted by
	// ukf.Params.SetConfig.
	Params    map[string]float64 `yaml:"params"`
	Noise     NoiseConfig        `yaml:"noise"`
	Estimator EstimatorConfig    `yaml:"estimator"`
}

// NoiseConfig holds sensor noise variances. An absent entry keeps its default;
// an explicit null leaves that sensor's noise unconfigured.
type NoiseConfig struct {
	Accelerometer   []float64 `yaml:"accelerometer"`
	Gyroscope       []float64 `yaml:"gyroscope"`
	StaticPressure  *float64  `yaml:"static_pressure"`
	DynamicPressure *float64  `yaml:"dynamic_pressure"`
}

// EstimatorConfig configures a NoiseEstimator.
type EstimatorConfig struct {
	Decay      float64 `yaml:"decay"`
	MinSamples float64 `yaml:"min_samples"`
}

// DefaultConfig returns typical noise for a MEMS sensor board and pitot-static
// system.
func DefaultConfig() *Config {
	static, dynamic := 0.0025, 0.25
	return &Config{
		Noise: NoiseConfig{
			Accelerometer:   []float64{0.04, 0.04, 0.04},
			Gyroscope:       []float64{1e-4, 1e-4, 1e-4},
			StaticPressure:  &static,
			DynamicPressure: &dynamic,
		},
		Estimator: EstimatorConfig{
			Decay:      NoiseDecay,
			MinSamples: MinNoiseCount,
		},
	}
}

// ParseConfig reads a YAML config over the defaults. Unknown keys are errors.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parsing AHRS config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading AHRS config")
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// Validate checks the config without applying it.
func (c *Config) Validate() error {
	if _, err := c.UKFParams(); err != nil {
		return err
	}
	for label, v := range map[string][]float64{
		"accelerometer": c.Noise.Accelerometer,
		"gyroscope":     c.Noise.Gyroscope,
	} {
		if v != nil && len(v) != 3 {
			return errors.Wrapf(ukf.ErrDimensionMismatch, "%s noise has %d variances, want 3", label, len(v))
		}
	}
	e := c.Estimator
	if !(e.Decay > 0 && e.Decay < 1) || !(e.MinSamples >= 1 && e.MinSamples < 1/(1-e.Decay)) {
		return errors.Wrapf(ukf.ErrInvalidParams, "estimator decay %g, min samples %g", e.Decay, e.MinSamples)
	}
	return nil
}

// UKFParams returns the default transform parameters with the config's
// overrides applied, checked against the aircraft state dimension.
func (c *Config) UKFParams() (ukf.Params, error) {
	p := ukf.DefaultParams()
	if err := p.SetConfig(c.Params); err != nil {
		return p, err
	}
	return p, p.Validate(NewStateFields().Layout.Dim())
}

// ApplyNoise writes the configured variances into the model's noise.
func (c *Config) ApplyNoise(m *SensorModel) error {
	noise := m.Noise()
	s := m.Sensors
	if v := c.Noise.Accelerometer; v != nil {
		if err := noise.SetVector(s.Accelerometer, v...); err != nil {
			return err
		}
	}
	if v := c.Noise.Gyroscope; v != nil {
		if err := noise.SetVector(s.Gyroscope, v...); err != nil {
			return err
		}
	}
	if v := c.Noise.StaticPressure; v != nil {
		if err := noise.SetScalar(s.StaticPressure, *v); err != nil {
			return err
		}
	}
	if v := c.Noise.DynamicPressure; v != nil {
		if err := noise.SetScalar(s.DynamicPressure, *v); err != nil {
			return err
		}
	}
	return nil
}

// NewNoiseEstimator returns a noise estimator for m with the configured
// settings.
func (c *Config) NewNoiseEstimator(m *SensorModel) (*NoiseEstimator, error) {
	return m.NewNoiseEstimator(c.Estimator.Decay, c.Estimator.MinSamples)
}
