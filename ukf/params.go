package ukf

import (
	"math"

	"github.com/pkg/errors"
)

// Params are the spread parameters of the unscented transform and the
// convergence settings of the rotation mean.
type Params struct {
	Alpha          float64 // Spread of the sigma points around the mean
	Beta           float64 // Prior knowledge of the distribution, 2 is optimal for Gaussians
	Kappa          float64 // Secondary scaling
	MeanTolerance  float64 // Rotation mean stops when its update is shorter than this, rad
	MeanIterations int     // Rotation mean fails after this many iterations
}

// DefaultParams returns α²=1, β=0, κ=3.
func DefaultParams() Params {
	return Params{
		Alpha:          1,
		Beta:           0,
		Kappa:          3,
		MeanTolerance:  1e-9,
		MeanIterations: 50,
	}
}

// Lambda returns λ = α²(n+κ) − n.
func (p Params) Lambda(n int) float64 {
	nf := float64(n)
	return p.Alpha*p.Alpha*(nf+p.Kappa) - nf
}

// Scale returns c = n + λ, the factor applied to the covariance before its
// square root is taken.
func (p Params) Scale(n int) float64 {
	return float64(n) + p.Lambda(n)
}

// Validate checks the parameters for a source of dimension n.
func (p Params) Validate(n int) error {
	switch {
	case n < 1:
		return errors.Wrapf(ErrInvalidParams, "dimension %d", n)
	case !(p.Alpha > 0):
		return errors.Wrapf(ErrInvalidParams, "alpha %g", p.Alpha)
	case !(p.Scale(n) > 0):
		return errors.Wrapf(ErrInvalidParams, "n+lambda = %g for n=%d", p.Scale(n), n)
	case !(p.MeanTolerance > 0):
		return errors.Wrapf(ErrInvalidParams, "mean tolerance %g", p.MeanTolerance)
	case p.MeanIterations < 1:
		return errors.Wrapf(ErrInvalidParams, "mean iterations %d", p.MeanIterations)
	}
	return nil
}

// Weights returns the transform weights for a source of dimension n.
func (p Params) Weights(n int) (Weights, error) {
	if err := p.Validate(n); err != nil {
		return Weights{}, err
	}
	c := p.Scale(n)
	m0 := p.Lambda(n) / c
	return Weights{
		N:  n,
		M0: m0,
		C0: m0 + (1 - p.Alpha*p.Alpha + p.Beta),
		I:  1 / (2 * c),
	}, nil
}

// SetConfig lets the user alter the parameters by name: Alpha, Beta, Kappa,
// MeanTolerance and MeanIterations. Unknown names are an error and leave p
// unchanged.
func (p *Params) SetConfig(configMap map[string]float64) error {
	q := *p
	for k, v := range configMap {
		switch k {
		case "Alpha":
			q.Alpha = v
		case "Beta":
			q.Beta = v
		case "Kappa":
			q.Kappa = v
		case "MeanTolerance":
			q.MeanTolerance = v
		case "MeanIterations":
			if v != math.Trunc(v) {
				return errors.Wrapf(ErrInvalidParams, "MeanIterations %g is not an integer", v)
			}
			q.MeanIterations = int(v)
		default:
			return errors.Wrapf(ErrInvalidParams, "unknown setting %q", k)
		}
	}
	*p = q
	return nil
}

// Weights are the sigma point weights of one transform: a central pair for
// point 0 and one weight shared by the 2N peripheral points.
type Weights struct {
	N  int     // Source dimension
	M0 float64 // Central mean weight
	C0 float64 // Central covariance weight
	I  float64 // Peripheral weight, for both mean and covariance
}

// Points returns the number of sigma points, 2N+1.
func (w Weights) Points() int { return 2*w.N + 1 }

// Mean returns the mean weight of point i.
func (w Weights) Mean(i int) float64 {
	if i == 0 {
		return w.M0
	}
	return w.I
}

// Cov returns the covariance weight of point i.
func (w Weights) Cov(i int) float64 {
	if i == 0 {
		return w.C0
	}
	return w.I
}
