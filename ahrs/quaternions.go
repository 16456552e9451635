package ahrs

import (
	"math"

	"github.com/pkg/errors"
	"github.com/westphae/goukf/ukf"
	"github.com/westphae/quaternion"
	"gonum.org/v1/gonum/mat"
)

// ToQuaternion returns the attitude quaternion corresponding to the Tait-Bryan
// angles phi, theta, psi
func ToQuaternion(phi, theta, psi float64) quaternion.Quaternion {
	phi = -phi            // We want phi positive to mean a roll to the right
	psi = psi - math.Pi/2 // We want psi=0 means north, psi=Pi/2 means east
	cphi := math.Cos(phi / 2)
	sphi := math.Sin(phi / 2)
	ctheta := math.Cos(theta / 2)
	stheta := math.Sin(theta / 2)
	cpsi := math.Cos(psi / 2)
	spsi := math.Sin(psi / 2)

	return quaternion.Quaternion{
		W: cphi*ctheta*cpsi - sphi*stheta*spsi,
		X: sphi*ctheta*cpsi + cphi*stheta*spsi,
		Y: cphi*stheta*cpsi - sphi*ctheta*spsi,
		Z: cphi*ctheta*spsi + sphi*stheta*cpsi,
	}
}

// FromQuaternion calculates the Tait-Bryan angles phi, theta, psi corresponding to
// the quaternion. Heading psi is in [0, 2π).
func FromQuaternion(q quaternion.Quaternion) (phi, theta, psi float64) {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z
	phi = math.Atan2(-2*(q0*q1-q2*q3), q0*q0-q1*q1-q2*q2+q3*q3)
	s := 2 * (q0*q2 + q3*q1) / (q0*q0 + q1*q1 + q2*q2 + q3*q3)
	theta = math.Asin(math.Max(-1, math.Min(1, s)))
	psi = math.Pi/2 + math.Atan2(2*(q0*q3-q1*q2), q0*q0+q1*q1-q2*q2-q3*q3)
	if psi < -1e-4 {
		psi += 2 * math.Pi
	}
	return phi, theta, psi
}

// RollPitchHeading returns the roll, pitch and heading of a state, in radians.
func (f *StateFields) RollPitchHeading(s *ukf.Vector) (roll, pitch, heading float64) {
	return FromQuaternion(s.Rotation(f.Attitude))
}

// RollPitchHeadingUncertainty returns the standard deviations of roll, pitch and
// heading implied by the attitude block of the state covariance, linearized
// about the state's attitude.
func (f *StateFields) RollPitchHeadingUncertainty(s *ukf.Vector, cov mat.Symmetric) (droll, dpitch, dheading float64, err error) {
	if !s.Layout().Equal(f.Layout) {
		return 0, 0, 0, errors.Wrap(ukf.ErrDimensionMismatch, "not an aircraft state")
	}
	if n := cov.SymmetricDim(); n != f.Layout.Dim() {
		return 0, 0, 0, errors.Wrapf(ukf.ErrDimensionMismatch, "covariance is %dx%d", n, n)
	}
	off, err := f.Layout.TangentOffset(f.Attitude)
	if err != nil {
		return 0, 0, 0, err
	}

	q := s.Rotation(f.Attitude)
	jac := attitudeJacobian(q)
	p := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			p.Set(i, j, cov.At(off+i, off+j))
		}
	}
	var jp, c mat.Dense
	jp.Mul(jac, p)
	c.Mul(&jp, jac.T())
	return math.Sqrt(math.Max(c.At(0, 0), 0)),
		math.Sqrt(math.Max(c.At(1, 1), 0)),
		math.Sqrt(math.Max(c.At(2, 2), 0)), nil
}

// attitudeJacobian returns d(roll, pitch, heading)/dδ for q·exp(δ), by
// central differences.
func attitudeJacobian(q quaternion.Quaternion) *mat.Dense {
	const h = 1e-6
	jac := mat.NewDense(3, 3, nil)
	for k := 0; k < 3; k++ {
		var d [3]float64
		d[k] = h
		r1, p1, y1 := FromQuaternion(quaternion.Prod(q, ukf.RotationExp(d)))
		d[k] = -h
		r0, p0, y0 := FromQuaternion(quaternion.Prod(q, ukf.RotationExp(d)))
		jac.Set(0, k, wrapAngle(r1-r0)/(2*h))
		jac.Set(1, k, wrapAngle(p1-p0)/(2*h))
		jac.Set(2, k, wrapAngle(y1-y0)/(2*h))
	}
	return jac
}

// wrapAngle maps x into (-π, π].
func wrapAngle(x float64) float64 {
	x = math.Mod(x+Pi, 2*Pi)
	if x <= 0 {
		x += 2 * Pi
	}
	return x - Pi
}
