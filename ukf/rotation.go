package ukf

import (
	"math"

	"github.com/pkg/errors"
	"github.com/westphae/quaternion"
)

const smallAngle = 1e-12

var identity = quaternion.Quaternion{W: 1}

// normalize returns q scaled to unit norm; the zero quaternion maps to the
// identity.
func normalize(q quaternion.Quaternion) quaternion.Quaternion {
	if quaternion.Norm(q) < smallAngle {
		return identity
	}
	return quaternion.Unit(q)
}

func loadQuat(data []float64) quaternion.Quaternion {
	return quaternion.Quaternion{W: data[0], X: data[1], Y: data[2], Z: data[3]}
}

func storeQuat(data []float64, q quaternion.Quaternion) {
	data[0], data[1], data[2], data[3] = q.W, q.X, q.Y, q.Z
}

// RotationExp returns the unit quaternion rotating by |r| radians about r.
func RotationExp(r [3]float64) quaternion.Quaternion {
	return rotationExp(r[0], r[1], r[2])
}

// RotationLog returns the rotation vector of q, taking the representative
// with a non-negative real part. It inverts RotationExp for |r| < π.
func RotationLog(q quaternion.Quaternion) [3]float64 {
	x, y, z := rotationLog(q)
	return [3]float64{x, y, z}
}

func rotationExp(x, y, z float64) quaternion.Quaternion {
	theta := math.Sqrt(x*x + y*y + z*z)
	if theta < smallAngle {
		return quaternion.Unit(quaternion.Quaternion{W: 1, X: x / 2, Y: y / 2, Z: z / 2})
	}
	s := math.Sin(theta/2) / theta
	return quaternion.Quaternion{W: math.Cos(theta / 2), X: x * s, Y: y * s, Z: z * s}
}

func rotationLog(q quaternion.Quaternion) (x, y, z float64) {
	if q.W < 0 {
		q = quaternion.Quaternion{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
	}
	vn := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	var k float64
	if vn < smallAngle {
		k = 2 / q.W
	} else {
		k = 2 * math.Atan2(vn, q.W) / vn
	}
	return k * q.X, k * q.Y, k * q.Z
}

// RotationMean returns the weighted mean of unit quaternions on the rotation
// manifold. Starting from qs[0], each iteration moves the estimate by the
// weighted average of the rotation vectors from the estimate to every point,
// until that step is shorter than tol. It fails with ErrMeanDidNotConverge
// after maxIter iterations.
func RotationMean(qs []quaternion.Quaternion, weights []float64, tol float64, maxIter int) (quaternion.Quaternion, error) {
	if len(qs) == 0 || len(qs) != len(weights) {
		return quaternion.Quaternion{}, errors.Wrapf(ErrDimensionMismatch,
			"%d rotations, %d weights", len(qs), len(weights))
	}
	est := normalize(qs[0])
	for it := 0; it < maxIter; it++ {
		inv := quaternion.Conj(est)
		var ax, ay, az float64
		for i, q := range qs {
			x, y, z := rotationLog(quaternion.Prod(inv, q))
			ax += weights[i] * x
			ay += weights[i] * y
			az += weights[i] * z
		}
		est = quaternion.Unit(quaternion.Prod(est, rotationExp(ax, ay, az)))
		if math.Sqrt(ax*ax+ay*ay+az*az) < tol {
			return est, nil
		}
	}
	return quaternion.Quaternion{}, errors.Wrapf(ErrMeanDidNotConverge, "after %d iterations", maxIter)
}
