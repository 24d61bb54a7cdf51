package common

import (
	"cmp"
	"math"
)

// / Returns the square of the value.
// / @param[in]		a	The value.
// / @return The square of the value.
func Sqr[T IT](a T) T {
	return a * a
}

// / Returns the absolute value.
// / @param[in]		a	The value.
// / @return The absolute value of the specified value.
func Abs[T IT](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// / Clamps the value to the specified range.
// / @param[in]		value			The value to clamp.
// / @param[in]		minInclusive	The minimum permitted return value.
// / @param[in]		maxInclusive	The maximum permitted return value.
// / @return The value, clamped to the specified range.
func Clamp[T cmp.Ordered](value, minInclusive, maxInclusive T) T {
	if value < minInclusive {
		return minInclusive
	}
	if value > maxInclusive {
		return maxInclusive
	}
	return value
}

func Sqrtf(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// / Selects the minimum value of each element from the specified vectors.
func Vmin(a, b Vec3) Vec3 {
	return Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

// / Selects the maximum value of each element from the specified vectors.
func Vmax(a, b Vec3) Vec3 {
	return Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}

// / Performs a scaled vector addition. (@p v1 + (@p v2 * @p s))
func Vmad(v1, v2 Vec3, s float32) Vec3 {
	return Vec3{v1[0] + v2[0]*s, v1[1] + v2[1]*s, v1[2] + v2[2]*s}
}

// / Performs a linear interpolation between two vectors. (@p v1 toward @p v2)
// /	 @param[in]		t		The interpolation factor. [Limits: 0 <= value <= 1.0]
func Vlerp(v1, v2 Vec3, t float32) Vec3 {
	return Vec3{
		v1[0] + (v2[0]-v1[0])*t,
		v1[1] + (v2[1]-v1[1])*t,
		v1[2] + (v2[2]-v1[2])*t,
	}
}

// / Returns the distance between two points.
func Vdist(v1, v2 Vec3) float32 {
	return Sqrtf(VdistSqr(v1, v2))
}

// / Returns the square of the distance between two points.
func VdistSqr(v1, v2 Vec3) float32 {
	dx := v2[0] - v1[0]
	dy := v2[1] - v1[1]
	dz := v2[2] - v1[2]
	return dx*dx + dy*dy + dz*dz
}

// / Performs a 'sloppy' colocation check of the specified points.
// /
// / Basically, this function will return true if the specified points are
// / close enough to eachother to be considered colocated.
func Vequal(p0, p1 Vec3) bool {
	thr := Sqr(float32(1.0 / 16384.0))
	return VdistSqr(p0, p1) < thr
}

// / Derives the xz-plane 2D perp product of the two vectors. (uz*vx - ux*vz)
// /
// / The vectors are projected onto the xz-plane, so the y-values are ignored.
func Vperp2D(u, v Vec3) float32 {
	return u[2]*v[0] - u[0]*v[2]
}

// / Derives the dot product of two vectors on the xz-plane. (@p u . @p v)
func Vdot2D(u, v Vec3) float32 {
	return u[0]*v[0] + u[2]*v[2]
}

// / Derives the square of the distance between the specified points on the xz-plane.
func Vdist2DSqr(v1, v2 Vec3) float32 {
	dx := v2[0] - v1[0]
	dz := v2[2] - v1[2]
	return dx*dx + dz*dz
}

// / Derives the distance between the specified points on the xz-plane.
// /
// / The vectors are projected onto the xz-plane, so the y-values are ignored.
func Vdist2D(v1, v2 Vec3) float32 {
	return Sqrtf(Vdist2DSqr(v1, v2))
}

// / Derives the signed xz-plane area of the triangle ABC, or the relationship of line AB to point C.
// /  @param[in]		a		Vertex A. [(x, y, z)]
// /  @param[in]		b		Vertex B. [(x, y, z)]
// /  @param[in]		c		Vertex C. [(x, y, z)]
// / @return The signed xz-plane area of the triangle.
func TriArea2D(a, b, c Vec3) float32 {
	abx := b[0] - a[0]
	abz := b[2] - a[2]
	acx := c[0] - a[0]
	acz := c[2] - a[2]
	return acx*abz - abx*acz
}

func IsFinite(v float32) bool {
	f := float64(v)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// / Checks that the specified vector's components are all finite.
// / @return True if all of the point's components are finite, i.e. not NaN
// / or any of the infinities.
func Visfinite(v Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// / Checks that the specified vector's 2D components are finite.
func Visfinite2D(v Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[2])
}

// / Determines if two axis-aligned bounding boxes overlap.
func OverlapBounds(amin, amax, bmin, bmax Vec3) bool {
	if amin[0] > bmax[0] || amax[0] < bmin[0] {
		return false
	}
	if amin[1] > bmax[1] || amax[1] < bmin[1] {
		return false
	}
	if amin[2] > bmax[2] || amax[2] < bmin[2] {
		return false
	}
	return true
}

func NextPow2(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}

func Ilog2(v uint32) uint32 {
	getBool := func(b bool) uint32 {
		if b {
			return 1
		}
		return 0
	}
	var r uint32
	var shift uint32
	r = getBool(v > 0xffff) << 4
	v >>= r
	shift = getBool(v > 0xff) << 3
	v >>= shift
	r |= shift
	shift = getBool(v > 0xf) << 2
	v >>= shift
	r |= shift
	shift = getBool(v > 0x3) << 1
	v >>= shift
	r |= shift
	r |= v >> 1
	return r
}
