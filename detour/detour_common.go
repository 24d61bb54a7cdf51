package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
)

// DtDistancePtSegSqr2D returns the squared xz-distance from pt to segment pq and
// the parametric position of the closest point on it.
func DtDistancePtSegSqr2D(pt, p, q common.Vec3) (distSqr float32, t float32) {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t = pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz, t
}

func dtCalcPolyCenter(verts []common.Vec3) (tc common.Vec3) {
	for _, v := range verts {
		tc = tc.Add(v)
	}
	return tc.Mul(1.0 / float32(len(verts)))
}

func dtClosestHeightPointTriangle(p, a, b, c common.Vec3) (h float32, ok bool) {
	const EPS = 1e-6
	v0 := c.Sub(a)
	v1 := b.Sub(a)
	v2 := p.Sub(a)

	// Compute scaled barycentric coordinates
	denom := v0[0]*v1[2] - v0[2]*v1[0]
	if math.Abs(float64(denom)) < EPS {
		return 0, false
	}
	u := v1[2]*v2[0] - v1[0]*v2[2]
	v := v0[0]*v2[2] - v0[2]*v2[0]

	if denom < 0 {
		denom = -denom
		u = -u
		v = -v
	}

	// If point lies inside the triangle, return interpolated ycoord.
	if u >= 0.0 && v >= 0.0 && (u+v) <= denom {
		return a[1] + (v0[1]*u+v1[1]*v)/denom, true
	}
	return 0, false
}

func dtOppositeTile(side int) int { return (side + 4) & 0x7 }

// / Determines if two axis-aligned bounding boxes overlap.
// / @see common.OverlapBounds
func dtOverlapQuantBounds(amin, amax, bmin, bmax [3]uint16) bool {
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

// dtPointInPolygon tests pt against the xz-projection of a convex polygon.
func dtPointInPolygon(pt common.Vec3, verts []common.Vec3) bool {
	c := false
	nverts := len(verts)
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i]
		vj := verts[j]
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
	}
	return c
}

// dtDistancePtPolyEdgesSqr fills ed/et with the squared distance and segment
// parameter of pt to every edge (j -> i) and reports whether pt is inside.
func dtDistancePtPolyEdgesSqr(pt common.Vec3, verts []common.Vec3, ed, et []float32) bool {
	c := false
	nverts := len(verts)
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i]
		vj := verts[j]
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		ed[j], et[j] = DtDistancePtSegSqr2D(pt, vj, vi)
	}
	return c
}

func vperpXZ(a, b common.Vec3) float32 { return a[0]*b[2] - a[2]*b[0] }

func dtIntersectSegSeg2D(ap, aq, bp, bq common.Vec3) (s, t float32, ok bool) {
	u := aq.Sub(ap)
	v := bq.Sub(bp)
	w := ap.Sub(bp)
	d := vperpXZ(u, v)
	if math.Abs(float64(d)) < 1e-6 {
		return 0, 0, false
	}
	s = vperpXZ(v, w) / d
	t = vperpXZ(u, w) / d
	return s, t, true
}

// dtIntersectSegmentPoly2D clips segment p0-p1 against a convex polygon in the
// xz-plane. segMin/segMax are the entering/leaving edge indices, -1 when the
// segment starts/ends inside.
func dtIntersectSegmentPoly2D(p0, p1 common.Vec3, verts []common.Vec3) (tmin, tmax float32, segMin, segMax int, ok bool) {
	const EPS = 0.000001

	tmin = 0
	tmax = 1
	segMin = -1
	segMax = -1
	dir := p1.Sub(p0)

	nverts := len(verts)
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		edge := verts[i].Sub(verts[j])
		diff := p0.Sub(verts[j])
		n := common.Vperp2D(edge, diff)
		d := common.Vperp2D(dir, edge)
		if math.Abs(float64(d)) < EPS {
			// S is nearly parallel to this edge
			if n < 0 {
				return tmin, tmax, segMin, segMax, false
			}
			continue
		}
		t := n / d
		if d < 0 {
			// segment S is entering across this edge
			if t > tmin {
				tmin = t
				segMin = j
				// S enters after leaving polygon
				if tmin > tmax {
					return tmin, tmax, segMin, segMax, false
				}
			}
		} else {
			// segment S is leaving across this edge
			if t < tmax {
				tmax = t
				segMax = j
				// S leaves before entering polygon
				if tmax < tmin {
					return tmin, tmax, segMin, segMax, false
				}
			}
		}
	}
	return tmin, tmax, segMin, segMax, true
}

// / All vertices are projected onto the xz-plane, so the y-values are ignored.
func dtOverlapPolyPoly2D(polya, polyb []common.Vec3) bool {
	const eps = float32(1e-4)
	separated := func(edges []common.Vec3) bool {
		n := len(edges)
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			va := edges[j]
			vb := edges[i]
			axis := common.Vec3{vb[2] - va[2], 0, -(vb[0] - va[0])}
			amin, amax := projectPoly(axis, polya)
			bmin, bmax := projectPoly(axis, polyb)
			if !overlapRange(amin, amax, bmin, bmax, eps) {
				// Found separating axis
				return true
			}
		}
		return false
	}
	return !separated(polya) && !separated(polyb)
}

func projectPoly(axis common.Vec3, poly []common.Vec3) (rmin, rmax float32) {
	rmax = common.Vdot2D(axis, poly[0])
	rmin = rmax
	for i := 1; i < len(poly); i++ {
		d := common.Vdot2D(axis, poly[i])
		rmin = min(rmin, d)
		rmax = max(rmax, d)
	}
	return rmin, rmax
}

func overlapRange(amin, amax, bmin, bmax, eps float32) bool {
	return !((amin+eps) > bmax || (amax-eps) < bmin)
}
