package detour

import (
	"github.com/gorustyt/navquery/common"
)

// / Provides information about raycast hit
// / filled by DtNavMeshQuery::Raycast
// / @ingroup detour
type DtRaycastHit struct {
	/// The hit parameter along the segment. 1 when the end position was reached.
	T float32

	/// hitNormal	The normal of the nearest wall hit [(x, y, z)]. Zero when nothing was hit.
	HitNormal common.Vec3

	/// The index of the edge on the final polygon where the wall was hit.
	HitEdgeIndex int

	/// The polygons visited along the ray.
	Path []DtPolyRef

	/// The cost of the path until hit.
	PathCost float32
}

// Blocked reports whether a wall stopped the ray before the end position.
func (h *DtRaycastHit) Blocked() bool {
	return h.T < 1
}

// HitPoint returns startPos + (endPos - startPos) * T.
func (h *DtRaycastHit) HitPoint(startPos, endPos common.Vec3) common.Vec3 {
	return common.Vlerp(startPos, endPos, h.T)
}

// / @par
// /
// / This method is meant to be used for quick, short distance checks.
// /
// / The raycast ignores the y-value of the end position. (2D check.) This
// / places significant limits on how it can be used. For example:
// /
// / Consider a scene where there is a main floor with a second floor balcony
// / that hangs over the main floor. So the first floor mesh extends below the
// / balcony mesh. The start position is somewhere on the first floor. The end
// / position is on the balcony.
// /
// / The raycast will search toward the end position along the first floor mesh.
// / If it reaches the end position's xz-coordinates it will indicate T == 1
// / (no wall hit), meaning it reached the end position. This is one example of why
// / this method is meant for short distance checks.
// /
// / Off-mesh connections are never entered. Partial tile-boundary portals only
// / let the ray through when the crossing lies inside the quantized portal range.
// /
// / The visited polygons are collected up to maxPath; further ones set
// / #DT_BUFFER_TOO_SMALL but the walk continues.
func (q *DtNavMeshQuery) Raycast(startRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, options int, prevRef DtPolyRef, maxPath int) (*DtRaycastHit, DtStatus) {
	hit := &DtRaycastHit{HitEdgeIndex: -1}

	// Validate input
	if !q.m_nav.IsValidPolyRef(startRef) ||
		!common.Visfinite(startPos) || !common.Visfinite(endPos) || filter == nil ||
		maxPath < 0 || (prevRef != 0 && !q.m_nav.IsValidPolyRef(prevRef)) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	dir := endPos.Sub(startPos)
	status := DT_SUCCESS
	curPos := startPos
	var lastPos common.Vec3
	var verts [DT_VERTS_PER_POLYGON]common.Vec3

	curRef := startRef
	tile, poly := q.m_nav.GetTileAndPolyByRefUnsafe(curRef)
	nextTile, nextPoly := tile, poly
	prevTile, prevPoly := tile, poly
	if prevRef != 0 {
		prevTile, prevPoly = q.m_nav.GetTileAndPolyByRefUnsafe(prevRef)
	}

	for curRef != 0 {
		// Cast ray against current polygon.

		// Collect vertices.
		nv := tile.polyVerts(poly, &verts)

		_, tmax, _, segMax, ok := dtIntersectSegmentPoly2D(startPos, endPos, verts[:nv])
		if !ok {
			// Could not hit the polygon, keep the old t and report hit.
			return hit, status
		}

		hit.HitEdgeIndex = segMax

		// Keep track of furthest t so far.
		if tmax > hit.T {
			hit.T = tmax
		}

		// Store visited polygons.
		if len(hit.Path) < maxPath {
			hit.Path = append(hit.Path, curRef)
		} else {
			status |= DT_BUFFER_TOO_SMALL
		}

		// Ray end is completely inside the polygon.
		if segMax == -1 {
			hit.T = 1
			hit.HitEdgeIndex = -1

			// add the cost
			if options&DT_RAYCAST_USE_COSTS != 0 {
				hit.PathCost += filter.GetCost(curPos, endPos, prevRef, prevTile, prevPoly, curRef, tile, poly, curRef, tile, poly)
			}
			return hit, status
		}

		// Follow neighbours.
		var nextRef DtPolyRef

		for i := poly.FirstLink; i != DT_NULL_LINK; i = tile.Links[i].Next {
			link := &tile.Links[i]

			// Find link which contains this edge.
			if int(link.Edge) != segMax {
				continue
			}

			// Get pointer to the next polygon.
			nextTile, nextPoly = q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)

			// Skip off-mesh connections.
			if nextPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
				continue
			}

			// Skip links based on filter.
			if !filter.PassFilter(link.Ref, nextTile, nextPoly) {
				continue
			}

			// If the link is internal, just return the ref.
			if link.Side == 0xff {
				nextRef = link.Ref
				break
			}

			// If the link is at tile boundary,

			// Check if the link spans the whole edge, and accept.
			if link.Bmin == 0 && link.Bmax == 255 {
				nextRef = link.Ref
				break
			}

			// Check for partial edge links.
			left := verts[link.Edge]
			right := verts[(int(link.Edge)+1)%nv]

			// Check that the intersection lies inside the link portal.
			s := float32(1.0 / 255.0)
			if link.Side == 0 || link.Side == 4 {
				// Calculate link size.
				lmin := left[2] + (right[2]-left[2])*(float32(link.Bmin)*s)
				lmax := left[2] + (right[2]-left[2])*(float32(link.Bmax)*s)
				if lmin > lmax {
					lmin, lmax = lmax, lmin
				}

				// Find Z intersection.
				z := startPos[2] + (endPos[2]-startPos[2])*tmax
				if z >= lmin && z <= lmax {
					nextRef = link.Ref
					break
				}
			} else if link.Side == 2 || link.Side == 6 {
				// Calculate link size.
				lmin := left[0] + (right[0]-left[0])*(float32(link.Bmin)*s)
				lmax := left[0] + (right[0]-left[0])*(float32(link.Bmax)*s)
				if lmin > lmax {
					lmin, lmax = lmax, lmin
				}

				// Find X intersection.
				x := startPos[0] + (endPos[0]-startPos[0])*tmax
				if x >= lmin && x <= lmax {
					nextRef = link.Ref
					break
				}
			}
		}

		// add the cost
		if options&DT_RAYCAST_USE_COSTS != 0 {
			// compute the intersection point at the furthest end of the polygon
			// and correct the height (since the raycast moves in 2d)
			lastPos = curPos
			curPos = common.Vmad(startPos, dir, hit.T)
			e1 := verts[segMax]
			e2 := verts[(segMax+1)%nv]
			eDir := e2.Sub(e1)
			diff := curPos.Sub(e1)
			var s float32
			if common.Sqr(eDir[0]) > common.Sqr(eDir[2]) {
				s = diff[0] / eDir[0]
			} else {
				s = diff[2] / eDir[2]
			}
			curPos[1] = e1[1] + eDir[1]*s

			hit.PathCost += filter.GetCost(lastPos, curPos, prevRef, prevTile, prevPoly, curRef, tile, poly, nextRef, nextTile, nextPoly)
		}

		if nextRef == 0 {
			// No neighbour, we hit a wall.

			// Calculate hit normal.
			a := segMax
			b := 0
			if segMax+1 < nv {
				b = segMax + 1
			}
			va := verts[a]
			vb := verts[b]
			dx := vb[0] - va[0]
			dz := vb[2] - va[2]
			hit.HitNormal = common.Vec3{dz, 0, -dx}
			if l := hit.HitNormal.Len(); l > 0 {
				hit.HitNormal = hit.HitNormal.Mul(1 / l)
			}
			if hit.T >= 1 {
				// The end position lies on the wall itself.
				hit.T = 1
				hit.HitNormal = common.Vec3{}
				hit.HitEdgeIndex = -1
			}
			return hit, status
		}

		// No hit, advance to neighbour polygon.
		prevRef = curRef
		curRef = nextRef
		prevTile = tile
		tile = nextTile
		prevPoly = poly
		poly = nextPoly
	}
	return hit, status
}
