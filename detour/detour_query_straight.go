package detour

import (
	"github.com/gorustyt/navquery/common"
)

// DtStraightPathPoint is one vertex of a straightened path.
type DtStraightPathPoint struct {
	Pos   common.Vec3
	Flags uint8     ///< A combination of DT_STRAIGHTPATH_START, DT_STRAIGHTPATH_END and DT_STRAIGHTPATH_OFFMESH_CONNECTION.
	Ref   DtPolyRef ///< The polygon entered at this vertex, 0 for the end point.
}

type dtStraightPathBuilder struct {
	points  []DtStraightPathPoint
	maxSize int
}

// / Appends vertex to a straight path
func (b *dtStraightPathBuilder) appendVertex(pos common.Vec3, flags uint8, ref DtPolyRef) DtStatus {
	if n := len(b.points); n > 0 && common.Vequal(b.points[n-1].Pos, pos) {
		// The vertices are equal, update flags and poly.
		b.points[n-1].Flags = flags
		b.points[n-1].Ref = ref
	} else {
		// Append new vertex.
		b.points = append(b.points, DtStraightPathPoint{Pos: pos, Flags: flags, Ref: ref})

		// If reached end of path, return.
		if flags == DT_STRAIGHTPATH_END {
			return DT_SUCCESS
		}

		// If there is no space to append more vertices, return.
		if len(b.points) >= b.maxSize {
			return DT_SUCCESS | DT_BUFFER_TOO_SMALL
		}
	}
	return DT_IN_PROGRESS
}

func (b *dtStraightPathBuilder) full() bool {
	return len(b.points) >= b.maxSize
}

// / Appends intermediate portal points to a straight path.
func (q *DtNavMeshQuery) appendPortals(b *dtStraightPathBuilder, startIdx, endIdx int, endPos common.Vec3,
	path []DtPolyRef, options int) DtStatus {
	startPos := b.points[len(b.points)-1].Pos

	// Append or update last vertex
	for i := startIdx; i < endIdx; i++ {
		// Calculate portal
		from := path[i]
		fromTile, fromPoly, status := q.m_nav.GetTileAndPolyByRef(from)
		if status.Failed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}

		to := path[i+1]
		toTile, toPoly, status := q.m_nav.GetTileAndPolyByRef(to)
		if status.Failed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}

		left, right, status := q.getPortalPointsOf(from, fromPoly, fromTile, to, toPoly, toTile)
		if status.Failed() {
			break
		}

		if options&DT_STRAIGHTPATH_AREA_CROSSINGS != 0 {
			// Skip intersection if only area crossings are requested.
			if fromPoly.GetArea() == toPoly.GetArea() {
				continue
			}
		}

		// Append intersection
		if _, t, ok := dtIntersectSegSeg2D(startPos, endPos, left, right); ok {
			pt := common.Vlerp(left, right, t)
			stat := b.appendVertex(pt, 0, path[i+1])
			if stat != DT_IN_PROGRESS {
				return stat
			}
		}
	}
	return DT_IN_PROGRESS
}

// / @par
// /
// / This method peforms what is often called 'string pulling'.
// /
// / The start position is clamped to the first polygon in the path, and the
// / end position is clamped to the last. So the start and end positions should
// / normally be within or very near the first and last polygons respectively.
// /
// / The returned polygon references represent the reference id of the polygon
// / that is entered at the associated path position. The reference id associated
// / with the end point will always be zero.  This allows, for example, matching
// / off-mesh link points to their representative polygons.
// /
// / If the provided result buffers are too small for the entire result set,
// / they will be filled as far as possible from the start toward the end
// / position.
// /
// / If a polygon of the corridor no longer resolves the result ends at the last
// / valid polygon and carries #DT_PARTIAL_RESULT.
func (q *DtNavMeshQuery) FindStraightPath(startPos, endPos common.Vec3, path []DtPolyRef,
	maxStraightPath int, options int) ([]DtStraightPathPoint, DtStatus) {
	if !common.Visfinite(startPos) || !common.Visfinite(endPos) ||
		len(path) == 0 || path[0] == 0 || maxStraightPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	b := &dtStraightPathBuilder{maxSize: maxStraightPath}
	pathSize := len(path)
	crossings := options&(DT_STRAIGHTPATH_AREA_CROSSINGS|DT_STRAIGHTPATH_ALL_CROSSINGS) != 0

	closestStartPos, status := q.ClosestPointOnPolyBoundary(path[0], startPos)
	if status.Failed() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	closestEndPos, status := q.ClosestPointOnPolyBoundary(path[pathSize-1], endPos)
	if status.Failed() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	// Add start point.
	stat := b.appendVertex(closestStartPos, DT_STRAIGHTPATH_START, path[0])
	if stat != DT_IN_PROGRESS {
		return b.points, stat
	}

	if pathSize > 1 {
		portalApex := closestStartPos
		portalLeft := portalApex
		portalRight := portalApex
		apexIndex := 0
		leftIndex := 0
		rightIndex := 0

		var leftPolyType, rightPolyType uint8

		leftPolyRef := path[0]
		rightPolyRef := path[0]

		for i := 0; i < pathSize; i++ {
			var left, right common.Vec3
			var toType uint8

			if i+1 < pathSize {
				// Next portal.
				var status DtStatus
				left, right, _, toType, status = q.getPortalPoints(path[i], path[i+1])
				if status.Failed() {
					// Failed to get portal points, in practice this means that path[i+1] is invalid polygon.
					// Clamp the end point to path[i], and return the path so far.
					closestEndPos, status = q.ClosestPointOnPolyBoundary(path[i], endPos)
					if status.Failed() {
						// This should only happen when the first polygon is invalid.
						return nil, DT_FAILURE | DT_INVALID_PARAM
					}

					// Append portals along the current straight path segment.
					if crossings {
						// Ignore status return value as we're just about to return anyway.
						q.appendPortals(b, apexIndex, i, closestEndPos, path, options)
					}

					// Ignore status return value as we're just about to return anyway.
					b.appendVertex(closestEndPos, 0, path[i])

					result := DT_SUCCESS | DT_PARTIAL_RESULT
					if b.full() {
						result |= DT_BUFFER_TOO_SMALL
					}
					return b.points, result
				}

				// If starting really close the portal, advance.
				if i == 0 {
					if d, _ := DtDistancePtSegSqr2D(portalApex, left, right); d < common.Sqr(float32(0.001)) {
						continue
					}
				}
			} else {
				// End of the path.
				left = closestEndPos
				right = closestEndPos
				toType = DT_POLYTYPE_GROUND
			}

			// Right vertex.
			if common.TriArea2D(portalApex, portalRight, right) <= 0.0 {
				if common.Vequal(portalApex, portalRight) || common.TriArea2D(portalApex, portalLeft, right) > 0.0 {
					portalRight = right
					rightPolyRef = 0
					if i+1 < pathSize {
						rightPolyRef = path[i+1]
					}
					rightPolyType = toType
					rightIndex = i
				} else {
					// Append portals along the current straight path segment.
					if crossings {
						stat = q.appendPortals(b, apexIndex, leftIndex, portalLeft, path, options)
						if stat != DT_IN_PROGRESS {
							return b.points, stat
						}
					}

					portalApex = portalLeft
					apexIndex = leftIndex

					var flags uint8
					if leftPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					} else if leftPolyType == DT_POLYTYPE_OFFMESH_CONNECTION {
						flags = DT_STRAIGHTPATH_OFFMESH_CONNECTION
					}

					// Append or update vertex
					stat = b.appendVertex(portalApex, flags, leftPolyRef)
					if stat != DT_IN_PROGRESS {
						return b.points, stat
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}

			// Left vertex.
			if common.TriArea2D(portalApex, portalLeft, left) >= 0.0 {
				if common.Vequal(portalApex, portalLeft) || common.TriArea2D(portalApex, portalRight, left) < 0.0 {
					portalLeft = left
					leftPolyRef = 0
					if i+1 < pathSize {
						leftPolyRef = path[i+1]
					}
					leftPolyType = toType
					leftIndex = i
				} else {
					// Append portals along the current straight path segment.
					if crossings {
						stat = q.appendPortals(b, apexIndex, rightIndex, portalRight, path, options)
						if stat != DT_IN_PROGRESS {
							return b.points, stat
						}
					}

					portalApex = portalRight
					apexIndex = rightIndex

					var flags uint8
					if rightPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					} else if rightPolyType == DT_POLYTYPE_OFFMESH_CONNECTION {
						flags = DT_STRAIGHTPATH_OFFMESH_CONNECTION
					}

					// Append or update vertex
					stat = b.appendVertex(portalApex, flags, rightPolyRef)
					if stat != DT_IN_PROGRESS {
						return b.points, stat
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}
		}

		// Append portals along the current straight path segment.
		if crossings {
			stat = q.appendPortals(b, apexIndex, pathSize-1, closestEndPos, path, options)
			if stat != DT_IN_PROGRESS {
				return b.points, stat
			}
		}
	}

	// The end vertex always fits: every earlier append that filled the buffer returned above.
	b.appendVertex(closestEndPos, DT_STRAIGHTPATH_END, 0)
	return b.points, DT_SUCCESS
}
