package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
	"gopkg.in/eapache/queue.v1"
)

// Upper bound of the breadth first frontier used by the tiny-pool searches.
const dtLocalMaxStack = 48

// DtWallSegment is one edge piece returned by GetPolyWallSegments. Ref is the
// neighbour behind a portal segment and 0 for a wall.
type DtWallSegment struct {
	Start common.Vec3
	End   common.Vec3
	Ref   DtPolyRef
}

// IsPortal reports whether the segment leads into another polygon.
func (s DtWallSegment) IsPortal() bool { return s.Ref != 0 }

// / @par
// /
// / This method is optimized for a small search radius and small number of result
// / polygons.
// /
// / Candidate polygons are found by searching the navigation graph beginning at
// / the start polygon.
// /
// / The same intersection test restrictions that apply to the FindPolysAroundCircle
// / mehtod applies to this method.
// /
// / The value of the center point is used as the start point for cost calculations.
// / It is not projected onto the surface of the mesh, so its y-value will effect
// / the costs.
// /
// / Intersection tests occur in 2D. All polygons and the search circle are
// / projected onto the xz-plane. So the y-value of the center point does not
// / effect intersection tests.
// /
// / If the result arrays are is too small to hold the entire result set, they will
// / be filled to capacity.
// /
func (q *DtNavMeshQuery) FindLocalNeighbourhood(startRef DtPolyRef, centerPos common.Vec3, radius float32,
	filter DtQueryFilter, maxResult int) (resultRef, resultParent []DtPolyRef, status DtStatus) {
	// Validate input
	if !q.m_nav.IsValidPolyRef(startRef) || !common.Visfinite(centerPos) ||
		!(radius >= 0) || !common.IsFinite(radius) || filter == nil || maxResult < 0 {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}

	stack := queue.New()

	q.m_tinyNodePool.Clear()

	startNode := q.m_tinyNodePool.GetNode(startRef, 0)
	startNode.Pidx = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_CLOSED
	stack.Add(startNode)

	radiusSqr := common.Sqr(radius)

	var pa, pb [DT_VERTS_PER_POLYGON]common.Vec3

	status = DT_SUCCESS

	if maxResult > 0 {
		resultRef = append(resultRef, startNode.Id)
		resultParent = append(resultParent, 0)
	} else {
		status |= DT_BUFFER_TOO_SMALL
	}

	for stack.Length() > 0 {
		// Pop front.
		curNode := stack.Remove().(*DtNode)

		curRef := curNode.Id
		curTile, curPoly := q.m_nav.GetTileAndPolyByRefUnsafe(curRef)

		for i := curPoly.FirstLink; i != DT_NULL_LINK; i = curTile.Links[i].Next {
			link := &curTile.Links[i]
			neighbourRef := link.Ref
			// Skip invalid neighbours.
			if neighbourRef == 0 {
				continue
			}

			// Skip if cannot alloca more nodes.
			neighbourNode := q.m_tinyNodePool.GetNode(neighbourRef, 0)
			if neighbourNode == nil {
				continue
			}
			// Skip visited.
			if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
				continue
			}

			// Expand to neighbour
			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)

			// Skip off-mesh connections.
			if neighbourPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
				continue
			}

			// Do not advance if the polygon is excluded by the filter.
			if !filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			// Find edge and calc distance to the edge.
			va, vb, portalStatus := q.getPortalPointsOf(curRef, curPoly, curTile, neighbourRef, neighbourPoly, neighbourTile)
			if portalStatus.Failed() {
				continue
			}

			// If the circle is not touching the next polygon, skip it.
			if distSqr, _ := DtDistancePtSegSqr2D(centerPos, va, vb); distSqr > radiusSqr {
				continue
			}

			// Mark node visited, this is done before the overlap test so that
			// we will not visit the poly again if the test fails.
			neighbourNode.Flags |= DT_NODE_CLOSED
			neighbourNode.Pidx = q.m_tinyNodePool.GetNodeIdx(curNode)

			// Check that the polygon does not collide with existing polygons.

			// Collect vertices of the neighbour poly.
			npa := neighbourTile.polyVerts(neighbourPoly, &pa)

			overlap := false
			for _, pastRef := range resultRef {
				// Connected polys do not overlap.
				connected := false
				for k := curPoly.FirstLink; k != DT_NULL_LINK; k = curTile.Links[k].Next {
					if curTile.Links[k].Ref == pastRef {
						connected = true
						break
					}
				}
				if connected {
					continue
				}

				// Potentially overlapping.
				pastTile, pastPoly := q.m_nav.GetTileAndPolyByRefUnsafe(pastRef)

				// Get vertices and test overlap
				npb := pastTile.polyVerts(pastPoly, &pb)
				if dtOverlapPolyPoly2D(pa[:npa], pb[:npb]) {
					overlap = true
					break
				}
			}
			if overlap {
				continue
			}

			// This poly is fine, store and advance to the poly.
			if len(resultRef) < maxResult {
				resultRef = append(resultRef, neighbourRef)
				resultParent = append(resultParent, curRef)
			} else {
				status |= DT_BUFFER_TOO_SMALL
			}

			if stack.Length() < dtLocalMaxStack {
				stack.Add(neighbourNode)
			}
		}
	}
	return resultRef, resultParent, status
}

type dtSegInterval struct {
	ref        DtPolyRef
	tmin, tmax int
}

func insertInterval(ints []dtSegInterval, maxInts int, tmin, tmax int, ref DtPolyRef) []dtSegInterval {
	if len(ints)+1 > maxInts {
		return ints
	}
	// Find insertion point.
	idx := 0
	for idx < len(ints) {
		if tmax <= ints[idx].tmin {
			break
		}
		idx++
	}
	// Move current results.
	ints = append(ints, dtSegInterval{})
	copy(ints[idx+1:], ints[idx:len(ints)-1])
	// Store
	ints[idx] = dtSegInterval{ref: ref, tmin: tmin, tmax: tmax}
	return ints
}

// / @par
// /
// / If the @p storePortals is true the returned segments include the portals
// / to the neighbour polygons that pass the filter.
// /
// / A segment that is normally a portal will be included in the result set as a
// / wall if the @p filter results in the neighbor polygon becoomming impassable.
// /
// / Tile border edges are split at the quantized link ranges, so a partially
// / connected border yields both portal and wall pieces.
func (q *DtNavMeshQuery) GetPolyWallSegments(ref DtPolyRef, filter DtQueryFilter, storePortals bool,
	maxSegments int) ([]DtWallSegment, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return nil, status
	}
	if filter == nil || maxSegments < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	const MAX_INTERVAL = 16
	var intsBuf [MAX_INTERVAL]dtSegInterval

	var segs []DtWallSegment
	status = DT_SUCCESS
	push := func(seg DtWallSegment) {
		if len(segs) < maxSegments {
			segs = append(segs, seg)
		} else {
			status |= DT_BUFFER_TOO_SMALL
		}
	}

	nv := int(poly.VertCount)
	for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
		// Skip non-solid edges.
		ints := intsBuf[:0]
		if poly.Neis[j]&DT_EXT_LINK != 0 {
			// Tile border.
			for k := poly.FirstLink; k != DT_NULL_LINK; k = tile.Links[k].Next {
				link := &tile.Links[k]
				if int(link.Edge) == j && link.Ref != 0 {
					neiTile, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
					if filter.PassFilter(link.Ref, neiTile, neiPoly) {
						ints = insertInterval(ints, MAX_INTERVAL, int(link.Bmin), int(link.Bmax), link.Ref)
					}
				}
			}
		} else {
			// Internal edge
			var neiRef DtPolyRef
			if poly.Neis[j] != 0 {
				idx := uint32(poly.Neis[j] - 1)
				neiRef = q.m_nav.GetPolyRefBase(tile) | DtPolyRef(idx)
				if !filter.PassFilter(neiRef, tile, &tile.Polys[idx]) {
					neiRef = 0
				}
			}

			// If the edge leads to another polygon and portals are not stored, skip.
			if neiRef != 0 && !storePortals {
				continue
			}

			push(DtWallSegment{Start: tile.polyVert(poly, j), End: tile.polyVert(poly, i), Ref: neiRef})
			continue
		}

		// Add sentinels
		ints = insertInterval(ints, MAX_INTERVAL, -1, 0, 0)
		ints = insertInterval(ints, MAX_INTERVAL, 255, 256, 0)

		// Store segments.
		vj := tile.polyVert(poly, j)
		vi := tile.polyVert(poly, i)
		for k := 1; k < len(ints); k++ {
			// Portal segment.
			if storePortals && ints[k].ref != 0 {
				tmin := float32(ints[k].tmin) / 255.0
				tmax := float32(ints[k].tmax) / 255.0
				push(DtWallSegment{Start: common.Vlerp(vj, vi, tmin), End: common.Vlerp(vj, vi, tmax), Ref: ints[k].ref})
			}

			// Wall segment.
			imin := ints[k-1].tmax
			imax := ints[k].tmin
			if imin != imax {
				tmin := float32(imin) / 255.0
				tmax := float32(imax) / 255.0
				push(DtWallSegment{Start: common.Vlerp(vj, vi, tmin), End: common.Vlerp(vj, vi, tmax)})
			}
		}
	}
	return segs, status
}

// / @par
// /
// / This method is optimized for small delta movement and a small number of
// / polygons. If used for too great a distance, the result set will form an
// / incomplete path.
// /
// / @p resultPos will equal the @p endPos if the end is reached.
// / Otherwise the closest reachable position will be returned.
// /
// / @p resultPos is not projected onto the surface of the navigation
// / mesh. Use #GetPolyHeight if this is needed.
// /
// / This method treats the end position in the same manner as
// / the #Raycast method. (As a 2D point.) See that method's documentation
// / for details.
// /
// / If the @p visited array is too small to hold the entire result set, it will
// / be filled as far as possible from the start position toward the end
// / position.
// /
func (q *DtNavMeshQuery) MoveAlongSurface(startRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, maxVisitedSize int) (resultPos common.Vec3, visited []DtPolyRef, status DtStatus) {
	// Validate input
	if !q.m_nav.IsValidPolyRef(startRef) || !common.Visfinite(startPos) ||
		!common.Visfinite(endPos) || filter == nil || maxVisitedSize <= 0 {
		return resultPos, nil, DT_FAILURE | DT_INVALID_PARAM
	}

	status = DT_SUCCESS

	stack := queue.New()

	q.m_tinyNodePool.Clear()

	startNode := q.m_tinyNodePool.GetNode(startRef, 0)
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_CLOSED
	stack.Add(startNode)

	bestPos := startPos
	bestDist := float32(math.MaxFloat32)
	var bestNode *DtNode

	// Search constraints
	searchPos := common.Vlerp(startPos, endPos, 0.5)
	searchRadSqr := common.Sqr(common.Vdist(startPos, endPos)/2.0 + 0.001)

	var verts [DT_VERTS_PER_POLYGON]common.Vec3

	for stack.Length() > 0 {
		// Pop front.
		curNode := stack.Remove().(*DtNode)

		// Get poly and tile.
		// The API input has been checked already, skip checking internal data.
		curRef := curNode.Id
		curTile, curPoly := q.m_nav.GetTileAndPolyByRefUnsafe(curRef)

		// Collect vertices.
		nverts := curTile.polyVerts(curPoly, &verts)

		// If target is inside the poly, stop search.
		if dtPointInPolygon(endPos, verts[:nverts]) {
			bestNode = curNode
			bestPos = endPos
			break
		}

		// Find wall edges and find nearest point inside the walls.
		for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
			// Find links to neighbours.
			const MAX_NEIS = 8
			var neis [MAX_NEIS]DtPolyRef
			nneis := 0

			if curPoly.Neis[j]&DT_EXT_LINK != 0 {
				// Tile border.
				for k := curPoly.FirstLink; k != DT_NULL_LINK; k = curTile.Links[k].Next {
					link := &curTile.Links[k]
					if int(link.Edge) == j && link.Ref != 0 {
						neiTile, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
						if filter.PassFilter(link.Ref, neiTile, neiPoly) && nneis < MAX_NEIS {
							neis[nneis] = link.Ref
							nneis++
						}
					}
				}
			} else if curPoly.Neis[j] != 0 {
				idx := uint32(curPoly.Neis[j] - 1)
				ref := q.m_nav.GetPolyRefBase(curTile) | DtPolyRef(idx)
				if filter.PassFilter(ref, curTile, &curTile.Polys[idx]) {
					// Internal edge, encode id.
					neis[nneis] = ref
					nneis++
				}
			}

			if nneis == 0 {
				// Wall edge, calc distance.
				vj := verts[j]
				vi := verts[i]
				distSqr, tseg := DtDistancePtSegSqr2D(endPos, vj, vi)
				if distSqr < bestDist {
					// Update nearest distance.
					bestPos = common.Vlerp(vj, vi, tseg)
					bestDist = distSqr
					bestNode = curNode
				}
			} else {
				for k := 0; k < nneis; k++ {
					// Skip if no node can be allocated.
					neighbourNode := q.m_tinyNodePool.GetNode(neis[k], 0)
					if neighbourNode == nil {
						continue
					}
					// Skip if already visited.
					if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
						continue
					}

					// Skip the link if it is too far from search constraint.
					vj := verts[j]
					vi := verts[i]
					if distSqr, _ := DtDistancePtSegSqr2D(searchPos, vj, vi); distSqr > searchRadSqr {
						continue
					}

					// Mark as the node as visited and push to queue.
					if stack.Length() < dtLocalMaxStack {
						neighbourNode.Pidx = q.m_tinyNodePool.GetNodeIdx(curNode)
						neighbourNode.Flags |= DT_NODE_CLOSED
						stack.Add(neighbourNode)
					}
				}
			}
		}
	}

	if bestNode != nil {
		// Reverse the path.
		var prev *DtNode
		node := bestNode
		for node != nil {
			next := q.m_tinyNodePool.GetNodeAtIdx(node.Pidx)
			node.Pidx = q.m_tinyNodePool.GetNodeIdx(prev)
			prev = node
			node = next
		}

		// Store result
		for node = prev; node != nil; node = q.m_tinyNodePool.GetNodeAtIdx(node.Pidx) {
			visited = append(visited, node.Id)
			if len(visited) >= maxVisitedSize {
				if node.Pidx != 0 {
					status |= DT_BUFFER_TOO_SMALL
				}
				break
			}
		}
	}
	return bestPos, visited, status
}

// / @par
// /
// / At least one result array must be provided.
// /
// / The order of the result set is from least to highest cost to reach the polygon.
// /
// / A common use case for this method is to perform Dijkstra searches.
// / Candidate polygons are found by searching the graph beginning at the start polygon.
// /
// / If a polygon is not found via the graph search, even if it intersects the
// / search circle, it will not be included in the result set. For example:
// /
// / polyA is the start polygon.
// / polyB shares an edge with polyA. (Is adjacent.)
// / polyC shares an edge with polyB, but not with polyA
// / Even if the search circle overlaps polyC, it will not be included in the
// / result set unless polyB is also in the set.
// /
// / The value of the center point is used as the start position for cost
// / calculations. It is not projected onto the surface of the mesh, so its
// / y-value will effect the costs.
// /
// / Intersection tests occur in 2D. All polygons and the search circle are
// / projected onto the xz-plane. So the y-value of the center point does not
// / effect intersection tests.
// /
// / The search uses the main node pool, so an unfinished sliced path query is abandoned.
func (q *DtNavMeshQuery) FindPolysAroundCircle(startRef DtPolyRef, centerPos common.Vec3, radius float32,
	filter DtQueryFilter, maxResult int) (resultRef, resultParent []DtPolyRef, resultCost []float32, status DtStatus) {
	// Validate input
	if !q.m_nav.IsValidPolyRef(startRef) || !common.Visfinite(centerPos) ||
		radius < 0 || !common.IsFinite(radius) || filter == nil || maxResult < 0 {
		return nil, nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}

	q.abandonSlicedQuery("polygon search around circle")
	q.m_nodePool.Clear()
	q.m_openList.Reset()

	startNode := q.m_nodePool.GetNode(startRef, 0)
	startNode.Pos = centerPos
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.m_openList.Offer(startNode)

	status = DT_SUCCESS

	radiusSqr := common.Sqr(radius)

	for !q.m_openList.Empty() {
		bestNode := q.m_openList.Poll()
		bestNode.Flags &^= DT_NODE_OPEN
		bestNode.Flags |= DT_NODE_CLOSED

		// Get poly and tile.
		// The API input has been checked already, skip checking internal data.
		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.GetTileAndPolyByRefUnsafe(bestRef)

		// Get parent poly and tile.
		var parentRef DtPolyRef
		var parentTile *DtMeshTile
		var parentPoly *DtPoly
		if bestNode.Pidx != 0 {
			parentRef = q.m_nodePool.GetNodeAtIdx(bestNode.Pidx).Id
		}
		if parentRef != 0 {
			parentTile, parentPoly = q.m_nav.GetTileAndPolyByRefUnsafe(parentRef)
		}

		if len(resultRef) < maxResult {
			resultRef = append(resultRef, bestRef)
			resultParent = append(resultParent, parentRef)
			resultCost = append(resultCost, bestNode.Total)
		} else {
			status |= DT_BUFFER_TOO_SMALL
		}

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref
			// Skip invalid neighbours and do not follow back to parent.
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			// Expand to neighbour
			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)

			// Do not advance if the polygon is excluded by the filter.
			if !filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			// Find edge and calc distance to the edge.
			va, vb, portalStatus := q.getPortalPointsOf(bestRef, bestPoly, bestTile, neighbourRef, neighbourPoly, neighbourTile)
			if portalStatus.Failed() {
				continue
			}

			// If the circle is not touching the next polygon, skip it.
			if distSqr, _ := DtDistancePtSegSqr2D(centerPos, va, vb); distSqr > radiusSqr {
				continue
			}

			neighbourNode := q.m_nodePool.GetNode(neighbourRef, 0)
			if neighbourNode == nil {
				status |= DT_OUT_OF_NODES
				continue
			}

			if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
				continue
			}

			// Cost
			if neighbourNode.Flags == 0 {
				neighbourNode.Pos = common.Vlerp(va, vb, 0.5)
			}

			cost := filter.GetCost(bestNode.Pos, neighbourNode.Pos,
				parentRef, parentTile, parentPoly,
				bestRef, bestTile, bestPoly,
				neighbourRef, neighbourTile, neighbourPoly)

			total := bestNode.Total + cost

			// The node is already in open list and the new result is worse, skip.
			if neighbourNode.Flags&DT_NODE_OPEN != 0 && total >= neighbourNode.Total {
				continue
			}

			neighbourNode.Id = neighbourRef
			neighbourNode.Pidx = q.m_nodePool.GetNodeIdx(bestNode)
			neighbourNode.Total = total

			if neighbourNode.Flags&DT_NODE_OPEN != 0 {
				q.m_openList.Update(neighbourNode)
			} else {
				neighbourNode.Flags = DT_NODE_OPEN
				q.m_openList.Offer(neighbourNode)
			}
		}
	}
	return resultRef, resultParent, resultCost, status
}
