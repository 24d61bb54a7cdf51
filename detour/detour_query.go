package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
)

// / Options for DtNavMeshQuery::InitSlicedFindPath and updateSlicedFindPath
const (
	DT_FINDPATH_ANY_ANGLE = 0x02 ///< use raycasts during pathfind to "shortcut" (raycast still consider costs)
)

// Search heuristic scale.
const H_SCALE = 0.999

// / Vertex flags returned by DtNavMeshQuery::FindStraightPath.
const (
	DT_STRAIGHTPATH_START              = 0x01 ///< The vertex is the start position in the path.
	DT_STRAIGHTPATH_END                = 0x02 ///< The vertex is the end position in the path.
	DT_STRAIGHTPATH_OFFMESH_CONNECTION = 0x04 ///< The vertex is the start of an off-mesh connection.
)

// / Options for DtNavMeshQuery::FindStraightPath.
const (
	DT_STRAIGHTPATH_AREA_CROSSINGS = 0x01 ///< Add a vertex at every polygon edge crossing where area changes.
	DT_STRAIGHTPATH_ALL_CROSSINGS  = 0x02 ///< Add a vertex at every polygon edge crossing.
)

// Size of the broad phase batches handed to a dtPolyQuery.
const dtPolyQueryBatch = 32

type dtQueryData struct {
	status           DtStatus
	lastBestNode     *DtNode
	lastBestNodeCost float32
	startRef, endRef DtPolyRef
	startPos, endPos common.Vec3
	filter           DtQueryFilter
	options          int
	raycastLimitSqr  float32
}

// DtNavMeshQuery runs searches against one DtNavMesh. It owns the node pools and
// the open list, so a query object serves one caller at a time and at most one
// sliced path search.
type DtNavMeshQuery struct {
	m_nav          *DtNavMesh ///< Pointer to navmesh data.
	m_nodePool     *DtNodePool
	m_tinyNodePool *DtNodePool
	m_openList     *DtNodeQueue
	m_query        dtQueryData
}

// / Initializes the query object.
// /  @param[in]		nav			Pointer to the DtNavMesh object to use for all queries.
// /  @param[in]		maxNodes	Maximum number of search nodes. [Limits: 0 < value <= 65535]
// / @returns The status flags for the query.
func NewDtNavMeshQuery(nav *DtNavMesh, maxNodes int32) (*DtNavMeshQuery, DtStatus) {
	if nav == nil || maxNodes <= 0 || maxNodes > DT_MAX_POOL_SIZE {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	query := &DtNavMeshQuery{
		m_nav:          nav,
		m_nodePool:     NewDtNodePool(maxNodes, int32(common.NextPow2(uint32(maxNodes/4)))),
		m_tinyNodePool: NewDtNodePool(64, 32),
		m_openList:     NewDtNodeQueue(int(maxNodes)),
	}
	return query, DT_SUCCESS
}

// / Gets the node pool.
// / @returns The node pool.
func (q *DtNavMeshQuery) GetNodePool() *DtNodePool { return q.m_nodePool }

// / Gets the navigation mesh the query object is using.
// / @return The navigation mesh the query object is using.
func (q *DtNavMeshQuery) GetAttachedNavMesh() *DtNavMesh { return q.m_nav }

// Reset drops every search state, an unfinished sliced path search included.
func (q *DtNavMeshQuery) Reset() {
	q.m_nodePool.Clear()
	q.m_tinyNodePool.Clear()
	q.m_openList.Reset()
	q.m_query = dtQueryData{}
}

// / @par
// /
// / Uses the detail polygons to find the surface height. (Most accurate.)
// /
// / @p pos does not have to be within the bounds of the polygon or navigation mesh.
// /
// / See ClosestPointOnPolyBoundary() for a limited but faster option.
func (q *DtNavMeshQuery) ClosestPointOnPoly(ref DtPolyRef, pos common.Vec3) (closest common.Vec3, posOverPoly bool, status DtStatus) {
	if !q.m_nav.IsValidPolyRef(ref) || !common.Visfinite(pos) {
		return closest, false, DT_FAILURE | DT_INVALID_PARAM
	}
	closest, posOverPoly = q.m_nav.ClosestPointOnPoly(ref, pos)
	return closest, posOverPoly, DT_SUCCESS
}

// / @par
// /
// / Much faster than ClosestPointOnPoly().
// /
// / If the provided position lies within the polygon's xz-bounds (above or below),
// / then @p pos and @p closest will be equal.
// /
// / The height of @p closest will be the polygon boundary.  The height detail is not used.
// /
// / @p pos does not have to be within the bounds of the polybon or the navigation mesh.
func (q *DtNavMeshQuery) ClosestPointOnPolyBoundary(ref DtPolyRef, pos common.Vec3) (closest common.Vec3, status DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return closest, status
	}
	if !common.Visfinite(pos) {
		return closest, DT_FAILURE | DT_INVALID_PARAM
	}

	// Collect vertices.
	var verts [DT_VERTS_PER_POLYGON]common.Vec3
	var edged, edget [DT_VERTS_PER_POLYGON]float32
	nv := tile.polyVerts(poly, &verts)

	if dtDistancePtPolyEdgesSqr(pos, verts[:nv], edged[:nv], edget[:nv]) {
		// Point is inside the polygon, return the point.
		return pos, DT_SUCCESS
	}

	// Point is outside the polygon, dtClamp to nearest edge.
	dmin := edged[0]
	imin := 0
	for i := 1; i < nv; i++ {
		if edged[i] < dmin {
			dmin = edged[i]
			imin = i
		}
	}
	va := verts[imin]
	vb := verts[(imin+1)%nv]
	return common.Vlerp(va, vb, edget[imin]), DT_SUCCESS
}

// / @par
// /
// / Will return #DT_FAILURE | DT_INVALID_PARAM if the provided position is outside the xz-bounds
// / of the polygon.
func (q *DtNavMeshQuery) GetPolyHeight(ref DtPolyRef, pos common.Vec3) (float32, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	if !common.Visfinite2D(pos) {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	// We used to return success for offmesh connections, but the
	// getPolyHeight in DetourNavMesh does not do this, so special
	// case it here.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		v0 := tile.polyVert(poly, 0)
		v1 := tile.polyVert(poly, 1)
		_, t := DtDistancePtSegSqr2D(pos, v0, v1)
		return v0[1] + (v1[1]-v0[1])*t, DT_SUCCESS
	}

	if h, ok := q.m_nav.GetPolyHeight(tile, q.m_nav.DecodePolyIdPoly(ref), pos); ok {
		return h, DT_SUCCESS
	}
	return 0, DT_FAILURE | DT_INVALID_PARAM
}

// / Returns portal points between two polygons.
func (q *DtNavMeshQuery) getPortalPoints(from, to DtPolyRef) (left, right common.Vec3, fromType, toType uint8, status DtStatus) {
	fromTile, fromPoly, status := q.m_nav.GetTileAndPolyByRef(from)
	if status.Failed() {
		return left, right, 0, 0, status
	}
	fromType = fromPoly.GetType()

	toTile, toPoly, status := q.m_nav.GetTileAndPolyByRef(to)
	if status.Failed() {
		return left, right, fromType, 0, status
	}
	toType = toPoly.GetType()

	left, right, status = q.getPortalPointsOf(from, fromPoly, fromTile, to, toPoly, toTile)
	return left, right, fromType, toType, status
}

// getPortalPointsOf returns the portal between two resolved polygons. Off-mesh
// connections collapse the portal to the connection end point.
func (q *DtNavMeshQuery) getPortalPointsOf(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile,
	to DtPolyRef, toPoly *DtPoly, toTile *DtMeshTile) (left, right common.Vec3, status DtStatus) {
	// Find the link that points to the 'to' polygon.
	var link *DtLink
	for i := fromPoly.FirstLink; i != DT_NULL_LINK; i = fromTile.Links[i].Next {
		if fromTile.Links[i].Ref == to {
			link = &fromTile.Links[i]
			break
		}
	}
	if link == nil {
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}

	// Handle off-mesh connections.
	if fromPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		// Find link that points to first vertex.
		for i := fromPoly.FirstLink; i != DT_NULL_LINK; i = fromTile.Links[i].Next {
			if fromTile.Links[i].Ref == to {
				v := fromTile.polyVert(fromPoly, int(fromTile.Links[i].Edge))
				return v, v, DT_SUCCESS
			}
		}
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}

	if toPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		for i := toPoly.FirstLink; i != DT_NULL_LINK; i = toTile.Links[i].Next {
			if toTile.Links[i].Ref == from {
				v := toTile.polyVert(toPoly, int(toTile.Links[i].Edge))
				return v, v, DT_SUCCESS
			}
		}
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}

	// Find portal vertices.
	v0 := fromTile.polyVert(fromPoly, int(link.Edge))
	v1 := fromTile.polyVert(fromPoly, (int(link.Edge)+1)%int(fromPoly.VertCount))
	left = v0
	right = v1

	// If the link is at tile boundary, dtClamp the vertices to
	// the link width.
	if link.Side != 0xff {
		// Unpack portal limits.
		if link.Bmin != 0 || link.Bmax != 255 {
			s := float32(1.0 / 255.0)
			tmin := float32(link.Bmin) * s
			tmax := float32(link.Bmax) * s
			left = common.Vlerp(v0, v1, tmin)
			right = common.Vlerp(v0, v1, tmax)
		}
	}
	return left, right, DT_SUCCESS
}

// / Returns edge mid point between two polygons.
func (q *DtNavMeshQuery) getEdgeMidPoint(from, to DtPolyRef) (mid common.Vec3, status DtStatus) {
	left, right, _, _, status := q.getPortalPoints(from, to)
	if status.Failed() {
		return mid, status
	}
	return left.Add(right).Mul(0.5), DT_SUCCESS
}

func (q *DtNavMeshQuery) getEdgeMidPointOf(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile,
	to DtPolyRef, toPoly *DtPoly, toTile *DtMeshTile) (mid common.Vec3, status DtStatus) {
	left, right, status := q.getPortalPointsOf(from, fromPoly, fromTile, to, toPoly, toTile)
	if status.Failed() {
		return mid, status
	}
	return left.Add(right).Mul(0.5), DT_SUCCESS
}

// / Provides custom polygon query behavior.
// / Used by DtNavMeshQuery::QueryPolygons.
type dtPolyQuery interface {
	/// Called for each batch of unique polygons touched by the search area in DtNavMeshQuery::QueryPolygons.
	/// This can be called multiple times for a single query.
	process(tile *DtMeshTile, refs []DtPolyRef)
}

type dtFindNearestPolyQuery struct {
	m_query              *DtNavMeshQuery
	m_center             common.Vec3
	m_nearestDistanceSqr float32
	m_nearestRef         DtPolyRef
	m_nearestPoint       common.Vec3
	m_overPoly           bool
}

func newDtFindNearestPolyQuery(query *DtNavMeshQuery, center common.Vec3) *dtFindNearestPolyQuery {
	return &dtFindNearestPolyQuery{
		m_query:              query,
		m_center:             center,
		m_nearestDistanceSqr: math.MaxFloat32,
	}
}

func (query *dtFindNearestPolyQuery) process(tile *DtMeshTile, refs []DtPolyRef) {
	for _, ref := range refs {
		closestPtPoly, posOverPoly := query.m_query.m_nav.ClosestPointOnPoly(ref, query.m_center)

		// If a point is directly over a polygon and closer than
		// climb height, favor that instead of straight line nearest point.
		diff := query.m_center.Sub(closestPtPoly)
		var d float32
		if posOverPoly {
			d = common.Abs(diff[1]) - tile.Header.WalkableClimb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = diff.Dot(diff)
		}

		if d < query.m_nearestDistanceSqr {
			query.m_nearestPoint = closestPtPoly
			query.m_nearestDistanceSqr = d
			query.m_nearestRef = ref
			query.m_overPoly = posOverPoly
		}
	}
}

type dtCollectPolysQuery struct {
	m_polys    []DtPolyRef
	m_maxPolys int
	m_overflow bool
}

func (query *dtCollectPolysQuery) process(_ *DtMeshTile, refs []DtPolyRef) {
	numLeft := query.m_maxPolys - len(query.m_polys)
	toCopy := len(refs)
	if toCopy > numLeft {
		query.m_overflow = true
		toCopy = numLeft
	}
	query.m_polys = append(query.m_polys, refs[:toCopy]...)
}

// queryPolygonsInTile hands the filtered polygons of tile overlapping the box
// to query in batches.
func (q *DtNavMeshQuery) queryPolygonsInTile(tile *DtMeshTile, qmin, qmax common.Vec3, filter DtQueryFilter, query dtPolyQuery) {
	var batch [dtPolyQueryBatch]DtPolyRef
	n := 0
	for _, ref := range q.m_nav.queryPolygonsInTile(tile, qmin, qmax, math.MaxInt32) {
		poly := &tile.Polys[q.m_nav.DecodePolyIdPoly(ref)]
		if !filter.PassFilter(ref, tile, poly) {
			continue
		}
		batch[n] = ref
		n++
		if n == dtPolyQueryBatch {
			query.process(tile, batch[:n])
			n = 0
		}
	}
	// Process the last polygons that didn't make a full batch.
	if n > 0 {
		query.process(tile, batch[:n])
	}
}

// queryPolygons runs query over every tile the box touches.
func (q *DtNavMeshQuery) queryPolygons(center, halfExtents common.Vec3, filter DtQueryFilter, query dtPolyQuery) DtStatus {
	if !common.Visfinite(center) || !common.Visfinite(halfExtents) || filter == nil ||
		halfExtents[0] < 0 || halfExtents[1] < 0 || halfExtents[2] < 0 {
		return DT_FAILURE | DT_INVALID_PARAM
	}

	bmin := center.Sub(halfExtents)
	bmax := center.Add(halfExtents)

	// Find tiles the query touches.
	minx, miny := q.m_nav.CalcTileLoc(bmin)
	maxx, maxy := q.m_nav.CalcTileLoc(bmax)

	for y := miny; y <= maxy; y++ {
		for x := minx; x <= maxx; x++ {
			for _, tile := range q.m_nav.GetTilesAt(x, y, dtMaxNeis) {
				q.queryPolygonsInTile(tile, bmin, bmax, filter, query)
			}
		}
	}
	return DT_SUCCESS
}

// / @par
// /
// / If no polygons are found, the function will return #DT_SUCCESS with an
// / empty result.
// /
// / If the result does not fit in maxPolys the status carries #DT_BUFFER_TOO_SMALL.
func (q *DtNavMeshQuery) QueryPolygons(center, halfExtents common.Vec3, filter DtQueryFilter, maxPolys int) ([]DtPolyRef, DtStatus) {
	if maxPolys < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	collector := &dtCollectPolysQuery{m_maxPolys: maxPolys}
	status := q.queryPolygons(center, halfExtents, filter, collector)
	if status.Failed() {
		return nil, status
	}
	if collector.m_overflow {
		status |= DT_BUFFER_TOO_SMALL
	}
	return collector.m_polys, status
}

// / @par
// /
// / @note If the search box does not intersect any polygons the search will
// / return #DT_SUCCESS, but @p nearestRef will be zero. So if in doubt, check
// / @p nearestRef before using @p nearestPt.
// /
func (q *DtNavMeshQuery) FindNearestPoly(center, halfExtents common.Vec3, filter DtQueryFilter) (nearestRef DtPolyRef, nearestPt common.Vec3, isOverPoly bool, status DtStatus) {
	query := newDtFindNearestPolyQuery(q, center)
	status = q.queryPolygons(center, halfExtents, filter, query)
	if status.Failed() {
		return 0, nearestPt, false, status
	}
	// Only override nearestPt if we actually found a poly so the nearest point
	// is valid.
	if query.m_nearestRef != 0 {
		nearestPt = query.m_nearestPoint
		isOverPoly = query.m_overPoly
	}
	return query.m_nearestRef, nearestPt, isOverPoly, DT_SUCCESS
}

// / Returns true if the polygon reference is valid and passes the filter restrictions.
// /  @param[in]		ref			The polygon reference to check.
// /  @param[in]		filter		The filter to apply.
func (q *DtNavMeshQuery) IsValidPolyRef(ref DtPolyRef, filter DtQueryFilter) bool {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	// If cannot get polygon, assume it does not exists and boundary is invalid.
	if status.Failed() {
		return false
	}
	// If cannot pass filter, assume flags has changed and boundary is invalid.
	if filter != nil && !filter.PassFilter(ref, tile, poly) {
		return false
	}
	return true
}

// / @par
// /
// / The closed list is the list of polygons that were fully evaluated during
// / the last navigation graph search. (A* or Dijkstra)
// /
func (q *DtNavMeshQuery) IsInClosedList(ref DtPolyRef) bool {
	for _, node := range q.m_nodePool.FindNodes(ref, DT_MAX_STATES_PER_NODE) {
		if node.Flags&DT_NODE_CLOSED != 0 {
			return true
		}
	}
	return false
}
