package detour_crowd

import (
	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/detour"
)

const (
	DT_CORRIDOR_MAX_VISITED  = 16
	DT_CORRIDOR_MAX_RES      = 32
	DT_CORRIDOR_MAX_ITER     = 32
	dtCorridorMinTargetDist  = 0.01
	dtCorridorMinVisibleDist = 0.01
)

// dtFurthestCommon returns the index pair of a polygon shared by path and
// visited, scanning path backwards when fromEnd is set and forwards otherwise.
// For each path polygon the earliest visited index wins.
func dtFurthestCommon(path, visited []detour.DtPolyRef, fromEnd bool) (furthestPath, furthestVisited int) {
	furthestPath, furthestVisited = -1, -1
	match := func(i int) bool {
		for j := len(visited) - 1; j >= 0; j-- {
			if path[i] == visited[j] {
				furthestPath = i
				furthestVisited = j
			}
		}
		return furthestPath == i
	}
	if fromEnd {
		for i := len(path) - 1; i >= 0; i-- {
			if match(i) {
				return
			}
		}
		return
	}
	for i := range path {
		if match(i) {
			return
		}
	}
	return
}

// DtMergeCorridorStartMoved replaces the head of path with the polygons an
// agent walked through. visited runs from the old first polygon to the new
// one. The result never holds more than maxPath polygons.
func DtMergeCorridorStartMoved(path []detour.DtPolyRef, maxPath int, visited []detour.DtPolyRef) []detour.DtPolyRef {
	fp, fv := dtFurthestCommon(path, visited, true)
	// If no intersection found just return current path.
	if fp == -1 {
		return path
	}

	res := make([]detour.DtPolyRef, 0, maxPath)
	for i := len(visited) - 1; i >= fv && len(res) < maxPath; i-- {
		res = append(res, visited[i])
	}
	for _, ref := range path[fp+1:] {
		if len(res) >= maxPath {
			break
		}
		res = append(res, ref)
	}
	return res
}

// DtMergeCorridorEndMoved appends the polygons the target walked through to
// the tail of path.
func DtMergeCorridorEndMoved(path []detour.DtPolyRef, maxPath int, visited []detour.DtPolyRef) []detour.DtPolyRef {
	fp, fv := dtFurthestCommon(path, visited, false)
	if fp == -1 {
		return path
	}

	res := make([]detour.DtPolyRef, 0, maxPath)
	res = append(res, path[:min(fp+1, maxPath)]...)
	for _, ref := range visited[fv+1:] {
		if len(res) >= maxPath {
			break
		}
		res = append(res, ref)
	}
	return res
}

// DtMergeCorridorStartShortcut replaces the head of path up to the furthest
// polygon it shares with visited, where visited starts at the current first
// polygon.
func DtMergeCorridorStartShortcut(path []detour.DtPolyRef, maxPath int, visited []detour.DtPolyRef) []detour.DtPolyRef {
	fp, fv := dtFurthestCommon(path, visited, true)
	// A shortcut must skip at least one polygon.
	if fp == -1 || fv <= 0 {
		return path
	}

	res := make([]detour.DtPolyRef, 0, maxPath)
	res = append(res, visited[:min(fv, maxPath)]...)
	for _, ref := range path[fp:] {
		if len(res) >= maxPath {
			break
		}
		res = append(res, ref)
	}
	return res
}

// DtPathCorridor is the polygon corridor an agent follows toward its target.
//
// Load it with a path from DtNavMeshQuery.FindPath or a DtPathQueue result,
// then alternate FindCorners to steer and MovePosition to feed the actual
// movement back. The corridor trims and extends itself as the agent drifts,
// so the position always lies in the first polygon and the target in the
// last one. Large moves may leave the corridor non-optimal; run
// OptimizePathVisibility and OptimizePathTopology now and then, and replan
// when GetLastPoly is not the polygon expected.
type DtPathCorridor struct {
	m_pos     common.Vec3
	m_target  common.Vec3
	m_path    []detour.DtPolyRef
	m_maxPath int
}

func NewDtPathCorridor(maxPath int) *DtPathCorridor {
	return &DtPathCorridor{
		m_path:    make([]detour.DtPolyRef, 0, maxPath),
		m_maxPath: maxPath,
	}
}

// / Gets the current position within the corridor. (In the first polygon.)
func (d *DtPathCorridor) GetPos() common.Vec3 { return d.m_pos }

// / Gets the current target within the corridor. (In the last polygon.)
func (d *DtPathCorridor) GetTarget() common.Vec3 { return d.m_target }

// / The polygon containing the position, or zero without a path.
func (d *DtPathCorridor) GetFirstPoly() detour.DtPolyRef {
	if len(d.m_path) > 0 {
		return d.m_path[0]
	}
	return 0
}

// / The polygon containing the target, or zero without a path.
func (d *DtPathCorridor) GetLastPoly() detour.DtPolyRef {
	if len(d.m_path) > 0 {
		return d.m_path[len(d.m_path)-1]
	}
	return 0
}

func (d *DtPathCorridor) GetPath() []detour.DtPolyRef { return d.m_path }
func (d *DtPathCorridor) GetPathCount() int          { return len(d.m_path) }
func (d *DtPathCorridor) GetMaxPath() int            { return d.m_maxPath }

// Reset collapses the corridor to the single polygon ref, with the target
// equal to the position.
func (d *DtPathCorridor) Reset(ref detour.DtPolyRef, pos common.Vec3) {
	d.m_pos = pos
	d.m_target = pos
	d.m_path = append(d.m_path[:0], ref)
}

// SetCorridor loads a new path. The position is expected in path[0] and the
// target in the last polygon. Polygons beyond the corridor size are dropped.
func (d *DtPathCorridor) SetCorridor(target common.Vec3, path []detour.DtPolyRef) {
	d.m_target = target
	if len(path) > d.m_maxPath {
		path = path[:d.m_maxPath]
	}
	d.m_path = append(d.m_path[:0], path...)
}

// FindCorners returns the next straight path vertices from the position
// toward the target, at most maxCorners of them. Vertices closer than a
// centimetre to the position are pruned and the list stops at the first
// off-mesh connection. When the target is in range it is the last corner and
// carries a zero ref.
func (d *DtPathCorridor) FindCorners(maxCorners int, navquery *detour.DtNavMeshQuery,
	filter detour.DtQueryFilter) []detour.DtStraightPathPoint {
	if len(d.m_path) == 0 {
		return nil
	}
	corners, status := navquery.FindStraightPath(d.m_pos, d.m_target, d.m_path, maxCorners, 0)
	if status.Failed() {
		return nil
	}

	// Prune points in the beginning of the path which are too close.
	for len(corners) > 0 {
		if corners[0].Flags&detour.DT_STRAIGHTPATH_OFFMESH_CONNECTION != 0 ||
			common.Vdist2DSqr(corners[0].Pos, d.m_pos) > common.Sqr(float32(dtCorridorMinTargetDist)) {
			break
		}
		corners = corners[1:]
	}

	// Prune points after an off-mesh connection.
	for i := range corners {
		if corners[i].Flags&detour.DT_STRAIGHTPATH_OFFMESH_CONNECTION != 0 {
			corners = corners[:i+1]
			break
		}
	}
	return corners
}

// OptimizePathVisibility casts a ray from the position toward next, clamped
// to pathOptimizationRange, and shortcuts the corridor head when next is
// visible. Suited to short ranges only.
func (d *DtPathCorridor) OptimizePathVisibility(next common.Vec3, pathOptimizationRange float32,
	navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) {
	if len(d.m_path) == 0 {
		return
	}
	// Clamp the ray to max distance.
	dist := common.Vdist2D(d.m_pos, next)
	// If too close to the goal, do not try to optimize.
	if dist < dtCorridorMinVisibleDist {
		return
	}
	// Overshoot a little. This helps to optimize open fields in tiled meshes.
	dist = min(dist+0.01, pathOptimizationRange)
	goal := common.Vmad(d.m_pos, next.Sub(d.m_pos), pathOptimizationRange/dist)

	hit, status := navquery.Raycast(d.m_path[0], d.m_pos, goal, filter, 0, 0, DT_CORRIDOR_MAX_RES)
	if status.Failed() {
		return
	}
	if len(hit.Path) > 1 && hit.T > 0.99 {
		d.m_path = DtMergeCorridorStartShortcut(d.m_path, d.m_maxPath, hit.Path)
	}
}

// OptimizePathTopology runs a small sliced search from the position to the
// target and splices the best partial result into the corridor head.
// It reports whether the corridor was replaced. The search shares navquery,
// so any sliced query in progress on it is abandoned.
func (d *DtPathCorridor) OptimizePathTopology(navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) bool {
	if len(d.m_path) < 3 {
		return false
	}

	status := navquery.InitSlicedFindPath(d.m_path[0], d.m_path[len(d.m_path)-1], d.m_pos, d.m_target, filter, 0)
	if status.Failed() {
		return false
	}
	navquery.UpdateSlicedFindPath(DT_CORRIDOR_MAX_ITER)
	res, status := navquery.FinalizeSlicedFindPathPartial(d.m_path, DT_CORRIDOR_MAX_RES)
	if status.Succeed() && len(res) > 0 {
		d.m_path = DtMergeCorridorStartShortcut(d.m_path, d.m_maxPath, res)
		return true
	}
	return false
}

// MoveOverOffmeshConnection advances the corridor over the off-mesh
// connection offMeshConRef, which must follow a polygon of the corridor and be
// followed by its landing polygon. It returns the polygon before the
// connection and the connection itself, with the connection's end points
// in travel order; the position jumps to the end point.
func (d *DtPathCorridor) MoveOverOffmeshConnection(offMeshConRef detour.DtPolyRef,
	navquery *detour.DtNavMeshQuery) (refs [2]detour.DtPolyRef, startPos, endPos common.Vec3, ok bool) {
	// Advance the path up to and over the off-mesh connection.
	idx := -1
	for i, ref := range d.m_path {
		if ref == offMeshConRef {
			idx = i
			break
		}
	}
	if idx < 1 || idx+1 >= len(d.m_path) {
		// Could not find offMeshConRef
		return refs, startPos, endPos, false
	}

	refs[0] = d.m_path[idx-1]
	refs[1] = offMeshConRef
	startPos, endPos, status := navquery.GetAttachedNavMesh().GetOffMeshConnectionPolyEndPoints(refs[0], refs[1])
	if status.Failed() {
		return refs, startPos, endPos, false
	}

	// Prune path
	d.m_path = append(d.m_path[:0], d.m_path[idx+1:]...)
	d.m_pos = endPos
	return refs, startPos, endPos, true
}

// MovePosition slides the position toward npos along the mesh surface and
// adjusts the corridor head to the polygons crossed. The result differs
// from npos when npos is off the mesh or beyond a local search.
func (d *DtPathCorridor) MovePosition(npos common.Vec3, navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) bool {
	if len(d.m_path) == 0 {
		return false
	}
	// Move along navmesh and update new position.
	result, visited, status := navquery.MoveAlongSurface(d.m_path[0], d.m_pos, npos, filter, DT_CORRIDOR_MAX_VISITED)
	if status.Failed() {
		return false
	}
	d.m_path = DtMergeCorridorStartMoved(d.m_path, d.m_maxPath, visited)

	// Adjust the position to stay on top of the navmesh.
	if h, hs := navquery.GetPolyHeight(d.m_path[0], result); hs.Succeed() {
		result[1] = h
	}
	d.m_pos = result
	return true
}

// MoveTargetPosition slides the target toward npos and extends or trims the
// corridor tail to match.
func (d *DtPathCorridor) MoveTargetPosition(npos common.Vec3, navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) bool {
	if len(d.m_path) == 0 {
		return false
	}
	result, visited, status := navquery.MoveAlongSurface(d.m_path[len(d.m_path)-1], d.m_target, npos, filter, DT_CORRIDOR_MAX_VISITED)
	if status.Failed() {
		return false
	}
	d.m_path = DtMergeCorridorEndMoved(d.m_path, d.m_maxPath, visited)
	d.m_target = result
	return true
}

// FixPathStart puts the position back to a known safe spot. The polygon
// after safeRef is set to zero so the corridor fails IsValid and gets
// replanned, while the last polygon is kept.
func (d *DtPathCorridor) FixPathStart(safeRef detour.DtPolyRef, safePos common.Vec3) bool {
	if len(d.m_path) == 0 || d.m_maxPath < 3 {
		return false
	}
	d.m_pos = safePos
	if len(d.m_path) < 3 {
		last := d.m_path[len(d.m_path)-1]
		d.m_path = append(d.m_path[:0], safeRef, 0, last)
	} else {
		d.m_path[0] = safeRef
		d.m_path[1] = 0
	}
	return true
}

// TrimInvalidPath cuts the corridor at the first polygon that is gone or
// filtered out and clamps the target onto the new last polygon. When the
// first polygon itself is invalid the corridor restarts at safeRef.
func (d *DtPathCorridor) TrimInvalidPath(safeRef detour.DtPolyRef, safePos common.Vec3,
	navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) bool {
	// Keep valid path as far as possible.
	n := 0
	for n < len(d.m_path) && navquery.IsValidPolyRef(d.m_path[n], filter) {
		n++
	}

	switch {
	case n == len(d.m_path) && n > 0:
		// All valid, no need to fix.
		return true
	case n == 0:
		// The first polyref is bad, use current safe values.
		d.m_pos = safePos
		d.m_path = append(d.m_path[:0], safeRef)
	default:
		// The path is partially usable.
		d.m_path = d.m_path[:n]
	}

	// Clamp target pos to last poly
	if tgt, status := navquery.ClosestPointOnPolyBoundary(d.GetLastPoly(), d.m_target); status.Succeed() {
		d.m_target = tgt
	}
	return true
}

// IsValid checks that the first maxLookAhead polygons still exist and pass
// filter. Tile removal or flag changes invalidate a corridor.
func (d *DtPathCorridor) IsValid(maxLookAhead int, navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) bool {
	n := min(len(d.m_path), maxLookAhead)
	for i := 0; i < n; i++ {
		if !navquery.IsValidPolyRef(d.m_path[i], filter) {
			return false
		}
	}
	return true
}
