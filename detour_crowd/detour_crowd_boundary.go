package detour_crowd

import (
	"math"

	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/detour"
)

const (
	DT_LOCAL_MAX_SEGS  = 8
	DT_LOCAL_MAX_POLYS = 16
)

// DtBoundarySegment is a wall piece near the boundary center.
type DtBoundarySegment struct {
	Start, End common.Vec3
	d          float32 ///< Distance for pruning.
}

// DtLocalBoundary caches the walls around an agent: the polygons of the local
// neighbourhood and their nearest wall segments, ordered by distance.
type DtLocalBoundary struct {
	m_center common.Vec3
	m_segs   []DtBoundarySegment
	m_polys  []detour.DtPolyRef
}

func NewDtLocalBoundary() *DtLocalBoundary {
	d := &DtLocalBoundary{
		m_segs: make([]DtBoundarySegment, 0, DT_LOCAL_MAX_SEGS),
	}
	d.Reset()
	return d
}

func (d *DtLocalBoundary) GetCenter() common.Vec3 { return d.m_center }
func (d *DtLocalBoundary) GetSegmentCount() int { return len(d.m_segs) }
func (d *DtLocalBoundary) GetSegment(i int) DtBoundarySegment { return d.m_segs[i] }
func (d *DtLocalBoundary) GetPolys() []detour.DtPolyRef { return d.m_polys }
func (d *DtLocalBoundary) GetSegmentDistSqr(i int) float32 { return d.m_segs[i].d }

func (d *DtLocalBoundary) Reset() {
	d.m_center = common.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	d.m_polys = nil
	d.m_segs = d.m_segs[:0]
}

// addSegment keeps the DT_LOCAL_MAX_SEGS nearest segments sorted by distance.
func (d *DtLocalBoundary) addSegment(dist float32, start, end common.Vec3) {
	// Insert neighbour based on the distance.
	i := len(d.m_segs)
	for i > 0 && dist < d.m_segs[i-1].d {
		i--
	}
	// Further than the last segment, skip.
	if i >= DT_LOCAL_MAX_SEGS {
		return
	}
	if len(d.m_segs) < DT_LOCAL_MAX_SEGS {
		d.m_segs = append(d.m_segs, DtBoundarySegment{})
	}
	copy(d.m_segs[i+1:], d.m_segs[i:len(d.m_segs)-1])
	d.m_segs[i] = DtBoundarySegment{Start: start, End: end, d: dist}
}

// Update collects the walls within collisionQueryRange of pos, searching the
// local neighbourhood of ref. A zero ref clears the boundary.
func (d *DtLocalBoundary) Update(ref detour.DtPolyRef, pos common.Vec3, collisionQueryRange float32,
	navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) detour.DtStatus {
	const MAX_SEGS_PER_POLY = detour.DT_VERTS_PER_POLYGON * 3

	d.Reset()
	if ref == 0 {
		return detour.DT_SUCCESS
	}

	// First query non-overlapping polygons.
	polys, _, status := navquery.FindLocalNeighbourhood(ref, pos, collisionQueryRange, filter, DT_LOCAL_MAX_POLYS)
	if status.Failed() {
		return status
	}
	d.m_center = pos
	d.m_polys = polys

	// Secondly, store all polygon edges.
	rangeSqr := common.Sqr(collisionQueryRange)
	for _, poly := range polys {
		segs, _ := navquery.GetPolyWallSegments(poly, filter, false, MAX_SEGS_PER_POLY)
		for _, s := range segs {
			// Skip too distant segments.
			distSqr, _ := detour.DtDistancePtSegSqr2D(pos, s.Start, s.End)
			if distSqr > rangeSqr {
				continue
			}
			d.addSegment(distSqr, s.Start, s.End)
		}
	}
	return status
}

// IsValid reports whether every cached polygon still exists and passes filter.
func (d *DtLocalBoundary) IsValid(navquery *detour.DtNavMeshQuery, filter detour.DtQueryFilter) bool {
	if len(d.m_polys) == 0 {
		return false
	}
	// Check that all polygons still pass query filter.
	for _, ref := range d.m_polys {
		if !navquery.IsValidPolyRef(ref, filter) {
			return false
		}
	}
	return true
}
