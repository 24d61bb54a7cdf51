package detour

import "github.com/gorustyt/navquery/common"

// DtQueryFilter decides which polygons a query may visit and what it costs to
// move across them. GetCost must never return a negative value.
type DtQueryFilter interface {
	/// Returns true if the polygon can be visited.  (I.e. Is traversable.)
	PassFilter(ref DtPolyRef, tile *DtMeshTile, poly *DtPoly) bool

	/// Returns cost to move from the beginning to the end of a line segment
	/// that is fully contained within a polygon.
	///  @param[in]		pa			The start position on the edge of the previous and current polygon. [(x, y, z)]
	///  @param[in]		pb			The end position on the edge of the current and next polygon. [(x, y, z)]
	///  @param[in]		prevRef		The reference id of the previous polygon. [opt]
	///  @param[in]		curRef		The reference id of the current polygon.
	///  @param[in]		nextRef		The reference id of the next polygon. [opt]
	GetCost(pa, pb common.Vec3,
		prevRef DtPolyRef, prevTile *DtMeshTile, prevPoly *DtPoly,
		curRef DtPolyRef, curTile *DtMeshTile, curPoly *DtPoly,
		nextRef DtPolyRef, nextTile *DtMeshTile, nextPoly *DtPoly) float32
}

// DtStandardQueryFilter filters on polygon flags and prices movement by
// distance times the per-area cost.
type DtStandardQueryFilter struct {
	m_areaCost     [DT_MAX_AREAS]float32 ///< Cost per area type. (Used by default implementation.)
	m_includeFlags uint16                ///< Flags for polygons that can be visited. (Used by default implementation.)
	m_excludeFlags uint16                ///< Flags for polygons that should not be visited. (Used by default implementation.)
}

// NewDtQueryFilter returns a filter that accepts every polygon at unit area cost.
func NewDtQueryFilter() *DtStandardQueryFilter {
	f := &DtStandardQueryFilter{m_includeFlags: 0xffff}
	for i := range f.m_areaCost {
		f.m_areaCost[i] = 1.0
	}
	return f
}

func (filter *DtStandardQueryFilter) PassFilter(_ DtPolyRef, _ *DtMeshTile, poly *DtPoly) bool {
	return (poly.Flags&filter.m_includeFlags) != 0 && (poly.Flags&filter.m_excludeFlags) == 0
}

func (filter *DtStandardQueryFilter) GetCost(pa, pb common.Vec3,
	_ DtPolyRef, _ *DtMeshTile, _ *DtPoly,
	_ DtPolyRef, _ *DtMeshTile, curPoly *DtPoly,
	_ DtPolyRef, _ *DtMeshTile, _ *DtPoly) float32 {
	return common.Vdist(pa, pb) * filter.m_areaCost[curPoly.GetArea()]
}

/// @name Getters and setters for the default implementation data.
///@{

// / Returns the traversal cost of the area.
func (filter *DtStandardQueryFilter) GetAreaCost(i int) float32 { return filter.m_areaCost[i] }

// / Sets the traversal cost of the area. Negative costs are clamped to zero.
func (filter *DtStandardQueryFilter) SetAreaCost(i int, cost float32) {
	filter.m_areaCost[i] = max(cost, 0)
}

func (filter *DtStandardQueryFilter) GetIncludeFlags() uint16 { return filter.m_includeFlags }

func (filter *DtStandardQueryFilter) SetIncludeFlags(flags uint16) { filter.m_includeFlags = flags }

func (filter *DtStandardQueryFilter) GetExcludeFlags() uint16 { return filter.m_excludeFlags }

func (filter *DtStandardQueryFilter) SetExcludeFlags(flags uint16) { filter.m_excludeFlags = flags }

///@}
