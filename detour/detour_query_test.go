package detour

import (
	"testing"

	"github.com/gorustyt/navquery/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNavMeshQueryRejectsBadInput(t *testing.T) {
	_, status := NewDtNavMeshQuery(nil, 16)
	assert.True(t, status.Detail(DT_INVALID_PARAM))

	w := NewDtGridWorld(1, 1, 2)
	nav, err := w.Build()
	require.NoError(t, err)
	_, status = NewDtNavMeshQuery(nav, 0)
	assert.True(t, status.Failed())

	q, status := NewDtNavMeshQuery(nav, 100)
	require.True(t, status.Succeed())
	assert.Same(t, nav, q.GetAttachedNavMesh())
	assert.EqualValues(t, 100, q.GetNodePool().GetMaxNodes())
}

func TestFindNearestPoly(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	w.Block(DtGridCell{3, 3})
	nav, q := buildGrid(t, w)
	filter := NewDtQueryFilter()

	cell := DtGridCell{2, 1}
	center := w.CellCenter(cell).Add(common.Vec3{0, 0.3, 0})
	ref, pt, over, status := q.FindNearestPoly(center, common.Vec3{0.1, 1, 0.1}, filter)
	require.True(t, status.Succeed())
	assert.Equal(t, w.PolyRefAt(nav, cell), ref)
	assert.True(t, over)
	assert.InDelta(t, 2.5, pt[0], 1e-4)
	assert.InDelta(t, 0, pt[1], 1e-4)
	assert.InDelta(t, 1.5, pt[2], 1e-4)

	// Off the mesh edge the point is clamped onto the border.
	ref, pt, over, status = q.FindNearestPoly(common.Vec3{-0.5, 0, 0.5}, common.Vec3{1, 1, 1}, filter)
	require.True(t, status.Succeed())
	assert.Equal(t, w.PolyRefAt(nav, DtGridCell{0, 0}), ref)
	assert.False(t, over)
	assert.InDelta(t, 0, pt[0], 1e-4)

	// Nothing within reach inside a large hole.
	holed := NewDtGridWorld(1, 1, 5)
	for x := 1; x <= 3; x++ {
		for z := 1; z <= 3; z++ {
			holed.Block(DtGridCell{x, z})
		}
	}
	_, q = buildGrid(t, holed)
	ref, _, _, status = q.FindNearestPoly(holed.CellCenter(DtGridCell{2, 2}), common.Vec3{0.1, 1, 0.1}, filter)
	assert.True(t, status.Succeed())
	assert.Zero(t, ref)
}

func TestQueryPolygons(t *testing.T) {
	w := NewDtGridWorld(2, 2, 2)
	_, q := buildGrid(t, w)
	filter := NewDtQueryFilter()

	all, status := q.QueryPolygons(common.Vec3{2, 0, 2}, common.Vec3{3, 1, 3}, filter, 64)
	require.True(t, status.Succeed())
	assert.Len(t, all, 16)
	assert.False(t, status.Detail(DT_BUFFER_TOO_SMALL))

	some, status := q.QueryPolygons(common.Vec3{2, 0, 2}, common.Vec3{3, 1, 3}, filter, 5)
	require.True(t, status.Succeed())
	assert.Len(t, some, 5)
	assert.True(t, status.Detail(DT_BUFFER_TOO_SMALL))

	// A small box around one cell center.
	one, status := q.QueryPolygons(common.Vec3{0.5, 0, 0.5}, common.Vec3{0.1, 1, 0.1}, filter, 64)
	require.True(t, status.Succeed())
	assert.Len(t, one, 1)

	_, status = q.QueryPolygons(common.Vec3{0.5, 0, 0.5}, common.Vec3{0.1, 1, 0.1}, nil, 64)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
}

func TestQueryPolygonsBVTreeMatchesBruteForce(t *testing.T) {
	withTree := NewDtGridWorld(1, 1, 5)
	withTree.Block(DtGridCell{2, 2})
	flat := NewDtGridWorld(1, 1, 5)
	flat.Block(DtGridCell{2, 2})
	flat.BuildBvTree = false

	_, q1 := buildGrid(t, withTree)
	_, q2 := buildGrid(t, flat)
	filter := NewDtQueryFilter()
	for _, box := range []struct{ c, h common.Vec3 }{
		{common.Vec3{1, 0, 1}, common.Vec3{0.7, 1, 0.7}},
		{common.Vec3{2.5, 0, 2.5}, common.Vec3{1, 1, 0.2}},
		{common.Vec3{4.9, 0, 0.1}, common.Vec3{0.05, 1, 0.05}},
	} {
		a, status := q1.QueryPolygons(box.c, box.h, filter, 64)
		require.True(t, status.Succeed())
		b, status := q2.QueryPolygons(box.c, box.h, filter, 64)
		require.True(t, status.Succeed())
		// The quantized tree may report extra touching polygons, never fewer.
		assert.NotEmpty(t, b)
		assert.Subset(t, a, b, "%v", box)
	}
}

func TestQueryFilterFlags(t *testing.T) {
	w := NewDtGridWorld(1, 1, 2)
	nav, q := buildGrid(t, w)
	ref := w.PolyRefAt(nav, DtGridCell{0, 0})

	filter := NewDtQueryFilter()
	assert.True(t, q.IsValidPolyRef(ref, filter))

	filter.SetExcludeFlags(DT_GRID_POLYFLAGS_WALK)
	assert.False(t, q.IsValidPolyRef(ref, filter))
	found, _, _, status := q.FindNearestPoly(w.CellCenter(DtGridCell{0, 0}), common.Vec3{0.1, 1, 0.1}, filter)
	assert.True(t, status.Succeed())
	assert.Zero(t, found)

	filter = NewDtQueryFilter()
	filter.SetIncludeFlags(0x10)
	assert.False(t, q.IsValidPolyRef(ref, filter))
	require.True(t, nav.SetPolyFlags(ref, 0x11).Succeed())
	assert.True(t, q.IsValidPolyRef(ref, filter))

	filter.SetAreaCost(3, -2)
	assert.Zero(t, filter.GetAreaCost(3))
	assert.EqualValues(t, 1, filter.GetAreaCost(0))
}

func TestClosestPointOnPoly(t *testing.T) {
	w := NewDtGridWorld(1, 1, 2)
	w.Height = 1.5
	nav, q := buildGrid(t, w)
	ref := w.PolyRefAt(nav, DtGridCell{1, 0})

	pt, over, status := q.ClosestPointOnPoly(ref, common.Vec3{1.25, 3, 0.75})
	require.True(t, status.Succeed())
	assert.True(t, over)
	assert.InDelta(t, 1.5, pt[1], 1e-4)
	assert.InDelta(t, 1.25, pt[0], 1e-4)

	pt, over, status = q.ClosestPointOnPoly(ref, common.Vec3{3, 0, 0.5})
	require.True(t, status.Succeed())
	assert.False(t, over)
	assert.InDelta(t, 2, pt[0], 1e-4)

	pt, status = q.ClosestPointOnPolyBoundary(ref, common.Vec3{5, 0, 0.5})
	require.True(t, status.Succeed())
	assert.InDelta(t, 2, pt[0], 1e-4)
	assert.InDelta(t, 0.5, pt[2], 1e-4)

	// A point inside is returned as is.
	pt, status = q.ClosestPointOnPolyBoundary(ref, common.Vec3{1.5, 0, 0.5})
	require.True(t, status.Succeed())
	assert.InDelta(t, 1.5, pt[0], 1e-4)

	h, status := q.GetPolyHeight(ref, common.Vec3{1.5, 0, 0.5})
	require.True(t, status.Succeed())
	assert.InDelta(t, 1.5, h, 1e-4)

	_, status = q.GetPolyHeight(ref, common.Vec3{5, 0, 0.5})
	assert.True(t, status.Failed())

	_, _, status = q.ClosestPointOnPoly(0, common.Vec3{})
	assert.True(t, status.Failed())
}
