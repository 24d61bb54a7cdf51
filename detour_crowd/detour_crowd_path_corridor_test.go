package detour_crowd

import (
	"testing"

	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCorridorStartMoved(t *testing.T) {
	path := []detour.DtPolyRef{1, 2, 3, 4}

	// Moved off the corridor into polygon 5.
	assert.Equal(t, []detour.DtPolyRef{5, 1, 2, 3, 4}, DtMergeCorridorStartMoved(path, 8, []detour.DtPolyRef{1, 5}))
	assert.Equal(t, []detour.DtPolyRef{5, 1, 2}, DtMergeCorridorStartMoved(path, 3, []detour.DtPolyRef{1, 5}))
	// Moved along the corridor.
	assert.Equal(t, []detour.DtPolyRef{3, 4}, DtMergeCorridorStartMoved(path, 8, []detour.DtPolyRef{1, 2, 3}))
	// No common polygon.
	assert.Equal(t, path, DtMergeCorridorStartMoved(path, 8, []detour.DtPolyRef{7, 8}))
}

func TestMergeCorridorEndMoved(t *testing.T) {
	path := []detour.DtPolyRef{1, 2, 3}

	assert.Equal(t, []detour.DtPolyRef{1, 2, 3, 6, 7}, DtMergeCorridorEndMoved(path, 8, []detour.DtPolyRef{3, 6, 7}))
	assert.Equal(t, []detour.DtPolyRef{1, 2, 3, 6}, DtMergeCorridorEndMoved(path, 4, []detour.DtPolyRef{3, 6, 7}))
	// The target moved back into the corridor.
	assert.Equal(t, []detour.DtPolyRef{1, 2}, DtMergeCorridorEndMoved(path, 8, []detour.DtPolyRef{3, 2}))
	assert.Equal(t, path, DtMergeCorridorEndMoved(path, 8, []detour.DtPolyRef{9}))
}

func TestMergeCorridorStartShortcut(t *testing.T) {
	path := []detour.DtPolyRef{1, 2, 3, 4}

	assert.Equal(t, []detour.DtPolyRef{1, 7, 3, 4}, DtMergeCorridorStartShortcut(path, 8, []detour.DtPolyRef{1, 7, 3}))
	// Nothing skipped.
	assert.Equal(t, path, DtMergeCorridorStartShortcut(path, 8, []detour.DtPolyRef{1}))
	assert.Equal(t, path, DtMergeCorridorStartShortcut(path, 8, []detour.DtPolyRef{9, 8}))
}

func newCorridor(t *testing.T, w *detour.DtGridWorld, nav *detour.DtNavMesh, q *detour.DtNavMeshQuery, from, to detour.DtGridCell) *DtPathCorridor {
	t.Helper()
	path, status := q.FindPath(w.PolyRefAt(nav, from), w.PolyRefAt(nav, to), w.CellCenter(from), w.CellCenter(to), detour.NewDtQueryFilter(), 64)
	require.True(t, status.Succeed())
	c := NewDtPathCorridor(64)
	c.Reset(path[0], w.CellCenter(from))
	c.SetCorridor(w.CellCenter(to), path)
	return c
}

func TestPathCorridorMove(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 8)
	nav, q := buildGrid(t, w)
	filter := detour.NewDtQueryFilter()
	c := newCorridor(t, w, nav, q, cell(0, 0), cell(7, 0))
	require.Equal(t, 8, c.GetPathCount())

	// The start corner sits on the position and is pruned.
	corners := c.FindCorners(4, q, filter)
	require.Len(t, corners, 1)
	assert.EqualValues(t, detour.DT_STRAIGHTPATH_END, corners[0].Flags)
	assert.Zero(t, corners[0].Ref)
	assert.InDelta(t, 7.5, corners[0].Pos[0], 1e-4)

	require.True(t, c.MovePosition(common.Vec3{1.5, 0, 0.5}, q, filter))
	assert.InDelta(t, 1.5, c.GetPos()[0], 1e-4)
	assert.InDelta(t, 0.5, c.GetPos()[2], 1e-4)
	assert.Equal(t, w.PolyRefAt(nav, cell(1, 0)), c.GetFirstPoly())
	assert.Equal(t, 7, c.GetPathCount())

	require.True(t, c.MoveTargetPosition(common.Vec3{6.5, 0, 0.5}, q, filter))
	assert.InDelta(t, 6.5, c.GetTarget()[0], 1e-4)
	assert.Equal(t, w.PolyRefAt(nav, cell(6, 0)), c.GetLastPoly())
	assert.Equal(t, 6, c.GetPathCount())
	assert.True(t, c.IsValid(16, q, filter))
}

func TestPathCorridorCorners(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 3)
	w.Block(cell(1, 0), cell(1, 1))
	nav, q := buildGrid(t, w)
	filter := detour.NewDtQueryFilter()
	c := newCorridor(t, w, nav, q, cell(0, 0), cell(2, 0))

	corners := c.FindCorners(8, q, filter)
	require.Len(t, corners, 3)
	assert.InDelta(t, 1, corners[0].Pos[0], 1e-4)
	assert.InDelta(t, 2, corners[0].Pos[2], 1e-4)
	assert.EqualValues(t, detour.DT_STRAIGHTPATH_END, corners[2].Flags)

	// One slot goes to the pruned start.
	corners = c.FindCorners(2, q, filter)
	require.Len(t, corners, 1)
	assert.InDelta(t, 1, corners[0].Pos[0], 1e-4)

	assert.Empty(t, NewDtPathCorridor(8).FindCorners(8, q, filter))
}

// detourCorridor loads a corridor that goes around through the middle row of
// an open 3x3 grid.
func detourCorridor(w *detour.DtGridWorld, nav *detour.DtNavMesh) *DtPathCorridor {
	c := NewDtPathCorridor(16)
	path := []detour.DtPolyRef{
		w.PolyRefAt(nav, cell(0, 0)),
		w.PolyRefAt(nav, cell(0, 1)),
		w.PolyRefAt(nav, cell(1, 1)),
		w.PolyRefAt(nav, cell(2, 1)),
		w.PolyRefAt(nav, cell(2, 0)),
	}
	c.Reset(path[0], w.CellCenter(cell(0, 0)))
	c.SetCorridor(w.CellCenter(cell(2, 0)), path)
	return c
}

func TestPathCorridorOptimizeVisibility(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 3)
	nav, q := buildGrid(t, w)
	filter := detour.NewDtQueryFilter()
	want := []detour.DtPolyRef{
		w.PolyRefAt(nav, cell(0, 0)),
		w.PolyRefAt(nav, cell(1, 0)),
		w.PolyRefAt(nav, cell(2, 0)),
	}

	c := detourCorridor(w, nav)
	// Too close to bother.
	c.OptimizePathVisibility(c.GetPos(), 2, q, filter)
	assert.Equal(t, 5, c.GetPathCount())

	c.OptimizePathVisibility(w.CellCenter(cell(2, 0)), 2, q, filter)
	assert.Equal(t, want, c.GetPath())
}

func TestPathCorridorOptimizeTopology(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 3)
	nav, q := buildGrid(t, w)
	filter := detour.NewDtQueryFilter()

	c := detourCorridor(w, nav)
	require.True(t, c.OptimizePathTopology(q, filter))
	assert.Equal(t, []detour.DtPolyRef{
		w.PolyRefAt(nav, cell(0, 0)),
		w.PolyRefAt(nav, cell(1, 0)),
		w.PolyRefAt(nav, cell(2, 0)),
	}, c.GetPath())

	// Too short to optimize.
	c.Reset(w.PolyRefAt(nav, cell(0, 0)), w.CellCenter(cell(0, 0)))
	assert.False(t, c.OptimizePathTopology(q, filter))
}

func TestPathCorridorTrimInvalidPath(t *testing.T) {
	w := detour.NewDtGridWorld(3, 1, 1)
	nav, q := buildGrid(t, w)
	filter := detour.NewDtQueryFilter()
	c := newCorridor(t, w, nav, q, cell(0, 0), cell(2, 0))
	require.Equal(t, 3, c.GetPathCount())
	require.True(t, c.IsValid(8, q, filter))

	_, status := nav.RemoveTile(nav.GetTileRefAt(1, 0, 0))
	require.True(t, status.Succeed())
	assert.False(t, c.IsValid(8, q, filter))
	// Only the look-ahead is checked.
	assert.True(t, c.IsValid(1, q, filter))

	require.True(t, c.TrimInvalidPath(0, common.Vec3{}, q, filter))
	assert.Equal(t, []detour.DtPolyRef{w.PolyRefAt(nav, cell(0, 0))}, c.GetPath())
	assert.InDelta(t, 1, c.GetTarget()[0], 1e-4)
	assert.InDelta(t, 0.5, c.GetTarget()[2], 1e-4)
	assert.True(t, c.IsValid(8, q, filter))

	// An invalid first polygon restarts at the safe spot.
	safe := w.PolyRefAt(nav, cell(2, 0))
	c.Reset(w.PolyRefAt(nav, cell(0, 0)), w.CellCenter(cell(0, 0)))
	_, status = nav.RemoveTile(nav.GetTileRefAt(0, 0, 0))
	require.True(t, status.Succeed())
	require.True(t, c.TrimInvalidPath(safe, w.CellCenter(cell(2, 0)), q, filter))
	assert.Equal(t, []detour.DtPolyRef{safe}, c.GetPath())
	assert.Equal(t, w.CellCenter(cell(2, 0)), c.GetPos())
}

func TestPathCorridorFixPathStart(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 3)
	nav, q := buildGrid(t, w)
	filter := detour.NewDtQueryFilter()
	c := newCorridor(t, w, nav, q, cell(0, 0), cell(1, 0))
	require.Equal(t, 2, c.GetPathCount())

	safe := w.PolyRefAt(nav, cell(0, 1))
	require.True(t, c.FixPathStart(safe, w.CellCenter(cell(0, 1))))
	assert.Equal(t, []detour.DtPolyRef{safe, 0, w.PolyRefAt(nav, cell(1, 0))}, c.GetPath())
	assert.Equal(t, w.CellCenter(cell(0, 1)), c.GetPos())
	// The hole forces a replan.
	assert.False(t, c.IsValid(8, q, filter))
}

func TestPathCorridorOffMeshConnection(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 4)
	for z := 0; z < 4; z++ {
		w.Block(cell(2, z))
	}
	params, err := w.CreateParams(0, 0)
	require.NoError(t, err)
	params.OffMeshConCount = 1
	params.OffMeshConVerts = []float32{1.5, 0, 1.5, 3.5, 0, 1.5}
	params.OffMeshConRad = []float32{0.3}
	params.OffMeshConFlags = []uint16{detour.DT_GRID_POLYFLAGS_WALK}
	params.OffMeshConAreas = []uint8{detour.DT_GRID_AREA_GROUND}
	params.OffMeshConDir = []uint8{1}
	params.OffMeshConUserID = []uint32{7}
	data, err := detour.DtCreateNavMeshData(params)
	require.NoError(t, err)
	nav, _, status := detour.NewDtNavMeshSingleTile(data)
	require.True(t, status.Succeed())
	q, status := detour.NewDtNavMeshQuery(nav, 256)
	require.True(t, status.Succeed())
	offRef := nav.GetPolyRefBase(nav.GetTileAt(0, 0, 0)) | detour.DtPolyRef(data.Header.OffMeshBase)
	filter := detour.NewDtQueryFilter()

	c := newCorridor(t, w, nav, q, cell(0, 1), cell(3, 1))
	require.Contains(t, c.GetPath(), offRef)

	// Corners stop at the connection.
	corners := c.FindCorners(8, q, filter)
	require.Len(t, corners, 1)
	assert.EqualValues(t, detour.DT_STRAIGHTPATH_OFFMESH_CONNECTION, corners[0].Flags)
	assert.Equal(t, offRef, corners[0].Ref)

	// Walk to the connection, then take it.
	require.True(t, c.MovePosition(corners[0].Pos, q, filter))
	assert.Equal(t, w.PolyRefAt(nav, cell(1, 1)), c.GetFirstPoly())

	refs, startPos, endPos, ok := c.MoveOverOffmeshConnection(offRef, q)
	require.True(t, ok)
	assert.Equal(t, [2]detour.DtPolyRef{w.PolyRefAt(nav, cell(1, 1)), offRef}, refs)
	assert.InDelta(t, 1.5, startPos[0], 1e-4)
	assert.InDelta(t, 3.5, endPos[0], 1e-4)
	assert.Equal(t, endPos, c.GetPos())
	assert.Equal(t, []detour.DtPolyRef{w.PolyRefAt(nav, cell(3, 1))}, c.GetPath())

	// The connection is no longer ahead.
	_, _, _, ok = c.MoveOverOffmeshConnection(offRef, q)
	assert.False(t, ok)
}
