package detour

import (
	"testing"

	"github.com/gorustyt/navquery/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaycastReachesEnd(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	nav, q := buildGrid(t, w)
	start := w.PolyRefAt(nav, DtGridCell{0, 0})

	hit, status := q.Raycast(start, common.Vec3{0.5, 0, 0.5}, common.Vec3{3.5, 0, 0.5}, NewDtQueryFilter(), DT_RAYCAST_USE_COSTS, 0, 16)
	require.True(t, status.Succeed())
	assert.False(t, hit.Blocked())
	assert.EqualValues(t, 1, hit.T)
	assert.Equal(t, -1, hit.HitEdgeIndex)
	assert.Equal(t, common.Vec3{}, hit.HitNormal)
	require.Len(t, hit.Path, 4)
	for x := 0; x < 4; x++ {
		assert.Equal(t, w.PolyRefAt(nav, DtGridCell{x, 0}), hit.Path[x])
	}
	assert.InDelta(t, 3, hit.PathCost, 1e-3)
}

func TestRaycastHitsWall(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	w.Block(DtGridCell{2, 0})
	nav, q := buildGrid(t, w)
	start := w.PolyRefAt(nav, DtGridCell{0, 0})
	from, to := common.Vec3{0.5, 0, 0.5}, common.Vec3{3.5, 0, 0.5}

	hit, status := q.Raycast(start, from, to, NewDtQueryFilter(), 0, 0, 16)
	require.True(t, status.Succeed())
	assert.True(t, hit.Blocked())
	assert.InDelta(t, 0.5, hit.T, 1e-4)
	assert.InDelta(t, -1, hit.HitNormal[0], 1e-4)
	assert.InDelta(t, 0, hit.HitNormal[2], 1e-4)
	assert.Equal(t, 2, hit.HitEdgeIndex)
	assert.Equal(t, []DtPolyRef{start, w.PolyRefAt(nav, DtGridCell{1, 0})}, hit.Path)

	p := hit.HitPoint(from, to)
	assert.InDelta(t, 2, p[0], 1e-4)
	assert.InDelta(t, 0.5, p[2], 1e-4)
}

func TestRaycastLeavesMesh(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	nav, q := buildGrid(t, w)
	start := w.PolyRefAt(nav, DtGridCell{0, 0})

	hit, status := q.Raycast(start, common.Vec3{0.5, 0, 0.5}, common.Vec3{-1, 0, 0.5}, NewDtQueryFilter(), 0, 0, 16)
	require.True(t, status.Succeed())
	assert.True(t, hit.Blocked())
	assert.InDelta(t, 1.0/3.0, hit.T, 1e-4)
	assert.InDelta(t, 1, hit.HitNormal[0], 1e-4)
	assert.Equal(t, 0, hit.HitEdgeIndex)
	assert.Equal(t, []DtPolyRef{start}, hit.Path)
}

func TestRaycastEndOnWallIsNotBlocked(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	nav, q := buildGrid(t, w)
	start := w.PolyRefAt(nav, DtGridCell{0, 0})

	hit, status := q.Raycast(start, common.Vec3{0.5, 0, 0.5}, common.Vec3{4, 0, 0.5}, NewDtQueryFilter(), 0, 0, 16)
	require.True(t, status.Succeed())
	assert.False(t, hit.Blocked())
	assert.Equal(t, common.Vec3{}, hit.HitNormal)
}

func TestRaycastFilterBlocks(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	nav, q := buildGrid(t, w)
	start := w.PolyRefAt(nav, DtGridCell{0, 0})
	require.True(t, nav.SetPolyFlags(w.PolyRefAt(nav, DtGridCell{1, 0}), 0x2).Succeed())

	filter := NewDtQueryFilter()
	filter.SetExcludeFlags(0x2)
	hit, status := q.Raycast(start, common.Vec3{0.5, 0, 0.5}, common.Vec3{3.5, 0, 0.5}, filter, 0, 0, 16)
	require.True(t, status.Succeed())
	assert.True(t, hit.Blocked())
	assert.InDelta(t, 1.0/6.0, hit.T, 1e-4)
}

func TestRaycastPathBuffer(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	nav, q := buildGrid(t, w)
	start := w.PolyRefAt(nav, DtGridCell{0, 0})

	hit, status := q.Raycast(start, common.Vec3{0.5, 0, 0.5}, common.Vec3{3.5, 0, 0.5}, NewDtQueryFilter(), 0, 0, 2)
	require.True(t, status.Succeed())
	assert.True(t, status.Detail(DT_BUFFER_TOO_SMALL))
	assert.Len(t, hit.Path, 2)
	// The walk still reaches the end.
	assert.False(t, hit.Blocked())
}

func TestRaycastInvalidInput(t *testing.T) {
	w := NewDtGridWorld(1, 1, 2)
	nav, q := buildGrid(t, w)
	start := w.PolyRefAt(nav, DtGridCell{0, 0})

	_, status := q.Raycast(0, common.Vec3{}, common.Vec3{1, 0, 0}, NewDtQueryFilter(), 0, 0, 4)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
	_, status = q.Raycast(start, common.Vec3{}, common.Vec3{1, 0, 0}, nil, 0, 0, 4)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
	_, status = q.Raycast(start, common.Vec3{}, common.Vec3{1, 0, 0}, NewDtQueryFilter(), 0, 0, -1)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
}
