package detour_crowd

import (
	"testing"

	"github.com/gorustyt/navquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGrid(t *testing.T, w *detour.DtGridWorld) (*detour.DtNavMesh, *detour.DtNavMeshQuery) {
	t.Helper()
	nav, err := w.Build()
	require.NoError(t, err)
	q, status := detour.NewDtNavMeshQuery(nav, 2048)
	require.True(t, status.Succeed())
	return nav, q
}

func cell(x, z int) detour.DtGridCell { return detour.DtGridCell{X: x, Z: z} }

func newQueue(t *testing.T, nav *detour.DtNavMesh) *DtPathQueue {
	t.Helper()
	pq, err := NewDtPathQueue(nav, DefaultDtPathQueueConfig())
	require.NoError(t, err)
	return pq
}

func requestCells(pq *DtPathQueue, w *detour.DtGridWorld, nav *detour.DtNavMesh, from, to detour.DtGridCell) DtPathQueueRef {
	return pq.Request(w.PolyRefAt(nav, from), w.PolyRefAt(nav, to), w.CellCenter(from), w.CellCenter(to), detour.NewDtQueryFilter())
}

func TestPathQueueConfig(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 2)
	nav, _ := buildGrid(t, w)

	_, err := NewDtPathQueue(nil, DefaultDtPathQueueConfig())
	assert.ErrorIs(t, err, detour.ErrInvalidParam)

	cfg := DefaultDtPathQueueConfig()
	cfg.MaxPathSize = 0
	cfg.MaxSearchNodes = detour.DT_MAX_POOL_SIZE + 1
	cfg.KeepAlive = -1
	_, err = NewDtPathQueue(nav, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, detour.ErrInvalidParam)
	assert.Contains(t, err.Error(), "maxPathSize")
	assert.Contains(t, err.Error(), "maxSearchNodes")
	assert.Contains(t, err.Error(), "keepAlive")
}

func TestPathQueueFull(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 4)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	seen := map[DtPathQueueRef]bool{}
	for i := 0; i < DT_PATHQ_MAX_QUEUE; i++ {
		ref := requestCells(pq, w, nav, cell(0, 0), cell(3, i%4))
		require.NotEqual(t, DT_PATHQ_INVALID, ref)
		assert.False(t, seen[ref])
		seen[ref] = true
		assert.Equal(t, detour.DT_IN_PROGRESS, pq.GetRequestStatus(ref))
	}
	assert.Equal(t, DT_PATHQ_MAX_QUEUE, pq.Pending())
	assert.Equal(t, DT_PATHQ_INVALID, requestCells(pq, w, nav, cell(0, 0), cell(1, 1)))
	assert.Equal(t, detour.DT_FAILURE, pq.GetRequestStatus(DT_PATHQ_INVALID))
}

func TestPathQueueMatchesFindPath(t *testing.T) {
	w := detour.NewDtGridWorld(2, 2, 4)
	w.Block(cell(3, 0), cell(3, 1), cell(3, 2), cell(5, 5))
	nav, q := buildGrid(t, w)
	pq := newQueue(t, nav)

	targets := []detour.DtGridCell{{X: 7, Z: 0}, {X: 7, Z: 7}, {X: 0, Z: 7}, {X: 4, Z: 5}}
	refs := make([]DtPathQueueRef, len(targets))
	for i, to := range targets {
		refs[i] = requestCells(pq, w, nav, cell(0, 0), to)
		require.NotEqual(t, DT_PATHQ_INVALID, refs[i])
	}

	spent := pq.Update(100000)
	assert.Positive(t, spent)
	for i, to := range targets {
		require.True(t, pq.GetRequestStatus(refs[i]).Succeed(), "request %d", i)
		path, status := pq.GetPathResult(refs[i], 256)
		require.True(t, status.Succeed())

		want, wantStatus := q.FindPath(w.PolyRefAt(nav, cell(0, 0)), w.PolyRefAt(nav, to),
			w.CellCenter(cell(0, 0)), w.CellCenter(to), detour.NewDtQueryFilter(), 256)
		require.True(t, wantStatus.Succeed())
		assert.Equal(t, want, path, "request %d", i)
		// Collected results free their slot.
		assert.Equal(t, detour.DT_FAILURE, pq.GetRequestStatus(refs[i]))
	}
	assert.Zero(t, pq.Pending())

	// Nothing left to do.
	assert.Zero(t, pq.Update(100))
}

func TestPathQueueResultTruncated(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 6)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	ref := requestCells(pq, w, nav, cell(0, 0), cell(5, 0))
	pq.Update(1000)

	_, status := pq.GetPathResult(ref, 0)
	assert.True(t, status.Detail(detour.DT_INVALID_PARAM))

	path, status := pq.GetPathResult(ref, 3)
	require.True(t, status.Succeed())
	assert.True(t, status.Detail(detour.DT_BUFFER_TOO_SMALL))
	require.Len(t, path, 3)
	assert.Equal(t, w.PolyRefAt(nav, cell(0, 0)), path[0])
}

func TestPathQueueSlotReuse(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 4)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	refs := make([]DtPathQueueRef, 0, DT_PATHQ_MAX_QUEUE)
	for i := 0; i < DT_PATHQ_MAX_QUEUE; i++ {
		refs = append(refs, requestCells(pq, w, nav, cell(0, 0), cell(3, 3)))
	}
	pq.Update(100000)
	_, status := pq.GetPathResult(refs[3], 64)
	require.True(t, status.Succeed())

	ref := requestCells(pq, w, nav, cell(0, 0), cell(2, 2))
	require.NotEqual(t, DT_PATHQ_INVALID, ref)
	assert.NotContains(t, refs, ref)
}

func TestPathQueueKeepAlive(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 4)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	ref := requestCells(pq, w, nav, cell(0, 0), cell(3, 3))
	pq.Update(1000)
	require.True(t, pq.GetRequestStatus(ref).Succeed())

	// Uncollected results survive DT_PATHQ_MAX_KEEP_ALIVE more updates.
	for i := 0; i < DT_PATHQ_MAX_KEEP_ALIVE; i++ {
		pq.Update(1000)
		assert.True(t, pq.GetRequestStatus(ref).Succeed(), "update %d", i)
	}
	pq.Update(1000)
	assert.Equal(t, detour.DT_FAILURE, pq.GetRequestStatus(ref))
	_, status := pq.GetPathResult(ref, 64)
	assert.True(t, status.Failed())
	assert.Zero(t, pq.Pending())
}

func TestPathQueueIterationBudget(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 6)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	a := requestCells(pq, w, nav, cell(0, 0), cell(5, 5))
	b := requestCells(pq, w, nav, cell(5, 0), cell(0, 5))

	ticks := 0
	for !pq.GetRequestStatus(a).Succeed() {
		require.Less(t, ticks, 1000)
		assert.Equal(t, 1, pq.Update(1))
		ticks++
		// Requests run one after another.
		assert.Equal(t, detour.DT_IN_PROGRESS, pq.GetRequestStatus(b))
	}
	assert.Greater(t, ticks, 1)

	// A pending request keeps its slot.
	path, status := pq.GetPathResult(b, 64)
	assert.Nil(t, path)
	assert.Equal(t, detour.DT_IN_PROGRESS, status)

	path, status = pq.GetPathResult(a, 64)
	require.True(t, status.Succeed())
	assert.Equal(t, w.PolyRefAt(nav, cell(5, 5)), path[len(path)-1])

	for i := 0; i < 1000 && !pq.GetRequestStatus(b).Succeed(); i++ {
		pq.Update(1)
	}
	path, status = pq.GetPathResult(b, 64)
	require.True(t, status.Succeed())
	assert.Equal(t, w.PolyRefAt(nav, cell(0, 5)), path[len(path)-1])
}

func TestPathQueueStaleRequest(t *testing.T) {
	w := detour.NewDtGridWorld(2, 1, 3)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	ref := requestCells(pq, w, nav, cell(0, 0), cell(5, 2))
	pq.Update(1)
	require.True(t, pq.GetRequestStatus(ref).InProgress())

	_, status := nav.RemoveTile(nav.GetTileRefAt(1, 0, 0))
	require.True(t, status.Succeed())

	pq.Update(100)
	status = pq.GetRequestStatus(ref)
	assert.True(t, status.Failed())
	assert.True(t, status.Detail(detour.DT_STALE_REF))

	path, status := pq.GetPathResult(ref, 64)
	assert.Nil(t, path)
	assert.True(t, status.Detail(detour.DT_STALE_REF))
	assert.Zero(t, pq.Pending())
}

func TestPathQueueInvalidRequestFails(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 2)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	ref := pq.Request(0, w.PolyRefAt(nav, cell(1, 1)), w.CellCenter(cell(0, 0)),
		w.CellCenter(cell(1, 1)), detour.NewDtQueryFilter())
	require.NotEqual(t, DT_PATHQ_INVALID, ref)
	pq.Update(10)
	status := pq.GetRequestStatus(ref)
	assert.True(t, status.Failed())
	assert.True(t, status.Detail(detour.DT_INVALID_PARAM))
}

func TestPathQueueServesOldestFirst(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 6)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	a := requestCells(pq, w, nav, cell(0, 0), cell(1, 0))
	b := requestCells(pq, w, nav, cell(0, 0), cell(5, 5))
	for i := 0; i < 100 && !pq.GetRequestStatus(a).Succeed(); i++ {
		pq.Update(1)
	}
	require.True(t, pq.GetRequestStatus(a).Succeed())
	pq.Update(1)
	require.True(t, pq.GetRequestStatus(b).InProgress())

	// c takes a's slot, below the running b; d lands above b.
	_, status := pq.GetPathResult(a, 64)
	require.True(t, status.Succeed())
	c := requestCells(pq, w, nav, cell(5, 0), cell(0, 5))
	d := requestCells(pq, w, nav, cell(0, 5), cell(5, 0))
	require.NotEqual(t, DT_PATHQ_INVALID, c)
	require.NotEqual(t, DT_PATHQ_INVALID, d)

	var order []DtPathQueueRef
	done := map[DtPathQueueRef]bool{}
	for i := 0; i < 5000 && len(order) < 3; i++ {
		pq.Update(1)
		for _, ref := range []DtPathQueueRef{b, c, d} {
			if !done[ref] && pq.GetRequestStatus(ref).Succeed() {
				done[ref] = true
				order = append(order, ref)
			}
		}
	}
	assert.Equal(t, []DtPathQueueRef{b, c, d}, order)
}

func TestPathQueueZeroBudgetRecyclesResults(t *testing.T) {
	w := detour.NewDtGridWorld(1, 1, 4)
	nav, _ := buildGrid(t, w)
	pq := newQueue(t, nav)

	ref := requestCells(pq, w, nav, cell(0, 0), cell(3, 3))
	pq.Update(1000)
	require.True(t, pq.GetRequestStatus(ref).Succeed())

	for i := 0; i < DT_PATHQ_MAX_KEEP_ALIVE; i++ {
		assert.Zero(t, pq.Update(0))
		assert.True(t, pq.GetRequestStatus(ref).Succeed(), "update %d", i)
	}
	assert.Zero(t, pq.Update(0))
	assert.Equal(t, detour.DT_FAILURE, pq.GetRequestStatus(ref))
	assert.Zero(t, pq.Pending())
}
