package detour

import (
	"testing"

	"github.com/gorustyt/navquery/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestCreateNavMeshDataGridTile(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	params, err := w.CreateParams(0, 0)
	require.NoError(t, err)
	data, err := DtCreateNavMeshData(params)
	require.NoError(t, err)
	require.NoError(t, data.Validate())

	h := data.Header
	assert.EqualValues(t, 16, h.PolyCount)
	assert.EqualValues(t, 25, h.VertCount)
	assert.EqualValues(t, 64, h.MaxLinkCount)
	assert.EqualValues(t, 16, h.DetailMeshCount)
	assert.EqualValues(t, 0, h.DetailVertCount)
	assert.EqualValues(t, 32, h.DetailTriCount)
	assert.EqualValues(t, 31, h.BvNodeCount)
	assert.EqualValues(t, 16, h.OffMeshBase)
	assert.InDelta(t, 4.0, h.BvQuantFactor, 1e-6)

	// Vertex (1,0) dequantizes to x = 1.
	assert.Equal(t, common.Vec3{1, 0, 0}, common.GetVec3(data.NavVerts, 1))
	assert.Equal(t, common.Vec3{4, 0, 4}, common.GetVec3(data.NavVerts, 24))

	p := data.NavPolys[0]
	assert.EqualValues(t, 4, p.VertCount)
	assert.Equal(t, [DT_VERTS_PER_POLYGON]uint16{0, 5, 6, 1, 0, 0}, p.Verts)
	// -x wall, +z to poly 4, +x to poly 1, -z wall.
	assert.Equal(t, [DT_VERTS_PER_POLYGON]uint16{0, 5, 2, 0, 0, 0}, p.Neis)
	assert.EqualValues(t, DT_POLYTYPE_GROUND, p.GetType())
	assert.EqualValues(t, DT_GRID_POLYFLAGS_WALK, p.Flags)

	// Fan triangulation of the quad.
	assert.Equal(t, DtPolyDetail{TriBase: 0, TriCount: 2}, data.NavDMeshes[0])
	assert.Equal(t, DtPolyDetail{TriBase: 2, TriCount: 2}, data.NavDMeshes[1])
	assert.Equal(t, []uint8{0, 1, 2, 0x05, 0, 2, 3, 0x14}, data.NavDTris[:8])
}

func TestCreateNavMeshDataTilePortals(t *testing.T) {
	w := NewDtGridWorld(2, 1, 2)

	left, err := w.BuildTile(0, 0)
	require.NoError(t, err)
	right, err := w.BuildTile(1, 0)
	require.NoError(t, err)

	// 8 edges per tile plus two links per portal edge.
	assert.EqualValues(t, 16+2*2, left.Header.MaxLinkCount)
	assert.EqualValues(t, 1, right.Header.X)
	assert.Equal(t, common.Vec3{2, 0, 0}, right.Header.Bmin)

	// Cell (1,0) of the left tile faces the right tile on +x.
	assert.EqualValues(t, DT_EXT_LINK|0, left.NavPolys[1].Neis[2])
	// World border stays a wall.
	assert.EqualValues(t, 0, left.NavPolys[0].Neis[0])
	// Cell (0,0) of the right tile faces back on -x.
	assert.EqualValues(t, DT_EXT_LINK|4, right.NavPolys[0].Neis[0])
}

func TestCreateNavMeshDataBlockedCells(t *testing.T) {
	w := NewDtGridWorld(1, 1, 3)
	w.Block(DtGridCell{1, 1})
	w.SetArea(DtGridCell{2, 2}, 7)

	params, err := w.CreateParams(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, params.PolyCount)

	data, err := DtCreateNavMeshData(params)
	require.NoError(t, err)
	// Poly 1 is cell (1,0); its +z neighbour is the hole.
	assert.EqualValues(t, 0, data.NavPolys[1].Neis[1])
	// Cell (2,2) is the last poly.
	assert.EqualValues(t, 7, data.NavPolys[7].GetArea())
}

func TestCreateNavMeshDataDetailMesh(t *testing.T) {
	params := &DtNavMeshCreateParams{
		Verts:     []uint16{0, 0, 0, 0, 0, 4, 4, 0, 4, 4, 0, 0},
		VertCount: 4,
		Polys: []uint16{
			0, 1, 2, 3, MESH_NULL_IDX, MESH_NULL_IDX,
			MESH_NULL_IDX, MESH_NULL_IDX, MESH_NULL_IDX, MESH_NULL_IDX, MESH_NULL_IDX, MESH_NULL_IDX,
		},
		PolyFlags:    []uint16{1},
		PolyAreas:    []uint8{0},
		PolyCount:    1,
		Nvp:          DT_VERTS_PER_POLYGON,
		DetailMeshes: []uint32{0, 5, 0, 4},
		DetailVerts: []float32{
			0, 0, 0,
			0, 0, 1,
			1, 0, 1,
			1, 0, 0,
			0.5, 0.2, 0.5,
		},
		DetailVertsCount: 5,
		DetailTris: []uint8{
			0, 1, 4, 0x01,
			1, 2, 4, 0x01,
			2, 3, 4, 0x01,
			3, 0, 4, 0x01,
		},
		DetailTriCount: 4,
		Bmin:           common.Vec3{0, 0, 0},
		Bmax:           common.Vec3{1, 1, 1},
		WalkableHeight: 2,
		WalkableRadius: 0.5,
		WalkableClimb:  0.5,
		Cs:             0.25,
		Ch:             0.25,
		BuildBvTree:    true,
	}
	data, err := DtCreateNavMeshData(params)
	require.NoError(t, err)

	// Only the non-polygon detail vertex is stored.
	assert.Equal(t, []float32{0.5, 0.2, 0.5}, data.NavDVerts)
	assert.Equal(t, DtPolyDetail{VertBase: 0, VertCount: 1, TriBase: 0, TriCount: 4}, data.NavDMeshes[0])
	require.Len(t, data.NavBvtree, 1)
	assert.EqualValues(t, 0, data.NavBvtree[0].I)

	nav, _, status := NewDtNavMeshSingleTile(data)
	require.True(t, status.Succeed())
	q, status := NewDtNavMeshQuery(nav, 64)
	require.True(t, status.Succeed())

	ref := nav.GetPolyRefBase(nav.GetTileAt(0, 0, 0))
	h, status := q.GetPolyHeight(ref, common.Vec3{0.5, 5, 0.4})
	require.True(t, status.Succeed())
	assert.InDelta(t, 0.16, h, 1e-3)
}

func TestCreateNavMeshDataOffMeshConnections(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	params, err := w.CreateParams(0, 0)
	require.NoError(t, err)

	params.OffMeshConCount = 2
	params.OffMeshConVerts = []float32{
		0.5, 0, 0.5, 6, 0, 0.5, // starts inside, lands beyond +x
		-3, 0, 1, 1, 0, 1, // starts outside, not stored here
	}
	params.OffMeshConRad = []float32{0.2, 0.2}
	params.OffMeshConFlags = []uint16{1, 1}
	params.OffMeshConAreas = []uint8{2, 2}
	params.OffMeshConDir = []uint8{1, 0}
	params.OffMeshConUserID = []uint32{42, 43}

	data, err := DtCreateNavMeshData(params)
	require.NoError(t, err)

	h := data.Header
	assert.EqualValues(t, 1, h.OffMeshConCount)
	assert.EqualValues(t, 17, h.PolyCount)
	assert.EqualValues(t, 27, h.VertCount)
	assert.EqualValues(t, 64+2*2, h.MaxLinkCount)

	con := data.OffMeshCons[0]
	assert.EqualValues(t, 16, con.Poly)
	assert.EqualValues(t, 0, con.Side)
	assert.EqualValues(t, DT_OFFMESH_CON_BIDIR, con.Flags)
	assert.EqualValues(t, 42, con.UserId)
	assert.Equal(t, common.Vec3{6, 0, 0.5}, con.EndPos())

	p := data.NavPolys[16]
	assert.EqualValues(t, DT_POLYTYPE_OFFMESH_CONNECTION, p.GetType())
	assert.EqualValues(t, 2, p.GetArea())
	assert.EqualValues(t, 2, p.VertCount)
	assert.Equal(t, common.Vec3{0.5, 0, 0.5}, common.GetVec3(data.NavVerts, p.Verts[0]))
}

func TestCreateNavMeshDataRejectsBadParams(t *testing.T) {
	_, err := DtCreateNavMeshData(nil)
	assert.ErrorIs(t, err, ErrInvalidParam)

	params := &DtNavMeshCreateParams{Nvp: 2}
	_, err = DtCreateNavMeshData(params)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.ErrorIs(t, err, errEmptyMesh)
	// nvp, empty mesh and cell size are all reported.
	assert.GreaterOrEqual(t, len(multierr.Errors(err)), 3)
}

func TestBVTreeCoversEveryPoly(t *testing.T) {
	w := NewDtGridWorld(1, 1, 5)
	w.Block(DtGridCell{0, 0}, DtGridCell{3, 2})
	data, err := w.BuildTile(0, 0)
	require.NoError(t, err)

	tree := data.NavBvtree
	require.Len(t, tree, int(2*data.Header.PolyCount-1))
	// The root escapes over the whole tree.
	assert.EqualValues(t, -len(tree), tree[0].I)

	seen := map[int32]int{}
	for _, n := range tree {
		if n.I >= 0 {
			seen[n.I]++
			for k := 0; k < 3; k++ {
				assert.LessOrEqual(t, n.Bmin[k], n.Bmax[k])
			}
		}
	}
	assert.Len(t, seen, int(data.Header.PolyCount))
	for i, c := range seen {
		assert.Equal(t, 1, c, "poly %d", i)
	}
}

func TestClassifyOffMeshPoint(t *testing.T) {
	bmin := common.Vec3{0, 0, 0}
	bmax := common.Vec3{4, 1, 4}
	cases := []struct {
		pt   common.Vec3
		side uint8
	}{
		{common.Vec3{2, 0, 2}, 0xff},
		{common.Vec3{5, 0, 2}, 0},
		{common.Vec3{5, 0, 5}, 1},
		{common.Vec3{2, 0, 5}, 2},
		{common.Vec3{-1, 0, 5}, 3},
		{common.Vec3{-1, 0, 2}, 4},
		{common.Vec3{-1, 0, -1}, 5},
		{common.Vec3{2, 0, -1}, 6},
		{common.Vec3{5, 0, -1}, 7},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.side, classifyOffMeshPoint(tc.pt, bmin, bmax), "%v", tc.pt)
	}
}

func TestTileCodecRoundTrip(t *testing.T) {
	w := NewDtGridWorld(1, 1, 4)
	w.Block(DtGridCell{1, 2})
	data, err := w.BuildTile(0, 0)
	require.NoError(t, err)

	b, err := MarshalTile(data)
	require.NoError(t, err)
	decoded, err := UnmarshalTile(b)
	require.NoError(t, err)

	assert.Equal(t, data.Header, decoded.Header)
	assert.Equal(t, data.NavVerts, decoded.NavVerts)
	assert.Equal(t, data.NavPolys, decoded.NavPolys)
	assert.Equal(t, data.NavDMeshes, decoded.NavDMeshes)
	assert.Equal(t, data.NavDTris, decoded.NavDTris)
	assert.Equal(t, data.NavBvtree, decoded.NavBvtree)
	assert.Empty(t, decoded.NavDVerts)
	assert.Empty(t, decoded.OffMeshCons)

	// The decoded tile is ready for AddTile.
	nav, status := NewDtNavMesh(w.NavMeshParams())
	require.True(t, status.Succeed())
	_, status = nav.AddTile(decoded, 0)
	require.True(t, status.Succeed())
	q, status := NewDtNavMeshQuery(nav, 256)
	require.True(t, status.Succeed())

	start := w.PolyRefAt(nav, DtGridCell{0, 0})
	end := w.PolyRefAt(nav, DtGridCell{3, 3})
	path, status := q.FindPath(start, end, w.CellCenter(DtGridCell{0, 0}), w.CellCenter(DtGridCell{3, 3}), NewDtQueryFilter(), 64)
	require.True(t, status.Succeed())
	assert.False(t, status.Detail(DT_PARTIAL_RESULT))
	assert.Equal(t, end, path[len(path)-1])
}

func TestTileCodecOffMeshRoundTrip(t *testing.T) {
	w := NewDtGridWorld(1, 1, 2)
	params, err := w.CreateParams(0, 0)
	require.NoError(t, err)
	params.OffMeshConCount = 1
	params.OffMeshConVerts = []float32{0.5, 0, 0.5, 1.5, 0, 1.5}
	params.OffMeshConRad = []float32{0.25}
	params.OffMeshConFlags = []uint16{1}
	params.OffMeshConAreas = []uint8{3}
	params.OffMeshConDir = []uint8{1}
	params.OffMeshConUserID = []uint32{9}
	data, err := DtCreateNavMeshData(params)
	require.NoError(t, err)

	b, err := MarshalTile(data)
	require.NoError(t, err)
	decoded, err := UnmarshalTile(b)
	require.NoError(t, err)
	assert.Equal(t, data.OffMeshCons, decoded.OffMeshCons)
	assert.Equal(t, data.NavPolys, decoded.NavPolys)
}

func TestTileCodecRejectsCorruptData(t *testing.T) {
	w := NewDtGridWorld(1, 1, 3)
	data, err := w.BuildTile(0, 0)
	require.NoError(t, err)
	b, err := MarshalTile(data)
	require.NoError(t, err)

	_, err = UnmarshalTile(b[:len(b)/2])
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = UnmarshalTile([]byte{0xff})
	assert.Error(t, err)

	data.Header.Magic = 0
	_, err = MarshalTile(data)
	assert.ErrorIs(t, err, ErrWrongMagic)
}

func TestTileValidateRejectsOutOfRangeIndices(t *testing.T) {
	w := NewDtGridWorld(1, 1, 3)
	cases := []struct {
		name   string
		mutate func(d *NavMeshData)
	}{
		{"detail tri base", func(d *NavMeshData) { d.NavDMeshes[0].TriBase = 1000 }},
		{"detail tri count", func(d *NavMeshData) { d.NavDMeshes[len(d.NavDMeshes)-1].TriCount++ }},
		{"detail vert range", func(d *NavMeshData) { d.NavDMeshes[0].VertCount = 1 }},
		{"detail tri vertex", func(d *NavMeshData) { d.NavDTris[2] = 9 }},
		{"internal neighbour", func(d *NavMeshData) { d.NavPolys[0].Neis[1] = 100 }},
		{"link capacity", func(d *NavMeshData) { d.Header.MaxLinkCount = 1 << 30 }},
		{"bv leaf index", func(d *NavMeshData) {
			for i := range d.NavBvtree {
				if d.NavBvtree[i].I >= 0 {
					d.NavBvtree[i].I = d.Header.PolyCount
					return
				}
			}
		}},
		{"bv escape index", func(d *NavMeshData) {
			for i := range d.NavBvtree {
				if d.NavBvtree[i].I < 0 {
					d.NavBvtree[i].I = -d.Header.BvNodeCount - 1
					return
				}
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := w.BuildTile(0, 0)
			require.NoError(t, err)
			require.NoError(t, data.Validate())

			tc.mutate(data)
			assert.ErrorIs(t, data.Validate(), ErrInvalidParam)
			_, err = MarshalTile(data)
			assert.ErrorIs(t, err, ErrInvalidParam)

			nav, status := NewDtNavMesh(w.NavMeshParams())
			require.True(t, status.Succeed())
			_, status = nav.AddTile(data, 0)
			assert.True(t, status.Failed())
			assert.True(t, status.Detail(DT_INVALID_PARAM))
		})
	}
}

func TestTileValidateOffMeshPolyType(t *testing.T) {
	w := NewDtGridWorld(1, 1, 2)
	params, err := w.CreateParams(0, 0)
	require.NoError(t, err)
	params.OffMeshConCount = 1
	params.OffMeshConVerts = []float32{0.5, 0, 0.5, 1.5, 0, 1.5}
	params.OffMeshConRad = []float32{0.25}
	params.OffMeshConFlags = []uint16{1}
	params.OffMeshConAreas = []uint8{3}
	params.OffMeshConDir = []uint8{1}
	params.OffMeshConUserID = []uint32{9}
	data, err := DtCreateNavMeshData(params)
	require.NoError(t, err)
	require.NoError(t, data.Validate())

	data.OffMeshCons[0].Poly = 0
	assert.ErrorIs(t, data.Validate(), ErrInvalidParam)
}
