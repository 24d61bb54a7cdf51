package detour

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavMeshSetKeepsRefs(t *testing.T) {
	w := NewDtGridWorld(2, 2, 3)
	w.Block(DtGridCell{2, 1}, DtGridCell{3, 1})
	nav, err := w.Build()
	require.NoError(t, err)

	// Reload one tile so its salt no longer matches a fresh build.
	ref := nav.GetTileRefAt(1, 0, 0)
	data, status := nav.RemoveTile(ref)
	require.True(t, status.Succeed())
	_, status = nav.AddTile(data, 0)
	require.True(t, status.Succeed())

	var buf bytes.Buffer
	require.NoError(t, SaveNavMeshSet(&buf, nav))
	loaded, err := LoadNavMeshSet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, *nav.GetParams(), *loaded.GetParams())

	for z := 0; z < 6; z++ {
		for x := 0; x < 6; x++ {
			c := DtGridCell{x, z}
			assert.Equal(t, w.PolyRefAt(nav, c), w.PolyRefAt(loaded, c), "%v", c)
		}
	}

	// Links are rebuilt on load, the mesh stays connected across tiles.
	q, status := NewDtNavMeshQuery(loaded, 512)
	require.True(t, status.Succeed())
	start, end := DtGridCell{0, 0}, DtGridCell{5, 5}
	startRef, endRef := w.PolyRefAt(nav, start), w.PolyRefAt(nav, end)
	path, status := q.FindPath(startRef, endRef, w.CellCenter(start), w.CellCenter(end), NewDtQueryFilter(), 64)
	require.True(t, status.Succeed())
	assert.False(t, status.Detail(DT_PARTIAL_RESULT))
	require.NotEmpty(t, path)
	assert.Equal(t, startRef, path[0])
	assert.Equal(t, endRef, path[len(path)-1])
}

func TestNavMeshSetRejectsBadInput(t *testing.T) {
	nav, err := NewDtGridWorld(1, 1, 2).Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, SaveNavMeshSet(&buf, nav))
	good := buf.Bytes()

	_, err = LoadNavMeshSet(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = LoadNavMeshSet(bytes.NewReader(good[:len(good)-3]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	bad := bytes.Clone(good)
	bad[0] ^= 0xff
	_, err = LoadNavMeshSet(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrWrongMagic)

	bad = bytes.Clone(good)
	bad[4] = NAVMESHSET_VERSION + 1
	_, err = LoadNavMeshSet(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrWrongVersion)

	assert.ErrorIs(t, SaveNavMeshSet(&buf, nil), ErrInvalidParam)
}
