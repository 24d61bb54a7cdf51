package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/common/logger"
)

const dtMaxNeis = 32

// DtNavMesh is the tiled polygon graph. Tile slots live in a fixed arena; polygon
// references stay valid until their tile slot is removed or replaced.
// It is not safe for concurrent use: edits and queries must not overlap.
type DtNavMesh struct {
	m_params                  NavMeshParams ///< Current initialization params.
	m_orig                    common.Vec3   ///< Origin of the tile (0,0)
	m_tileWidth, m_tileHeight float32       ///< Dimensions of each tile.
	m_maxTiles                int32         ///< Max number of tiles.
	m_tileLutSize             int32         ///< Tile hash lookup size (must be pot).
	m_tileLutMask             int32         ///< Tile hash lookup mask.
	m_posLookup               []*DtMeshTile ///< Tile hash lookup.
	m_nextFree                *DtMeshTile   ///< Freelist of tiles.
	m_tiles                   []DtMeshTile  ///< List of tiles.

	DtPolyRefCodec
}

/// @{
/// @name Initialization and Tile Management

// / Initializes the navigation mesh for tiled use.
// /  @param[in]	params		Initialization parameters.
// / @return The status flags for the operation.
func NewDtNavMesh(params *NavMeshParams) (*DtNavMesh, DtStatus) {
	if params == nil || params.TileWidth <= 0 || params.TileHeight <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	codec, status := NewDtPolyRefCodec(params.MaxTiles, params.MaxPolys)
	if status.Failed() {
		return nil, status
	}
	mesh := &DtNavMesh{
		m_params:       *params,
		m_orig:         params.Orig,
		m_tileWidth:    params.TileWidth,
		m_tileHeight:   params.TileHeight,
		m_maxTiles:     params.MaxTiles,
		DtPolyRefCodec: codec,
	}
	mesh.m_tileLutSize = int32(common.NextPow2(uint32(params.MaxTiles) / 4))
	if mesh.m_tileLutSize == 0 {
		mesh.m_tileLutSize = 1
	}
	mesh.m_tileLutMask = mesh.m_tileLutSize - 1
	mesh.m_posLookup = make([]*DtMeshTile, mesh.m_tileLutSize)
	mesh.m_tiles = make([]DtMeshTile, mesh.m_maxTiles)
	for i := mesh.m_maxTiles - 1; i >= 0; i-- {
		tile := &mesh.m_tiles[i]
		tile.index = uint32(i)
		tile.salt = 1
		tile.Next = mesh.m_nextFree
		mesh.m_nextFree = tile
	}
	return mesh, DT_SUCCESS
}

// / Initializes the navigation mesh for single tile use.
// /  @see DtCreateNavMeshData
func NewDtNavMeshSingleTile(data *NavMeshData) (*DtNavMesh, DtTileRef, DtStatus) {
	if data == nil || data.Header == nil {
		return nil, 0, DT_FAILURE | DT_INVALID_PARAM
	}
	header := data.Header
	if header.Magic != DT_NAVMESH_MAGIC {
		return nil, 0, DT_FAILURE | DT_WRONG_MAGIC
	}
	if header.Version != DT_NAVMESH_VERSION {
		return nil, 0, DT_FAILURE | DT_WRONG_VERSION
	}
	params := NavMeshParams{
		Orig:       header.Bmin,
		TileWidth:  header.Bmax[0] - header.Bmin[0],
		TileHeight: header.Bmax[2] - header.Bmin[2],
		MaxTiles:   1,
		MaxPolys:   max(header.PolyCount, 1),
	}
	mesh, status := NewDtNavMesh(&params)
	if status.Failed() {
		return nil, 0, status
	}
	ref, status := mesh.AddTile(data, 0)
	return mesh, ref, status
}

func (mesh *DtNavMesh) GetParams() *NavMeshParams {
	return &mesh.m_params
}

func (mesh *DtNavMesh) GetMaxTiles() int32 {
	return mesh.m_maxTiles
}

// GetTile returns the tile slot at index i; its Header is nil when the slot is free.
func (mesh *DtNavMesh) GetTile(i int) *DtMeshTile {
	return &mesh.m_tiles[i]
}

func dtComputeTileHash(x, y, mask int32) int32 {
	const h1 uint32 = 0x8da6b343 // Large multiplicative constants;
	const h2 uint32 = 0xd8163841 // here arbitrarily chosen primes
	n := h1*uint32(x) + h2*uint32(y)
	return int32(n & uint32(mask))
}

func overlapSlabs(amin, amax, bmin, bmax [2]float32, px, py float32) bool {
	// Check for horizontal overlap.
	// The segment is shrunken a little so that slabs which touch
	// at end points are not connected.
	minx := max(amin[0]+px, bmin[0]+px)
	maxx := min(amax[0]-px, bmax[0]-px)
	if minx > maxx {
		return false
	}
	// Check vertical overlap.
	ad := (amax[1] - amin[1]) / (amax[0] - amin[0])
	ak := amin[1] - ad*amin[0]
	bd := (bmax[1] - bmin[1]) / (bmax[0] - bmin[0])
	bk := bmin[1] - bd*bmin[0]
	aminy := ad*minx + ak
	amaxy := ad*maxx + ak
	bminy := bd*minx + bk
	bmaxy := bd*maxx + bk
	dmin := bminy - aminy
	dmax := bmaxy - amaxy

	// Crossing segments always overlap.
	if dmin*dmax < 0 {
		return true
	}

	// Check for overlap at endpoints.
	thr := common.Sqr(py * 2)
	return dmin*dmin <= thr || dmax*dmax <= thr
}

func getSlabCoord(va common.Vec3, side int) float32 {
	if side == 0 || side == 4 {
		return va[0]
	} else if side == 2 || side == 6 {
		return va[2]
	}
	return 0
}

// calcSlabEndPoints projects an edge onto (position along the border, height).
func calcSlabEndPoints(va, vb common.Vec3, side int) (bmin, bmax [2]float32) {
	if side == 0 || side == 4 {
		if va[2] < vb[2] {
			return [2]float32{va[2], va[1]}, [2]float32{vb[2], vb[1]}
		}
		return [2]float32{vb[2], vb[1]}, [2]float32{va[2], va[1]}
	} else if side == 2 || side == 6 {
		if va[0] < vb[0] {
			return [2]float32{va[0], va[1]}, [2]float32{vb[0], vb[1]}
		}
		return [2]float32{vb[0], vb[1]}, [2]float32{va[0], va[1]}
	}
	return bmin, bmax
}

func allocLink(tile *DtMeshTile) uint32 {
	if tile.linksFreeList == DT_NULL_LINK {
		return DT_NULL_LINK
	}
	link := tile.linksFreeList
	tile.linksFreeList = tile.Links[link].Next
	return link
}

func freeLink(tile *DtMeshTile, link uint32) {
	tile.Links[link].Next = tile.linksFreeList
	tile.linksFreeList = link
}

// addLink pushes a new link to the front of poly's link list. Running out of
// link capacity silently drops the link.
func addLink(tile *DtMeshTile, poly *DtPoly, l DtLink) {
	idx := allocLink(tile)
	if idx == DT_NULL_LINK {
		return
	}
	l.Next = poly.FirstLink
	tile.Links[idx] = l
	poly.FirstLink = idx
}

type dtConnectingPoly struct {
	ref        DtPolyRef
	tmin, tmax float32
}

// findConnectingPolys returns the polygons of tile whose border edges on side
// overlap the edge va-vb, along with the overlap range along the border.
func (mesh *DtNavMesh) findConnectingPolys(va, vb common.Vec3, tile *DtMeshTile, side int, maxcon int) (con []dtConnectingPoly) {
	if tile == nil {
		return nil
	}
	amin, amax := calcSlabEndPoints(va, vb, side)
	apos := getSlabCoord(va, side)

	m := uint16(DT_EXT_LINK | side)
	base := mesh.GetPolyRefBase(tile)

	for i := range tile.Polys {
		poly := &tile.Polys[i]
		nv := int(poly.VertCount)
		for j := 0; j < nv; j++ {
			// Skip edges which do not point to the right side.
			if poly.Neis[j] != m {
				continue
			}
			vc := tile.polyVert(poly, j)
			vd := tile.polyVert(poly, (j+1)%nv)
			bpos := getSlabCoord(vc, side)

			// Segments are not close enough.
			if common.Abs(apos-bpos) > 0.01 {
				continue
			}

			// Check if the segments touch.
			bmin, bmax := calcSlabEndPoints(vc, vd, side)
			if !overlapSlabs(amin, amax, bmin, bmax, 0.01, tile.Header.WalkableClimb) {
				continue
			}

			if len(con) < maxcon {
				con = append(con, dtConnectingPoly{
					ref:  base | DtPolyRef(i),
					tmin: max(amin[0], bmin[0]),
					tmax: min(amax[0], bmax[0]),
				})
			}
			break
		}
	}
	return con
}

// / Gets the polygon reference for the tile's base polygon.
func (mesh *DtNavMesh) GetPolyRefBase(tile *DtMeshTile) DtPolyRef {
	if tile == nil {
		return 0
	}
	return mesh.encode(tile.salt, tile.index, 0)
}

// / Gets the tile reference for the specified tile.
func (mesh *DtNavMesh) GetTileRef(tile *DtMeshTile) DtTileRef {
	if tile == nil {
		return 0
	}
	return DtTileRef(mesh.encode(tile.salt, tile.index, 0))
}

// / Gets the tile for the specified tile reference, or nil if the reference is stale.
func (mesh *DtNavMesh) GetTileByRef(ref DtTileRef) *DtMeshTile {
	if ref == 0 {
		return nil
	}
	tileIndex := mesh.DecodePolyIdTile(DtPolyRef(ref))
	tileSalt := mesh.DecodePolyIdSalt(DtPolyRef(ref))
	if int64(tileIndex) >= int64(mesh.m_maxTiles) {
		return nil
	}
	tile := &mesh.m_tiles[tileIndex]
	if tile.salt != tileSalt || tile.Header == nil {
		return nil
	}
	return tile
}

// / Calculates the tile grid location for the specified world position.
func (mesh *DtNavMesh) CalcTileLoc(pos common.Vec3) (tx, ty int32) {
	tx = int32(math.Floor(float64((pos[0] - mesh.m_orig[0]) / mesh.m_tileWidth)))
	ty = int32(math.Floor(float64((pos[2] - mesh.m_orig[2]) / mesh.m_tileHeight)))
	return tx, ty
}

func (mesh *DtNavMesh) GetTileAt(x, y, layer int32) *DtMeshTile {
	h := dtComputeTileHash(x, y, mesh.m_tileLutMask)
	for tile := mesh.m_posLookup[h]; tile != nil; tile = tile.Next {
		if tile.Header != nil && tile.Header.X == x && tile.Header.Y == y && tile.Header.Layer == layer {
			return tile
		}
	}
	return nil
}

func (mesh *DtNavMesh) GetTileRefAt(x, y, layer int32) DtTileRef {
	return mesh.GetTileRef(mesh.GetTileAt(x, y, layer))
}

// / Gets all tiles at the specified grid location. (All layers.)
func (mesh *DtNavMesh) GetTilesAt(x, y int32, maxTiles int) []*DtMeshTile {
	var tiles []*DtMeshTile
	h := dtComputeTileHash(x, y, mesh.m_tileLutMask)
	for tile := mesh.m_posLookup[h]; tile != nil; tile = tile.Next {
		if tile.Header != nil && tile.Header.X == x && tile.Header.Y == y {
			if len(tiles) < maxTiles {
				tiles = append(tiles, tile)
			}
		}
	}
	return tiles
}

func (mesh *DtNavMesh) getNeighbourTilesAt(x, y int32, side int, maxTiles int) []*DtMeshTile {
	nx := x
	ny := y
	switch side {
	case 0:
		nx++
	case 1:
		nx++
		ny++
	case 2:
		ny++
	case 3:
		nx--
		ny++
	case 4:
		nx--
	case 5:
		nx--
		ny--
	case 6:
		ny--
	case 7:
		nx++
		ny--
	}
	return mesh.GetTilesAt(nx, ny, maxTiles)
}

func (mesh *DtNavMesh) connectIntLinks(tile *DtMeshTile) {
	base := mesh.GetPolyRefBase(tile)
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		poly.FirstLink = DT_NULL_LINK

		if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}

		// Build edge links backwards so that the links will be
		// in the linked list from lowest index to highest.
		for j := int(poly.VertCount) - 1; j >= 0; j-- {
			// Skip hard and non-internal edges.
			if poly.Neis[j] == 0 || (poly.Neis[j]&DT_EXT_LINK) != 0 {
				continue
			}
			addLink(tile, poly, DtLink{
				Ref:  base | DtPolyRef(poly.Neis[j]-1),
				Edge: uint8(j),
				Side: 0xff,
			})
		}
	}
}

// quantizePortal compresses the [tmin,tmax] range of an edge into bytes.
func quantizePortal(tmin, tmax float32) (bmin, bmax uint8) {
	if tmin > tmax {
		tmin, tmax = tmax, tmin
	}
	bmin = uint8(math.Round(float64(common.Clamp(tmin, 0.0, 1.0) * 255.0)))
	bmax = uint8(math.Round(float64(common.Clamp(tmax, 0.0, 1.0) * 255.0)))
	return bmin, bmax
}

func (mesh *DtNavMesh) connectExtLinks(tile *DtMeshTile, target *DtMeshTile, side int) {
	if tile == nil {
		return
	}

	// Connect border links.
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		nv := int(poly.VertCount)
		for j := 0; j < nv; j++ {
			// Skip non-portal edges.
			if (poly.Neis[j] & DT_EXT_LINK) == 0 {
				continue
			}

			dir := int(poly.Neis[j] & 0xff)
			if side != -1 && dir != side {
				continue
			}

			// Create new links
			va := tile.polyVert(poly, j)
			vb := tile.polyVert(poly, (j+1)%nv)
			for _, nei := range mesh.findConnectingPolys(va, vb, target, dtOppositeTile(dir), 4) {
				l := DtLink{Ref: nei.ref, Edge: uint8(j), Side: uint8(dir)}
				// Compress portal limits to a byte value.
				if dir == 0 || dir == 4 {
					l.Bmin, l.Bmax = quantizePortal((nei.tmin-va[2])/(vb[2]-va[2]), (nei.tmax-va[2])/(vb[2]-va[2]))
				} else if dir == 2 || dir == 6 {
					l.Bmin, l.Bmax = quantizePortal((nei.tmin-va[0])/(vb[0]-va[0]), (nei.tmax-va[0])/(vb[0]-va[0]))
				}
				addLink(tile, poly, l)
			}
		}
	}
}

func (mesh *DtNavMesh) connectExtOffMeshLinks(tile *DtMeshTile, target *DtMeshTile, side int) {
	if tile == nil || target == nil {
		return
	}

	// Connect off-mesh links.
	// We are interested on links which land from target tile to this tile.
	oppositeSide := 0xff
	if side != -1 {
		oppositeSide = dtOppositeTile(side)
	}
	linkSide := uint8(0xff)
	if side != -1 {
		linkSide = uint8(side)
	}

	for i := range target.OffMeshCons {
		targetCon := &target.OffMeshCons[i]
		if int(targetCon.Side) != oppositeSide {
			continue
		}

		targetPoly := &target.Polys[targetCon.Poly]
		// Skip off-mesh connections which start location could not be connected at all.
		if targetPoly.FirstLink == DT_NULL_LINK {
			continue
		}

		halfExtents := common.Vec3{targetCon.Rad, target.Header.WalkableClimb, targetCon.Rad}

		// Find polygon to connect to.
		p := targetCon.EndPos()
		ref, nearestPt := mesh.findNearestPolyInTile(tile, p, halfExtents)
		if ref == 0 {
			continue
		}

		// findNearestPoly may return too optimistic results, further check to make sure.
		if common.Sqr(nearestPt[0]-p[0])+common.Sqr(nearestPt[2]-p[2]) > common.Sqr(targetCon.Rad) {
			continue
		}

		// Make sure the location is on current mesh.
		common.SetVec3(target.Verts, targetPoly.Verts[1], nearestPt)

		// Link off-mesh connection to target poly.
		addLink(target, targetPoly, DtLink{Ref: ref, Edge: 1, Side: uint8(oppositeSide)})

		// Link target poly to off-mesh connection.
		if targetCon.Flags&DT_OFFMESH_CON_BIDIR != 0 {
			landPoly := &tile.Polys[mesh.DecodePolyIdPoly(ref)]
			addLink(tile, landPoly, DtLink{
				Ref:  mesh.GetPolyRefBase(target) | DtPolyRef(targetCon.Poly),
				Edge: 0xff,
				Side: linkSide,
			})
		}
	}
}

func (mesh *DtNavMesh) baseOffMeshLinks(tile *DtMeshTile) {
	base := mesh.GetPolyRefBase(tile)

	// Base off-mesh connection start points.
	for i := range tile.OffMeshCons {
		con := &tile.OffMeshCons[i]
		poly := &tile.Polys[con.Poly]

		halfExtents := common.Vec3{con.Rad, tile.Header.WalkableClimb, con.Rad}

		// Find polygon to connect to.
		p := con.StartPos()
		ref, nearestPt := mesh.findNearestPolyInTile(tile, p, halfExtents)
		if ref == 0 {
			continue
		}
		// findNearestPoly may return too optimistic results, further check to make sure.
		if common.Sqr(nearestPt[0]-p[0])+common.Sqr(nearestPt[2]-p[2]) > common.Sqr(con.Rad) {
			continue
		}

		// Make sure the location is on current mesh.
		common.SetVec3(tile.Verts, poly.Verts[0], nearestPt)

		// Link off-mesh connection to target poly.
		addLink(tile, poly, DtLink{Ref: ref, Edge: 0, Side: 0xff})

		// Start end-point is always connect back to off-mesh connection.
		landPoly := &tile.Polys[mesh.DecodePolyIdPoly(ref)]
		addLink(tile, landPoly, DtLink{Ref: base | DtPolyRef(con.Poly), Edge: 0xff, Side: 0xff})
	}
}

func (mesh *DtNavMesh) unconnectLinks(tile *DtMeshTile, target *DtMeshTile) {
	if tile == nil || target == nil {
		return
	}
	targetNum := target.index
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		j := poly.FirstLink
		pj := uint32(DT_NULL_LINK)
		for j != DT_NULL_LINK {
			if mesh.DecodePolyIdTile(tile.Links[j].Ref) == targetNum {
				// Remove link.
				nj := tile.Links[j].Next
				if pj == DT_NULL_LINK {
					poly.FirstLink = nj
				} else {
					tile.Links[pj].Next = nj
				}
				freeLink(tile, j)
				j = nj
			} else {
				// Advance
				pj = j
				j = tile.Links[j].Next
			}
		}
	}
}

// / @par
// /
// / The add operation will fail if the data is in the wrong format, the allocated tile
// / space is full, or there is a tile already at the specified reference.
// /
// / The lastRef parameter is used to restore a tile with the same tile
// / reference it had previously used.  In this case the #DtPolyRef's for the
// / tile will be restored to the same values they were before the tile was
// / removed.
// /
// / The nav mesh takes ownership of data and rewrites its polygon links.
// /
// / @see DtCreateNavMeshData, #RemoveTile
func (mesh *DtNavMesh) AddTile(data *NavMeshData, lastRef DtTileRef) (DtTileRef, DtStatus) {
	if data == nil || data.Header == nil {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	// Make sure the data is in right format.
	header := data.Header
	if header.Magic != DT_NAVMESH_MAGIC {
		return 0, DT_FAILURE | DT_WRONG_MAGIC
	}
	if header.Version != DT_NAVMESH_VERSION {
		return 0, DT_FAILURE | DT_WRONG_VERSION
	}
	if err := data.Validate(); err != nil {
		logger.Warn("reject tile (%d,%d,%d): %v", header.X, header.Y, header.Layer, err)
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	// Do not allow adding more polygons than specified in the NavMesh's maxPolys constraint.
	// Otherwise, the poly ID cannot be represented with the given number of bits.
	if header.PolyCount > 0 && mesh.PolyBits() < common.Ilog2(common.NextPow2(uint32(header.PolyCount))) {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	// Make sure the location is free.
	if mesh.GetTileAt(header.X, header.Y, header.Layer) != nil {
		return 0, DT_FAILURE | DT_ALREADY_OCCUPIED
	}

	var tile *DtMeshTile
	if lastRef == 0 {
		if mesh.m_nextFree != nil {
			tile = mesh.m_nextFree
			mesh.m_nextFree = tile.Next
			tile.Next = nil
		}
	} else {
		// Try to relocate the tile to specific index with same salt.
		tileIndex := mesh.DecodePolyIdTile(DtPolyRef(lastRef))
		if int64(tileIndex) >= int64(mesh.m_maxTiles) {
			return 0, DT_FAILURE | DT_OUT_OF_MEMORY
		}

		// Try to find the specific tile id from the free list.
		target := &mesh.m_tiles[tileIndex]
		var prev *DtMeshTile
		tile = mesh.m_nextFree
		for tile != nil && tile != target {
			prev = tile
			tile = tile.Next
		}
		// Could not find the correct location.
		if tile != target {
			return 0, DT_FAILURE | DT_OUT_OF_MEMORY
		}

		// Remove from freelist
		if prev == nil {
			mesh.m_nextFree = tile.Next
		} else {
			prev.Next = tile.Next
		}
		tile.Next = nil

		// Restore salt.
		tile.salt = mesh.DecodePolyIdSalt(DtPolyRef(lastRef))
		if tile.salt == 0 {
			tile.salt = 1
		}
	}

	// Make sure we could allocate a tile.
	if tile == nil {
		return 0, DT_FAILURE | DT_OUT_OF_MEMORY
	}

	// Insert tile into the position lut.
	h := dtComputeTileHash(header.X, header.Y, mesh.m_tileLutMask)
	tile.Next = mesh.m_posLookup[h]
	mesh.m_posLookup[h] = tile

	tile.Verts = data.NavVerts
	tile.Polys = data.NavPolys
	tile.DetailMeshes = data.NavDMeshes
	tile.DetailVerts = data.NavDVerts
	tile.DetailTris = data.NavDTris
	tile.BvTree = data.NavBvtree
	tile.OffMeshCons = data.OffMeshCons

	// Build links freelist
	tile.Links = make([]DtLink, header.MaxLinkCount)
	tile.linksFreeList = DT_NULL_LINK
	if header.MaxLinkCount > 0 {
		tile.linksFreeList = 0
		for i := int32(0); i < header.MaxLinkCount-1; i++ {
			tile.Links[i].Next = uint32(i) + 1
		}
		tile.Links[header.MaxLinkCount-1].Next = DT_NULL_LINK
	}

	// Init tile.
	tile.Header = header
	tile.Data = data

	mesh.connectIntLinks(tile)

	// Base off-mesh connections to their starting polygons and connect connections inside the tile.
	mesh.baseOffMeshLinks(tile)
	mesh.connectExtOffMeshLinks(tile, tile, -1)

	// Connect with layers in current tile.
	for _, nei := range mesh.GetTilesAt(header.X, header.Y, dtMaxNeis) {
		if nei == tile {
			continue
		}
		mesh.connectExtLinks(tile, nei, -1)
		mesh.connectExtLinks(nei, tile, -1)
		mesh.connectExtOffMeshLinks(tile, nei, -1)
		mesh.connectExtOffMeshLinks(nei, tile, -1)
	}

	// Connect with neighbour tiles.
	for i := 0; i < 8; i++ {
		for _, nei := range mesh.getNeighbourTilesAt(header.X, header.Y, i, dtMaxNeis) {
			mesh.connectExtLinks(tile, nei, i)
			mesh.connectExtLinks(nei, tile, dtOppositeTile(i))
			mesh.connectExtOffMeshLinks(tile, nei, i)
			mesh.connectExtOffMeshLinks(nei, tile, dtOppositeTile(i))
		}
	}

	ref := mesh.GetTileRef(tile)
	logger.Debug("add tile (%d,%d,%d) ref=%#x polys=%d", header.X, header.Y, header.Layer, ref, header.PolyCount)
	return ref, DT_SUCCESS
}

// / @par
// /
// / This function returns the data for the tile so that, if desired,
// / it can be added back to the navigation mesh at a later point.
// / The slot's salt is advanced, so every reference into the removed tile goes stale.
// /
// / @see #AddTile
func (mesh *DtNavMesh) RemoveTile(ref DtTileRef) (*NavMeshData, DtStatus) {
	if ref == 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tileIndex := mesh.DecodePolyIdTile(DtPolyRef(ref))
	tileSalt := mesh.DecodePolyIdSalt(DtPolyRef(ref))
	if int64(tileIndex) >= int64(mesh.m_maxTiles) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tile := &mesh.m_tiles[tileIndex]
	if tile.salt != tileSalt || tile.Header == nil {
		return nil, DT_FAILURE | DT_INVALID_PARAM | DT_STALE_REF
	}

	// Remove tile from hash lookup.
	h := dtComputeTileHash(tile.Header.X, tile.Header.Y, mesh.m_tileLutMask)
	var prev *DtMeshTile
	for cur := mesh.m_posLookup[h]; cur != nil; cur = cur.Next {
		if cur == tile {
			if prev != nil {
				prev.Next = cur.Next
			} else {
				mesh.m_posLookup[h] = cur.Next
			}
			break
		}
		prev = cur
	}

	// Remove connections to neighbour tiles.
	// Disconnect from other layers in current tile.
	for _, nei := range mesh.GetTilesAt(tile.Header.X, tile.Header.Y, dtMaxNeis) {
		if nei == tile {
			continue
		}
		mesh.unconnectLinks(nei, tile)
	}

	// Disconnect from neighbour tiles.
	for i := 0; i < 8; i++ {
		for _, nei := range mesh.getNeighbourTilesAt(tile.Header.X, tile.Header.Y, i, dtMaxNeis) {
			mesh.unconnectLinks(nei, tile)
		}
	}

	data := tile.Data
	logger.Debug("remove tile (%d,%d,%d) ref=%#x", tile.Header.X, tile.Header.Y, tile.Header.Layer, ref)

	// Reset tile.
	tile.Header = nil
	tile.Data = nil
	tile.linksFreeList = 0
	tile.Polys = nil
	tile.Verts = nil
	tile.Links = nil
	tile.DetailMeshes = nil
	tile.DetailVerts = nil
	tile.DetailTris = nil
	tile.BvTree = nil
	tile.OffMeshCons = nil

	// Update salt, salt should never be zero.
	tile.salt = mesh.nextSalt(tile.salt)

	// Add to free list.
	tile.Next = mesh.m_nextFree
	mesh.m_nextFree = tile

	return data, DT_SUCCESS
}

// ReplaceTile swaps whatever tile occupies data's (x, y, layer) for data. The
// replaced slot's salt advances, so references into the old tile go stale.
func (mesh *DtNavMesh) ReplaceTile(data *NavMeshData) (DtTileRef, *NavMeshData, DtStatus) {
	if data == nil || data.Header == nil {
		return 0, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	var old *NavMeshData
	if ref := mesh.GetTileRefAt(data.Header.X, data.Header.Y, data.Header.Layer); ref != 0 {
		var status DtStatus
		old, status = mesh.RemoveTile(ref)
		if status.Failed() {
			return 0, nil, status
		}
	}
	ref, status := mesh.AddTile(data, 0)
	return ref, old, status
}

// / @par
// /
// / @warning Only use this function if it is known that the provided polygon
// / reference is valid. This function is faster than #GetTileAndPolyByRef, but
// / it does not validate the reference.
func (mesh *DtNavMesh) GetTileAndPolyByRefUnsafe(ref DtPolyRef) (*DtMeshTile, *DtPoly) {
	_, it, ip := mesh.DecodePolyId(ref)
	tile := &mesh.m_tiles[it]
	return tile, &tile.Polys[ip]
}

// GetTileAndPolyByRef resolves ref, failing with DT_STALE_REF when the salt no
// longer matches the slot or the slot is empty.
func (mesh *DtNavMesh) GetTileAndPolyByRef(ref DtPolyRef) (*DtMeshTile, *DtPoly, DtStatus) {
	if ref == 0 {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	salt, it, ip := mesh.DecodePolyId(ref)
	if int64(it) >= int64(mesh.m_maxTiles) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tile := &mesh.m_tiles[it]
	if tile.salt != salt || tile.Header == nil {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM | DT_STALE_REF
	}
	if int64(ip) >= int64(tile.Header.PolyCount) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	return tile, &tile.Polys[ip], DT_SUCCESS
}

// / Checks the validity of a polygon reference.
func (mesh *DtNavMesh) IsValidPolyRef(ref DtPolyRef) bool {
	_, _, status := mesh.GetTileAndPolyByRef(ref)
	return status.Succeed()
}

// findNearestPolyInTile picks the polygon of tile nearest to center inside the
// query box.
func (mesh *DtNavMesh) findNearestPolyInTile(tile *DtMeshTile, center, halfExtents common.Vec3) (nearest DtPolyRef, nearestPt common.Vec3) {
	bmin := center.Sub(halfExtents)
	bmax := center.Add(halfExtents)

	// Get nearby polygons from proximity grid.
	polys := mesh.queryPolygonsInTile(tile, bmin, bmax, 128)

	// Find nearest polygon amongst the nearby polygons.
	nearestDistanceSqr := float32(math.MaxFloat32)
	for _, ref := range polys {
		closestPtPoly, posOverPoly := mesh.ClosestPointOnPoly(ref, center)
		// If a point is directly over a polygon and closer than
		// climb height, favor that instead of straight line nearest point.
		diff := center.Sub(closestPtPoly)
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
		if d < nearestDistanceSqr {
			nearestPt = closestPtPoly
			nearestDistanceSqr = d
			nearest = ref
		}
	}
	return nearest, nearestPt
}

// queryPolygonsInTile returns up to maxPolys ground polygons whose bounds
// overlap the query box, walking the BV tree when the tile has one.
func (mesh *DtNavMesh) queryPolygonsInTile(tile *DtMeshTile, qmin, qmax common.Vec3, maxPolys int) []DtPolyRef {
	var polys []DtPolyRef
	base := mesh.GetPolyRefBase(tile)
	if len(tile.BvTree) > 0 {
		tbmin := tile.Header.Bmin
		tbmax := tile.Header.Bmax
		qfac := tile.Header.BvQuantFactor

		// Clamp query box to world box.
		minx := common.Clamp(qmin[0], tbmin[0], tbmax[0]) - tbmin[0]
		miny := common.Clamp(qmin[1], tbmin[1], tbmax[1]) - tbmin[1]
		minz := common.Clamp(qmin[2], tbmin[2], tbmax[2]) - tbmin[2]
		maxx := common.Clamp(qmax[0], tbmin[0], tbmax[0]) - tbmin[0]
		maxy := common.Clamp(qmax[1], tbmin[1], tbmax[1]) - tbmin[1]
		maxz := common.Clamp(qmax[2], tbmin[2], tbmax[2]) - tbmin[2]
		// Quantize
		bmin := [3]uint16{
			uint16(qfac*minx) & 0xfffe,
			uint16(qfac*miny) & 0xfffe,
			uint16(qfac*minz) & 0xfffe,
		}
		bmax := [3]uint16{
			uint16(qfac*maxx+1) | 1,
			uint16(qfac*maxy+1) | 1,
			uint16(qfac*maxz+1) | 1,
		}

		// Traverse tree
		for node := 0; node < len(tile.BvTree); {
			n := &tile.BvTree[node]
			overlap := dtOverlapQuantBounds(bmin, bmax, n.Bmin, n.Bmax)
			isLeafNode := n.I >= 0

			if isLeafNode && overlap && len(polys) < maxPolys {
				polys = append(polys, base|DtPolyRef(n.I))
			}
			if overlap || isLeafNode {
				node++
			} else {
				node += int(-n.I)
			}
		}
		return polys
	}

	for i := range tile.Polys {
		p := &tile.Polys[i]
		// Do not return off-mesh connection polygons.
		if p.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}
		// Calc polygon bounds.
		bmin := tile.polyVert(p, 0)
		bmax := bmin
		for j := 1; j < int(p.VertCount); j++ {
			v := tile.polyVert(p, j)
			bmin = common.Vmin(bmin, v)
			bmax = common.Vmax(bmax, v)
		}
		if common.OverlapBounds(qmin, qmax, bmin, bmax) && len(polys) < maxPolys {
			polys = append(polys, base|DtPolyRef(i))
		}
	}
	return polys
}

// ClosestPointOnPoly returns the point on the polygon (detail surface included)
// closest to pos, and whether pos lies over the polygon in the xz-plane.
// ref must be valid.
func (mesh *DtNavMesh) ClosestPointOnPoly(ref DtPolyRef, pos common.Vec3) (closest common.Vec3, posOverPoly bool) {
	tile, poly := mesh.GetTileAndPolyByRefUnsafe(ref)
	ip := mesh.DecodePolyIdPoly(ref)
	if height, ok := mesh.GetPolyHeight(tile, ip, pos); ok {
		closest = pos
		closest[1] = height
		return closest, true
	}
	// Off-mesh connections don't have detail polygons.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		v0 := tile.polyVert(poly, 0)
		v1 := tile.polyVert(poly, 1)
		_, t := DtDistancePtSegSqr2D(pos, v0, v1)
		return common.Vlerp(v0, v1, t), false
	}
	// Outside poly that is not an offmesh connection.
	return closestPointOnDetailEdges(true, tile, ip, pos), false
}

// detailTri returns the three vertices and the edge flags of the i-th detail
// triangle of poly ip. Tiles without detail data fall back to a fan over the
// polygon vertices.
func detailTri(tile *DtMeshTile, ip uint32, i int) (v [3]common.Vec3, flags uint8) {
	poly := &tile.Polys[ip]
	if int(ip) >= len(tile.DetailMeshes) {
		nv := int(poly.VertCount)
		v[0] = tile.polyVert(poly, 0)
		v[1] = tile.polyVert(poly, i+1)
		v[2] = tile.polyVert(poly, i+2)
		flags = fanTriEdgeFlags(i, nv)
		return v, flags
	}
	pd := &tile.DetailMeshes[ip]
	t := tile.DetailTris[(pd.TriBase+uint32(i))*4:]
	for k := 0; k < 3; k++ {
		if t[k] < poly.VertCount {
			v[k] = tile.polyVert(poly, int(t[k]))
		} else {
			v[k] = common.GetVec3(tile.DetailVerts, pd.VertBase+uint32(t[k]-poly.VertCount))
		}
	}
	return v, t[3]
}

// detailTriIndex returns the poly-local vertex indices of the i-th detail triangle.
func detailTriIndex(tile *DtMeshTile, ip uint32, i int) [3]uint8 {
	if int(ip) >= len(tile.DetailMeshes) {
		return [3]uint8{0, uint8(i + 1), uint8(i + 2)}
	}
	pd := &tile.DetailMeshes[ip]
	t := tile.DetailTris[(pd.TriBase+uint32(i))*4:]
	return [3]uint8{t[0], t[1], t[2]}
}

func detailTriCount(tile *DtMeshTile, ip uint32) int {
	if int(ip) >= len(tile.DetailMeshes) {
		return int(tile.Polys[ip].VertCount) - 2
	}
	return int(tile.DetailMeshes[ip].TriCount)
}

// fanTriEdgeFlags marks the edges of fan triangle i (0, i+1, i+2) that lie on
// the polygon boundary.
func fanTriEdgeFlags(i, nv int) uint8 {
	var flags uint8
	if i == 0 {
		flags |= DT_DETAIL_EDGE_BOUNDARY << 0
	}
	flags |= DT_DETAIL_EDGE_BOUNDARY << 2
	if i == nv-3 {
		flags |= DT_DETAIL_EDGE_BOUNDARY << 4
	}
	return flags
}

// GetPolyHeight returns the detail-surface height of poly ip at pos when pos is
// over the polygon.
func (mesh *DtNavMesh) GetPolyHeight(tile *DtMeshTile, ip uint32, pos common.Vec3) (float32, bool) {
	poly := &tile.Polys[ip]
	// Off-mesh connections do not have detail polys and getting height
	// over them does not make sense.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		return 0, false
	}

	var verts [DT_VERTS_PER_POLYGON]common.Vec3
	nv := tile.polyVerts(poly, &verts)
	if !dtPointInPolygon(pos, verts[:nv]) {
		return 0, false
	}

	// Find height at the location.
	for j := 0; j < detailTriCount(tile, ip); j++ {
		v, _ := detailTri(tile, ip, j)
		if h, ok := dtClosestHeightPointTriangle(pos, v[0], v[1], v[2]); ok {
			return h, true
		}
	}

	// If all triangle checks failed above (can happen with degenerate triangles
	// or larger floating point values) the point is on an edge, so just select
	// closest. This should almost never happen so the extra iteration here is
	// ok.
	closest := closestPointOnDetailEdges(false, tile, ip, pos)
	return closest[1], true
}

func closestPointOnDetailEdges(onlyBoundary bool, tile *DtMeshTile, ip uint32, pos common.Vec3) common.Vec3 {
	const anyBoundaryEdge = (DT_DETAIL_EDGE_BOUNDARY << 0) | (DT_DETAIL_EDGE_BOUNDARY << 2) | (DT_DETAIL_EDGE_BOUNDARY << 4)
	dmin := float32(math.MaxFloat32)
	tmin := float32(0)
	var pmin, pmax common.Vec3

	for i := 0; i < detailTriCount(tile, ip); i++ {
		v, flags := detailTri(tile, ip, i)
		if onlyBoundary && (flags&anyBoundaryEdge) == 0 {
			continue
		}
		idx := detailTriIndex(tile, ip, i)
		for k, j := 0, 2; k < 3; j, k = k, k+1 {
			if (DtGetDetailTriEdgeFlags(flags, j)&DT_DETAIL_EDGE_BOUNDARY) == 0 && (onlyBoundary || idx[j] < idx[k]) {
				// Only looking at boundary edges and this is internal, or
				// this is an inner edge that we will see again or have already seen.
				continue
			}
			d, t := DtDistancePtSegSqr2D(pos, v[j], v[k])
			if d < dmin {
				dmin = d
				tmin = t
				pmin = v[j]
				pmax = v[k]
			}
		}
	}
	return common.Vlerp(pmin, pmax, tmin)
}

// / @par
// /
// / Off-mesh connections are stored in the navigation mesh as special 2-vertex
// / polygons with a single edge. At least one of the vertices is expected to be
// / inside a normal polygon. So an off-mesh connection is "entered" from a
// / normal polygon at one of its endpoints. This is the polygon identified by
// / the prevRef parameter.
func (mesh *DtNavMesh) GetOffMeshConnectionPolyEndPoints(prevRef, polyRef DtPolyRef) (startPos, endPos common.Vec3, status DtStatus) {
	tile, poly, status := mesh.GetTileAndPolyByRef(polyRef)
	if status.Failed() {
		return startPos, endPos, status
	}
	// Make sure that the current poly is indeed off-mesh link.
	if poly.GetType() != DT_POLYTYPE_OFFMESH_CONNECTION {
		return startPos, endPos, DT_FAILURE
	}

	// Figure out which way to hand out the vertices.
	idx0, idx1 := 0, 1

	// Find link that points to first vertex.
	for i := poly.FirstLink; i != DT_NULL_LINK; i = tile.Links[i].Next {
		if tile.Links[i].Edge == 0 {
			if tile.Links[i].Ref != prevRef {
				idx0, idx1 = 1, 0
			}
			break
		}
	}
	return tile.polyVert(poly, idx0), tile.polyVert(poly, idx1), DT_SUCCESS
}

// / Gets the specified off-mesh connection, or nil if the polygon reference is not valid.
func (mesh *DtNavMesh) GetOffMeshConnectionByRef(ref DtPolyRef) *DtOffMeshConnection {
	tile, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() || poly.GetType() != DT_POLYTYPE_OFFMESH_CONNECTION {
		return nil
	}
	idx := int(mesh.DecodePolyIdPoly(ref)) - int(tile.Header.OffMeshBase)
	if idx < 0 || idx >= len(tile.OffMeshCons) {
		return nil
	}
	return &tile.OffMeshCons[idx]
}

/// @{
/// @name State Management
/// These functions do not effect #DtTileRef or #DtPolyRef's.

func (mesh *DtNavMesh) SetPolyFlags(ref DtPolyRef, flags uint16) DtStatus {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return status
	}
	poly.Flags = flags
	return DT_SUCCESS
}

func (mesh *DtNavMesh) GetPolyFlags(ref DtPolyRef) (uint16, DtStatus) {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	return poly.Flags, DT_SUCCESS
}

func (mesh *DtNavMesh) SetPolyArea(ref DtPolyRef, area uint8) DtStatus {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return status
	}
	poly.SetArea(area)
	return DT_SUCCESS
}

func (mesh *DtNavMesh) GetPolyArea(ref DtPolyRef) (uint8, DtStatus) {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	return poly.GetArea(), DT_SUCCESS
}
