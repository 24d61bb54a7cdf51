package detour

import (
	"fmt"

	"github.com/gorustyt/navquery/common"
	"go.uber.org/multierr"
)

const (
	DT_GRID_POLYFLAGS_WALK = 0x01 ///< Flag set on every generated grid polygon.
	DT_GRID_AREA_GROUND    = 0    ///< Area id of cells without an explicit area.
)

// DtGridCell addresses a cell in world grid coordinates.
type DtGridCell struct {
	X, Z int
}

// DtGridWorld generates flat tiles made of square cells. Every walkable cell
// becomes one quad polygon, blocked cells leave holes. Tiles are laid out on
// a TilesX x TilesZ grid starting at the world origin and are connected
// through portal edges on shared tile borders.
type DtGridWorld struct {
	TilesX, TilesZ int32
	CellsPerTile   int     // cells along each tile side
	CellSize       float32 // world size of one cell, a multiple of Cs
	Height         float32 // floor height

	Cs, Ch float32 // quantization step of the poly mesh

	WalkableHeight float32
	WalkableRadius float32
	WalkableClimb  float32
	BuildBvTree    bool

	Blocked map[DtGridCell]bool
	Areas   map[DtGridCell]uint8
}

// NewDtGridWorld returns a world of tilesX x tilesZ tiles with unit cells.
func NewDtGridWorld(tilesX, tilesZ int32, cellsPerTile int) *DtGridWorld {
	return &DtGridWorld{
		TilesX:         tilesX,
		TilesZ:         tilesZ,
		CellsPerTile:   cellsPerTile,
		CellSize:       1,
		Cs:             0.25,
		Ch:             0.25,
		WalkableHeight: 2,
		WalkableRadius: 0.5,
		WalkableClimb:  0.5,
		BuildBvTree:    true,
		Blocked:        map[DtGridCell]bool{},
		Areas:          map[DtGridCell]uint8{},
	}
}

// Block turns the given cells into holes.
func (w *DtGridWorld) Block(cells ...DtGridCell) {
	if w.Blocked == nil {
		w.Blocked = map[DtGridCell]bool{}
	}
	for _, c := range cells {
		w.Blocked[c] = true
	}
}

// SetArea assigns an area id to a cell.
func (w *DtGridWorld) SetArea(c DtGridCell, area uint8) {
	if w.Areas == nil {
		w.Areas = map[DtGridCell]uint8{}
	}
	w.Areas[c] = area
}

func (w *DtGridWorld) tileWidth() float32 {
	return float32(w.CellsPerTile) * w.CellSize
}

// Walkable reports whether the cell exists in the world and is not blocked.
func (w *DtGridWorld) Walkable(c DtGridCell) bool {
	if c.X < 0 || c.Z < 0 ||
		c.X >= int(w.TilesX)*w.CellsPerTile || c.Z >= int(w.TilesZ)*w.CellsPerTile {
		return false
	}
	return !w.Blocked[c]
}

// CellCenter returns the world position of the cell center on the floor.
func (w *DtGridWorld) CellCenter(c DtGridCell) common.Vec3 {
	return common.Vec3{
		(float32(c.X) + 0.5) * w.CellSize,
		w.Height,
		(float32(c.Z) + 0.5) * w.CellSize,
	}
}

// NavMeshParams sizes a navigation mesh able to hold every tile of the world.
func (w *DtGridWorld) NavMeshParams() *NavMeshParams {
	return &NavMeshParams{
		Orig:       common.Vec3{0, w.Height, 0},
		TileWidth:  w.tileWidth(),
		TileHeight: w.tileWidth(),
		MaxTiles:   w.TilesX * w.TilesZ,
		MaxPolys:   int32(w.CellsPerTile * w.CellsPerTile),
	}
}

func (w *DtGridWorld) validate() (err error) {
	if w.TilesX <= 0 || w.TilesZ <= 0 || w.CellsPerTile <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: empty grid %dx%d tiles of %d cells",
			ErrInvalidParam, w.TilesX, w.TilesZ, w.CellsPerTile))
	}
	if w.CellSize <= 0 || w.Cs <= 0 || w.Ch <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: cell size %v cs %v ch %v must be positive",
			ErrInvalidParam, w.CellSize, w.Cs, w.Ch))
	} else if w.tileWidth()/w.Cs > 0xfffe {
		err = multierr.Append(err, fmt.Errorf("%w: tile width %v does not fit quantized coordinates",
			ErrInvalidParam, w.tileWidth()))
	}
	return err
}

// CreateParams generates the poly mesh of tile (tx, tz).
//
// Cell polygons are wound (x0,z0) (x0,z1) (x1,z1) (x1,z0), so edge 0 faces -x,
// edge 1 faces +z, edge 2 faces +x and edge 3 faces -z.
func (w *DtGridWorld) CreateParams(tx, tz int32) (*DtNavMeshCreateParams, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if tx < 0 || tz < 0 || tx >= w.TilesX || tz >= w.TilesZ {
		return nil, fmt.Errorf("%w: tile (%d,%d) outside %dx%d grid", ErrInvalidParam, tx, tz, w.TilesX, w.TilesZ)
	}
	n := w.CellsPerTile
	nvp := DT_VERTS_PER_POLYGON
	tw := w.tileWidth()
	step := uint16(w.CellSize / w.Cs)

	params := &DtNavMeshCreateParams{
		Nvp:            nvp,
		TileX:          tx,
		TileY:          tz,
		Bmin:           common.Vec3{float32(tx) * tw, w.Height, float32(tz) * tw},
		Bmax:           common.Vec3{float32(tx+1) * tw, w.Height + w.WalkableHeight, float32(tz+1) * tw},
		WalkableHeight: w.WalkableHeight,
		WalkableRadius: w.WalkableRadius,
		WalkableClimb:  w.WalkableClimb,
		Cs:             w.Cs,
		Ch:             w.Ch,
		BuildBvTree:    w.BuildBvTree,
	}

	// Shared corner vertices.
	params.VertCount = (n + 1) * (n + 1)
	params.Verts = make([]uint16, 0, params.VertCount*3)
	for vz := 0; vz <= n; vz++ {
		for vx := 0; vx <= n; vx++ {
			params.Verts = append(params.Verts, uint16(vx)*step, 0, uint16(vz)*step)
		}
	}
	vert := func(vx, vz int) uint16 { return uint16(vz*(n+1) + vx) }

	// Local cell -> polygon index.
	cx0 := int(tx) * n
	cz0 := int(tz) * n
	polyIndex := make(map[DtGridCell]uint16)
	for lz := 0; lz < n; lz++ {
		for lx := 0; lx < n; lx++ {
			c := DtGridCell{cx0 + lx, cz0 + lz}
			if w.Walkable(c) {
				polyIndex[DtGridCell{lx, lz}] = uint16(len(polyIndex))
			}
		}
	}

	// Neighbour of a local cell edge: polygon index, tile portal or wall.
	nei := func(lx, lz, dx, dz int, portalDir uint16) uint16 {
		nx, nz := lx+dx, lz+dz
		if nx >= 0 && nz >= 0 && nx < n && nz < n {
			if idx, ok := polyIndex[DtGridCell{nx, nz}]; ok {
				return idx
			}
			return MESH_NULL_IDX
		}
		ntx, ntz := int(tx)+dx, int(tz)+dz
		if ntx < 0 || ntz < 0 || ntx >= int(w.TilesX) || ntz >= int(w.TilesZ) {
			return MESH_NULL_IDX
		}
		return 0x8000 | portalDir
	}

	params.PolyCount = len(polyIndex)
	params.Polys = make([]uint16, params.PolyCount*nvp*2)
	params.PolyFlags = make([]uint16, params.PolyCount)
	params.PolyAreas = make([]uint8, params.PolyCount)
	for i := range params.Polys {
		params.Polys[i] = MESH_NULL_IDX
	}
	for lz := 0; lz < n; lz++ {
		for lx := 0; lx < n; lx++ {
			idx, ok := polyIndex[DtGridCell{lx, lz}]
			if !ok {
				continue
			}
			p := params.Polys[int(idx)*nvp*2:]
			p[0] = vert(lx, lz)
			p[1] = vert(lx, lz+1)
			p[2] = vert(lx+1, lz+1)
			p[3] = vert(lx+1, lz)
			p[nvp+0] = nei(lx, lz, -1, 0, 0)
			p[nvp+1] = nei(lx, lz, 0, 1, 1)
			p[nvp+2] = nei(lx, lz, 1, 0, 2)
			p[nvp+3] = nei(lx, lz, 0, -1, 3)

			c := DtGridCell{cx0 + lx, cz0 + lz}
			params.PolyFlags[idx] = DT_GRID_POLYFLAGS_WALK
			params.PolyAreas[idx] = DT_GRID_AREA_GROUND
			if area, ok := w.Areas[c]; ok {
				params.PolyAreas[idx] = area
			}
		}
	}
	return params, nil
}

// BuildTile generates and assembles the tile data of (tx, tz).
func (w *DtGridWorld) BuildTile(tx, tz int32) (*NavMeshData, error) {
	params, err := w.CreateParams(tx, tz)
	if err != nil {
		return nil, err
	}
	if params.PolyCount == 0 {
		return nil, fmt.Errorf("%w: tile (%d,%d) is fully blocked", ErrInvalidParam, tx, tz)
	}
	return DtCreateNavMeshData(params)
}

// Build creates a navigation mesh and adds every tile of the world to it.
// Fully blocked tiles are skipped.
func (w *DtGridWorld) Build() (*DtNavMesh, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	nav, status := NewDtNavMesh(w.NavMeshParams())
	if status.Failed() {
		return nil, status.Err()
	}
	for tz := int32(0); tz < w.TilesZ; tz++ {
		for tx := int32(0); tx < w.TilesX; tx++ {
			params, err := w.CreateParams(tx, tz)
			if err != nil {
				return nil, err
			}
			if params.PolyCount == 0 {
				continue
			}
			data, err := DtCreateNavMeshData(params)
			if err != nil {
				return nil, err
			}
			if _, status := nav.AddTile(data, 0); status.Failed() {
				return nil, fmt.Errorf("add tile (%d,%d): %w", tx, tz, status.Err())
			}
		}
	}
	return nav, nil
}

// PolyRefAt returns the reference of the polygon generated for the cell, or 0
// when the cell is blocked or its tile is not loaded.
func (w *DtGridWorld) PolyRefAt(nav *DtNavMesh, c DtGridCell) DtPolyRef {
	if !w.Walkable(c) {
		return 0
	}
	n := w.CellsPerTile
	tx, tz := c.X/n, c.Z/n
	tile := nav.GetTileAt(int32(tx), int32(tz), 0)
	if tile == nil {
		return 0
	}
	// Polygons are numbered row by row over the walkable cells of the tile.
	idx := 0
	for lz := 0; lz < n; lz++ {
		for lx := 0; lx < n; lx++ {
			cell := DtGridCell{tx*n + lx, tz*n + lz}
			if cell == c {
				return nav.GetPolyRefBase(tile) | DtPolyRef(idx)
			}
			if w.Walkable(cell) {
				idx++
			}
		}
	}
	return 0
}
