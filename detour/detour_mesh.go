package detour

import (
	"fmt"

	"github.com/gorustyt/navquery/common"
	"go.uber.org/multierr"
)

const (
	/// The maximum number of vertices per navigation polygon.
	/// @ingroup detour
	DT_VERTS_PER_POLYGON = 6
	DT_NULL_LINK         = 0xffffffff

	/// A flag that indicates that an entity links to an external entity.
	/// (E.g. A polygon edge is a portal that links to another polygon.)
	DT_EXT_LINK                   = 0x8000
	DT_RAY_CAST_LIMIT_PROPORTIONS = 50.0
	/// A flag that indicates that an off-mesh connection can be traversed in both directions. (Is bidirectional.)
	DT_OFFMESH_CON_BIDIR = 1

	/// A magic number used to detect compatibility of navigation tile data.
	DT_NAVMESH_MAGIC = 'D'<<24 | 'N'<<16 | 'A'<<8 | 'V'

	/// A version number used to detect compatibility of navigation tile data.
	DT_NAVMESH_VERSION = 7

	/// The maximum number of user defined area ids.
	/// @ingroup detour
	DT_MAX_AREAS = 64
)

const (
	/// The polygon is a standard convex polygon that is part of the surface of the mesh.
	DT_POLYTYPE_GROUND = 0
	/// The polygon is an off-mesh connection consisting of two vertices.
	DT_POLYTYPE_OFFMESH_CONNECTION = 1
)

const (
	DT_DETAIL_EDGE_BOUNDARY = 0x01 ///< Detail triangle edge is part of the poly boundary
)

const (
	DT_RAYCAST_USE_COSTS = 0x01 ///< Raycast should calculate movement cost along the ray and fill RaycastHit::cost
)

// / Defines a polygon within a DtMeshTile object.
// / @ingroup detour
type DtPoly struct {
	/// Index to first link in linked list. (Or #DT_NULL_LINK if there is no link.)
	FirstLink uint32

	/// The indices of the polygon's vertices.
	/// The actual vertices are located in DtMeshTile::verts.
	Verts [DT_VERTS_PER_POLYGON]uint16

	/// Packed data representing neighbor polygons references and flags for each edge.
	Neis [DT_VERTS_PER_POLYGON]uint16

	/// The user defined polygon flags.
	Flags uint16

	/// The number of vertices in the polygon.
	VertCount uint8

	/// The bit packed area id and polygon type.
	/// @note Use the structure's set and get methods to access this value.
	AreaAndType uint8
}

// / Sets the user defined area id. [Limit: < #DT_MAX_AREAS]
func (p *DtPoly) SetArea(a uint8) { p.AreaAndType = (p.AreaAndType & 0xc0) | (a & 0x3f) }

// / Sets the polygon type. (See: #dtPolyTypes.)
func (p *DtPoly) SetType(t uint8) { p.AreaAndType = (p.AreaAndType & 0x3f) | (t << 6) }

// / Gets the user defined area id.
func (p *DtPoly) GetArea() uint8 { return p.AreaAndType & 0x3f }

// / Gets the polygon type. (See: #dtPolyTypes)
func (p *DtPoly) GetType() uint8 { return p.AreaAndType >> 6 }

// / Defines the location of detail sub-mesh data within a DtMeshTile.
type DtPolyDetail struct {
	VertBase  uint32 ///< The offset of the vertices in the DtMeshTile::detailVerts array.
	TriBase   uint32 ///< The offset of the triangles in the DtMeshTile::detailTris array.
	VertCount uint8  ///< The number of vertices in the sub-mesh.
	TriCount  uint8  ///< The number of triangles in the sub-mesh.
}

// Defines a link between polygons.
// / @see DtMeshTile
type DtLink struct {
	Ref  DtPolyRef ///< Neighbour reference. (The neighbor that is linked to.)
	Next uint32    ///< Index of the next link.
	Edge uint8     ///< Index of the polygon edge that owns this link.
	Side uint8     ///< If a boundary link, defines on which side the link is.
	Bmin uint8     ///< If a boundary link, defines the minimum sub-edge area.
	Bmax uint8     ///< If a boundary link, defines the maximum sub-edge area.
}

// / Bounding volume node.
// / @see DtMeshTile
type DtBVNode struct {
	Bmin [3]uint16 ///< Minimum bounds of the node's AABB. [(x, y, z)]
	Bmax [3]uint16 ///< Maximum bounds of the node's AABB. [(x, y, z)]
	I    int32     ///< The node's index. (Negative for escape sequence.)
}

// / Defines an navigation mesh off-mesh connection within a DtMeshTile object.
// / An off-mesh connection is a user defined traversable connection made up to two vertices.
type DtOffMeshConnection struct {
	/// The endpoints of the connection. [(ax, ay, az, bx, by, bz)]
	Pos [6]float32

	/// The radius of the endpoints. [Limit: >= 0]
	Rad float32

	/// The polygon reference of the connection within the tile.
	Poly uint16

	/// Link flags.
	/// @note These are not the connection's user defined flags. Those are assigned via the
	/// connection's DtPoly definition. These are link flags used for internal purposes.
	Flags uint8

	/// End point side.
	Side uint8

	/// The id of the offmesh connection. (User assigned when the navigation mesh is built.)
	UserId uint32
}

func (c *DtOffMeshConnection) StartPos() common.Vec3 {
	return common.Vec3{c.Pos[0], c.Pos[1], c.Pos[2]}
}

func (c *DtOffMeshConnection) EndPos() common.Vec3 {
	return common.Vec3{c.Pos[3], c.Pos[4], c.Pos[5]}
}

// / Provides high level information related to a DtMeshTile object.
// / @ingroup detour
type DtMeshHeader struct {
	Magic           int32  ///< Tile magic number. (Used to identify the data format.)
	Version         int32  ///< Tile data format version number.
	X               int32  ///< The x-position of the tile within the DtNavMesh tile grid. (x, y, layer)
	Y               int32  ///< The y-position of the tile within the DtNavMesh tile grid. (x, y, layer)
	Layer           int32  ///< The layer of the tile within the DtNavMesh tile grid. (x, y, layer)
	UserId          uint32 ///< The user defined id of the tile.
	PolyCount       int32  ///< The number of polygons in the tile.
	VertCount       int32  ///< The number of vertices in the tile.
	MaxLinkCount    int32  ///< The number of allocated links.
	DetailMeshCount int32  ///< The number of sub-meshes in the detail mesh.

	/// The number of unique vertices in the detail mesh. (In addition to the polygon vertices.)
	DetailVertCount int32

	DetailTriCount  int32       ///< The number of triangles in the detail mesh.
	BvNodeCount     int32       ///< The number of bounding volume nodes. (Zero if bounding volumes are disabled.)
	OffMeshConCount int32       ///< The number of off-mesh connections.
	OffMeshBase     int32       ///< The index of the first polygon which is an off-mesh connection.
	WalkableHeight  float32     ///< The height of the agents using the tile.
	WalkableRadius  float32     ///< The radius of the agents using the tile.
	WalkableClimb   float32     ///< The maximum climb height of the agents using the tile.
	Bmin            common.Vec3 ///< The minimum bounds of the tile's AABB. [(x, y, z)]
	Bmax            common.Vec3 ///< The maximum bounds of the tile's AABB. [(x, y, z)]

	/// The bounding volume quantization factor.
	BvQuantFactor float32
}

// NavMeshData is the finished, self-contained payload of one tile.
type NavMeshData struct {
	Header      *DtMeshHeader
	NavVerts    []float32
	NavPolys    []DtPoly
	NavDMeshes  []DtPolyDetail
	NavDVerts   []float32
	NavDTris    []uint8
	NavBvtree   []DtBVNode
	OffMeshCons []DtOffMeshConnection
}

// Validate checks the header against the payload and reports every problem found.
func (d *NavMeshData) Validate() (err error) {
	if d == nil || d.Header == nil {
		return fmt.Errorf("%w: missing tile header", ErrInvalidParam)
	}
	h := d.Header
	if h.Magic != DT_NAVMESH_MAGIC {
		err = multierr.Append(err, ErrWrongMagic)
	}
	if h.Version != DT_NAVMESH_VERSION {
		err = multierr.Append(err, ErrWrongVersion)
	}
	var sizeErr error
	check := func(name string, got, want int) {
		if got != want {
			sizeErr = multierr.Append(sizeErr, fmt.Errorf("%w: %s has %d entries, header says %d", ErrInvalidParam, name, got, want))
		}
	}
	check("verts", len(d.NavVerts), int(h.VertCount)*3)
	check("polys", len(d.NavPolys), int(h.PolyCount))
	check("detail meshes", len(d.NavDMeshes), int(h.DetailMeshCount))
	check("detail verts", len(d.NavDVerts), int(h.DetailVertCount)*3)
	check("detail tris", len(d.NavDTris), int(h.DetailTriCount)*4)
	check("bv nodes", len(d.NavBvtree), int(h.BvNodeCount))
	check("off-mesh connections", len(d.OffMeshCons), int(h.OffMeshConCount))
	if h.MaxLinkCount < 0 || int64(h.MaxLinkCount) > dtMaxTileLinks(h) {
		sizeErr = multierr.Append(sizeErr, fmt.Errorf("%w: link capacity %d", ErrInvalidParam, h.MaxLinkCount))
	}
	if h.DetailMeshCount > h.PolyCount {
		sizeErr = multierr.Append(sizeErr, fmt.Errorf("%w: %d detail meshes for %d polys", ErrInvalidParam, h.DetailMeshCount, h.PolyCount))
	}
	if sizeErr != nil {
		// Index checks below rely on the sizes above.
		return multierr.Append(err, sizeErr)
	}
	for i := range d.NavPolys {
		err = multierr.Append(err, d.validatePoly(i))
	}
	for i := range d.NavDMeshes {
		err = multierr.Append(err, d.validateDetailMesh(i))
	}
	for i := range d.NavBvtree {
		n := &d.NavBvtree[i]
		if n.I >= h.PolyCount || n.I < -h.BvNodeCount {
			err = multierr.Append(err, fmt.Errorf("%w: bv node %d has index %d", ErrInvalidParam, i, n.I))
		}
	}
	for i := range d.OffMeshCons {
		con := &d.OffMeshCons[i]
		if int32(con.Poly) >= h.PolyCount {
			err = multierr.Append(err, fmt.Errorf("%w: off-mesh connection %d references poly %d", ErrInvalidParam, i, con.Poly))
		} else if d.NavPolys[con.Poly].GetType() != DT_POLYTYPE_OFFMESH_CONNECTION {
			err = multierr.Append(err, fmt.Errorf("%w: off-mesh connection %d poly %d is not an off-mesh polygon", ErrInvalidParam, i, con.Poly))
		}
	}
	return err
}

// dtMaxTileLinks bounds the link capacity of a tile: three links per polygon
// edge plus two per off-mesh connection a tile can address.
func dtMaxTileLinks(h *DtMeshHeader) int64 {
	return int64(max(h.PolyCount, 0))*DT_VERTS_PER_POLYGON*3 + 2*0xffff
}

func (d *NavMeshData) validatePoly(i int) (err error) {
	p := &d.NavPolys[i]
	if p.VertCount < 2 || p.VertCount > DT_VERTS_PER_POLYGON {
		return fmt.Errorf("%w: poly %d has %d verts", ErrInvalidParam, i, p.VertCount)
	}
	for j := 0; j < int(p.VertCount); j++ {
		if int32(p.Verts[j]) >= d.Header.VertCount {
			err = multierr.Append(err, fmt.Errorf("%w: poly %d references vertex %d", ErrInvalidParam, i, p.Verts[j]))
		}
		// Internal neighbours are stored as poly index + 1.
		nei := p.Neis[j]
		if nei != 0 && nei&DT_EXT_LINK == 0 && int32(nei-1) >= d.Header.PolyCount {
			err = multierr.Append(err, fmt.Errorf("%w: poly %d edge %d neighbour %d", ErrInvalidParam, i, j, nei-1))
		}
	}
	return err
}

func (d *NavMeshData) validateDetailMesh(i int) error {
	pd := &d.NavDMeshes[i]
	if uint64(pd.VertBase)+uint64(pd.VertCount) > uint64(d.Header.DetailVertCount) {
		return fmt.Errorf("%w: detail mesh %d verts [%d,+%d) out of %d", ErrInvalidParam, i, pd.VertBase, pd.VertCount, d.Header.DetailVertCount)
	}
	if uint64(pd.TriBase)+uint64(pd.TriCount) > uint64(d.Header.DetailTriCount) {
		return fmt.Errorf("%w: detail mesh %d tris [%d,+%d) out of %d", ErrInvalidParam, i, pd.TriBase, pd.TriCount, d.Header.DetailTriCount)
	}
	// Detail triangle indices address the poly verts first, then the mesh's own verts.
	nv := int(d.NavPolys[i].VertCount) + int(pd.VertCount)
	for k := 0; k < int(pd.TriCount); k++ {
		t := d.NavDTris[(int(pd.TriBase)+k)*4:]
		for _, v := range t[:3] {
			if int(v) >= nv {
				return fmt.Errorf("%w: detail mesh %d triangle %d references vertex %d of %d", ErrInvalidParam, i, k, v, nv)
			}
		}
	}
	return nil
}

// / Defines a navigation mesh tile.
// / @ingroup detour
type DtMeshTile struct {
	salt uint32 ///< Counter describing modifications to the tile.

	linksFreeList uint32         ///< Index to the next free link.
	Header        *DtMeshHeader  ///< The tile header.
	Polys         []DtPoly       ///< The tile polygons. [Size: DtMeshHeader::polyCount]
	Verts         []float32      ///< The tile vertices. [(x, y, z) * DtMeshHeader::vertCount]
	Links         []DtLink       ///< The tile links. [Size: DtMeshHeader::maxLinkCount]
	DetailMeshes  []DtPolyDetail ///< The tile's detail sub-meshes. [Size: DtMeshHeader::detailMeshCount]

	/// The detail mesh's unique vertices. [(x, y, z) * DtMeshHeader::detailVertCount]
	DetailVerts []float32

	/// The detail mesh's triangles. [(vertA, vertB, vertC, triFlags) * DtMeshHeader::detailTriCount].
	/// See dtDetailTriEdgeFlags and dtGetDetailTriEdgeFlags.
	DetailTris []uint8

	/// The tile bounding volume nodes. [Size: DtMeshHeader::bvNodeCount]
	/// (Will be empty if bounding volumes are disabled.)
	BvTree []DtBVNode

	OffMeshCons []DtOffMeshConnection ///< The tile off-mesh connections. [Size: DtMeshHeader::offMeshConCount]
	Next        *DtMeshTile           ///< The next free tile, or the next tile in the spatial grid.

	Data *NavMeshData

	index uint32
}

func (t *DtMeshTile) Salt() uint32 { return t.salt }

// polyVert returns the position of the j-th vertex of poly.
func (t *DtMeshTile) polyVert(poly *DtPoly, j int) common.Vec3 {
	return common.GetVec3(t.Verts, poly.Verts[j])
}

// polyVerts copies the polygon's vertices into dst and returns the count.
func (t *DtMeshTile) polyVerts(poly *DtPoly, dst *[DT_VERTS_PER_POLYGON]common.Vec3) int {
	n := int(poly.VertCount)
	for j := 0; j < n; j++ {
		dst[j] = t.polyVert(poly, j)
	}
	return n
}

// / Configuration parameters used to define multi-tile navigation meshes.
// / The values are used to allocate space during the initialization of a navigation mesh.
// / @ingroup detour
type NavMeshParams struct {
	Orig       common.Vec3 ///< The world space origin of the navigation mesh's tile space. [(x, y, z)]
	TileWidth  float32     ///< The width of each tile. (Along the x-axis.)
	TileHeight float32     ///< The height of each tile. (Along the z-axis.)
	MaxTiles   int32       ///< The maximum number of tiles the navigation mesh can contain.
	MaxPolys   int32       ///< The maximum number of polygons each tile can contain.
}

// / Get flags for edge in detail triangle.
// / @param[in]	triFlags		The flags for the triangle (last component of detail vertices above).
// / @param[in]	edgeIndex		The index of the first vertex of the edge. For instance, if 0,
// /								returns flags for edge AB.
func DtGetDetailTriEdgeFlags(triFlags uint8, edgeIndex int) int {
	return int(triFlags>>(edgeIndex*2)) & 0x3
}
