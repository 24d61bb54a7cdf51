package detour

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gorustyt/navquery/common"
	"go.uber.org/multierr"
)

const MESH_NULL_IDX = 0xffff

// / Represents the source data used to build an navigation mesh tile.
// / @ingroup detour
type DtNavMeshCreateParams struct {

	/// @name Polygon Mesh Attributes
	/// Used to create the base navigation graph.
	/// @{

	Verts     []uint16 ///< The polygon mesh vertices. [(x, y, z) * #VertCount] [Unit: vx]
	VertCount int      ///< The number vertices in the polygon mesh. [Limit: >= 3]
	Polys     []uint16 ///< The polygon data. [Size: #PolyCount * 2 * #Nvp]
	PolyFlags []uint16 ///< The user defined flags assigned to each polygon. [Size: #PolyCount]
	PolyAreas []uint8  ///< The user defined area ids assigned to each polygon. [Size: #PolyCount]
	PolyCount int      ///< Number of polygons in the mesh. [Limit: >= 1]
	Nvp       int      ///< Number maximum number of vertices per polygon. [Limit: >= 3]

	/// @}
	/// @name Height Detail Attributes (Optional)
	/// @{

	DetailMeshes     []uint32  ///< The height detail sub-mesh data. [Size: 4 * #PolyCount]
	DetailVerts      []float32 ///< The detail mesh vertices. [Size: 3 * #DetailVertsCount] [Unit: wu]
	DetailVertsCount int       ///< The number of vertices in the detail mesh.
	DetailTris       []uint8   ///< The detail mesh triangles. [Size: 4 * #DetailTriCount]
	DetailTriCount   int       ///< The number of triangles in the detail mesh.

	/// @}
	/// @name Off-Mesh Connections Attributes (Optional)
	/// @{

	/// Off-mesh connection vertices. [(ax, ay, az, bx, by, bz) * #OffMeshConCount] [Unit: wu]
	OffMeshConVerts []float32
	/// Off-mesh connection radii. [Size: #OffMeshConCount] [Unit: wu]
	OffMeshConRad []float32
	/// User defined flags assigned to the off-mesh connections. [Size: #OffMeshConCount]
	OffMeshConFlags []uint16
	/// User defined area ids assigned to the off-mesh connections. [Size: #OffMeshConCount]
	OffMeshConAreas []uint8
	/// The permitted travel direction of the off-mesh connections. [Size: #OffMeshConCount]
	///
	/// 0 = Travel only from endpoint A to endpoint B.<br/>
	/// #DT_OFFMESH_CON_BIDIR = Bidirectional travel.
	OffMeshConDir []uint8
	/// The user defined ids of the off-mesh connection. [Size: #OffMeshConCount] [opt]
	OffMeshConUserID []uint32
	/// The number of off-mesh connections. [Limit: >= 0]
	OffMeshConCount int

	/// @}
	/// @name Tile Attributes
	/// @note The tile grid/layer data can be left at zero if the destination is a single tile mesh.
	/// @{

	UserId    uint32      ///< The user defined id of the tile.
	TileX     int32       ///< The tile's x-grid location within the multi-tile destination mesh. (Along the x-axis.)
	TileY     int32       ///< The tile's y-grid location within the multi-tile destination mesh. (Along the z-axis.)
	TileLayer int32       ///< The tile's layer within the layered destination mesh. [Limit: >= 0] (Along the y-axis.)
	Bmin      common.Vec3 ///< The minimum bounds of the tile. [(x, y, z)] [Unit: wu]
	Bmax      common.Vec3 ///< The maximum bounds of the tile. [(x, y, z)] [Unit: wu]

	/// @}
	/// @name General Configuration Attributes
	/// @{

	WalkableHeight float32 ///< The agent height. [Unit: wu]
	WalkableRadius float32 ///< The agent radius. [Unit: wu]
	WalkableClimb  float32 ///< The agent maximum traversable ledge. (Up/Down) [Unit: wu]
	Cs             float32 ///< The xz-plane cell size of the polygon mesh. [Limit: > 0] [Unit: wu]
	Ch             float32 ///< The y-axis cell height of the polygon mesh. [Limit: > 0] [Unit: wu]

	/// True if a bounding volume tree should be built for the tile.
	/// @note The BVTree is not normally needed for layered navigation meshes.
	BuildBvTree bool

	/// @}
}

var errEmptyMesh = errors.New("polygon mesh has no vertices or polygons")

func (params *DtNavMeshCreateParams) validate() (err error) {
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalidParam}, args...)...))
	}
	if params.Nvp < 3 || params.Nvp > DT_VERTS_PER_POLYGON {
		invalid("nvp %d out of range", params.Nvp)
	}
	if params.VertCount >= 0xffff {
		invalid("%d vertices exceed the 16 bit index range", params.VertCount)
	}
	if params.VertCount == 0 || params.PolyCount == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: %w", ErrInvalidParam, errEmptyMesh))
	}
	if params.Cs <= 0 || params.Ch <= 0 {
		invalid("cell size %v and cell height %v must be positive", params.Cs, params.Ch)
	}
	if len(params.Verts) < params.VertCount*3 {
		invalid("verts holds %d values, want %d", len(params.Verts), params.VertCount*3)
	}
	if len(params.Polys) < params.PolyCount*params.Nvp*2 {
		invalid("polys holds %d values, want %d", len(params.Polys), params.PolyCount*params.Nvp*2)
	}
	if len(params.PolyFlags) < params.PolyCount || len(params.PolyAreas) < params.PolyCount {
		invalid("poly flags/areas shorter than poly count %d", params.PolyCount)
	}
	if len(params.DetailMeshes) > 0 {
		if len(params.DetailMeshes) < params.PolyCount*4 ||
			len(params.DetailVerts) < params.DetailVertsCount*3 ||
			len(params.DetailTris) < params.DetailTriCount*4 {
			invalid("detail mesh arrays shorter than their counts")
		}
	}
	if params.OffMeshConCount > 0 {
		n := params.OffMeshConCount
		if len(params.OffMeshConVerts) < n*6 || len(params.OffMeshConRad) < n ||
			len(params.OffMeshConFlags) < n || len(params.OffMeshConAreas) < n || len(params.OffMeshConDir) < n {
			invalid("off-mesh connection arrays shorter than count %d", n)
		}
	}
	return err
}

type bvItem struct {
	bmin [3]uint16
	bmax [3]uint16
	i    int32
}

func calcExtends(items []bvItem) (bmin, bmax [3]uint16) {
	bmin = items[0].bmin
	bmax = items[0].bmax
	for _, it := range items[1:] {
		for k := 0; k < 3; k++ {
			bmin[k] = min(bmin[k], it.bmin[k])
			bmax[k] = max(bmax[k], it.bmax[k])
		}
	}
	return bmin, bmax
}

func longestAxis(x, y, z uint16) int {
	axis := 0
	maxVal := x
	if y > maxVal {
		axis = 1
		maxVal = y
	}
	if z > maxVal {
		axis = 2
	}
	return axis
}

// subdivide lays the items out as a flattened tree in nodes: leaves carry the
// polygon index, inner nodes the negated size of their subtree (escape index).
func subdivide(items []bvItem, nodes []DtBVNode, curNode *int) {
	inum := len(items)
	icur := *curNode

	node := &nodes[*curNode]
	*curNode++

	if inum == 1 {
		// Leaf
		node.Bmin = items[0].bmin
		node.Bmax = items[0].bmax
		node.I = items[0].i
		return
	}

	// Split
	node.Bmin, node.Bmax = calcExtends(items)

	axis := longestAxis(node.Bmax[0]-node.Bmin[0], node.Bmax[1]-node.Bmin[1], node.Bmax[2]-node.Bmin[2])
	// Sort along the longest axis.
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].bmin[axis] < items[b].bmin[axis]
	})

	isplit := inum / 2

	// Left
	subdivide(items[:isplit], nodes, curNode)
	// Right
	subdivide(items[isplit:], nodes, curNode)

	iescape := *curNode - icur
	// Negative index means escape.
	node.I = int32(-iescape)
}

func quantBV(v, bmin, quantFactor float32) uint16 {
	return uint16(common.Clamp(int32((v-bmin)*quantFactor), 0, 0xffff))
}

func createBVTree(params *DtNavMeshCreateParams) []DtBVNode {
	// Build tree
	quantFactor := 1 / params.Cs
	items := make([]bvItem, params.PolyCount)
	for i := range items {
		it := &items[i]
		it.i = int32(i)
		// Calc polygon bounds. Use detail meshes if available.
		if len(params.DetailMeshes) > 0 {
			vb := params.DetailMeshes[i*4+0]
			ndv := params.DetailMeshes[i*4+1]
			bmin := common.GetVec3(params.DetailVerts, vb)
			bmax := bmin
			for j := uint32(1); j < ndv; j++ {
				v := common.GetVec3(params.DetailVerts, vb+j)
				bmin = common.Vmin(bmin, v)
				bmax = common.Vmax(bmax, v)
			}

			// BV-tree uses cs for all dimensions
			for k := 0; k < 3; k++ {
				it.bmin[k] = quantBV(bmin[k], params.Bmin[k], quantFactor)
				it.bmax[k] = quantBV(bmax[k], params.Bmin[k], quantFactor)
			}
		} else {
			p := params.Polys[i*params.Nvp*2:]
			copy(it.bmin[:], params.Verts[int(p[0])*3:int(p[0])*3+3])
			it.bmax = it.bmin
			for j := 1; j < params.Nvp; j++ {
				if p[j] == MESH_NULL_IDX {
					break
				}
				v := params.Verts[int(p[j])*3 : int(p[j])*3+3]
				for k := 0; k < 3; k++ {
					it.bmin[k] = min(it.bmin[k], v[k])
					it.bmax[k] = max(it.bmax[k], v[k])
				}
			}
			// Remap y
			it.bmin[1] = uint16(math.Floor(float64(float32(it.bmin[1]) * params.Ch / params.Cs)))
			it.bmax[1] = uint16(math.Ceil(float64(float32(it.bmax[1]) * params.Ch / params.Cs)))
		}
	}

	nodes := make([]DtBVNode, params.PolyCount*2)
	curNode := 0
	subdivide(items, nodes, &curNode)
	return nodes[:curNode]
}

func classifyOffMeshPoint(pt, bmin, bmax common.Vec3) uint8 {
	const (
		XP = 1 << 0
		ZP = 1 << 1
		XM = 1 << 2
		ZM = 1 << 3
	)

	outcode := 0
	if pt[0] >= bmax[0] {
		outcode |= XP
	}
	if pt[2] >= bmax[2] {
		outcode |= ZP
	}
	if pt[0] < bmin[0] {
		outcode |= XM
	}
	if pt[2] < bmin[2] {
		outcode |= ZM
	}

	switch outcode {
	case XP:
		return 0
	case XP | ZP:
		return 1
	case ZP:
		return 2
	case XM | ZP:
		return 3
	case XM:
		return 4
	case XM | ZM:
		return 5
	case ZM:
		return 6
	case XP | ZM:
		return 7
	}
	return 0xff
}

// polyVertCount counts the used vertex slots of a poly-mesh polygon.
func polyVertCount(p []uint16, nvp int) int {
	nv := 0
	for j := 0; j < nvp; j++ {
		if p[j] == MESH_NULL_IDX {
			break
		}
		nv++
	}
	return nv
}

// / @par
// /
// / Converts a finished polygon mesh (quantized vertices, per-edge neighbour
// / data with tile portals encoded as 0x8000|dir) into tile data for
// / DtNavMesh.AddTile. Polygons without detail meshes get a fan triangulation.
// / Off-mesh connections are stored only when their start point lies inside
// / the tile.
// /
// / @see DtNavMesh, DtNavMesh::AddTile()
func DtCreateNavMeshData(params *DtNavMeshCreateParams) (*NavMeshData, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: nil create params", ErrInvalidParam)
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	nvp := params.Nvp

	// Classify off-mesh connection points. We store only the connections
	// whose start point is inside the tile.
	var offMeshConClass []uint8
	storedOffMeshConCount := 0
	offMeshConLinkCount := 0

	if params.OffMeshConCount > 0 {
		offMeshConClass = make([]uint8, params.OffMeshConCount*2)

		// Find tight heigh bounds, used for culling out off-mesh start locations.
		hmin := float32(math.MaxFloat32)
		hmax := float32(-math.MaxFloat32)

		if len(params.DetailVerts) > 0 && params.DetailVertsCount > 0 {
			for i := 0; i < params.DetailVertsCount; i++ {
				h := params.DetailVerts[i*3+1]
				hmin = min(hmin, h)
				hmax = max(hmax, h)
			}
		} else {
			for i := 0; i < params.VertCount; i++ {
				h := params.Bmin[1] + float32(params.Verts[i*3+1])*params.Ch
				hmin = min(hmin, h)
				hmax = max(hmax, h)
			}
		}
		hmin -= params.WalkableClimb
		hmax += params.WalkableClimb
		bmin := params.Bmin
		bmax := params.Bmax
		bmin[1] = hmin
		bmax[1] = hmax

		for i := 0; i < params.OffMeshConCount; i++ {
			p0 := common.GetVec3(params.OffMeshConVerts, i*2+0)
			p1 := common.GetVec3(params.OffMeshConVerts, i*2+1)
			offMeshConClass[i*2+0] = classifyOffMeshPoint(p0, bmin, bmax)
			offMeshConClass[i*2+1] = classifyOffMeshPoint(p1, bmin, bmax)

			// Zero out off-mesh start positions which are not even potentially touching the mesh.
			if offMeshConClass[i*2+0] == 0xff {
				if p0[1] < bmin[1] || p0[1] > bmax[1] {
					offMeshConClass[i*2+0] = 0
				}
			}

			// Cound how many links should be allocated for off-mesh connections.
			if offMeshConClass[i*2+0] == 0xff {
				offMeshConLinkCount++
			}
			if offMeshConClass[i*2+1] == 0xff {
				offMeshConLinkCount++
			}

			if offMeshConClass[i*2+0] == 0xff {
				storedOffMeshConCount++
			}
		}
	}

	// Off-mesh connections are stored as polygons, adjust values.
	totPolyCount := params.PolyCount + storedOffMeshConCount
	totVertCount := params.VertCount + storedOffMeshConCount*2

	// Find portal edges which are at tile borders.
	edgeCount := 0
	portalCount := 0
	for i := 0; i < params.PolyCount; i++ {
		p := params.Polys[i*2*nvp:]
		for j := 0; j < nvp; j++ {
			if p[j] == MESH_NULL_IDX {
				break
			}
			edgeCount++

			if p[nvp+j]&0x8000 != 0 {
				dir := p[nvp+j] & 0xf
				if dir != 0xf {
					portalCount++
				}
			}
		}
	}

	maxLinkCount := edgeCount + portalCount*2 + offMeshConLinkCount*2

	// Find unique detail vertices.
	uniqueDetailVertCount := 0
	detailTriCount := 0
	if len(params.DetailMeshes) > 0 {
		// Has detail mesh, count unique detail vertex count and use input detail tri count.
		detailTriCount = params.DetailTriCount
		for i := 0; i < params.PolyCount; i++ {
			nv := polyVertCount(params.Polys[i*nvp*2:], nvp)
			uniqueDetailVertCount += int(params.DetailMeshes[i*4+1]) - nv
		}
	} else {
		// No input detail mesh, build detail mesh from nav polys.
		for i := 0; i < params.PolyCount; i++ {
			nv := polyVertCount(params.Polys[i*nvp*2:], nvp)
			detailTriCount += nv - 2
		}
	}

	header := &DtMeshHeader{
		Magic:           DT_NAVMESH_MAGIC,
		Version:         DT_NAVMESH_VERSION,
		X:               params.TileX,
		Y:               params.TileY,
		Layer:           params.TileLayer,
		UserId:          params.UserId,
		PolyCount:       int32(totPolyCount),
		VertCount:       int32(totVertCount),
		MaxLinkCount:    int32(maxLinkCount),
		Bmin:            params.Bmin,
		Bmax:            params.Bmax,
		DetailMeshCount: int32(params.PolyCount),
		DetailVertCount: int32(uniqueDetailVertCount),
		DetailTriCount:  int32(detailTriCount),
		BvQuantFactor:   1.0 / params.Cs,
		OffMeshBase:     int32(params.PolyCount),
		WalkableHeight:  params.WalkableHeight,
		WalkableRadius:  params.WalkableRadius,
		WalkableClimb:   params.WalkableClimb,
		OffMeshConCount: int32(storedOffMeshConCount),
	}

	data := &NavMeshData{
		Header:      header,
		NavVerts:    make([]float32, 3*totVertCount),
		NavPolys:    make([]DtPoly, totPolyCount),
		NavDMeshes:  make([]DtPolyDetail, params.PolyCount),
		NavDVerts:   make([]float32, 3*uniqueDetailVertCount),
		NavDTris:    make([]uint8, 4*detailTriCount),
		OffMeshCons: make([]DtOffMeshConnection, storedOffMeshConCount),
	}

	offMeshVertsBase := params.VertCount
	offMeshPolyBase := params.PolyCount

	// Store vertices
	// Mesh vertices
	for i := 0; i < params.VertCount; i++ {
		iv := params.Verts[i*3 : i*3+3]
		common.SetVec3(data.NavVerts, i, common.Vec3{
			params.Bmin[0] + float32(iv[0])*params.Cs,
			params.Bmin[1] + float32(iv[1])*params.Ch,
			params.Bmin[2] + float32(iv[2])*params.Cs,
		})
	}
	// Off-mesh link vertices.
	n := 0
	for i := 0; i < params.OffMeshConCount; i++ {
		// Only store connections which start from this tile.
		if offMeshConClass[i*2+0] == 0xff {
			common.SetVec3(data.NavVerts, offMeshVertsBase+n*2+0, common.GetVec3(params.OffMeshConVerts, i*2+0))
			common.SetVec3(data.NavVerts, offMeshVertsBase+n*2+1, common.GetVec3(params.OffMeshConVerts, i*2+1))
			n++
		}
	}

	// Store polygons
	// Mesh polys
	for i := 0; i < params.PolyCount; i++ {
		src := params.Polys[i*nvp*2:]
		p := &data.NavPolys[i]
		p.VertCount = 0
		p.Flags = params.PolyFlags[i]
		p.SetArea(params.PolyAreas[i])
		p.SetType(DT_POLYTYPE_GROUND)
		for j := 0; j < nvp; j++ {
			if src[j] == MESH_NULL_IDX {
				break
			}
			p.Verts[j] = src[j]
			if src[nvp+j]&0x8000 != 0 {
				// Border or portal edge.
				switch src[nvp+j] & 0xf {
				case 0xf: // Border
					p.Neis[j] = 0
				case 0: // Portal x-
					p.Neis[j] = DT_EXT_LINK | 4
				case 1: // Portal z+
					p.Neis[j] = DT_EXT_LINK | 2
				case 2: // Portal x+
					p.Neis[j] = DT_EXT_LINK | 0
				case 3: // Portal z-
					p.Neis[j] = DT_EXT_LINK | 6
				}
			} else if src[nvp+j] != MESH_NULL_IDX {
				// Normal connection
				p.Neis[j] = src[nvp+j] + 1
			}
			p.VertCount++
		}
	}
	// Off-mesh connection vertices.
	n = 0
	for i := 0; i < params.OffMeshConCount; i++ {
		// Only store connections which start from this tile.
		if offMeshConClass[i*2+0] == 0xff {
			p := &data.NavPolys[offMeshPolyBase+n]
			p.VertCount = 2
			p.Verts[0] = uint16(offMeshVertsBase + n*2 + 0)
			p.Verts[1] = uint16(offMeshVertsBase + n*2 + 1)
			p.Flags = params.OffMeshConFlags[i]
			p.SetArea(params.OffMeshConAreas[i])
			p.SetType(DT_POLYTYPE_OFFMESH_CONNECTION)
			n++
		}
	}

	// Store detail meshes and vertices.
	// The nav polygon vertices are stored as the first vertices on each mesh.
	// We compress the mesh data by skipping them and using the navmesh coordinates.
	if len(params.DetailMeshes) > 0 {
		vbase := uint32(0)
		for i := 0; i < params.PolyCount; i++ {
			dtl := &data.NavDMeshes[i]
			vb := params.DetailMeshes[i*4+0]
			ndv := params.DetailMeshes[i*4+1]
			nv := uint32(data.NavPolys[i].VertCount)
			dtl.VertBase = vbase
			dtl.VertCount = uint8(ndv - nv)
			dtl.TriBase = params.DetailMeshes[i*4+2]
			dtl.TriCount = uint8(params.DetailMeshes[i*4+3])
			// Copy vertices except the first 'nv' verts which are equal to nav poly verts.
			if ndv > nv {
				copy(data.NavDVerts[vbase*3:], params.DetailVerts[(vb+nv)*3:(vb+ndv)*3])
				vbase += ndv - nv
			}
		}
		// Store triangles.
		copy(data.NavDTris, params.DetailTris[:4*params.DetailTriCount])
	} else {
		// Create dummy detail mesh by triangulating polys.
		tbase := uint32(0)
		for i := 0; i < params.PolyCount; i++ {
			dtl := &data.NavDMeshes[i]
			nv := int(data.NavPolys[i].VertCount)
			dtl.VertBase = 0
			dtl.VertCount = 0
			dtl.TriBase = tbase
			dtl.TriCount = uint8(nv - 2)
			// Triangulate polygon (local indices).
			for j := 2; j < nv; j++ {
				t := data.NavDTris[tbase*4 : tbase*4+4]
				t[0] = 0
				t[1] = uint8(j - 1)
				t[2] = uint8(j)
				// Bit for each edge that belongs to poly boundary.
				t[3] = fanTriEdgeFlags(j-2, nv)
				tbase++
			}
		}
	}

	// Store and create BVtree.
	if params.BuildBvTree {
		data.NavBvtree = createBVTree(params)
		header.BvNodeCount = int32(len(data.NavBvtree))
	}

	// Store Off-Mesh connections.
	n = 0
	for i := 0; i < params.OffMeshConCount; i++ {
		// Only store connections which start from this tile.
		if offMeshConClass[i*2+0] == 0xff {
			con := &data.OffMeshCons[n]
			con.Poly = uint16(offMeshPolyBase + n)
			// Copy connection end-points.
			copy(con.Pos[:], params.OffMeshConVerts[i*6:i*6+6])
			con.Rad = params.OffMeshConRad[i]
			if params.OffMeshConDir[i] != 0 {
				con.Flags = DT_OFFMESH_CON_BIDIR
			}
			con.Side = offMeshConClass[i*2+1]
			if len(params.OffMeshConUserID) > i {
				con.UserId = params.OffMeshConUserID[i]
			}
			n++
		}
	}
	return data, nil
}
