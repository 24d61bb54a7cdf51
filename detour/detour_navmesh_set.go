package detour

import (
	"fmt"
	"io"

	"github.com/gorustyt/navquery/common/logger"
	"github.com/gorustyt/navquery/common/rw"
)

const (
	NAVMESHSET_MAGIC   = 'M'<<24 | 'S'<<16 | 'E'<<8 | 'T'
	NAVMESHSET_VERSION = 1

	navMeshSetMaxTileSize = 64 << 20
)

// NavMeshSetHeader opens a navmesh set file. It is followed by NumTiles
// entries of NavMeshTileHeader and the encoded tile.
type NavMeshSetHeader struct {
	Magic    uint32
	Version  uint32
	NumTiles int32
	Params   NavMeshParams
}

type NavMeshTileHeader struct {
	TileRef  DtTileRef
	DataSize int32
}

func (h *NavMeshSetHeader) write(w *rw.Writer) {
	w.WriteUInt32(h.Magic)
	w.WriteUInt32(h.Version)
	w.WriteInt32(h.NumTiles)
	w.WriteFloat32s(h.Params.Orig[:])
	w.WriteFloat32(h.Params.TileWidth)
	w.WriteFloat32(h.Params.TileHeight)
	w.WriteInt32(h.Params.MaxTiles)
	w.WriteInt32(h.Params.MaxPolys)
}

func (h *NavMeshSetHeader) read(r *rw.Reader) {
	h.Magic = r.ReadUInt32()
	h.Version = r.ReadUInt32()
	h.NumTiles = r.ReadInt32()
	r.ReadFloat32s(h.Params.Orig[:])
	h.Params.TileWidth = r.ReadFloat32()
	h.Params.TileHeight = r.ReadFloat32()
	h.Params.MaxTiles = r.ReadInt32()
	h.Params.MaxPolys = r.ReadInt32()
}

// SaveNavMeshSet writes every tile of mesh together with its tile reference,
// so LoadNavMeshSet hands out the same polygon references.
func SaveNavMeshSet(out io.Writer, mesh *DtNavMesh) error {
	if mesh == nil {
		return fmt.Errorf("%w: nil navmesh", ErrInvalidParam)
	}
	var tiles []*DtMeshTile
	for i := 0; i < int(mesh.GetMaxTiles()); i++ {
		if tile := mesh.GetTile(i); tile.Header != nil && tile.Data != nil {
			tiles = append(tiles, tile)
		}
	}
	w := rw.NewWriter(out)
	header := NavMeshSetHeader{
		Magic:    NAVMESHSET_MAGIC,
		Version:  NAVMESHSET_VERSION,
		NumTiles: int32(len(tiles)),
		Params:   *mesh.GetParams(),
	}
	header.write(w)
	for _, tile := range tiles {
		b, err := MarshalTile(tile.Data)
		if err != nil {
			return fmt.Errorf("encode tile (%d,%d): %w", tile.Header.X, tile.Header.Y, err)
		}
		w.WriteUInt32(uint32(mesh.GetTileRef(tile)))
		w.WriteInt32(int32(len(b)))
		w.WriteBytes(b)
	}
	if err := w.Err(); err != nil {
		return fmt.Errorf("write navmesh set: %w", err)
	}
	return nil
}

// LoadNavMeshSet reads a file written by SaveNavMeshSet.
func LoadNavMeshSet(in io.Reader) (*DtNavMesh, error) {
	r := rw.NewReader(in)
	var header NavMeshSetHeader
	header.read(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read navmesh set header: %w", err)
	}
	if header.Magic != NAVMESHSET_MAGIC {
		return nil, ErrWrongMagic
	}
	if header.Version != NAVMESHSET_VERSION {
		return nil, ErrWrongVersion
	}
	if header.NumTiles < 0 || header.NumTiles > header.Params.MaxTiles {
		return nil, fmt.Errorf("%w: %d tiles for %d slots", ErrInvalidParam, header.NumTiles, header.Params.MaxTiles)
	}
	mesh, status := NewDtNavMesh(&header.Params)
	if status.Failed() {
		return nil, status.Err()
	}
	for i := int32(0); i < header.NumTiles; i++ {
		var th NavMeshTileHeader
		th.TileRef = DtTileRef(r.ReadUInt32())
		th.DataSize = r.ReadInt32()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("read tile %d header: %w", i, err)
		}
		if th.TileRef == 0 || th.DataSize <= 0 || th.DataSize > navMeshSetMaxTileSize {
			return nil, fmt.Errorf("%w: tile %d ref %d size %d", ErrInvalidParam, i, th.TileRef, th.DataSize)
		}
		b := r.ReadBytes(int(th.DataSize))
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("read tile %d: %w", i, err)
		}
		data, err := UnmarshalTile(b)
		if err != nil {
			return nil, fmt.Errorf("decode tile %d: %w", i, err)
		}
		if _, status = mesh.AddTile(data, th.TileRef); status.Failed() {
			return nil, fmt.Errorf("add tile %d: %w", i, status.Err())
		}
	}
	logger.Debug("loaded navmesh set with %d tiles", header.NumTiles)
	return mesh, nil
}
