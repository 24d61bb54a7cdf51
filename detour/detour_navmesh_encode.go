package detour

import (
	"fmt"
	"math"

	"github.com/gorustyt/navquery/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the tile message.
const (
	tileFieldHeader      protowire.Number = 1
	tileFieldVerts       protowire.Number = 2
	tileFieldPoly        protowire.Number = 3
	tileFieldDetailMesh  protowire.Number = 4
	tileFieldDetailVerts protowire.Number = 5
	tileFieldDetailTris  protowire.Number = 6
	tileFieldBvNode      protowire.Number = 7
	tileFieldOffMeshCon  protowire.Number = 8
)

// MarshalTile encodes tile data in protobuf wire format. Links are not part of
// the payload, they are rebuilt by AddTile.
func MarshalTile(d *NavMeshData) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, tileFieldHeader, protowire.BytesType)
	b = protowire.AppendBytes(b, d.Header.toProto(nil))
	b = appendFloats(b, tileFieldVerts, d.NavVerts)
	for i := range d.NavPolys {
		b = protowire.AppendTag(b, tileFieldPoly, protowire.BytesType)
		b = protowire.AppendBytes(b, d.NavPolys[i].toProto(nil))
	}
	for i := range d.NavDMeshes {
		b = protowire.AppendTag(b, tileFieldDetailMesh, protowire.BytesType)
		b = protowire.AppendBytes(b, d.NavDMeshes[i].toProto(nil))
	}
	b = appendFloats(b, tileFieldDetailVerts, d.NavDVerts)
	if len(d.NavDTris) > 0 {
		b = protowire.AppendTag(b, tileFieldDetailTris, protowire.BytesType)
		b = protowire.AppendBytes(b, d.NavDTris)
	}
	for i := range d.NavBvtree {
		b = protowire.AppendTag(b, tileFieldBvNode, protowire.BytesType)
		b = protowire.AppendBytes(b, d.NavBvtree[i].toProto(nil))
	}
	for i := range d.OffMeshCons {
		b = protowire.AppendTag(b, tileFieldOffMeshCon, protowire.BytesType)
		b = protowire.AppendBytes(b, d.OffMeshCons[i].toProto(nil))
	}
	return b, nil
}

// UnmarshalTile decodes data written by MarshalTile and validates the result,
// so the returned tile can be handed to AddTile directly.
func UnmarshalTile(b []byte) (*NavMeshData, error) {
	d := &NavMeshData{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case tileFieldHeader:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			d.Header = &DtMeshHeader{}
			return n, d.Header.fromProto(msg)
		case tileFieldVerts:
			return consumeFloats(v, typ, &d.NavVerts)
		case tileFieldPoly:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			var p DtPoly
			err := p.fromProto(msg)
			d.NavPolys = append(d.NavPolys, p)
			return n, err
		case tileFieldDetailMesh:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			var pd DtPolyDetail
			err := pd.fromProto(msg)
			d.NavDMeshes = append(d.NavDMeshes, pd)
			return n, err
		case tileFieldDetailVerts:
			return consumeFloats(v, typ, &d.NavDVerts)
		case tileFieldDetailTris:
			tris, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			d.NavDTris = append(d.NavDTris, tris...)
			return n, nil
		case tileFieldBvNode:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			var node DtBVNode
			err := node.fromProto(msg)
			d.NavBvtree = append(d.NavBvtree, node)
			return n, err
		case tileFieldOffMeshCon:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			var con DtOffMeshConnection
			err := con.fromProto(msg)
			d.OffMeshCons = append(d.OffMeshCons, con)
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, v), nil
	})
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// consumeFields walks a message and hands every field value to fn. fn returns
// the number of bytes it consumed, negative on a wire error.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidParam, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrInvalidParam, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func appendFloats(b []byte, num protowire.Number, vals []float32) []byte {
	if len(vals) == 0 {
		return b
	}
	packed := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func consumeFloats(b []byte, typ protowire.Type, dst *[]float32) (int, error) {
	if typ != protowire.BytesType {
		return -1, nil
	}
	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	if len(packed)%4 != 0 {
		return n, fmt.Errorf("%w: packed float field of %d bytes", ErrInvalidParam, len(packed))
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeFixed32(packed)
		*dst = append(*dst, math.Float32frombits(v))
		packed = packed[m:]
	}
	return n, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, protowire.EncodeZigZag(int64(v)))
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendVec3(b []byte, num protowire.Number, v common.Vec3) []byte {
	return appendFloats(b, num, v[:])
}

// consumeScalar decodes a varint or fixed32 field value into a uint64.
func consumeScalar(typ protowire.Type, b []byte) (uint64, int) {
	switch typ {
	case protowire.VarintType:
		return protowire.ConsumeVarint(b)
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		return uint64(v), n
	}
	return 0, -1
}

func consumeVec3(typ protowire.Type, b []byte, dst *common.Vec3) (int, error) {
	var vals []float32
	n, err := consumeFloats(b, typ, &vals)
	if n < 0 || err != nil {
		return n, err
	}
	if len(vals) != 3 {
		return n, fmt.Errorf("%w: vector with %d components", ErrInvalidParam, len(vals))
	}
	*dst = common.Vec3{vals[0], vals[1], vals[2]}
	return n, nil
}

func (h *DtMeshHeader) toProto(b []byte) []byte {
	b = appendSint(b, 1, h.Magic)
	b = appendSint(b, 2, h.Version)
	b = appendSint(b, 3, h.X)
	b = appendSint(b, 4, h.Y)
	b = appendSint(b, 5, h.Layer)
	b = appendVarint(b, 6, uint64(h.UserId))
	b = appendSint(b, 7, h.PolyCount)
	b = appendSint(b, 8, h.VertCount)
	b = appendSint(b, 9, h.MaxLinkCount)
	b = appendSint(b, 10, h.DetailMeshCount)
	b = appendSint(b, 11, h.DetailVertCount)
	b = appendSint(b, 12, h.DetailTriCount)
	b = appendSint(b, 13, h.BvNodeCount)
	b = appendSint(b, 14, h.OffMeshConCount)
	b = appendSint(b, 15, h.OffMeshBase)
	b = appendFloat(b, 16, h.WalkableHeight)
	b = appendFloat(b, 17, h.WalkableRadius)
	b = appendFloat(b, 18, h.WalkableClimb)
	b = appendVec3(b, 19, h.Bmin)
	b = appendVec3(b, 20, h.Bmax)
	b = appendFloat(b, 21, h.BvQuantFactor)
	return b
}

func (h *DtMeshHeader) fromProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 19:
			return consumeVec3(typ, v, &h.Bmin)
		case 20:
			return consumeVec3(typ, v, &h.Bmax)
		}
		x, n := consumeScalar(typ, v)
		if n < 0 {
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
		sint := int32(protowire.DecodeZigZag(x))
		f := math.Float32frombits(uint32(x))
		switch num {
		case 1:
			h.Magic = sint
		case 2:
			h.Version = sint
		case 3:
			h.X = sint
		case 4:
			h.Y = sint
		case 5:
			h.Layer = sint
		case 6:
			h.UserId = uint32(x)
		case 7:
			h.PolyCount = sint
		case 8:
			h.VertCount = sint
		case 9:
			h.MaxLinkCount = sint
		case 10:
			h.DetailMeshCount = sint
		case 11:
			h.DetailVertCount = sint
		case 12:
			h.DetailTriCount = sint
		case 13:
			h.BvNodeCount = sint
		case 14:
			h.OffMeshConCount = sint
		case 15:
			h.OffMeshBase = sint
		case 16:
			h.WalkableHeight = f
		case 17:
			h.WalkableRadius = f
		case 18:
			h.WalkableClimb = f
		case 21:
			h.BvQuantFactor = f
		}
		return n, nil
	})
}

func appendUint16s(b []byte, num protowire.Number, vals []uint16) []byte {
	packed := make([]byte, 0, 2*len(vals))
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func consumeUint16s(b []byte, dst []uint16) (int, error) {
	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	for i := 0; len(packed) > 0; i++ {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return m, nil
		}
		if i >= len(dst) || v > math.MaxUint16 {
			return n, fmt.Errorf("%w: polygon index list out of range", ErrInvalidParam)
		}
		dst[i] = uint16(v)
		packed = packed[m:]
	}
	return n, nil
}

// Polygons store only their used vertex and neighbour slots.
func (p *DtPoly) toProto(b []byte) []byte {
	nv := int(p.VertCount)
	b = appendUint16s(b, 1, p.Verts[:nv])
	b = appendUint16s(b, 2, p.Neis[:nv])
	b = appendVarint(b, 3, uint64(p.Flags))
	b = appendVarint(b, 4, uint64(p.VertCount))
	b = appendVarint(b, 5, uint64(p.AreaAndType))
	return b
}

func (p *DtPoly) fromProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint16s(v, p.Verts[:])
		case 2:
			return consumeUint16s(v, p.Neis[:])
		}
		x, n := consumeScalar(typ, v)
		if n < 0 {
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
		switch num {
		case 3:
			p.Flags = uint16(x)
		case 4:
			p.VertCount = uint8(x)
		case 5:
			p.AreaAndType = uint8(x)
		}
		return n, nil
	})
}

func (pd *DtPolyDetail) toProto(b []byte) []byte {
	b = appendVarint(b, 1, uint64(pd.VertBase))
	b = appendVarint(b, 2, uint64(pd.TriBase))
	b = appendVarint(b, 3, uint64(pd.VertCount))
	b = appendVarint(b, 4, uint64(pd.TriCount))
	return b
}

func (pd *DtPolyDetail) fromProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		x, n := consumeScalar(typ, v)
		if n < 0 {
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
		switch num {
		case 1:
			pd.VertBase = uint32(x)
		case 2:
			pd.TriBase = uint32(x)
		case 3:
			pd.VertCount = uint8(x)
		case 4:
			pd.TriCount = uint8(x)
		}
		return n, nil
	})
}

func (node *DtBVNode) toProto(b []byte) []byte {
	b = appendUint16s(b, 1, node.Bmin[:])
	b = appendUint16s(b, 2, node.Bmax[:])
	b = appendSint(b, 3, node.I)
	return b
}

func (node *DtBVNode) fromProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint16s(v, node.Bmin[:])
		case 2:
			return consumeUint16s(v, node.Bmax[:])
		case 3:
			x, n := protowire.ConsumeVarint(v)
			node.I = int32(protowire.DecodeZigZag(x))
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, v), nil
	})
}

func (con *DtOffMeshConnection) toProto(b []byte) []byte {
	b = appendFloats(b, 1, con.Pos[:])
	b = appendFloat(b, 2, con.Rad)
	b = appendVarint(b, 3, uint64(con.Poly))
	b = appendVarint(b, 4, uint64(con.Flags))
	b = appendVarint(b, 5, uint64(con.Side))
	b = appendVarint(b, 6, uint64(con.UserId))
	return b
}

func (con *DtOffMeshConnection) fromProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == 1 {
			var pos []float32
			n, err := consumeFloats(v, typ, &pos)
			if n >= 0 && err == nil {
				if len(pos) != 6 {
					return n, fmt.Errorf("%w: off-mesh connection with %d coordinates", ErrInvalidParam, len(pos))
				}
				copy(con.Pos[:], pos)
			}
			return n, err
		}
		x, n := consumeScalar(typ, v)
		if n < 0 {
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
		switch num {
		case 2:
			con.Rad = math.Float32frombits(uint32(x))
		case 3:
			con.Poly = uint16(x)
		case 4:
			con.Flags = uint8(x)
		case 5:
			con.Side = uint8(x)
		case 6:
			con.UserId = uint32(x)
		}
		return n, nil
	})
}
