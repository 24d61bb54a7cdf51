package detour

import "github.com/gorustyt/navquery/common"

// DtPolyRef addresses a polygon as (salt, tile index, poly index) packed into 32 bits.
// Zero is the null reference.
type DtPolyRef uint32

// DtTileRef addresses a tile slot; it is a DtPolyRef whose poly field is zero.
type DtTileRef uint32

const dtMinSaltBits = 10

// DtPolyRefCodec packs and unpacks polygon references. The field widths are
// fixed when the navigation mesh is created.
type DtPolyRefCodec struct {
	saltBits uint32 ///< Number of salt bits in the tile ID.
	tileBits uint32 ///< Number of tile bits in the tile ID.
	polyBits uint32 ///< Number of poly bits in the tile ID.
}

// NewDtPolyRefCodec sizes the tile and poly fields to hold maxTiles and
// maxPolys and gives the remaining bits (at most 31) to the salt.
func NewDtPolyRefCodec(maxTiles, maxPolys int32) (DtPolyRefCodec, DtStatus) {
	if maxTiles <= 0 || maxPolys <= 0 {
		return DtPolyRefCodec{}, DT_FAILURE | DT_INVALID_PARAM
	}
	c := DtPolyRefCodec{
		tileBits: common.Ilog2(common.NextPow2(uint32(maxTiles))),
		polyBits: common.Ilog2(common.NextPow2(uint32(maxPolys))),
	}
	if c.tileBits+c.polyBits >= 32 {
		return DtPolyRefCodec{}, DT_FAILURE | DT_INVALID_PARAM
	}
	// Only allow 31 salt bits, since the salt mask is calculated using 32bit uint and it will overflow.
	c.saltBits = min(31, 32-c.tileBits-c.polyBits)
	if c.saltBits < dtMinSaltBits {
		return DtPolyRefCodec{}, DT_FAILURE | DT_INVALID_PARAM
	}
	return c, DT_SUCCESS
}

func (c DtPolyRefCodec) SaltBits() uint32 { return c.saltBits }
func (c DtPolyRefCodec) TileBits() uint32 { return c.tileBits }
func (c DtPolyRefCodec) PolyBits() uint32 { return c.polyBits }

func (c DtPolyRefCodec) saltMask() uint32 { return uint32(1)<<c.saltBits - 1 }
func (c DtPolyRefCodec) tileMask() uint32 { return uint32(1)<<c.tileBits - 1 }
func (c DtPolyRefCodec) polyMask() uint32 { return uint32(1)<<c.polyBits - 1 }

// / Derives a standard polygon reference.
// /  @param[in]	salt	The tile's salt value. [Limit: 1 <= salt <= salt mask]
// /  @param[in]	it		The index of the tile.
// /  @param[in]	ip		The index of the polygon within the tile.
// / Fields that do not fit their bit range are rejected with DT_INVALID_PARAM.
func (c DtPolyRefCodec) EncodePolyId(salt, it, ip uint32) (DtPolyRef, DtStatus) {
	if salt == 0 || salt > c.saltMask() || it > c.tileMask() || ip > c.polyMask() {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	return c.encode(salt, it, ip), DT_SUCCESS
}

func (c DtPolyRefCodec) encode(salt, it, ip uint32) DtPolyRef {
	return DtPolyRef(salt<<(c.polyBits+c.tileBits) | it<<c.polyBits | ip)
}

// / Decodes a standard polygon reference.
// /  @see #EncodePolyId
func (c DtPolyRefCodec) DecodePolyId(ref DtPolyRef) (salt, it, ip uint32) {
	r := uint32(ref)
	salt = (r >> (c.polyBits + c.tileBits)) & c.saltMask()
	it = (r >> c.polyBits) & c.tileMask()
	ip = r & c.polyMask()
	return salt, it, ip
}

// / Extracts a tile's salt value from the specified polygon reference.
func (c DtPolyRefCodec) DecodePolyIdSalt(ref DtPolyRef) uint32 {
	return (uint32(ref) >> (c.polyBits + c.tileBits)) & c.saltMask()
}

// / Extracts the tile's index from the specified polygon reference.
func (c DtPolyRefCodec) DecodePolyIdTile(ref DtPolyRef) uint32 {
	return (uint32(ref) >> c.polyBits) & c.tileMask()
}

// / Extracts the polygon's index (within its tile) from the specified polygon reference.
func (c DtPolyRefCodec) DecodePolyIdPoly(ref DtPolyRef) uint32 {
	return uint32(ref) & c.polyMask()
}

// nextSalt advances a tile slot's salt, skipping zero.
func (c DtPolyRefCodec) nextSalt(salt uint32) uint32 {
	salt = (salt + 1) & c.saltMask()
	if salt == 0 {
		salt++
	}
	return salt
}
