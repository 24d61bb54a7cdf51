package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolyRefCodecBits(t *testing.T) {
	c, status := NewDtPolyRefCodec(128, 1000)
	require.True(t, status.Succeed())
	assert.EqualValues(t, 7, c.TileBits())
	assert.EqualValues(t, 10, c.PolyBits())
	assert.EqualValues(t, 15, c.SaltBits())

	c, status = NewDtPolyRefCodec(1, 1)
	require.True(t, status.Succeed())
	assert.EqualValues(t, 31, c.SaltBits())
}

func TestPolyRefCodecTooFewSaltBits(t *testing.T) {
	_, status := NewDtPolyRefCodec(1<<12, 1<<12)
	assert.True(t, status.Failed())
	assert.True(t, status.Detail(DT_INVALID_PARAM))
	assert.ErrorIs(t, status.Err(), ErrInvalidParam)
}

func TestPolyRefRoundTrip(t *testing.T) {
	c, status := NewDtPolyRefCodec(64, 256)
	require.True(t, status.Succeed())
	cases := []struct{ salt, it, ip uint32 }{
		{1, 0, 0},
		{1, 63, 255},
		{c.saltMask(), 5, 17},
		{42, 31, 128},
	}
	for _, tc := range cases {
		ref, st := c.EncodePolyId(tc.salt, tc.it, tc.ip)
		require.True(t, st.Succeed(), "%+v", tc)
		assert.NotZero(t, ref)
		salt, it, ip := c.DecodePolyId(ref)
		assert.Equal(t, tc.salt, salt)
		assert.Equal(t, tc.it, it)
		assert.Equal(t, tc.ip, ip)
		assert.Equal(t, tc.salt, c.DecodePolyIdSalt(ref))
		assert.Equal(t, tc.it, c.DecodePolyIdTile(ref))
		assert.Equal(t, tc.ip, c.DecodePolyIdPoly(ref))
	}
}

func TestPolyRefRejectsOutOfRange(t *testing.T) {
	c, status := NewDtPolyRefCodec(64, 256)
	require.True(t, status.Succeed())
	for _, tc := range []struct{ salt, it, ip uint32 }{
		{0, 1, 1},
		{c.saltMask() + 1, 1, 1},
		{1, 64, 1},
		{1, 1, 256},
	} {
		ref, st := c.EncodePolyId(tc.salt, tc.it, tc.ip)
		assert.True(t, st.Failed(), "%+v", tc)
		assert.Zero(t, ref)
	}
}

func TestNextSaltSkipsZero(t *testing.T) {
	c, status := NewDtPolyRefCodec(64, 256)
	require.True(t, status.Succeed())
	assert.EqualValues(t, 2, c.nextSalt(1))
	assert.EqualValues(t, 1, c.nextSalt(c.saltMask()))
}
