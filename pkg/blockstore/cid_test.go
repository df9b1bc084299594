package blockstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCidDeterminism(t *testing.T) {
	a := NewCid([]byte("some block"), CodecRaw)
	b := NewCid([]byte("some block"), CodecRaw)
	assert.Equal(t, a, b)

	c := NewCid([]byte("some block"), CodecDagCBOR)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, NewCid([]byte("some other block"), CodecRaw))
}

func TestCidRoundTrip(t *testing.T) {
	a := NewCid([]byte("some block"), CodecDagCBOR)

	parsed, err := ParseCid(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.Equal(t, CodecDagCBOR, parsed.Codec())

	fromString, err := CidFromString(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, fromString)
}

func TestCidBadSize(t *testing.T) {
	_, err := ParseCid([]byte("too short"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9")

	_, err = CidFromString("zz")
	require.Error(t, err)
}

func TestCidZero(t *testing.T) {
	var zero Cid
	assert.True(t, zero.IsZero())
	assert.False(t, NewCid(nil, CodecRaw).IsZero())
}

func TestCidLess(t *testing.T) {
	a := NewCid([]byte("a"), CodecRaw)
	b := NewCid([]byte("b"), CodecRaw)
	if b.Less(a) {
		a, b = b, a
	}
	assert.True(t, a.Less(b))
	assert.False(t, a.Less(a))
}
