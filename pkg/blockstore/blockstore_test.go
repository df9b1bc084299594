package blockstore

import (
	"context"
	"testing"

	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/storage/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAdapter(t *testing.T) *Adapter {
	a, err := New(mem.New())
	require.NoError(t, err)
	return a
}

func TestPutGetBlock(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	cid, err := a.PutBlock(ctx, []byte("some content"), CodecRaw)
	require.NoError(t, err)

	again, err := a.PutBlock(ctx, []byte("some content"), CodecRaw)
	require.NoError(t, err)
	assert.Equal(t, cid, again)

	keys, err := a.Backend().Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	data, err := a.GetBlock(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, "some content", string(data))

	has, err := a.HasBlock(ctx, cid)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGetBlockNotFound(t *testing.T) {
	a := setupAdapter(t)

	_, err := a.GetBlock(context.Background(), NewCid([]byte("never stored"), CodecRaw))
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestGetBlockZeroCid(t *testing.T) {
	a := setupAdapter(t)

	_, err := a.GetBlock(context.Background(), Cid{})
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestGetBlockCorrupt(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	cid := NewCid([]byte("expected content"), CodecRaw)
	require.NoError(t, a.Backend().Put(ctx, cid.String(), []byte("tampered content")))

	_, err := a.GetBlock(ctx, cid)
	require.ErrorIs(t, err, errors.ErrBadBlock)
}

func TestSerializableRoundTrip(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	type payload struct {
		Name  string `cbor:"name"`
		Count uint64 `cbor:"count"`
	}

	cid, err := a.PutSerializable(ctx, payload{Name: "x", Count: 42})
	require.NoError(t, err)
	assert.Equal(t, CodecDagCBOR, cid.Codec())

	var out payload
	require.NoError(t, a.GetDeserializable(ctx, cid, &out))
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, uint64(42), out.Count)
}

func TestCanonicalEncoding(t *testing.T) {
	type pair struct {
		A string `cbor:"a"`
		B string `cbor:"b"`
	}

	one, err := Marshal(pair{A: "left", B: "right"})
	require.NoError(t, err)
	two, err := Marshal(pair{A: "left", B: "right"})
	require.NoError(t, err)
	assert.Equal(t, one, two)
}
