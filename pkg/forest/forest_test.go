package forest

import (
	"context"
	"testing"

	"github.com/thicketfs/thicket/internal/randx"
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/storage/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupForest(t *testing.T) (*Forest, *blockstore.Adapter) {
	f, err := NewTrusted(randx.Seeded([randx.SeedSize]byte{3}))
	require.NoError(t, err)
	store, err := blockstore.New(mem.New())
	require.NoError(t, err)
	return f, store
}

func TestPutEncryptedAppendOnly(t *testing.T) {
	f, store := setupForest(t)
	ctx := context.Background()
	name := NewName(NewSegmentFromString("node"))

	one, err := f.PutEncrypted(ctx, name, 0, []byte("version zero"), store)
	require.NoError(t, err)
	two, err := f.PutEncrypted(ctx, name, 1, []byte("version one"), store)
	require.NoError(t, err)
	assert.NotEqual(t, one, two)

	entries := f.Entries(name)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(0), entries[0].Depth)
	assert.Equal(t, uint64(1), entries[1].Depth)
}

func TestPutEncryptedIdempotent(t *testing.T) {
	f, store := setupForest(t)
	ctx := context.Background()
	name := NewName(NewSegmentFromString("node"))

	one, err := f.PutEncrypted(ctx, name, 4, []byte("same bytes"), store)
	require.NoError(t, err)
	two, err := f.PutEncrypted(ctx, name, 4, []byte("same bytes"), store)
	require.NoError(t, err)
	assert.Equal(t, one, two)
	assert.Len(t, f.Entries(name), 1)
}

func TestGetLatestEntry(t *testing.T) {
	f, store := setupForest(t)
	ctx := context.Background()
	name := NewName(NewSegmentFromString("node"))

	_, err := f.GetLatestEntry(name)
	require.ErrorIs(t, err, errors.ErrNotFound)

	_, err = f.PutEncrypted(ctx, name, 0, []byte("old"), store)
	require.NoError(t, err)
	latest, err := f.PutEncrypted(ctx, name, 7, []byte("new"), store)
	require.NoError(t, err)

	entry, err := f.GetLatestEntry(name)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), entry.Depth)
	cid, err := entry.ContentCid()
	require.NoError(t, err)
	assert.Equal(t, latest, cid)

	data, err := f.GetLatest(ctx, name, store)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestGetLatestEntryForkResolution(t *testing.T) {
	f, store := setupForest(t)
	ctx := context.Background()
	name := NewName(NewSegmentFromString("node"))

	// two writers racing at the same depth: every reader must resolve
	// the fork to the same winner
	a, err := f.PutEncrypted(ctx, name, 3, []byte("fork a"), store)
	require.NoError(t, err)
	b, err := f.PutEncrypted(ctx, name, 3, []byte("fork b"), store)
	require.NoError(t, err)

	winner := a
	if winner.Less(b) {
		winner = b
	}
	entry, err := f.GetLatestEntry(name)
	require.NoError(t, err)
	cid, err := entry.ContentCid()
	require.NoError(t, err)
	assert.Equal(t, winner, cid)
}

func TestForestStoreLoad(t *testing.T) {
	f, store := setupForest(t)
	ctx := context.Background()
	name := NewName(NewSegmentFromString("node"))

	_, err := f.PutEncrypted(ctx, name, 0, []byte("payload"), store)
	require.NoError(t, err)

	cid, err := f.Store(ctx, store)
	require.NoError(t, err)

	loaded, err := Load(ctx, store, cid)
	require.NoError(t, err)
	assert.True(t, loaded.HasName(name))

	data, err := loaded.GetLatest(ctx, name, store)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// storing an unchanged forest is stable
	again, err := loaded.Store(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, cid, again)
}

func TestLoadRejectsNonForestBlock(t *testing.T) {
	_, store := setupForest(t)
	ctx := context.Background()

	cid, err := store.PutBlock(ctx, []byte("not a forest"), blockstore.CodecDagCBOR)
	require.NoError(t, err)
	_, err = Load(ctx, store, cid)
	require.Error(t, err)
}
