package private

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/thicketfs/thicket/internal/randx"
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/forest"
	"github.com/thicketfs/thicket/pkg/storage/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Unix(1700000000, 0)

// setupTree returns a fresh forest over an in-memory store. The rng is
// a deterministic stream: every draw advances it, so each node still
// gets distinct key material.
func setupTree(t *testing.T) (*forest.Forest, *blockstore.Adapter, io.Reader) {
	f, err := forest.NewTrusted(randx.Seeded([randx.SeedSize]byte{7}))
	require.NoError(t, err)
	store, err := blockstore.New(mem.New())
	require.NoError(t, err)
	return f, store, randx.Seeded([randx.SeedSize]byte{8})
}

func TestFileNodeRoundTrip(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"hello.txt"}, []byte("hello world"), testTime, true, store, rng))

	ref, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	node, err := LoadNode(ctx, ref, store)
	require.NoError(t, err)
	dir, ok := node.(*Directory)
	require.True(t, ok)
	assert.False(t, dir.IsFile())

	content, err := dir.Read(ctx, []string{"hello.txt"}, store)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
}

func TestStoreCleanNodeIsStable(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"a"}, []byte("a"), testTime, true, store, rng))

	ref, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	// no mutation in between: the same version is returned, nothing new
	// enters the forest
	entries := len(f.Entries(ref.Name()))
	again, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
	assert.Len(t, f.Entries(ref.Name()), entries)
}

func TestStoreBumpsDepth(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"a"}, []byte("one"), testTime, true, store, rng))
	first, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	require.NoError(t, root.Write(ctx, []string{"a"}, []byte("two"), testTime, true, store, rng))
	second, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	// same label seed, new version under it
	assert.Equal(t, first.LabelSeed, second.LabelSeed)
	assert.NotEqual(t, first.ContentCid, second.ContentCid)
	assert.Len(t, f.Entries(first.Name()), 2)
}

func TestChunkedFileContent(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	big := bytes.Repeat([]byte("0123456789abcdef"), (InlineContentThreshold/16)+1024)
	require.Greater(t, int64(len(big)), int64(InlineContentThreshold))

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"blob.bin"}, big, testTime, true, store, rng))

	ref, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	node, err := LoadNode(ctx, ref, store)
	require.NoError(t, err)
	dir := node.(*Directory)

	content, err := dir.Read(ctx, []string{"blob.bin"}, store)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(big, content))

	// the file node itself holds chunk addresses, not inline content
	fileNode, err := dir.lookupNode(ctx, []string{"blob.bin"}, store)
	require.NoError(t, err)
	file := fileNode.(*File)
	assert.Nil(t, file.content)
	assert.NotEmpty(t, file.chunks)
}

func TestSearchLatestFollowsVersions(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"a"}, []byte("one"), testTime, true, store, rng))
	first, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	require.NoError(t, root.Write(ctx, []string{"a"}, []byte("two"), testTime, true, store, rng))
	_, err = root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	// a stale ref pins its own version
	pinned, err := LoadNode(ctx, first, store)
	require.NoError(t, err)
	content, err := pinned.(*Directory).Read(ctx, []string{"a"}, store)
	require.NoError(t, err)
	assert.Equal(t, "one", string(content))

	// searching from the stale ref finds the newest version
	latest, err := SearchLatest(ctx, first, f, store)
	require.NoError(t, err)
	content, err = latest.(*Directory).Read(ctx, []string{"a"}, store)
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))
}

func TestLoadNodeWrongKey(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	ref, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	tampered := ref
	tampered.TemporalKey = bytes.Repeat([]byte{0xaa}, KeySize)
	_, err = LoadNode(ctx, tampered, store)
	require.ErrorIs(t, err, errors.ErrDecryption)
}

func TestRefRoundTrip(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	ref, err := root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	raw, err := ref.Marshal()
	require.NoError(t, err)
	back, err := UnmarshalRef(raw)
	require.NoError(t, err)
	assert.Equal(t, ref, back)

	_, err = UnmarshalRef([]byte("garbage"))
	require.Error(t, err)
}
