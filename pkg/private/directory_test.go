package private

import (
	"context"
	"testing"

	"github.com/thicketfs/thicket/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCreatesParents(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)

	require.NoError(t, root.Write(ctx, []string{"a", "b", "c.txt"}, []byte("deep"), testTime, true, store, rng))
	content, err := root.Read(ctx, []string{"a", "b", "c.txt"}, store)
	require.NoError(t, err)
	assert.Equal(t, "deep", string(content))

	entries, err := root.Ls(ctx, []string{"a"}, store)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
	assert.False(t, entries[0].IsFile)
}

func TestWriteOverDirectory(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Mkdir(ctx, []string{"docs"}, testTime, true, store, rng))

	err = root.Write(ctx, []string{"docs"}, []byte("clobber"), testTime, true, store, rng)
	require.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestReadMissing(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)

	_, err = root.Read(ctx, []string{"nope"}, store)
	require.ErrorIs(t, err, errors.ErrNotFound)

	// reading a directory is not-found, not a type error leak
	require.NoError(t, root.Mkdir(ctx, []string{"docs"}, testTime, true, store, rng))
	_, err = root.Read(ctx, []string{"docs"}, store)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMkdirIdempotent(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)

	require.NoError(t, root.Mkdir(ctx, []string{"docs", "work"}, testTime, true, store, rng))
	require.NoError(t, root.Mkdir(ctx, []string{"docs", "work"}, testTime, true, store, rng))

	require.NoError(t, root.Write(ctx, []string{"docs", "file"}, []byte("x"), testTime, true, store, rng))
	err = root.Mkdir(ctx, []string{"docs", "file"}, testTime, true, store, rng)
	require.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestRm(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"a.txt"}, []byte("x"), testTime, true, store, rng))

	require.NoError(t, root.Rm(ctx, []string{"a.txt"}, store))
	_, err = root.Read(ctx, []string{"a.txt"}, store)
	require.ErrorIs(t, err, errors.ErrNotFound)

	err = root.Rm(ctx, []string{"a.txt"}, store)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMv(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"old.txt"}, []byte("payload"), testTime, true, store, rng))

	require.NoError(t, root.Mv(ctx, []string{"old.txt"}, []string{"dir", "new.txt"}, testTime, true, store, rng))

	_, err = root.Read(ctx, []string{"old.txt"}, store)
	require.ErrorIs(t, err, errors.ErrNotFound)
	content, err := root.Read(ctx, []string{"dir", "new.txt"}, store)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestMvOntoExisting(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"a"}, []byte("a"), testTime, true, store, rng))
	require.NoError(t, root.Write(ctx, []string{"b"}, []byte("b"), testTime, true, store, rng))

	err = root.Mv(ctx, []string{"a"}, []string{"b"}, testTime, true, store, rng)
	require.ErrorIs(t, err, errors.ErrAlreadyExists)

	err = root.Mv(ctx, []string{"missing"}, []string{"c"}, testTime, true, store, rng)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMvIntoOwnSubtree(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"a", "keep.txt"}, []byte("keep"), testTime, true, store, rng))

	err = root.Mv(ctx, []string{"a"}, []string{"a", "b"}, testTime, true, store, rng)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	err = root.Mv(ctx, []string{"a"}, []string{"a"}, testTime, true, store, rng)
	require.ErrorIs(t, err, errors.ErrInvalidInput)

	// the rejected move must leave the tree untouched
	content, err := root.Read(ctx, []string{"a", "keep.txt"}, store)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(content))
	entries, err := root.Ls(ctx, nil, store)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name)
}

func TestLookupThroughFile(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"f"}, []byte("x"), testTime, true, store, rng))

	// walking through a file is a lookup failure, not a collision
	err = root.Rm(ctx, []string{"f", "child"}, store)
	require.ErrorIs(t, err, errors.ErrNotFound)
	err = root.Mv(ctx, []string{"f", "child"}, []string{"g"}, testTime, true, store, rng)
	require.ErrorIs(t, err, errors.ErrNotFound)
	require.ErrorIs(t, err, errors.ErrNotADirectory)
}

func TestCpIndependence(t *testing.T) {
	f, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	require.NoError(t, root.Write(ctx, []string{"src", "file.txt"}, []byte("original"), testTime, true, store, rng))
	_, err = root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	require.NoError(t, root.Cp(ctx, []string{"src"}, []string{"dst"}, testTime, true, store, rng))
	_, err = root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	// mutating the copy leaves the original alone, and vice versa
	require.NoError(t, root.Write(ctx, []string{"dst", "file.txt"}, []byte("changed copy"), testTime, true, store, rng))
	_, err = root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	content, err := root.Read(ctx, []string{"src", "file.txt"}, store)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	require.NoError(t, root.Write(ctx, []string{"src", "file.txt"}, []byte("changed original"), testTime, true, store, rng))
	_, err = root.Store(ctx, f, store, rng)
	require.NoError(t, err)

	content, err = root.Read(ctx, []string{"dst", "file.txt"}, store)
	require.NoError(t, err)
	assert.Equal(t, "changed copy", string(content))
}

func TestLsSorted(t *testing.T) {
	_, store, rng := setupTree(t)
	ctx := context.Background()

	root, err := NewDirectory(testTime, rng)
	require.NoError(t, err)
	for _, name := range []string{"zoo", "alpha", "mid"} {
		require.NoError(t, root.Write(ctx, []string{name}, []byte(name), testTime, true, store, rng))
	}

	entries, err := root.Ls(ctx, nil, store)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "mid", entries[1].Name)
	assert.Equal(t, "zoo", entries[2].Name)

	_, err = root.Ls(ctx, []string{"alpha"}, store)
	require.ErrorIs(t, err, errors.ErrNotADirectory)
}

func TestCryptoRoundTrip(t *testing.T) {
	_, _, rng := setupTree(t)

	key := deriveKey([]byte("some seed material"), infoTemporalKey)
	require.Len(t, key, KeySize)

	ciphertext, err := encrypt(key, []byte("plaintext"), rng)
	require.NoError(t, err)
	plaintext, err := decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "plaintext", string(plaintext))

	other := deriveKey([]byte("other seed material"), infoTemporalKey)
	_, err = decrypt(other, ciphertext)
	require.ErrorIs(t, err, errors.ErrDecryption)

	_, err = decrypt(key, []byte("short"))
	require.ErrorIs(t, err, errors.ErrDecryption)
}
