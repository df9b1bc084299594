// Package blockstore provides the content-addressed adapter between the
// filesystem layers and a pluggable storage backend.
//
// All persisted state flows through here: the adapter computes the
// content id of every block before delegating to the backend, making
// backend writes logically idempotent, and verifies fetched blocks
// against their id before returning them.
package blockstore

import (
	"context"

	units "github.com/docker/go-units"
	lru "github.com/hashicorp/golang-lru"
	"github.com/thicketfs/thicket/pkg/dlogger"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/storage"
	"go.uber.org/zap"
)

const (
	// DefaultCacheSize sets the default target LRU block cache in bytes
	DefaultCacheSize = 50 * units.MiB

	// MaxBlockSize bounds a single block. Nodes and forest snapshots stay
	// well under this; file content above the inline threshold is chunked
	// by the private layer.
	MaxBlockSize = 2 * units.MiB
)

// Adapter is a content-addressed view over a storage backend
type Adapter struct {
	backend storage.Store
	cache   *lru.Cache
	l       *zap.Logger
}

// Option to configure the adapter
type Option func(*Adapter)

// Logger overrides the default logger
func Logger(l *zap.Logger) Option {
	return func(a *Adapter) {
		a.l = l
	}
}

// CacheSize sets the target byte size of the read cache
func CacheSize(sz int64) Option {
	return func(a *Adapter) {
		a.cacheEntriesFromBytes(sz)
	}
}

// New creates an adapter over the given backend
func New(backend storage.Store, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		backend: backend,
		l:       dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	a.cacheEntriesFromBytes(DefaultCacheSize)
	for _, apply := range opts {
		apply(a)
	}
	return a, nil
}

func (a *Adapter) cacheEntriesFromBytes(sz int64) {
	entries := int(sz / MaxBlockSize)
	if entries < 1 {
		entries = 1
	}
	cache, err := lru.New(entries)
	if err != nil {
		// lru.New fails only on a non-positive size
		panic(err)
	}
	a.cache = cache
}

// PutBlock stores a block and returns its content id.
//
// The id is computed before the backend is touched: writing identical
// content twice yields the same id and skips the second backend write.
func (a *Adapter) PutBlock(ctx context.Context, data []byte, codec uint8) (Cid, error) {
	if err := ctx.Err(); err != nil {
		return Cid{}, err
	}
	cid := NewCid(data, codec)
	key := cid.String()

	has, err := a.backend.Has(ctx, key)
	if err != nil {
		return Cid{}, errors.ErrBackend.Wrap(err)
	}
	if has {
		return cid, nil
	}
	if err := a.backend.Put(ctx, key, data); err != nil {
		a.l.Error("block write failed", zap.String("cid", key), zap.Error(err))
		return Cid{}, errors.ErrBackend.Wrap(err)
	}
	a.l.Debug("block written", zap.String("cid", key), zap.Int("size", len(data)))
	return cid, nil
}

// GetBlock fetches a block by content id, verifying it against the id
func (a *Adapter) GetBlock(ctx context.Context, cid Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cid.IsZero() {
		return nil, errors.ErrInvalidInput.Wrapf("zero content id")
	}
	key := cid.String()
	if cached, ok := a.cache.Get(key); ok {
		return cached.([]byte), nil
	}

	data, err := a.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.ErrNotFound.Wrapf("block %s", key)
		}
		return nil, errors.ErrBackend.Wrap(err)
	}
	if NewCid(data, cid.Codec()) != cid {
		return nil, errors.ErrBadBlock.Wrapf("block %s", key)
	}
	if len(data) <= MaxBlockSize {
		_, _ = a.cache.ContainsOrAdd(key, data)
	}
	return data, nil
}

// HasBlock reports whether the backend holds the block
func (a *Adapter) HasBlock(ctx context.Context, cid Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	has, err := a.backend.Has(ctx, cid.String())
	if err != nil {
		return false, errors.ErrBackend.Wrap(err)
	}
	return has, nil
}

// Backend exposes the underlying store (e.g. for listing keys)
func (a *Adapter) Backend() storage.Store {
	return a.backend
}
