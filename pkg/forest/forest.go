// Package forest implements the authenticated, append-only map indexing
// encrypted node versions by blinded (accumulated) names.
//
// The forest never forgets: every write appends a new versioned entry
// under its label, and "latest" is resolved causally from version depth
// markers, not wall-clock time. An old forest root id therefore stays
// valid and readable after newer writes, which is what makes cheap
// snapshot isolation possible for readers.
package forest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
)

// Entry is one version of a node under a label
type Entry struct {
	// Depth is the causal version marker: the length of the node's
	// ancestor version chain.
	Depth uint64 `cbor:"depth"`

	// Cid addresses the ciphertext block of this version
	Cid []byte `cbor:"cid"`
}

// ContentCid parses the entry's block address
func (e Entry) ContentCid() (blockstore.Cid, error) {
	return blockstore.ParseCid(e.Cid)
}

// Forest is the in-memory form of the authenticated map
type Forest struct {
	mu      sync.RWMutex
	setup   *AccumulatorSetup
	entries map[string][]Entry
}

// forestBlock is the single-block serialized form
type forestBlock struct {
	Setup   *AccumulatorSetup  `cbor:"setup"`
	Entries map[string][]Entry `cbor:"entries"`
}

// New creates a forest over existing setup parameters
func New(setup *AccumulatorSetup) *Forest {
	return &Forest{
		setup:   setup,
		entries: make(map[string][]Entry),
	}
}

// NewTrusted runs a fresh trusted setup and creates an empty forest
func NewTrusted(r io.Reader) (*Forest, error) {
	setup, err := NewTrustedSetup(r)
	if err != nil {
		return nil, err
	}
	return New(setup), nil
}

// Setup exposes the accumulator parameters
func (f *Forest) Setup() *AccumulatorSetup {
	return f.setup
}

// EmptyName returns the root of the name hierarchy for this forest
func (f *Forest) EmptyName() Name {
	return Name{}
}

// PutEncrypted appends ciphertext as a new version under name.
//
// Prior entries for the same name are never overwritten. Re-inserting a
// version already present (same depth, same content) is a no-op, which
// keeps the operation idempotent under retries.
func (f *Forest) PutEncrypted(ctx context.Context, name Name, depth uint64, ciphertext []byte, store *blockstore.Adapter) (blockstore.Cid, error) {
	cid, err := store.PutBlock(ctx, ciphertext, blockstore.CodecRaw)
	if err != nil {
		return blockstore.Cid{}, err
	}
	key := name.labelKey(f.setup)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries[key] {
		if e.Depth == depth && bytes.Equal(e.Cid, cid.Bytes()) {
			return cid, nil
		}
	}
	f.entries[key] = append(f.entries[key], Entry{Depth: depth, Cid: cid.Bytes()})
	return cid, nil
}

// Entries returns all versions recorded under name
func (f *Forest) Entries(name Name) []Entry {
	key := name.labelKey(f.setup)
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, len(f.entries[key]))
	copy(out, f.entries[key])
	return out
}

// HasName reports whether any version exists under name
func (f *Forest) HasName(name Name) bool {
	key := name.labelKey(f.setup)
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries[key]) > 0
}

// GetLatestEntry resolves the set of versions under name to the single
// causally-latest one.
//
// Resolution picks the entry with the greatest depth. An unresolved
// fork at equal depth is broken by the entries' own content ids,
// greatest bytes first, so the result is deterministic for every reader
// of the same forest.
func (f *Forest) GetLatestEntry(name Name) (Entry, error) {
	key := name.labelKey(f.setup)
	f.mu.RLock()
	defer f.mu.RUnlock()
	versions := f.entries[key]
	if len(versions) == 0 {
		return Entry{}, errors.ErrNotFound.Wrapf("no entry for label %s", key[:16])
	}
	best := versions[0]
	for _, e := range versions[1:] {
		if e.Depth > best.Depth ||
			(e.Depth == best.Depth && bytes.Compare(e.Cid, best.Cid) > 0) {
			best = e
		}
	}
	return best, nil
}

// GetLatest resolves name and fetches the latest ciphertext block
func (f *Forest) GetLatest(ctx context.Context, name Name, store *blockstore.Adapter) ([]byte, error) {
	entry, err := f.GetLatestEntry(name)
	if err != nil {
		return nil, err
	}
	cid, err := entry.ContentCid()
	if err != nil {
		return nil, errors.ErrBadBlock.Wrap(err)
	}
	return store.GetBlock(ctx, cid)
}

// Store serializes the entire forest, setup included, as one block and
// returns its content id: the unit of persistence between sessions.
func (f *Forest) Store(ctx context.Context, store *blockstore.Adapter) (blockstore.Cid, error) {
	f.mu.RLock()
	blk := forestBlock{
		Setup:   f.setup,
		Entries: f.entries,
	}
	data, err := blockstore.Marshal(blk)
	f.mu.RUnlock()
	if err != nil {
		return blockstore.Cid{}, errors.New("serialize forest").Wrap(err)
	}
	return store.PutBlock(ctx, data, blockstore.CodecDagCBOR)
}

// Load reads a forest back from its root content id
func Load(ctx context.Context, store *blockstore.Adapter, cid blockstore.Cid) (*Forest, error) {
	var blk forestBlock
	if err := store.GetDeserializable(ctx, cid, &blk); err != nil {
		return nil, err
	}
	if blk.Setup == nil {
		return nil, errors.ErrBadBlock.Wrapf("forest %s has no accumulator setup", cid)
	}
	if err := blk.Setup.validate(); err != nil {
		return nil, err
	}
	if blk.Entries == nil {
		blk.Entries = make(map[string][]Entry)
	}
	return &Forest{
		setup:   blk.Setup,
		entries: blk.Entries,
	}, nil
}
