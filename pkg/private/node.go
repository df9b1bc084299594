// Package private implements the encrypted directory tree: file and
// directory nodes stored as ciphertext in the forest, addressed by
// blinded names and decrypted through private refs.
package private

import (
	"bytes"
	"context"
	"io"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/forest"
)

const (
	// InlineContentThreshold is the largest file content kept inline in
	// its node; anything bigger is chunked into external blocks.
	InlineContentThreshold = 256 * units.KiB

	// ChunkSize is the plaintext size of one external content block
	ChunkSize = 1 * units.MiB
)

// Metadata carries the POSIX-ish timestamps of a node
type Metadata struct {
	Created  int64 `cbor:"created"`
	Modified int64 `cbor:"modified"`
}

// Node is a loaded private tree node: either a *Directory or a *File
type Node interface {
	Metadata() Metadata
	IsFile() bool

	// Store persists the node (and any mutated descendants) into the
	// forest and returns its private ref. Clean nodes return their
	// last persisted ref without touching the store.
	Store(ctx context.Context, f *forest.Forest, store *blockstore.Adapter, rng io.Reader) (PrivateRef, error)

	header() *nodeHeader
	isDirty() bool
	clone(ctx context.Context, store *blockstore.Adapter, rng io.Reader) (Node, error)
}

// nodeHeader is the version identity every node carries across its
// lifetime: a stable inumber, the seed all its keys derive from, and
// the causal depth marker bumped on each persisted version.
type nodeHeader struct {
	inumber []byte
	seed    []byte
	depth   uint64
	meta    Metadata
}

func newHeader(mtime time.Time, rng io.Reader) (nodeHeader, error) {
	seed := make([]byte, KeySize)
	if _, err := io.ReadFull(rng, seed); err != nil {
		return nodeHeader{}, errors.New("draw node seed").Wrap(err)
	}
	inumber, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return nodeHeader{}, errors.New("draw inumber").Wrap(err)
	}
	ts := mtime.Unix()
	return nodeHeader{
		inumber: inumber[:],
		seed:    seed,
		meta:    Metadata{Created: ts, Modified: ts},
	}, nil
}

func (h *nodeHeader) temporalKey() []byte {
	return deriveKey(h.seed, infoTemporalKey)
}

func (h *nodeHeader) name() forest.Name {
	return forest.NewName(forest.NewSegmentFromBytes(deriveKey(h.seed, infoLabelSeed)))
}

// nodeBlock is the serialized (pre-encryption) form of a node
type nodeBlock struct {
	Inumber []byte                `cbor:"inumber"`
	Seed    []byte                `cbor:"seed"`
	Depth   uint64                `cbor:"depth"`
	Meta    Metadata              `cbor:"metadata"`
	IsFile  bool                  `cbor:"isFile"`
	Entries map[string]PrivateRef `cbor:"entries,omitempty"`
	Content []byte                `cbor:"content,omitempty"`
	Chunks  [][]byte              `cbor:"chunks,omitempty"`
	Size    int64                 `cbor:"size,omitempty"`
}

// link binds a child name inside a directory to the child's ref, and
// caches the loaded child node once fetched.
type link struct {
	ref  PrivateRef
	node Node
}

// Directory is a loaded private directory node
type Directory struct {
	hdr     nodeHeader
	entries map[string]*link
	dirty   bool
	lastRef *PrivateRef
}

// File is a loaded private file node
type File struct {
	hdr     nodeHeader
	content []byte
	chunks  []blockstore.Cid
	size    int64
	dirty   bool
	lastRef *PrivateRef
}

// NewDirectory creates an empty directory node, not yet persisted
func NewDirectory(mtime time.Time, rng io.Reader) (*Directory, error) {
	hdr, err := newHeader(mtime, rng)
	if err != nil {
		return nil, err
	}
	return &Directory{
		hdr:     hdr,
		entries: make(map[string]*link),
		dirty:   true,
	}, nil
}

func newFile(content []byte, mtime time.Time, rng io.Reader) (*File, error) {
	hdr, err := newHeader(mtime, rng)
	if err != nil {
		return nil, err
	}
	f := &File{hdr: hdr, dirty: true}
	f.setContent(content, mtime)
	return f, nil
}

// Metadata of the directory
func (d *Directory) Metadata() Metadata { return d.hdr.meta }

// IsFile is false for directories
func (d *Directory) IsFile() bool { return false }

func (d *Directory) header() *nodeHeader { return &d.hdr }
func (d *Directory) isDirty() bool       { return d.dirty }

// Metadata of the file
func (f *File) Metadata() Metadata { return f.hdr.meta }

// IsFile is true for files
func (f *File) IsFile() bool { return true }

func (f *File) header() *nodeHeader { return &f.hdr }
func (f *File) isDirty() bool       { return f.dirty }

func (f *File) setContent(content []byte, mtime time.Time) {
	f.content = make([]byte, len(content))
	copy(f.content, content)
	f.chunks = nil
	f.size = int64(len(content))
	f.hdr.meta.Modified = mtime.Unix()
	f.dirty = true
}

// Store persists the directory bottom-up: mutated children first, then
// the directory itself when it (or any child ref) changed.
func (d *Directory) Store(ctx context.Context, f *forest.Forest, store *blockstore.Adapter, rng io.Reader) (PrivateRef, error) {
	for _, ln := range d.entries {
		if ln.node == nil {
			continue
		}
		ref, err := ln.node.Store(ctx, f, store, rng)
		if err != nil {
			return PrivateRef{}, err
		}
		if !bytes.Equal(ref.ContentCid, ln.ref.ContentCid) {
			ln.ref = ref
			d.dirty = true
		}
	}
	if !d.dirty && d.lastRef != nil {
		return *d.lastRef, nil
	}

	d.hdr.depth++
	blk := nodeBlock{
		Inumber: d.hdr.inumber,
		Seed:    d.hdr.seed,
		Depth:   d.hdr.depth,
		Meta:    d.hdr.meta,
		Entries: make(map[string]PrivateRef, len(d.entries)),
	}
	for name, ln := range d.entries {
		blk.Entries[name] = ln.ref
	}
	ref, err := persistBlock(ctx, &blk, &d.hdr, f, store, rng)
	if err != nil {
		return PrivateRef{}, err
	}
	d.dirty = false
	d.lastRef = &ref
	return ref, nil
}

// Store persists the file, chunking content above the inline threshold
func (f *File) Store(ctx context.Context, fst *forest.Forest, store *blockstore.Adapter, rng io.Reader) (PrivateRef, error) {
	if !f.dirty && f.lastRef != nil {
		return *f.lastRef, nil
	}

	f.hdr.depth++
	blk := nodeBlock{
		Inumber: f.hdr.inumber,
		Seed:    f.hdr.seed,
		Depth:   f.hdr.depth,
		Meta:    f.hdr.meta,
		IsFile:  true,
		Size:    f.size,
	}
	if f.content != nil && int64(len(f.content)) > InlineContentThreshold {
		chunks, err := f.storeChunks(ctx, store, rng)
		if err != nil {
			return PrivateRef{}, err
		}
		f.chunks = chunks
		f.content = nil
	}
	if f.content != nil {
		blk.Content = f.content
	} else {
		blk.Chunks = make([][]byte, len(f.chunks))
		for i, c := range f.chunks {
			blk.Chunks[i] = c.Bytes()
		}
	}
	ref, err := persistBlock(ctx, &blk, &f.hdr, fst, store, rng)
	if err != nil {
		return PrivateRef{}, err
	}
	f.dirty = false
	f.lastRef = &ref
	return ref, nil
}

// storeChunks encrypts the in-memory content chunk by chunk under the
// file's temporal key and writes each as a raw block.
func (f *File) storeChunks(ctx context.Context, store *blockstore.Adapter, rng io.Reader) ([]blockstore.Cid, error) {
	key := f.hdr.temporalKey()
	var cids []blockstore.Cid
	for off := int64(0); off < int64(len(f.content)); off += ChunkSize {
		end := off + ChunkSize
		if end > int64(len(f.content)) {
			end = int64(len(f.content))
		}
		ct, err := encrypt(key, f.content[off:end], rng)
		if err != nil {
			return nil, err
		}
		cid, err := store.PutBlock(ctx, ct, blockstore.CodecRaw)
		if err != nil {
			return nil, err
		}
		cids = append(cids, cid)
	}
	return cids, nil
}

// Content reassembles the file's plaintext, fetching external chunks
// when the content was too large to inline.
func (f *File) Content(ctx context.Context, store *blockstore.Adapter) ([]byte, error) {
	if f.content != nil {
		out := make([]byte, len(f.content))
		copy(out, f.content)
		return out, nil
	}
	key := f.hdr.temporalKey()
	out := make([]byte, 0, f.size)
	for _, cid := range f.chunks {
		ct, err := store.GetBlock(ctx, cid)
		if err != nil {
			return nil, err
		}
		pt, err := decrypt(key, ct)
		if err != nil {
			return nil, err
		}
		out = append(out, pt...)
	}
	return out, nil
}

// persistBlock encrypts a serialized node under its temporal key and
// appends it to the forest at the node's blinded name.
func persistBlock(ctx context.Context, blk *nodeBlock, hdr *nodeHeader, f *forest.Forest, store *blockstore.Adapter, rng io.Reader) (PrivateRef, error) {
	plaintext, err := blockstore.Marshal(blk)
	if err != nil {
		return PrivateRef{}, errors.New("serialize node").Wrap(err)
	}
	key := hdr.temporalKey()
	ciphertext, err := encrypt(key, plaintext, rng)
	if err != nil {
		return PrivateRef{}, err
	}
	cid, err := f.PutEncrypted(ctx, hdr.name(), hdr.depth, ciphertext, store)
	if err != nil {
		return PrivateRef{}, err
	}
	return PrivateRef{
		LabelSeed:   deriveKey(hdr.seed, infoLabelSeed),
		TemporalKey: key,
		ContentCid:  cid.Bytes(),
	}, nil
}

// LoadNode fetches and decrypts the exact node version a ref pins
func LoadNode(ctx context.Context, ref PrivateRef, store *blockstore.Adapter) (Node, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	cid, err := ref.Cid()
	if err != nil {
		return nil, err
	}
	ciphertext, err := store.GetBlock(ctx, cid)
	if err != nil {
		return nil, err
	}
	return decodeNode(ref, ciphertext)
}

// SearchLatest resolves a ref to the causally-latest version of its
// node, which may be newer than the version the ref was created from.
func SearchLatest(ctx context.Context, ref PrivateRef, f *forest.Forest, store *blockstore.Adapter) (Node, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	entry, err := f.GetLatestEntry(ref.Name())
	if err != nil {
		return nil, err
	}
	cid, err := entry.ContentCid()
	if err != nil {
		return nil, errors.ErrBadBlock.Wrap(err)
	}
	ciphertext, err := store.GetBlock(ctx, cid)
	if err != nil {
		return nil, err
	}
	latest := ref
	latest.ContentCid = cid.Bytes()
	return decodeNode(latest, ciphertext)
}

func decodeNode(ref PrivateRef, ciphertext []byte) (Node, error) {
	plaintext, err := decrypt(ref.TemporalKey, ciphertext)
	if err != nil {
		return nil, err
	}
	var blk nodeBlock
	if err := blockstore.Unmarshal(plaintext, &blk); err != nil {
		return nil, errors.ErrDecryption.Wrap(err)
	}
	hdr := nodeHeader{
		inumber: blk.Inumber,
		seed:    blk.Seed,
		depth:   blk.Depth,
		meta:    blk.Meta,
	}
	if blk.IsFile {
		f := &File{
			hdr:     hdr,
			size:    blk.Size,
			lastRef: &ref,
		}
		if blk.Chunks != nil {
			for _, raw := range blk.Chunks {
				cid, err := blockstore.ParseCid(raw)
				if err != nil {
					return nil, errors.ErrDecryption.Wrap(err)
				}
				f.chunks = append(f.chunks, cid)
			}
		} else {
			f.content = blk.Content
			if f.content == nil {
				f.content = []byte{}
			}
		}
		return f, nil
	}
	d := &Directory{
		hdr:     hdr,
		entries: make(map[string]*link, len(blk.Entries)),
		lastRef: &ref,
	}
	for name, childRef := range blk.Entries {
		d.entries[name] = &link{ref: childRef}
	}
	return d, nil
}

func (f *File) clone(ctx context.Context, store *blockstore.Adapter, rng io.Reader) (Node, error) {
	content, err := f.Content(ctx, store)
	if err != nil {
		return nil, err
	}
	hdr, err := newHeader(time.Unix(f.hdr.meta.Modified, 0), rng)
	if err != nil {
		return nil, err
	}
	hdr.meta = f.hdr.meta
	out := &File{hdr: hdr, dirty: true}
	out.content = content
	out.size = int64(len(content))
	return out, nil
}

func (d *Directory) clone(_ context.Context, store *blockstore.Adapter, rng io.Reader) (Node, error) {
	hdr, err := newHeader(time.Unix(d.hdr.meta.Modified, 0), rng)
	if err != nil {
		return nil, err
	}
	hdr.meta = d.hdr.meta
	out := &Directory{
		hdr:     hdr,
		entries: make(map[string]*link, len(d.entries)),
		dirty:   true,
	}
	// children are shared by ref: content addressing keeps the original
	// versions intact, and any later write under the copy replaces the
	// copied entry's ref without touching the source tree
	for name, ln := range d.entries {
		out.entries[name] = &link{ref: ln.ref}
	}
	return out, nil
}
