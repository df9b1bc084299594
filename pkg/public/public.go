// Package public implements a minimal unencrypted directory tree used
// for intentionally public metadata, such as published exchange keys.
//
// Public nodes are plain CBOR blocks addressed directly by content id;
// they live outside the private forest and carry no key material.
package public

import (
	"context"
	"time"

	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
)

// node is the serialized form of a public tree node
type node struct {
	Meta    Metadata          `cbor:"metadata"`
	IsFile  bool              `cbor:"isFile"`
	Entries map[string][]byte `cbor:"entries,omitempty"`
	Content []byte            `cbor:"content,omitempty"`
}

// Metadata carries a public node's timestamps
type Metadata struct {
	Created  int64 `cbor:"created"`
	Modified int64 `cbor:"modified"`
}

// Directory is a loaded public directory
type Directory struct {
	meta    Metadata
	entries map[string]blockstore.Cid
}

// NewDirectory creates an empty public directory
func NewDirectory(mtime time.Time) *Directory {
	ts := mtime.Unix()
	return &Directory{
		meta:    Metadata{Created: ts, Modified: ts},
		entries: make(map[string]blockstore.Cid),
	}
}

// Load reads a public directory back from its content id
func Load(ctx context.Context, store *blockstore.Adapter, cid blockstore.Cid) (*Directory, error) {
	var blk node
	if err := store.GetDeserializable(ctx, cid, &blk); err != nil {
		return nil, err
	}
	if blk.IsFile {
		return nil, errors.ErrNotADirectory.Wrapf("public node %s is a file", cid)
	}
	d := &Directory{
		meta:    blk.Meta,
		entries: make(map[string]blockstore.Cid, len(blk.Entries)),
	}
	for name, raw := range blk.Entries {
		c, err := blockstore.ParseCid(raw)
		if err != nil {
			return nil, errors.ErrBadBlock.Wrap(err)
		}
		d.entries[name] = c
	}
	return d, nil
}

// Write links the block at contentCid under path, creating intermediate
// directories, and returns nothing: the tree is persisted by Store.
func (d *Directory) Write(ctx context.Context, path []string, contentCid blockstore.Cid, mtime time.Time, store *blockstore.Adapter) error {
	if len(path) == 0 {
		return errors.ErrInvalidInput.Wrapf("cannot write to the public root")
	}
	if len(path) == 1 {
		file := node{
			Meta:    Metadata{Created: mtime.Unix(), Modified: mtime.Unix()},
			IsFile:  true,
			Content: contentCid.Bytes(),
		}
		cid, err := store.PutSerializable(ctx, file)
		if err != nil {
			return err
		}
		d.entries[path[0]] = cid
		d.meta.Modified = mtime.Unix()
		return nil
	}

	var child *Directory
	if existing, ok := d.entries[path[0]]; ok {
		loaded, err := Load(ctx, store, existing)
		if err != nil {
			return err
		}
		child = loaded
	} else {
		child = NewDirectory(mtime)
	}
	if err := child.Write(ctx, path[1:], contentCid, mtime, store); err != nil {
		return err
	}
	childCid, err := child.Store(ctx, store)
	if err != nil {
		return err
	}
	d.entries[path[0]] = childCid
	d.meta.Modified = mtime.Unix()
	return nil
}

// Get resolves path to the content id linked there
func (d *Directory) Get(ctx context.Context, path []string, store *blockstore.Adapter) (blockstore.Cid, error) {
	if len(path) == 0 {
		return blockstore.Cid{}, errors.ErrInvalidInput.Wrapf("empty public path")
	}
	cid, ok := d.entries[path[0]]
	if !ok {
		return blockstore.Cid{}, errors.ErrNotFound.Wrapf("public path segment %q", path[0])
	}
	var blk node
	if err := store.GetDeserializable(ctx, cid, &blk); err != nil {
		return blockstore.Cid{}, err
	}
	if len(path) == 1 {
		if !blk.IsFile {
			return blockstore.Cid{}, errors.ErrNotFound.Wrapf("public path %q is a directory", path[0])
		}
		return blockstore.ParseCid(blk.Content)
	}
	if blk.IsFile {
		return blockstore.Cid{}, errors.ErrNotADirectory.Wrapf("public path segment %q", path[0])
	}
	child, err := Load(ctx, store, cid)
	if err != nil {
		return blockstore.Cid{}, err
	}
	return child.Get(ctx, path[1:], store)
}

// Store persists the directory as a CBOR block and returns its id
func (d *Directory) Store(ctx context.Context, store *blockstore.Adapter) (blockstore.Cid, error) {
	blk := node{
		Meta:    d.meta,
		Entries: make(map[string][]byte, len(d.entries)),
	}
	for name, cid := range d.entries {
		blk.Entries[name] = cid.Bytes()
	}
	return store.PutSerializable(ctx, blk)
}
