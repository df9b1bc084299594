package private

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
)

// DirEntry is one listed child of a directory
type DirEntry struct {
	Name     string
	Metadata Metadata
	IsFile   bool
}

// loadLink returns the loaded child node behind a link, fetching and
// caching it on first access.
func (d *Directory) loadLink(ctx context.Context, ln *link, store *blockstore.Adapter) (Node, error) {
	if ln.node != nil {
		return ln.node, nil
	}
	node, err := LoadNode(ctx, ln.ref, store)
	if err != nil {
		return nil, err
	}
	ln.node = node
	return node, nil
}

// lookupNode walks the path and returns the node at its end.
// An empty path resolves to d itself.
func (d *Directory) lookupNode(ctx context.Context, path []string, store *blockstore.Adapter) (Node, error) {
	if len(path) == 0 {
		return d, nil
	}
	cur := d
	for i, seg := range path {
		ln, ok := cur.entries[seg]
		if !ok {
			return nil, errors.ErrNotFound.Wrapf("path segment %q", seg)
		}
		node, err := d.loadLink(ctx, ln, store)
		if err != nil {
			return nil, err
		}
		if i == len(path)-1 {
			return node, nil
		}
		next, ok := node.(*Directory)
		if !ok {
			return nil, errors.ErrNotADirectory.Wrapf("path segment %q", seg)
		}
		cur = next
	}
	return nil, errors.ErrNotFound.Wrapf("empty path")
}

// getDir walks the path to a directory, optionally creating missing
// intermediate directories ("mkdir -p").
func (d *Directory) getDir(ctx context.Context, path []string, create bool, mtime time.Time, store *blockstore.Adapter, rng io.Reader) (*Directory, error) {
	cur := d
	for _, seg := range path {
		ln, ok := cur.entries[seg]
		if !ok {
			if !create {
				return nil, errors.ErrNotFound.Wrapf("path segment %q", seg)
			}
			child, err := NewDirectory(mtime, rng)
			if err != nil {
				return nil, err
			}
			cur.entries[seg] = &link{node: child}
			cur.dirty = true
			cur = child
			continue
		}
		node, err := cur.loadLink(ctx, ln, store)
		if err != nil {
			return nil, err
		}
		next, ok := node.(*Directory)
		if !ok {
			if !create {
				// lookup failure: the path does not exist as given
				return nil, errors.ErrNotFound.Wrap(errors.ErrNotADirectory.Wrapf("path segment %q is a file", seg))
			}
			return nil, errors.ErrAlreadyExists.Wrapf("%q exists and is not a directory", seg)
		}
		cur = next
	}
	return cur, nil
}

// Read returns the content of the file at path
func (d *Directory) Read(ctx context.Context, path []string, store *blockstore.Adapter) ([]byte, error) {
	node, err := d.lookupNode(ctx, path, store)
	if err != nil {
		if errors.Is(err, errors.ErrNotADirectory) {
			return nil, errors.ErrNotFound.Wrap(err)
		}
		return nil, err
	}
	file, ok := node.(*File)
	if !ok {
		return nil, errors.ErrNotFound.Wrap(errors.ErrNotAFile.Wrapf("%v is a directory", path))
	}
	return file.Content(ctx, store)
}

// Write replaces (or creates) the file at path with content.
//
// With create set, missing intermediate directories are created along
// the way; without it, a missing ancestor fails with not-found.
func (d *Directory) Write(ctx context.Context, path []string, content []byte, mtime time.Time, create bool, store *blockstore.Adapter, rng io.Reader) error {
	if len(path) == 0 {
		return errors.ErrInvalidInput.Wrapf("cannot write to the root directory")
	}
	parent, err := d.getDir(ctx, path[:len(path)-1], create, mtime, store, rng)
	if err != nil {
		return err
	}
	name := path[len(path)-1]
	if ln, ok := parent.entries[name]; ok {
		node, err := parent.loadLink(ctx, ln, store)
		if err != nil {
			return err
		}
		file, ok := node.(*File)
		if !ok {
			return errors.ErrAlreadyExists.Wrapf("%q exists and is not a file", name)
		}
		file.setContent(content, mtime)
		parent.dirty = true
		return nil
	}
	file, err := newFile(content, mtime, rng)
	if err != nil {
		return err
	}
	parent.entries[name] = &link{node: file}
	parent.dirty = true
	return nil
}

// Mkdir creates the directory at path. Creating an existing directory
// is a no-op; a non-directory node in the way fails with already-exists.
func (d *Directory) Mkdir(ctx context.Context, path []string, mtime time.Time, create bool, store *blockstore.Adapter, rng io.Reader) error {
	if len(path) == 0 {
		return nil
	}
	prefix, last := path[:len(path)-1], path[len(path)-1]
	parent, err := d.getDir(ctx, prefix, create, mtime, store, rng)
	if err != nil {
		return err
	}
	_, err = parent.getDir(ctx, []string{last}, true, mtime, store, rng)
	return err
}

// Rm unlinks the node at path from its parent. The orphaned ciphertext
// stays in the forest: space reclamation is out of scope.
func (d *Directory) Rm(ctx context.Context, path []string, store *blockstore.Adapter) error {
	if len(path) == 0 {
		return errors.ErrInvalidInput.Wrapf("cannot remove the root directory")
	}
	parent, err := d.getDir(ctx, path[:len(path)-1], false, time.Time{}, store, nil)
	if err != nil {
		return err
	}
	name := path[len(path)-1]
	if _, ok := parent.entries[name]; !ok {
		return errors.ErrNotFound.Wrapf("path segment %q", name)
	}
	delete(parent.entries, name)
	parent.dirty = true
	return nil
}

// Mv re-parents the subtree at src to dst. The node keeps its
// ciphertext and private ref: re-parenting does not touch key material.
func (d *Directory) Mv(ctx context.Context, src, dst []string, mtime time.Time, create bool, store *blockstore.Adapter, rng io.Reader) error {
	if len(src) == 0 || len(dst) == 0 {
		return errors.ErrInvalidInput.Wrapf("move requires non-root source and destination")
	}
	// A destination inside the detached subtree would re-attach it under
	// an unreachable parent, dropping it from the committed root.
	if hasPathPrefix(dst, src) {
		return errors.ErrInvalidInput.Wrapf("cannot move %v into its own subtree", src)
	}
	srcParent, err := d.getDir(ctx, src[:len(src)-1], false, mtime, store, rng)
	if err != nil {
		return err
	}
	srcName := src[len(src)-1]
	ln, ok := srcParent.entries[srcName]
	if !ok {
		return errors.ErrNotFound.Wrapf("path segment %q", srcName)
	}
	dstParent, err := d.getDir(ctx, dst[:len(dst)-1], create, mtime, store, rng)
	if err != nil {
		return err
	}
	dstName := dst[len(dst)-1]
	if _, exists := dstParent.entries[dstName]; exists {
		return errors.ErrAlreadyExists.Wrapf("destination %q", dstName)
	}
	delete(srcParent.entries, srcName)
	srcParent.dirty = true
	dstParent.entries[dstName] = ln
	dstParent.dirty = true
	return nil
}

// hasPathPrefix reports whether path starts with the segments of prefix.
func hasPathPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i, seg := range prefix {
		if path[i] != seg {
			return false
		}
	}
	return true
}

// Cp copies the subtree at src to dst as an independent clone: writes
// on either side never affect the other.
func (d *Directory) Cp(ctx context.Context, src, dst []string, mtime time.Time, create bool, store *blockstore.Adapter, rng io.Reader) error {
	if len(src) == 0 || len(dst) == 0 {
		return errors.ErrInvalidInput.Wrapf("copy requires non-root source and destination")
	}
	node, err := d.lookupNode(ctx, src, store)
	if err != nil {
		return err
	}
	cloned, err := node.clone(ctx, store, rng)
	if err != nil {
		return err
	}
	dstParent, err := d.getDir(ctx, dst[:len(dst)-1], create, mtime, store, rng)
	if err != nil {
		return err
	}
	dstName := dst[len(dst)-1]
	if _, exists := dstParent.entries[dstName]; exists {
		return errors.ErrAlreadyExists.Wrapf("destination %q", dstName)
	}
	dstParent.entries[dstName] = &link{node: cloned}
	dstParent.dirty = true
	return nil
}

// Ls lists the immediate children of the directory at path, sorted by
// name. The result is materialized in one pass from the decrypted
// directory entry.
func (d *Directory) Ls(ctx context.Context, path []string, store *blockstore.Adapter) ([]DirEntry, error) {
	node, err := d.lookupNode(ctx, path, store)
	if err != nil {
		return nil, err
	}
	dir, ok := node.(*Directory)
	if !ok {
		return nil, errors.ErrNotADirectory.Wrapf("%v is a file", path)
	}
	out := make([]DirEntry, 0, len(dir.entries))
	for name, ln := range dir.entries {
		child, err := dir.loadLink(ctx, ln, store)
		if err != nil {
			return nil, err
		}
		out = append(out, DirEntry{
			Name:     name,
			Metadata: child.Metadata(),
			IsFile:   child.IsFile(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
