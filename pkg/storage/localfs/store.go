// Package localfs implements a file system backed block store.
package localfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/thicketfs/thicket/pkg/storage"
)

// New creates a new local file system backed storage model.
//
// Keys fan out over a two-character prefix directory to keep directory
// listings bounded on large stores.
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".thicket", "blocks"))
	}
	return &localFS{
		fs: fs,
	}
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) String() string {
	return "localfs"
}

func pathForKey(key string) string {
	if len(key) < 2 {
		return key
	}
	return filepath.Join(key[:2], key)
}

func (l *localFS) Has(_ context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(pathForKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) ([]byte, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, storage.ErrNotFound
	}
	return afero.ReadFile(l.fs, pathForKey(key))
}

func (l *localFS) Put(_ context.Context, key string, value []byte) error {
	target := pathForKey(key)
	if dir := filepath.Dir(target); dir != "." {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	// blocks are content addressed: an existing file already holds the
	// exact bytes being written
	if fi, err := l.fs.Stat(target); err == nil && !fi.IsDir() {
		return nil
	}
	return afero.WriteFile(l.fs, target, value, 0600)
}

func (l *localFS) Delete(_ context.Context, key string) error {
	if err := l.fs.Remove(pathForKey(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *localFS) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := afero.Walk(l.fs, "", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info == nil || info.IsDir() {
			return nil
		}
		keys = append(keys, filepath.Base(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
