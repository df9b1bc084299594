// Package badgerdb implements a block store backed by a badger
// key-value database.
package badgerdb

import (
	"context"

	"github.com/dgraph-io/badger"
	pkgerrors "github.com/pkg/errors"
	"github.com/thicketfs/thicket/pkg/storage"
)

func rewriteBadgerError(err error) error {
	switch err {
	case nil:
		return nil
	case badger.ErrKeyNotFound:
		return storage.ErrNotFound
	case badger.ErrEmptyKey:
		return pkgerrors.Wrap(storage.ErrNotSupported, "empty key")
	default:
		return err
	}
}

// New creates a badger backed storage model over an open database handle.
//
// The caller owns the handle and its lifecycle (Close).
func New(db *badger.DB) storage.Store {
	return &badgerStore{db: db}
}

// Open opens (or creates) a badger database at dir and returns a store
// over it together with the database handle for closing.
func Open(dir string) (storage.Store, *badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "open badger db at %q", dir)
	}
	return New(db), db, nil
}

type badgerStore struct {
	db *badger.DB
}

func (b *badgerStore) String() string {
	return "badgerdb"
}

func (b *badgerStore) Has(_ context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, rewriteBadgerError(err)
	}
	return true, nil
}

func (b *badgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, rewriteBadgerError(err)
	}
	return value, nil
}

func (b *badgerStore) Put(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return rewriteBadgerError(err)
}

func (b *badgerStore) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return rewriteBadgerError(err)
}

func (b *badgerStore) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, rewriteBadgerError(err)
	}
	return keys, nil
}
