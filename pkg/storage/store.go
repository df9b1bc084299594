package storage

import "context"

type errString string

func (e errString) Error() string { return string(e) }

const (
	// ErrNotFound is returned when a key has no entry in the store.
	ErrNotFound errString = "not found"

	// ErrExists is returned by exclusive writes over an existing key.
	ErrExists errString = "exists already"

	// ErrNotSupported is returned by stores that do not implement an
	// optional operation (e.g. Keys on a remote bucket with no listing
	// permission).
	ErrNotSupported errString = "not supported"

	// ErrForbidden is returned when the backend denies access.
	ErrForbidden errString = "forbidden"
)

// Store implementations know how to read and write opaque byte blocks
// under string keys in a K/V model.
//
// Typically this is something file system-like. Examples are S3, badger,
// local FS, in-memory maps. Implementations are assumed to be fairly
// simple and safe for concurrent use; all consistency and addressing
// logic lives above, in the blockstore adapter.
//
// Put must be idempotent for identical (key, value) pairs: the adapter
// keys every block by its content, so rewriting the same content is a
// no-op, never an error.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) ([]byte, error)
	Put(context.Context, string, []byte) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
}
