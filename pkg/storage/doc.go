// Package storage provides the interface to handle backend storage blocks.
//
// This package supports the following backends:
//   - local file system (localfs)
//   - badger key-value store (badgerdb)
//   - S3 (AWS) (sthree)
//   - in-memory map (mem)
package storage
