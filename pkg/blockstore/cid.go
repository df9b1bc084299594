package blockstore

import (
	"bytes"
	"encoding/hex"
	"fmt"

	blake2b "github.com/minio/blake2b-simd"
)

const (
	// DigestSize is the size of the blake2b digest embedded in a Cid
	DigestSize = 32

	// CidSize is the total size of a serialized Cid:
	// 1 byte version, 1 byte codec, DigestSize bytes of digest
	CidSize = DigestSize + 2

	cidVersion = 0x01
)

// Codecs describing the shape of the addressed block.
const (
	// CodecRaw marks an opaque byte block
	CodecRaw uint8 = 0x55

	// CodecDagCBOR marks a canonical CBOR block
	CodecDagCBOR uint8 = 0x71
)

// Cid is a self-describing content identifier: a version tag, the codec
// of the addressed block and the blake2b digest of its bytes.
//
// Identical (bytes, codec) pairs always produce the identical Cid.
type Cid [CidSize]byte

// NewCid computes the content id of a block
func NewCid(data []byte, codec uint8) Cid {
	var c Cid
	c[0] = cidVersion
	c[1] = codec
	h, err := blake2b.New(&blake2b.Config{Size: DigestSize})
	if err != nil {
		// New only fails when configuration is wrong
		panic(err)
	}
	_, _ = h.Write(data)
	copy(c[2:], h.Sum(nil))
	return c
}

// ParseCid validates and copies a serialized content id
func ParseCid(data []byte) (Cid, error) {
	var c Cid
	if len(data) != CidSize {
		return Cid{}, &BadCidSize{Cid: data}
	}
	if data[0] != cidVersion {
		return Cid{}, fmt.Errorf("unsupported cid version %d", data[0])
	}
	switch data[1] {
	case CodecRaw, CodecDagCBOR:
	default:
		return Cid{}, fmt.Errorf("unsupported cid codec %#x", data[1])
	}
	copy(c[:], data)
	return c, nil
}

// CidFromString parses the hex form produced by String
func CidFromString(s string) (Cid, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Cid{}, err
	}
	return ParseCid(raw)
}

// Bytes returns the serialized form of the id
func (c Cid) Bytes() []byte {
	out := make([]byte, CidSize)
	copy(out, c[:])
	return out
}

func (c Cid) String() string {
	return hex.EncodeToString(c[:])
}

// Codec returns the codec of the addressed block
func (c Cid) Codec() uint8 {
	return c[1]
}

// IsZero reports whether the id is the zero value, which never
// addresses a block
func (c Cid) IsZero() bool {
	return c == Cid{}
}

// Less orders ids by their serialized bytes
func (c Cid) Less(other Cid) bool {
	return bytes.Compare(c[:], other[:]) < 0
}

// BadCidSize is an error that's returned when the cid to parse has an invalid size.
type BadCidSize struct {
	Cid []byte
}

func (b *BadCidSize) Error() string {
	return fmt.Sprintf("%x has invalid size of %d, expected %d", b.Cid, len(b.Cid), CidSize)
}
