package private

import (
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/forest"
)

// PrivateRef is the access key to one stored version of a node: the
// blinded-name seed to locate it in the forest, the symmetric key to
// decrypt it, and the content id pinning the exact ciphertext block.
//
// Whoever holds a ref can read the node (and, through `SearchLatest`,
// follow it forward to newer versions). Refs never appear in the forest
// in the clear: parents embed the refs of their children inside their
// own encrypted payload, and the sharing protocol transmits refs only
// under a recipient's public exchange key.
type PrivateRef struct {
	LabelSeed   []byte `cbor:"labelSeed"`
	TemporalKey []byte `cbor:"temporalKey"`
	ContentCid  []byte `cbor:"contentCid"`
}

// Name returns the node's blinded forest name
func (r PrivateRef) Name() forest.Name {
	return forest.NewName(forest.NewSegmentFromBytes(r.LabelSeed))
}

// Cid parses the pinned block address
func (r PrivateRef) Cid() (blockstore.Cid, error) {
	return blockstore.ParseCid(r.ContentCid)
}

func (r PrivateRef) validate() error {
	if len(r.LabelSeed) != KeySize || len(r.TemporalKey) != KeySize {
		return errors.ErrInvalidInput.Wrapf("private ref has malformed key material")
	}
	if _, err := r.Cid(); err != nil {
		return errors.ErrInvalidInput.Wrap(err)
	}
	return nil
}

// Marshal encodes the ref for transport (sharing protocol)
func (r PrivateRef) Marshal() ([]byte, error) {
	return blockstore.Marshal(r)
}

// UnmarshalRef decodes a transported ref and validates it
func UnmarshalRef(data []byte) (PrivateRef, error) {
	var r PrivateRef
	if err := blockstore.Unmarshal(data, &r); err != nil {
		return PrivateRef{}, errors.ErrDecryption.Wrap(err)
	}
	if err := r.validate(); err != nil {
		return PrivateRef{}, err
	}
	return r, nil
}
