package blockstore

import (
	"context"

	"github.com/fxamacker/cbor/v2"
	"github.com/thicketfs/thicket/pkg/errors"
)

// Canonical CBOR codec shared by everything that serializes through the
// adapter. Core-deterministic encoding keeps content addressing stable:
// the same value always produces the same block, hence the same Cid.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v with the canonical CBOR mode
func Marshal(v interface{}) ([]byte, error) {
	return cborEnc.Marshal(v)
}

// Unmarshal decodes canonical CBOR bytes into v
func Unmarshal(data []byte, v interface{}) error {
	return cborDec.Unmarshal(data, v)
}

// PutSerializable encodes v as canonical CBOR and stores it as a single block
func (a *Adapter) PutSerializable(ctx context.Context, v interface{}) (Cid, error) {
	data, err := cborEnc.Marshal(v)
	if err != nil {
		return Cid{}, errors.ErrInvalidInput.Wrap(err)
	}
	return a.PutBlock(ctx, data, CodecDagCBOR)
}

// GetDeserializable fetches a CBOR block and decodes it into v
func (a *Adapter) GetDeserializable(ctx context.Context, cid Cid, v interface{}) error {
	data, err := a.GetBlock(ctx, cid)
	if err != nil {
		return err
	}
	if err := cborDec.Unmarshal(data, v); err != nil {
		return errors.ErrBadBlock.Wrap(err)
	}
	return nil
}
