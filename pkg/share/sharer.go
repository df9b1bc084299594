package share

import (
	"context"
	"io"
	"strconv"

	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/forest"
	"github.com/thicketfs/thicket/pkg/private"
	"golang.org/x/crypto/sha3"
)

// shareProtocolTag namespaces share entries inside the forest
const shareProtocolTag = "exchange/v1"

// CreateShareName derives the deterministic, publicly discoverable
// forest name of the share slot (counter, owner, recipient).
//
// The recipient's public key enters through its digest, so the name is
// computable by both sides but the forest label reveals neither the
// owner identity nor the key.
func CreateShareName(counter uint64, ownerID string, recipientPub []byte, f *forest.Forest) forest.Name {
	keyDigest := sha3.Sum256(recipientPub)
	return f.EmptyName().WithSegments(
		forest.NewSegmentFromString(shareProtocolTag),
		forest.NewSegmentFromString(ownerID),
		forest.NewSegmentFromBytes(keyDigest[:]),
		forest.NewSegmentFromString(strconv.FormatUint(counter, 10)),
	)
}

// Share encrypts an access key for the recipient and publishes it at
// the share slot for counter.
//
// The counter also serves as the entry's version marker, so probing
// "latest" and resolving a slot agree on ordering.
func Share(ctx context.Context, accessKey private.PrivateRef, counter uint64, ownerID string, recipient *PublicExchangeKey, f *forest.Forest, store *blockstore.Adapter, rng io.Reader) error {
	payload, err := accessKey.Marshal()
	if err != nil {
		return err
	}
	ciphertext, err := recipient.Encrypt(payload, rng)
	if err != nil {
		return err
	}
	name := CreateShareName(counter, ownerID, recipient.EncodeModulus(), f)
	_, err = f.PutEncrypted(ctx, name, counter, ciphertext, store)
	return err
}
