package share

import (
	"context"

	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
	"github.com/thicketfs/thicket/pkg/forest"
	"github.com/thicketfs/thicket/pkg/private"
)

// MaxShareProbe is the default upper bound of the share counter probe
const MaxShareProbe = 1000

// FindLatestShareCounter linearly probes counters in [lo, hi) for the
// highest already-used share slot of the (owner, recipient) pair.
//
// Slots are assigned contiguously, so the probe stops at the first gap.
// When no slot exists yet the error is ErrNotFound: the first share for
// a pair starts at counter 0.
func FindLatestShareCounter(ctx context.Context, lo, hi uint64, recipientPub []byte, ownerID string, f *forest.Forest) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var (
		latest uint64
		found  bool
	)
	for c := lo; c < hi; c++ {
		if !f.HasName(CreateShareName(c, ownerID, recipientPub, f)) {
			break
		}
		latest = c
		found = true
	}
	if !found {
		return 0, errors.ErrNotFound.Wrapf("no share slot for owner %.8s…", ownerID)
	}
	return latest, nil
}

// NextShareCounter returns the first free slot for the pair
func NextShareCounter(ctx context.Context, recipientPub []byte, ownerID string, f *forest.Forest) (uint64, error) {
	latest, err := FindLatestShareCounter(ctx, 0, MaxShareProbe, recipientPub, ownerID, f)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return latest + 1, nil
}

// ReceiveShare resolves a share slot and decrypts the access key inside
// with the recipient's private exchange key.
//
// The returned ref points at the node version current when the share
// was created; callers follow it forward with private.SearchLatest.
func ReceiveShare(ctx context.Context, name forest.Name, key *SeededExchangeKey, f *forest.Forest, store *blockstore.Adapter) (private.PrivateRef, error) {
	ciphertext, err := f.GetLatest(ctx, name, store)
	if err != nil {
		return private.PrivateRef{}, err
	}
	payload, err := key.Decrypt(ciphertext)
	if err != nil {
		return private.PrivateRef{}, err
	}
	return private.UnmarshalRef(payload)
}
