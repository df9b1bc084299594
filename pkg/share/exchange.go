// Package share implements the asymmetric key-exchange protocol that
// grants read access to a private node without revealing symmetric key
// material to intermediaries.
//
// An owner derives an RSA exchange keypair deterministically from a
// 32-byte seed, publishes the public key, and publishes access keys
// encrypted for specific recipients under counter-indexed forest names.
package share

import (
	"context"
	"crypto/rsa"
	"io"
	"math/big"

	"github.com/thicketfs/thicket/internal/randx"
	"github.com/thicketfs/thicket/pkg/blockstore"
	"github.com/thicketfs/thicket/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const (
	// ExchangeKeyBits is the RSA modulus size of exchange keypairs
	ExchangeKeyBits = 2048

	// PublicKeyExponent is the fixed public exponent; published keys are
	// just the raw modulus bytes.
	PublicKeyExponent = 65537
)

// SeededExchangeKey is an exchange keypair derived deterministically
// from a seed. It is regenerated on demand and never persisted.
type SeededExchangeKey struct {
	key *rsa.PrivateKey
}

// PublicExchangeKey is the public half of an exchange keypair,
// reconstructed from published modulus bytes.
type PublicExchangeKey struct {
	key *rsa.PublicKey
}

// DeriveKeypair deterministically derives the exchange keypair from a
// 32-byte seed: the same seed always yields the same keypair.
//
// Prime generation runs over a ChaCha20 keystream keyed by the seed
// rather than through rsa.GenerateKey, whose candidate search is
// deliberately not a pure function of its randomness source.
func DeriveKeypair(seed []byte) (*SeededExchangeKey, error) {
	if len(seed) != randx.SeedSize {
		return nil, errors.ErrInvalidInput.Wrapf("exchange key seed must be %d bytes", randx.SeedSize)
	}
	var s [randx.SeedSize]byte
	copy(s[:], seed)
	key, err := generateKey(randx.Seeded(s), ExchangeKeyBits)
	if err != nil {
		return nil, err
	}
	return &SeededExchangeKey{key: key}, nil
}

func generateKey(r io.Reader, bits int) (*rsa.PrivateKey, error) {
	e := big.NewInt(PublicKeyExponent)
	one := big.NewInt(1)
	for {
		p, err := seededPrime(r, bits/2)
		if err != nil {
			return nil, errors.New("generate exchange prime").Wrap(err)
		}
		q, err := seededPrime(r, bits/2)
		if err != nil {
			return nil, errors.New("generate exchange prime").Wrap(err)
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}
		totient := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))
		d := new(big.Int).ModInverse(e, totient)
		if d == nil {
			continue
		}
		key := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: n, E: PublicKeyExponent},
			D:         d,
			Primes:    []*big.Int{p, q},
		}
		key.Precompute()
		if err := key.Validate(); err != nil {
			continue
		}
		return key, nil
	}
}

// seededPrime draws bits-sized prime candidates from r until one passes
// the Miller-Rabin test. Unlike crypto/rand.Prime it consumes a fixed
// number of keystream bytes per candidate, so the result is a pure
// function of the reader: re-deriving a keypair from the same seed must
// land on the same primes.
func seededPrime(r io.Reader, bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, errors.ErrInvalidInput.Wrapf("prime size %d too small", bits)
	}
	b := uint(bits % 8)
	if b == 0 {
		b = 8
	}
	buf := make([]byte, (bits+7)/8)
	p := new(big.Int)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.New("read prime candidate").Wrap(err)
		}
		// Clear excess high bits, then force the two top bits so the
		// product of two such primes always fills the modulus width.
		buf[0] &= uint8(int(1<<b) - 1)
		if b >= 2 {
			buf[0] |= 3 << (b - 2)
		} else {
			buf[0] |= 1
			if len(buf) > 1 {
				buf[1] |= 0x80
			}
		}
		buf[len(buf)-1] |= 1
		p.SetBytes(buf)
		if p.ProbablyPrime(20) {
			return p, nil
		}
	}
}

// EncodePublicKey returns the raw big-endian modulus bytes, the
// published form of the public key.
func (k *SeededExchangeKey) EncodePublicKey() []byte {
	return k.key.PublicKey.N.Bytes()
}

// Public returns the public half of the keypair
func (k *SeededExchangeKey) Public() *PublicExchangeKey {
	return &PublicExchangeKey{key: &k.key.PublicKey}
}

// Decrypt opens an OAEP ciphertext with the private exchange key
func (k *SeededExchangeKey) Decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptOAEP(sha3.New256(), nil, k.key, ciphertext, nil)
	if err != nil {
		return nil, errors.ErrDecryption.Wrap(err)
	}
	return plaintext, nil
}

// StorePublicKey writes the encoded public key as a raw block
func (k *SeededExchangeKey) StorePublicKey(ctx context.Context, store *blockstore.Adapter) (blockstore.Cid, error) {
	return store.PutBlock(ctx, k.EncodePublicKey(), blockstore.CodecRaw)
}

// PublicKeyFromModulus rebuilds a public exchange key from its
// published modulus bytes.
func PublicKeyFromModulus(modulus []byte) (*PublicExchangeKey, error) {
	if len(modulus) == 0 {
		return nil, errors.ErrInvalidInput.Wrapf("empty exchange key modulus")
	}
	return &PublicExchangeKey{
		key: &rsa.PublicKey{
			N: new(big.Int).SetBytes(modulus),
			E: PublicKeyExponent,
		},
	}, nil
}

// EncodeModulus returns the raw big-endian modulus bytes
func (k *PublicExchangeKey) EncodeModulus() []byte {
	return k.key.N.Bytes()
}

// Encrypt seals data for the key holder with RSA-OAEP over SHA3-256
func (k *PublicExchangeKey) Encrypt(data []byte, rng io.Reader) ([]byte, error) {
	ciphertext, err := rsa.EncryptOAEP(sha3.New256(), rng, k.key, data, nil)
	if err != nil {
		return nil, errors.New("encrypt for recipient").Wrap(err)
	}
	return ciphertext, nil
}
