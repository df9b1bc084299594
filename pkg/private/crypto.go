package private

import (
	"crypto/aes"
	"crypto/cipher"
	"io"

	"github.com/thicketfs/thicket/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const (
	// KeySize is the size of node seeds and derived AES-256 keys
	KeySize = 32

	nonceSize = 12
)

// Domain-separation labels for per-node key derivation.
const (
	infoTemporalKey = "thicket/temporal-key"
	infoLabelSeed   = "thicket/label-seed"
)

// deriveKey expands a node seed into one of its derived keys via
// HKDF-SHA3-256 under a domain-separation label.
func deriveKey(seed []byte, info string) []byte {
	out := make([]byte, KeySize)
	kdf := hkdf.New(sha3.New256, seed, nil, []byte(info))
	if _, err := io.ReadFull(kdf, out); err != nil {
		// the hkdf reader only fails once its output is exhausted,
		// far beyond a single key worth of bytes
		panic(err)
	}
	return out
}

// encrypt seals plaintext with AES-256-GCM under key. A fresh random
// nonce is drawn from rng and prepended to the ciphertext.
func encrypt(key, plaintext []byte, rng io.Reader) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.ErrInvalidInput.Wrap(err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.ErrInvalidInput.Wrap(err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rng, nonce); err != nil {
		return nil, errors.New("draw nonce").Wrap(err)
	}
	return append(nonce, aesgcm.Seal(nil, nonce, plaintext, nil)...), nil
}

// decrypt opens a nonce-prefixed AES-256-GCM ciphertext
func decrypt(key, data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, errors.ErrDecryption.Wrapf("ciphertext shorter than nonce")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.ErrDecryption.Wrap(err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.ErrDecryption.Wrap(err)
	}
	plaintext, err := aesgcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, errors.ErrDecryption.Wrap(err)
	}
	return plaintext, nil
}
