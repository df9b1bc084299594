package forest

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/thicketfs/thicket/pkg/errors"
)

// ModulusBits is the size of the accumulator modulus
const ModulusBits = 2048

// AccumulatorSetup holds the trusted-setup parameters of the name
// accumulator: an RSA modulus of unknown factorization and a
// quadratic-residue generator.
//
// Each filesystem performs its own setup once; the parameters travel
// inside the forest's serialized form and must not be reused across
// unrelated filesystems.
type AccumulatorSetup struct {
	Modulus   []byte `cbor:"modulus"`
	Generator []byte `cbor:"generator"`
}

// NewTrustedSetup generates fresh accumulator parameters from r
func NewTrustedSetup(r io.Reader) (*AccumulatorSetup, error) {
	p, err := rand.Prime(r, ModulusBits/2)
	if err != nil {
		return nil, errors.New("accumulator setup").Wrap(err)
	}
	q, err := rand.Prime(r, ModulusBits/2)
	if err != nil {
		return nil, errors.New("accumulator setup").Wrap(err)
	}
	n := new(big.Int).Mul(p, q)

	x, err := rand.Int(r, n)
	if err != nil {
		return nil, errors.New("accumulator setup").Wrap(err)
	}
	// squaring makes g a quadratic residue mod n
	g := new(big.Int).Exp(x, big.NewInt(2), n)

	return &AccumulatorSetup{
		Modulus:   n.Bytes(),
		Generator: g.Bytes(),
	}, nil
}

func (s *AccumulatorSetup) modulus() *big.Int {
	return new(big.Int).SetBytes(s.Modulus)
}

func (s *AccumulatorSetup) generator() *big.Int {
	return new(big.Int).SetBytes(s.Generator)
}

func (s *AccumulatorSetup) validate() error {
	if len(s.Modulus) == 0 || len(s.Generator) == 0 {
		return errors.ErrInvalidInput.Wrapf("accumulator setup is missing parameters")
	}
	return nil
}
