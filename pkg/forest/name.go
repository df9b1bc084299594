package forest

import (
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/sha3"
)

const segmentBits = 256

// NameSegment is one element of an accumulated name: a prime derived
// from either a plaintext string or secret key material. The derivation
// is one-way, so a segment never reveals what it was derived from.
type NameSegment struct {
	prime *big.Int
}

// NewSegmentFromString derives a segment from a plaintext name part
func NewSegmentFromString(s string) NameSegment {
	return NameSegment{prime: hashToPrime([]byte(s))}
}

// NewSegmentFromBytes derives a blinded segment from key material
func NewSegmentFromBytes(b []byte) NameSegment {
	return NameSegment{prime: hashToPrime(b)}
}

// hashToPrime maps arbitrary bytes onto a 256-bit prime by hashing and
// searching upward from the digest. Deterministic: the same input
// always lands on the same prime.
func hashToPrime(data []byte) *big.Int {
	digest := sha3.Sum256(data)
	candidate := new(big.Int).SetBytes(digest[:])
	candidate.SetBit(candidate, segmentBits-1, 1)
	candidate.SetBit(candidate, 0, 1)
	two := big.NewInt(2)
	for !candidate.ProbablyPrime(20) {
		candidate.Add(candidate, two)
	}
	return candidate
}

// Name is an ordered sequence of segments accumulated into a single
// unlinkable forest label.
type Name struct {
	segments []NameSegment
}

// NewName builds a name from segments
func NewName(segments ...NameSegment) Name {
	return Name{segments: segments}
}

// WithSegments returns a copy of the name extended by more segments
func (n Name) WithSegments(segments ...NameSegment) Name {
	out := make([]NameSegment, 0, len(n.segments)+len(segments))
	out = append(out, n.segments...)
	out = append(out, segments...)
	return Name{segments: out}
}

// Accumulate folds the name's segments into the accumulator element
// g^(p1*p2*...*pk) mod N.
func (n Name) Accumulate(setup *AccumulatorSetup) *big.Int {
	acc := setup.generator()
	mod := setup.modulus()
	for _, seg := range n.segments {
		acc.Exp(acc, seg.prime, mod)
	}
	return acc
}

// Label reduces the accumulated name to the fixed-size forest map key
func (n Name) Label(setup *AccumulatorSetup) [32]byte {
	return sha3.Sum256(n.Accumulate(setup).Bytes())
}

func (n Name) labelKey(setup *AccumulatorSetup) string {
	l := n.Label(setup)
	return hex.EncodeToString(l[:])
}
