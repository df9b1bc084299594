package forest

import (
	"testing"

	"github.com/thicketfs/thicket/internal/randx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSetup(t *testing.T) *AccumulatorSetup {
	setup, err := NewTrustedSetup(randx.Seeded([randx.SeedSize]byte{1}))
	require.NoError(t, err)
	return setup
}

func TestHashToPrime(t *testing.T) {
	p := hashToPrime([]byte("documents"))
	assert.True(t, p.ProbablyPrime(20))
	assert.Equal(t, segmentBits, p.BitLen())

	// deterministic
	assert.Zero(t, p.Cmp(hashToPrime([]byte("documents"))))
	assert.NotZero(t, p.Cmp(hashToPrime([]byte("document"))))
}

func TestNameLabel(t *testing.T) {
	setup := testSetup(t)

	a := NewName(NewSegmentFromString("documents"), NewSegmentFromString("report"))
	b := NewName(NewSegmentFromString("documents")).WithSegments(NewSegmentFromString("report"))
	assert.Equal(t, a.Label(setup), b.Label(setup))

	other := NewName(NewSegmentFromString("documents"), NewSegmentFromString("draft"))
	assert.NotEqual(t, a.Label(setup), other.Label(setup))
}

func TestNameLabelSegmentOrder(t *testing.T) {
	setup := testSetup(t)

	// the accumulator multiplies segment primes, so segment order does
	// not change the label
	a := NewName(NewSegmentFromString("x"), NewSegmentFromString("y"))
	b := NewName(NewSegmentFromString("y"), NewSegmentFromString("x"))
	assert.Equal(t, a.Label(setup), b.Label(setup))
}

func TestWithSegmentsCopies(t *testing.T) {
	setup := testSetup(t)

	base := NewName(NewSegmentFromString("base"))
	left := base.WithSegments(NewSegmentFromString("left"))
	right := base.WithSegments(NewSegmentFromString("right"))
	assert.NotEqual(t, left.Label(setup), right.Label(setup))
	assert.NotEqual(t, base.Label(setup), left.Label(setup))
}

func TestBlindedSegment(t *testing.T) {
	setup := testSetup(t)

	seed := []byte("some 32 bytes of key material xx")
	a := NewName(NewSegmentFromBytes(seed))
	b := NewName(NewSegmentFromBytes(seed))
	assert.Equal(t, a.Label(setup), b.Label(setup))

	// labels depend on the setup parameters
	otherSetup, err := NewTrustedSetup(randx.Seeded([randx.SeedSize]byte{2}))
	require.NoError(t, err)
	assert.NotEqual(t, a.Label(setup), a.Label(otherSetup))
}
