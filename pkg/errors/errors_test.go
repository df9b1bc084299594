package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestSentinelWrap(t *testing.T) {
	err := New("no entry for label").Wrap(ErrNotFound)
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrDecryption))

	// wrapping a sentinel must not mutate it
	wrapped := ErrNotFound.Wrap(New("backend said no"))
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Nil(t, ErrNotFound.Unwrap())
}

func TestWrapf(t *testing.T) {
	err := ErrInvalidInput.Wrapf("seed must be %d bytes", 32)
	assert.True(t, Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "seed must be 32 bytes")
}
