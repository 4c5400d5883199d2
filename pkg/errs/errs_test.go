package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ErrNetwork, cause)

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrap_NilAndAlreadyTagged(t *testing.T) {
	assert.NoError(t, Wrap(ErrIO, nil))

	tagged := Wrap(ErrIO, errors.New("disk full"))
	assert.Equal(t, tagged, Wrap(ErrIO, tagged))
}
