package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(RateLimited, "admission denied", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "admission denied: boom", err.Error())
}

func TestIs(t *testing.T) {
	err := New(DuplicateService, "already registered")
	assert.True(t, Is(err, DuplicateService))
	assert.False(t, Is(err, ConfigInvalid))
	assert.False(t, Is(errors.New("plain"), ConfigInvalid))
}
