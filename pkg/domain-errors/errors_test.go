package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		err := New(CodeConflict, "already claimed")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("wrapped cause retains code", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "store unreachable")
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("coded error wrapped again by fmt", func(t *testing.T) {
		err := fmt.Errorf("attribute: %w", New(CodeInvalidInput, "self referral"))
		assert.True(t, HasCode(err, CodeInvalidInput))
	})

	t.Run("uncoded error has internal code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestWrapNil(t *testing.T) {
	err := Wrap(nil, CodeInternal, "no cause")
	assert.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))
}
