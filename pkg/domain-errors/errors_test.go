package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		assert.True(t, HasCode(New(CodeNotFound, "missing"), CodeNotFound))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeForbidden, "not the owner"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("matches inner code of nested domain errors", func(t *testing.T) {
		err := Wrap(New(CodeConflict, "duplicate"), CodeInternal, "create failed")
		assert.True(t, HasCode(err, CodeConflict))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "missing", New(CodeNotFound, "missing").Error())
	assert.Equal(t, "save failed: disk full", Wrap(errors.New("disk full"), CodeInternal, "save failed").Error())
}
