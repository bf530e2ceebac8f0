package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"punch.service/pkg/platform/sentinel"
)

func TestCodes(t *testing.T) {
	err := Wrap(sentinel.ErrConflict, CodeConflict, "concurrent punch")
	wrapped := fmt.Errorf("record punch: %w", err)

	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
	assert.Equal(t, "concurrent punch", MessageOf(wrapped))
	assert.ErrorIs(t, wrapped, sentinel.ErrConflict)
	assert.Equal(t, "concurrent punch: conflict", err.Error())
}

func TestUncodedErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, "internal error", MessageOf(err))
	assert.Equal(t, "RFID is required", New(CodeValidation, "RFID is required").Error())
}
