// internal/driver/errors_test.go
package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halcyonqa/halcyon/internal/locator"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	err := NewElementError(KindNotFound, locator.ByID("x"), cause)

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, KindProtocol, KindOf(errors.New("plain")))
	assert.ErrorIs(t, err, cause)
}

func TestIsTransient(t *testing.T) {
	loc := locator.ByID("x")
	assert.True(t, IsTransient(NewElementError(KindNotFound, loc, nil)))
	assert.True(t, IsTransient(NewElementError(KindNotInteractable, loc, nil)))
	assert.True(t, IsTransient(NewElementError(KindTimeout, loc, nil)))
	assert.False(t, IsTransient(NewElementError(KindStale, loc, nil)))
	assert.False(t, IsTransient(NewElementError(KindProtocol, loc, nil)))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestElementErrorMessage(t *testing.T) {
	err := NewElementError(KindNotInteractable, locator.ByText("Login"), errors.New("obscured"))
	msg := err.Error()
	assert.Contains(t, msg, "not_interactable")
	assert.Contains(t, msg, "text=Login")
	assert.Contains(t, msg, "obscured")

	bare := NewElementError(KindTimeout, locator.Locator{}, nil)
	assert.Equal(t, "driver: timeout", bare.Error())
}
