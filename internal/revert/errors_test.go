package revert

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := New(CodeNotAuthorized, "%s is not the owner", "0xba11").
		With("owner", "0x041e").
		With("caller", "0xba11")
	assert.Equal(t, "NOT_AUTHORIZED: 0xba11 is not the owner (caller=0xba11, owner=0x041e)", err.Error())

	bare := &Error{Code: CodeNoCode}
	assert.Equal(t, "NO_CODE", bare.Error())

	wrapped := Wrap(CodeMigrateCallFailed, New(CodeInvalidArgument, "bad"), "migrate")
	assert.Equal(t, "MIGRATE_CALL_FAILED: migrate: INVALID_ARGUMENT: bad", wrapped.Error())
}

func TestError_WithCopies(t *testing.T) {
	base := New(CodeNotController, "no")
	derived := base.With("vault", "0x01")
	assert.Empty(t, base.Details)
	assert.Equal(t, map[string]string{"vault": "0x01"}, derived.Details)
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", New(CodeUnknownSelector, "0xdeadbeef"))
	assert.True(t, errors.Is(err, ErrUnknownSelector))
	assert.False(t, errors.Is(err, ErrNotAuthorized))

	inner := New(CodeInsufficientBalance, "short")
	outer := Wrap(CodeTransformerFailed, inner, "step 0")
	assert.True(t, errors.Is(outer, ErrTransformerFailed))
	assert.True(t, errors.Is(outer, ErrInsufficientBalance))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("disk full")))
	assert.Equal(t, CodeAlreadyMigrated, CodeOf(fmt.Errorf("x: %w", New(CodeAlreadyMigrated, "again"))))

	outer := Wrap(CodeMigrateCallFailed, New(CodeNotAuthorized, "inner"), "outer")
	assert.Equal(t, CodeMigrateCallFailed, CodeOf(outer))
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	re := New(CodeInsufficientOutput, "got 1, want 2")
	assert.Same(t, re, Normalize(fmt.Errorf("pipeline: %w", re)))

	cause := errors.New("database is locked")
	n := Normalize(cause)
	require.NotNil(t, n)
	assert.Equal(t, CodeInternal, n.Code)
	assert.ErrorIs(t, n, cause)
}
