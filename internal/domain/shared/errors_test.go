package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"user not found", ErrUserNotFound, CodeUserNotFound},
		{"wrapped user not found", fmt.Errorf("load: %w", ErrUserNotFound), CodeUserNotFound},
		{"badge not found", ErrBadgeNotFound, CodeBadgeNotFound},
		{"game type", ErrInvalidGameType, CodeInvalidGameType},
		{"derived invalid input", WrapError("progress", "Validate", ErrInvalidArgument, "bad count", nil), CodeInvalidInput},
		{"already completed", ErrAlreadyCompleted, CodeAlreadyCompleted},
		{"user exists", ErrUserAlreadyExists, CodeUserAlreadyExists},
		{"conflict", ErrConcurrencyConflict, CodeConcurrencyConflict},
		{"raw conflict kind", WrapError("store", "Update", ErrConcurrentModification, "version mismatch", nil), CodeConcurrencyConflict},
		{"timeout", ErrStoreTimeout, CodeStoreTimeout},
		{"unavailable", ErrStoreUnavailable, CodeStoreUnavailable},
		{"unknown", errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestDomainError_IsChain(t *testing.T) {
	cause := errors.New("pg: 40001")
	err := WrapError("store", "Update", ErrConcurrentModification, "serialization failure", cause)

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrUserNotFound))

	assert.True(t, IsNotFound(ErrUserNotFound))
	assert.False(t, errors.Is(ErrBadgeNotFound, ErrUserNotFound))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "user not found", MessageOf(fmt.Errorf("x: %w", ErrUserNotFound)))
	assert.Equal(t, "internal error", MessageOf(errors.New("driver exploded")))
}

func TestGameType(t *testing.T) {
	g, err := ParseGameType("url_inspector")
	assert.NoError(t, err)
	assert.Equal(t, CounterURLsInspected, g.CounterKey())

	_, err = ParseGameType("chess")
	assert.ErrorIs(t, err, ErrInvalidGameType)
	assert.Equal(t, CodeInvalidGameType, CodeOf(err))
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty("")
	assert.NoError(t, err)
	assert.Equal(t, DifficultyEasy, d)

	d, err = ParseDifficulty("HARD")
	assert.NoError(t, err)
	assert.Equal(t, DifficultyHard, d)

	_, err = ParseDifficulty("nightmare")
	assert.Equal(t, CodeInvalidInput, CodeOf(err))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, ClampLimit(0, 10, 100))
	assert.Equal(t, 100, ClampLimit(500, 10, 100))
	assert.Equal(t, 7, ClampLimit(7, 10, 100))
}
