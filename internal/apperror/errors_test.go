package apperror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := NotFound("complaint %s not found", "CVC-000001")
	assert.Equal(t, "complaint CVC-000001 not found", err.Error())

	wrapped := Wrap(KindStorage, "insert complaint", sql.ErrConnDone)
	assert.Equal(t, "insert complaint: sql: connection is already closed", wrapped.Error())
	assert.ErrorIs(t, wrapped, sql.ErrConnDone)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("title is required"), KindValidation},
		{"wrapped by fmt", fmt.Errorf("create: %w", InvalidState("not resolved")), KindInvalidState},
		{"plain error", errors.New("boom"), KindStorage},
		{"context deadline", Storage("commit", context.DeadlineExceeded), KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStorage_KeepsClassifiedErrors(t *testing.T) {
	inner := InsufficientBalance("balance 5 < 10")
	err := Storage("claim", inner)
	assert.Same(t, inner, err)

	assert.NoError(t, Storage("noop", nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Wrap(KindStorage, "ping", errors.New("refused")).Retryable())
	assert.True(t, Upstream("geocode", errors.New("502")).Retryable())
	assert.False(t, AlreadyExists("feedback already submitted").Retryable())
}

func TestIs(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("citizen %s", "u1")))
	assert.False(t, IsNotFound(nil))
	assert.False(t, Is(nil, KindStorage))
}
