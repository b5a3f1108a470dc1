package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLogger_AddsRequestAndUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "uid-42")
	cl.LogRequest(ctx, "GET", "/api/v1/me", 200, 12)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "uid-42", fields["user_id"])
	assert.Equal(t, int64(200), fields["status_code"])
}

func TestContextLogger_NoFieldsReturnsBase(t *testing.T) {
	base := zap.NewNop()
	cl := NewContextLogger(base)
	assert.Same(t, base, cl.WithContext(context.Background()))
}

func TestContextLogger_LogError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	cl := NewContextLogger(zap.New(core))

	cl.LogError(context.Background(), errors.New("boom"), "store failed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "store failed", logs.All()[0].Message)
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestNew_FallsBackToInfoOnBadLevel(t *testing.T) {
	l, err := New("not-a-level", "json")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}
