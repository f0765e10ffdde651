package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func withDebug(t *testing.T, enabled bool, domains ...string) {
	t.Helper()
	SetDebugConfig(enabled, domains)
	t.Cleanup(func() { SetDebugConfig(false, nil) })
}

func TestLogFormat(t *testing.T) {
	buf := captureOutput(t)

	NewLogger("invoker").Info("calling %s", "google")

	out := buf.String()
	assert.Contains(t, out, "[invoker]")
	assert.Contains(t, out, "INFO: calling google")
	assert.True(t, strings.HasPrefix(out, "["))
	assert.Contains(t, out, "Z]")
}

func TestLevels(t *testing.T) {
	buf := captureOutput(t)
	withDebug(t, true)
	logger := NewLogger("session")

	tests := []struct {
		logFunc  func(string, ...any)
		expected string
	}{
		{logger.Debug, "DEBUG"},
		{logger.Info, "INFO"},
		{logger.Warn, "WARN"},
		{logger.Error, "ERROR"},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc("message")
		assert.Contains(t, buf.String(), tt.expected+": message")
	}
}

func TestDebugSuppressedWhenDisabled(t *testing.T) {
	buf := captureOutput(t)
	withDebug(t, false)

	NewLogger("session").Debug("hidden")
	Debug(context.Background(), "session", "hidden too")

	assert.Empty(t, buf.String())
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := captureOutput(t)
	withDebug(t, true, "invoker")

	ctx := WithComponent(context.Background(), "conn-1")
	Debug(ctx, "session", "not shown")
	assert.Empty(t, buf.String())

	Debug(ctx, "invoker", "attempt %d", 2)
	out := buf.String()
	assert.Contains(t, out, "[conn-1]")
	assert.Contains(t, out, "[invoker] attempt 2")
}

func TestWith(t *testing.T) {
	buf := captureOutput(t)

	NewLogger("session").With("abc").Warn("idle")

	assert.Contains(t, buf.String(), "[session/abc] WARN: idle")
}

func TestWrapAndErrorf(t *testing.T) {
	buf := captureOutput(t)

	assert.NoError(t, Wrap(nil, "noop"))

	base := errors.New("boom")
	err := Wrap(base, "db connect")
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "db connect: boom", err.Error())

	err = Errorf("setup failed: %w", base)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, buf.String(), "setup failed: boom")
}
