package logx

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	l, err := New("DEBUG", "test")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "test")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("loud", "test")
	require.Error(t, err)
}

func TestL(t *testing.T) {
	require.NotNil(t, L())
}

func TestSetup_ReplacesPackageLogger(t *testing.T) {
	prev := L()
	t.Cleanup(func() { logger.Store(prev) })

	l, err := Setup("debug", "test")
	require.NoError(t, err)
	require.Same(t, l, L())
	require.True(t, L().Core().Enabled(zapcore.DebugLevel))

	l, err = Setup("loud", "test")
	require.Error(t, err)
	require.Same(t, l, L())
	require.True(t, L().Core().Enabled(zapcore.InfoLevel))
	require.False(t, L().Core().Enabled(zapcore.DebugLevel))
}
