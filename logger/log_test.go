package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigureLevel(t *testing.T) {
	config := Config{Level: "warn", Format: "console"}
	require.NoError(t, config.Configure())
	defer func() {
		config := Config{Level: "info", Format: "console"}
		require.NoError(t, config.Configure())
	}()

	require.False(t, DebugEnabled)
	l := ForActor("join", 3)
	require.False(t, l.Enabled(zap.InfoLevel))
	require.True(t, l.Enabled(zap.WarnLevel))
	l.Warnf("high join amplification for key %v", 1)
}

func TestConfigureDebug(t *testing.T) {
	config := Config{Level: "debug", Format: "json"}
	require.NoError(t, config.Configure())
	defer func() {
		config := Config{Level: "info", Format: "console"}
		require.NoError(t, config.Configure())
	}()
	require.True(t, DebugEnabled)
}

func TestConfigureInvalid(t *testing.T) {
	config := Config{Level: "info", Format: "xml"}
	require.Error(t, config.Configure())
	config = Config{Level: "loud", Format: "console"}
	require.Error(t, config.Configure())
}
