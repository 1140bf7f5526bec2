package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask("  "))
	assert.Equal(t, "short", Mask("short"))
	assert.Equal(t, "Toke***Q5DA", Mask("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"))
}

func TestNew(t *testing.T) {
	l, err := New("debug", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", false)
	require.Error(t, err)
}
