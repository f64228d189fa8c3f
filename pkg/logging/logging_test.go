package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"info", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"bogus", zap.InfoLevel},
		{"", zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelString_RoundTrip(t *testing.T) {
	for _, l := range []string{"debug", "info", "warn", "error"} {
		assert.Equal(t, l, LevelString(ParseLevel(l)))
	}
	// Unknown configured levels are reported as the level actually in effect
	assert.Equal(t, "info", LevelString(ParseLevel("verbose")))
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, err := NewLogger(Config{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}
}

func TestChannels_Quiet(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	errs, access := Channels(zap.New(core), 0)

	errs.Info("hidden")
	errs.Warn("shown")
	errs.Error("shown too")
	access.Info("hidden")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestChannels_Verbose(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	errs, access := Channels(zap.New(core), 1)

	errs.Debug("debug")
	access.Info("request")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "access", logs.All()[1].LoggerName)
}

func TestChannels_NilBase(t *testing.T) {
	errs, access := Channels(nil, 1)
	assert.NotNil(t, errs)
	assert.NotNil(t, access)
}
