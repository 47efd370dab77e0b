package commons

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &applicationLogger{SugaredLogger: newSugared(core, "test"), name: "test", level: "debug"}, logs
}

func TestLogger_ReportsCallingFile(t *testing.T) {
	logger, logs := observedLogger()

	logger.Infof("recording %s", "a")
	logger.Benchmark("process", time.Second)
	logger.With("target", "a").Warn("child")

	entries := logs.All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.True(t, e.Caller.Defined)
		assert.Equal(t, "logger_test.go", filepath.Base(e.Caller.File), e.Message)
	}
	assert.Equal(t, "test", entries[0].LoggerName)
	assert.Equal(t, "a", entries[2].ContextMap()["target"])
}

func TestNewApplicationLogger_InvalidLevel(t *testing.T) {
	_, err := NewApplicationLogger(Level("loud"))
	assert.Error(t, err)
}

func TestNewApplicationLogger_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewApplicationLogger(Name("engine-test"), Path(dir), Level("info"))
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()
	assert.FileExists(t, filepath.Join(dir, "engine-test.log"))
}
