package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetApplicationConfig_Defaults(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	v, err := InitConfig()
	require.NoError(t, err)

	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "affirm-engine", cfg.Name)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseConfig.Dialect)
	assert.Equal(t, "recordings", cfg.StorageConfig.AssetRoot)
	assert.Equal(t, 3, cfg.FileOpsConfig.Attempts)
	assert.Equal(t, "medium", cfg.PipelineConfig.TrimSensitivity)
	assert.Equal(t, "none", cfg.TranscriptionConfig.Provider)
	assert.Equal(t, 50, cfg.CoordinatorConfig.TickMs)
	assert.False(t, cfg.RedisConfig.Enabled())
}

func TestGetApplicationConfig_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.env")
	content := "PORT=8088\n" +
		"DATABASE__DIALECT=postgres\n" +
		"DATABASE__DSN=postgres://affirm@localhost:5432/affirm\n" +
		"TRANSCRIPTION__PROVIDER=deepgram\n" +
		"TRANSCRIPTION__API_KEY=dg-key\n" +
		"REDIS__HOST=localhost\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ENV_PATH", path)

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseConfig.Dialect)
	assert.Equal(t, "deepgram", cfg.TranscriptionConfig.Provider)
	assert.Equal(t, "dg-key", cfg.TranscriptionConfig.APIKey)
	assert.True(t, cfg.RedisConfig.Enabled())
}

func TestGetApplicationConfig_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("TRANSCRIPTION__PROVIDER=carrier-pigeon\n"), 0o600))
	t.Setenv("ENV_PATH", path)

	v, err := InitConfig()
	require.NoError(t, err)
	_, err = GetApplicationConfig(v)
	assert.Error(t, err)
}
