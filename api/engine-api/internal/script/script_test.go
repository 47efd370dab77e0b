package internal_script

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/configs"
	"github.com/affirmai/engine/pkg/connectors"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	sql := connectors.NewSQLConnector(configs.DatabaseConfig{
		Dialect: "sqlite",
		DSN:     filepath.Join(t.TempDir(), "scripts.db"),
	}, logger)
	require.NoError(t, sql.Connect(context.Background()))
	t.Cleanup(func() { sql.Disconnect(context.Background()) })

	s := NewStore(sql, logger)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, &Script{Text: "I am calm", Repetitions: 0, IntervalSeconds: -3})
	require.NoError(t, err)
	require.NotEmpty(t, saved.Id)
	assert.Equal(t, 1, saved.Repetitions)
	assert.Equal(t, 0.0, saved.IntervalSeconds)

	got, err := s.Get(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, "I am calm", got.Text)
	assert.False(t, got.PrivateModeEnabled)
}

func TestGet_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, internal_type.ErrNoRecording)
}

func TestApplyRecordingTranscriptAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saved, err := s.Save(ctx, &Script{Text: "I am enough", Repetitions: 3, IntervalSeconds: 2})
	require.NoError(t, err)

	require.NoError(t, s.ApplyRecording(ctx, saved.Id, "/assets/x.wav", 4.2))
	require.NoError(t, s.ApplyTranscript(ctx, saved.Id, "i am enough", "en-US"))

	got, err := s.Get(ctx, saved.Id)
	require.NoError(t, err)
	assert.Equal(t, "/assets/x.wav", got.AudioFilePath)
	assert.InDelta(t, 4.2, got.AudioDuration, 1e-9)
	assert.Equal(t, "i am enough", got.TranscribedText)
	assert.Equal(t, "en-US", got.TranscriptionLanguage)
	assert.Equal(t, 3, got.Repetitions)

	// a new recording invalidates the transcript
	require.NoError(t, s.ApplyRecording(ctx, saved.Id, "/assets/y.wav", 2))
	got, err = s.Get(ctx, saved.Id)
	require.NoError(t, err)
	assert.Empty(t, got.TranscribedText)

	require.NoError(t, s.ClearRecording(ctx, saved.Id))
	got, err = s.Get(ctx, saved.Id)
	require.NoError(t, err)
	assert.Empty(t, got.AudioFilePath)
	assert.Equal(t, 0.0, got.AudioDuration)
	assert.Empty(t, got.TranscribedText)
}

func TestApplyRecording_UnknownScriptIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.ApplyRecording(context.Background(), "ghost", "/x.wav", 1))
}
