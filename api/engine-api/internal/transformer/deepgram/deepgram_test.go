package internal_transformer_deepgram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	l, err := commons.NewApplicationLogger()
	require.NoError(t, err)
	return l
}

// --- Constructor Tests ---

func TestNewDeepgramOption_ValidCredentials(t *testing.T) {
	opt, err := NewDeepgramOption(newTestLogger(t), utils.Option{"key": "test-api-key"}, utils.Option{})
	assert.NoError(t, err)
	assert.NotNil(t, opt)
	assert.Equal(t, "test-api-key", opt.GetKey())
	assert.Equal(t, DefaultBaseURL, opt.baseURL)
}

func TestNewDeepgramOption_MissingKey(t *testing.T) {
	opt, err := NewDeepgramOption(newTestLogger(t), utils.Option{"other": "value"}, utils.Option{})
	assert.Error(t, err)
	assert.Nil(t, opt)
	assert.Contains(t, err.Error(), "illegal vault config")
}

// --- SpeechToTextOptions Tests ---

func TestSpeechToTextOptions_Defaults(t *testing.T) {
	opt, _ := NewDeepgramOption(newTestLogger(t), utils.Option{"key": "k"}, utils.Option{})
	sttOpts := opt.SpeechToTextOptions("")

	assert.Equal(t, DefaultModel, sttOpts.Model)
	assert.Equal(t, "en-US", sttOpts.Language)
	assert.True(t, sttOpts.SmartFormat)
	assert.Equal(t, "true", sttOpts.Query()["punctuate"])
}

func TestSpeechToTextOptions_Overrides(t *testing.T) {
	opt, _ := NewDeepgramOption(newTestLogger(t), utils.Option{"key": "k"}, utils.Option{
		"listen.model":    "nova-3",
		"listen.language": "es",
	})
	assert.Equal(t, "nova-3", opt.SpeechToTextOptions("").Model)
	assert.Equal(t, "es", opt.SpeechToTextOptions("").Language)
	assert.Equal(t, "fr", opt.SpeechToTextOptions("fr").Language)
}

// --- Transcribe Tests ---

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "Token k", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		assert.Equal(t, "de-DE", r.URL.Query().Get("language"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "RIFF0000WAVE", string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"Ich bin ruhig.","confidence":0.98}]}]}}`))
	}))
	defer srv.Close()

	tr, err := NewDeepgramTranscriber(newTestLogger(t), utils.Option{"key": "k", "base_url": srv.URL}, utils.Option{})
	require.NoError(t, err)
	assert.Equal(t, "deepgram", tr.Name())

	text, err := tr.Transcribe(context.Background(), []byte("RIFF0000WAVE"), "de-DE")
	require.NoError(t, err)
	assert.Equal(t, "Ich bin ruhig.", text)
}

func TestTranscribe_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"err_msg":"out of credit"}`))
	}))
	defer srv.Close()

	tr, _ := NewDeepgramTranscriber(newTestLogger(t), utils.Option{"key": "k", "base_url": srv.URL}, utils.Option{})
	_, err := tr.Transcribe(context.Background(), []byte("RIFF"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
}

func TestTranscribe_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer srv.Close()

	tr, _ := NewDeepgramTranscriber(newTestLogger(t), utils.Option{"key": "k", "base_url": srv.URL}, utils.Option{})
	text, err := tr.Transcribe(context.Background(), []byte("RIFF"), "")
	require.NoError(t, err)
	assert.Empty(t, text)
}
