package internal_transformer_openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/utils"
)

func newTestLogger() commons.Logger {
	l, _ := commons.NewApplicationLogger()
	return l
}

func TestNewOpenAIOption_MissingKey(t *testing.T) {
	opt, err := NewOpenAIOption(newTestLogger(), utils.Option{}, utils.Option{})
	assert.Error(t, err)
	assert.Nil(t, opt)
	assert.Contains(t, err.Error(), "illegal vault config")
}

func TestGetModel(t *testing.T) {
	opt, err := NewOpenAIOption(newTestLogger(), utils.Option{"key": "k"}, utils.Option{})
	require.NoError(t, err)
	assert.Equal(t, openai.AudioModelWhisper1, opt.GetModel())

	opt, _ = NewOpenAIOption(newTestLogger(), utils.Option{"key": "k"}, utils.Option{"listen.model": "gpt-4o-transcribe"})
	assert.Equal(t, openai.AudioModel("gpt-4o-transcribe"), opt.GetModel())
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "en", Language("en-US"))
	assert.Equal(t, "pt", Language("pt_BR"))
	assert.Equal(t, "de", Language("DE"))
	assert.Equal(t, "", Language(""))
}

func TestTranscribe(t *testing.T) {
	var gotLanguage, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": " I am grounded. "})
	}))
	defer srv.Close()

	tr, err := NewOpenAITranscriber(newTestLogger(),
		utils.Option{"key": "k", "base_url": srv.URL + "/"},
		utils.Option{},
		option.WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, "openai", tr.Name())

	text, err := tr.Transcribe(context.Background(), []byte("RIFF0000WAVE"), "en-US")
	require.NoError(t, err)
	assert.Equal(t, "I am grounded.", text)
	assert.Equal(t, "en", gotLanguage)
	assert.Equal(t, "whisper-1", gotModel)
}

func TestTranscribe_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	tr, err := NewOpenAITranscriber(newTestLogger(),
		utils.Option{"key": "k", "base_url": srv.URL + "/"},
		utils.Option{},
		option.WithMaxRetries(0))
	require.NoError(t, err)
	_, err = tr.Transcribe(context.Background(), []byte("RIFF"), "en")
	assert.Error(t, err)
}
