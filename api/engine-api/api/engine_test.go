package engine_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affirmai/engine/api/engine-api/config"
	internal_device "github.com/affirmai/engine/api/engine-api/internal/audio/device"
	internal_interruption "github.com/affirmai/engine/api/engine-api/internal/interruption"
	internal_recovery "github.com/affirmai/engine/api/engine-api/internal/recovery"
	internal_script "github.com/affirmai/engine/api/engine-api/internal/script"
	internal_type "github.com/affirmai/engine/api/engine-api/internal/type"
	"github.com/affirmai/engine/pkg/commons"
	"github.com/affirmai/engine/pkg/configs"
	"github.com/affirmai/engine/pkg/connectors"
)

type call struct {
	name        string
	target      string
	repetitions int
	interval    float64
	language    string
}

// fakeCoordinator records intents and answers with err.
type fakeCoordinator struct {
	mu    sync.Mutex
	calls []call
	err   error
	subs  chan internal_type.Snapshot
}

func (f *fakeCoordinator) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeCoordinator) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeCoordinator) Run(ctx context.Context) error { return nil }
func (f *fakeCoordinator) Close()                        {}
func (f *fakeCoordinator) StartRecording(ctx context.Context, target string) error {
	return f.record(call{name: "start", target: target})
}
func (f *fakeCoordinator) StopRecording(ctx context.Context) error {
	return f.record(call{name: "stop"})
}
func (f *fakeCoordinator) RetryProcessing(ctx context.Context, target string) error {
	return f.record(call{name: "retry", target: target})
}
func (f *fakeCoordinator) Play(ctx context.Context, target string, repetitions int, interval float64) error {
	return f.record(call{name: "play", target: target, repetitions: repetitions, interval: interval})
}
func (f *fakeCoordinator) Pause(ctx context.Context) error  { return f.record(call{name: "pause"}) }
func (f *fakeCoordinator) Resume(ctx context.Context) error { return f.record(call{name: "resume"}) }
func (f *fakeCoordinator) StopPlayback(ctx context.Context) error {
	return f.record(call{name: "stop_playback"})
}
func (f *fakeCoordinator) RequestTranscription(ctx context.Context, target, language string) error {
	return f.record(call{name: "transcribe", target: target, language: language})
}
func (f *fakeCoordinator) DeleteRecording(ctx context.Context, target string) error {
	return f.record(call{name: "delete", target: target})
}
func (f *fakeCoordinator) Snapshot() internal_type.Snapshot {
	return internal_type.Snapshot{Sequence: 7, State: internal_type.Ready("a")}
}
func (f *fakeCoordinator) Subscribe() (<-chan internal_type.Snapshot, func()) {
	return f.subs, func() {}
}

type harness struct {
	router      *gin.Engine
	coordinator *fakeCoordinator
	mailbox     *internal_recovery.Mailbox
	system      *internal_interruption.ChannelSource
	bridge      *internal_device.Bridge
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	sql := connectors.NewSQLConnector(configs.DatabaseConfig{
		Dialect: "sqlite",
		DSN:     filepath.Join(t.TempDir(), "engine.db"),
	}, logger)
	require.NoError(t, sql.Connect(context.Background()))
	t.Cleanup(func() { sql.Disconnect(context.Background()) })
	scripts := internal_script.NewStore(sql, logger)
	require.NoError(t, scripts.Migrate(context.Background()))

	h := &harness{
		coordinator: &fakeCoordinator{subs: make(chan internal_type.Snapshot, 4)},
		mailbox:     internal_recovery.NewMailbox(logger),
		system:      internal_interruption.NewChannelSource(),
		bridge:      internal_device.NewBridge(logger),
	}
	cfg := &config.AppConfig{Name: "affirm-engine", Version: "test"}
	api := NewEngineApi(cfg, logger, h.coordinator, scripts, h.mailbox, h.system, h.bridge)

	// mirrors the production routes
	r := gin.New()
	v1 := r.Group("v1")
	v1.GET("/state", api.GetState)
	v1.GET("/state/stream", api.StreamState)
	v1.POST("/recordings/stop", api.StopRecording)
	v1.POST("/recordings/:target/start", api.StartRecording)
	v1.POST("/recordings/:target/transcription", api.RequestTranscription)
	v1.DELETE("/recordings/:target", api.DeleteRecording)
	v1.POST("/playback/:target/play", api.Play)
	v1.POST("/playback/pause", api.Pause)
	v1.GET("/scripts/:id", api.GetScript)
	v1.PUT("/scripts/:id", api.SaveScript)
	v1.GET("/recovery", api.GetRecovery)
	v1.POST("/recovery", api.ResolveRecovery)
	v1.POST("/system/interruptions", api.Interruption)
	v1.POST("/system/route", api.Route)
	v1.POST("/system/permission", api.Permission)
	v1.GET("/bridge/capture", api.CaptureFrames)
	h.router = r
	return h
}

func (h *harness) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		kind internal_type.ErrorKind
		want int
	}{
		{internal_type.KindPrivateModeActive, http.StatusConflict},
		{internal_type.KindInvalidState, http.StatusConflict},
		{internal_type.KindPermissionDenied, http.StatusForbidden},
		{internal_type.KindInsufficientDiskSpace, http.StatusInsufficientStorage},
		{internal_type.KindNoRecording, http.StatusNotFound},
		{internal_type.KindFileNotFound, http.StatusNotFound},
		{internal_type.KindFileCorrupted, http.StatusUnprocessableEntity},
		{internal_type.KindProcessingFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(internal_type.NewError(tc.kind, "op", "a", nil)))
		})
	}
}

func TestIntents_ForwardToCoordinator(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/v1/recordings/a/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, call{name: "start", target: "a"}, h.coordinator.last())

	w = h.do(http.MethodPost, "/v1/recordings/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stop", h.coordinator.last().name)

	w = h.do(http.MethodDelete, "/v1/recordings/a", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, call{name: "delete", target: "a"}, h.coordinator.last())

	w = h.do(http.MethodPost, "/v1/recordings/a/transcription", gin.H{"language": "fr-FR"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, call{name: "transcribe", target: "a", language: "fr-FR"}, h.coordinator.last())

	var body struct {
		Success  bool                   `json:"success"`
		Snapshot internal_type.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, uint64(7), body.Snapshot.Sequence)
}

func TestPlay_Defaults(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/v1/playback/a/play", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, call{name: "play", target: "a", repetitions: 0, interval: -1}, h.coordinator.last())

	w = h.do(http.MethodPost, "/v1/playback/a/play", gin.H{"repetitions": 3, "intervalSeconds": 0})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, call{name: "play", target: "a", repetitions: 3, interval: 0}, h.coordinator.last())

	w = h.do(http.MethodPost, "/v1/playback/a/play", gin.H{"repetitions": -2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIntents_MapErrors(t *testing.T) {
	h := newHarness(t)
	h.coordinator.err = internal_type.NewError(internal_type.KindPrivateModeActive, "coordinator.play", "a", nil)

	w := h.do(http.MethodPost, "/v1/playback/a/play", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"private_mode_active"`)

	h.coordinator.err = internal_type.NewError(internal_type.KindPermissionDenied, "coordinator.start_recording", "a", nil)
	w = h.do(http.MethodPost, "/v1/recordings/a/start", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetState(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/v1/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"phase":"ready"`)
}

func TestScripts_SaveAndGet(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/v1/scripts/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPut, "/v1/scripts/s1", gin.H{
		"text": "I am calm", "privateModeEnabled": true, "repetitions": 3, "intervalSeconds": 2.5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/v1/scripts/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var script internal_script.Script
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &script))
	assert.Equal(t, "I am calm", script.Text)
	assert.True(t, script.PrivateModeEnabled)
	assert.Equal(t, 3, script.Repetitions)
	assert.Equal(t, 2.5, script.IntervalSeconds)
}

func TestRecovery_ResolvesPendingDecisionOnce(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/v1/recovery", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	d := internal_recovery.NewDecision(internal_type.InterruptionRecord{Target: "a", Cause: internal_type.CauseCall, CapturedDuration: time.Second})
	h.mailbox.Present(d)

	w = h.do(http.MethodGet, "/v1/recovery", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), d.ID())

	w = h.do(http.MethodPost, "/v1/recovery", gin.H{"id": d.ID(), "resolution": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/v1/recovery", gin.H{"id": "other", "resolution": "discard"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/v1/recovery", gin.H{"id": d.ID(), "resolution": "save_partial"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	choice, ok := d.Resolution()
	assert.True(t, ok)
	assert.Equal(t, internal_type.ResolutionSavePartial, choice)

	w = h.do(http.MethodPost, "/v1/recovery", gin.H{"id": d.ID(), "resolution": "discard"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSystem_ForwardsPlatformEvents(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan internal_interruption.Event, 4)
	go h.system.Run(ctx, func(ev internal_interruption.Event) { events <- ev })

	w := h.do(http.MethodPost, "/v1/system/interruptions", gin.H{"began": true, "cause": "call"})
	require.Equal(t, http.StatusAccepted, w.Code)
	ev := <-events
	require.NotNil(t, ev.Interruption)
	assert.True(t, ev.Interruption.Began)
	assert.Equal(t, internal_type.CauseCall, ev.Interruption.Cause)

	w = h.do(http.MethodPost, "/v1/system/route", gin.H{"privateOutputAttached": false, "reason": "unplugged"})
	require.Equal(t, http.StatusAccepted, w.Code)
	ev = <-events
	require.NotNil(t, ev.Route)
	assert.False(t, ev.Route.PrivateOutputAttached)

	w = h.do(http.MethodPost, "/v1/system/route", gin.H{"reason": "missing flag"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSystem_Permission(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/v1/system/permission", gin.H{"authorized": false})
	require.Equal(t, http.StatusOK, w.Code)
	ok, err := h.bridge.MicrophoneAuthorized(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStreamState_SendsSnapshots(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	h.coordinator.subs <- internal_type.Snapshot{Sequence: 1, State: internal_type.Recording("a")}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/state/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw map[string]interface{}
	require.NoError(t, conn.ReadJSON(&raw))
	assert.Equal(t, float64(1), raw["sequence"])
	state := raw["state"].(map[string]interface{})
	assert.Equal(t, "recording", state["phase"])
}

func TestCaptureFrames_ReachTheBridge(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	stream, err := h.bridge.OpenCapture(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/bridge/capture", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))

	select {
	case frame := <-stream.Frames():
		assert.Equal(t, []byte{1, 2, 3, 4}, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never reached the capture stream")
	}
}
