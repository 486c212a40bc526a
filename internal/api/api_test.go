package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejor21/trabajo-final-IA/internal/client"
	"github.com/alejor21/trabajo-final-IA/internal/database"
	"github.com/alejor21/trabajo-final-IA/internal/live"
	"github.com/alejor21/trabajo-final-IA/internal/metrics"
	"github.com/alejor21/trabajo-final-IA/internal/models"
	"github.com/alejor21/trabajo-final-IA/internal/session"
	"github.com/alejor21/trabajo-final-IA/internal/storage"
)

type fakeBackend struct {
	mu        sync.Mutex
	videoGate chan struct{}
	healthErr error
	processed map[string]string
}

func (f *fakeBackend) SubmitImage(ctx context.Context, asset *models.MediaAsset) (*models.DetectionResult, error) {
	return &models.DetectionResult{
		Items: []models.DetectionItem{{Class: "helmet", Confidence: 0.93}},
		Compliance: models.ComplianceSummary{
			Reported: true, Compliant: true, Message: "OK", MissingItems: []models.MissingEntry{},
		},
	}, nil
}

func (f *fakeBackend) SubmitVideo(ctx context.Context, asset *models.MediaAsset) (*models.VideoAnalysis, error) {
	f.mu.Lock()
	gate := f.videoGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return &models.VideoAnalysis{
		Stats: models.VideoStats{TotalFrames: 10},
		Result: models.DetectionResult{Compliance: models.ComplianceSummary{
			Reported:     true,
			MissingItems: []models.MissingEntry{{PersonID: 1, Missing: []string{"Chaleco"}}},
		}},
	}, nil
}

func (f *fakeBackend) SendChat(ctx context.Context, text string) (string, error) {
	if text == "¿Qué es EPP?" {
		return "Equipo de Protección Personal", nil
	}
	return "", nil
}

func (f *fakeBackend) Health(ctx context.Context) (*client.HealthStatus, error) {
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &client.HealthStatus{Status: "ok", ModelLoaded: true, ModelPath: "best.pt"}, nil
}

func (f *fakeBackend) fetch(ref string, w io.Writer) (int64, error) {
	body, ok := f.processed[ref]
	if !ok {
		return 0, &client.RequestError{Op: client.OpFetchImage, StatusCode: http.StatusNotFound}
	}
	n, err := io.WriteString(w, body)
	return int64(n), err
}

func (f *fakeBackend) FetchProcessedImage(ctx context.Context, ref string, w io.Writer) (int64, error) {
	return f.fetch(ref, w)
}

func (f *fakeBackend) FetchProcessedVideo(ctx context.Context, ref string, w io.Writer) (int64, error) {
	return f.fetch(ref, w)
}

type testEnv struct {
	app     *App
	backend *fakeBackend
	store   *storage.LocalStorage
	ticks   chan time.Time
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ticks := make(chan time.Time)
	gen := live.NewGenerator(time.Second, live.WithTicker(func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}))

	backend := &fakeBackend{processed: map[string]string{"processed_photo.jpg": "annotated-bytes"}}
	m := metrics.New()
	ws := session.NewWorkspace(backend, gen)
	t.Cleanup(func() { ws.Close() })

	hub := NewHub(func(n int) { m.EventClients.Set(float64(n)) })
	t.Cleanup(hub.Close)
	ws.Subscribe(hub.Listen)
	ws.Subscribe(m.Listen)

	app := &App{
		Workspace:     ws,
		Storage:       store,
		Backend:       backend,
		Hub:           hub,
		Metrics:       m,
		MaxUploadSize: 1 << 20,
	}
	return &testEnv{app: app, backend: backend, store: store, ticks: ticks, handler: NewRouter(app)}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/ping", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestImageFlow(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "photo.jpg", "image/jpeg", []byte("jpeg-bytes"))
	rec := env.do(t, http.MethodPost, "/api/image", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[imageView](t, rec)
	require.NotNil(t, accepted.Asset)
	assert.Equal(t, "photo.jpg", accepted.Asset.Name)
	assert.True(t, strings.HasPrefix(accepted.Asset.PreviewRef, "/api/media/"))

	require.Eventually(t, func() bool {
		return env.app.Workspace.Image.State().Phase() == models.PhaseReady
	}, 2*time.Second, 5*time.Millisecond)

	view := decode[imageView](t, env.do(t, http.MethodGet, "/api/image", nil, ""))
	assert.Equal(t, models.PhaseReady, view.Phase)
	require.NotNil(t, view.Result)
	require.Len(t, view.Result.Items, 1)
	assert.Equal(t, "helmet", view.Result.Items[0].Class)

	// The stored upload is served back for preview.
	media := env.do(t, http.MethodGet, view.Asset.PreviewRef, nil, "")
	assert.Equal(t, http.StatusOK, media.Code)
	assert.Equal(t, "jpeg-bytes", media.Body.String())

	chat := decode[chatView](t, env.do(t, http.MethodGet, "/api/chat", nil, ""))
	assert.Equal(t, session.AnalysisSuggestions, chat.Suggestions)
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("title", "x"))
		require.NoError(t, mw.Close())

		rec := env.do(t, http.MethodPost, "/api/image", &buf, mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong kind", func(t *testing.T) {
		body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hi"))
		rec := env.do(t, http.MethodPost, "/api/image", body, ct)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("extension fallback", func(t *testing.T) {
		body, ct := multipartBody(t, "clip.MP4", "application/octet-stream", []byte("frames"))
		rec := env.do(t, http.MethodPost, "/api/video", body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "video/mp4", decode[videoView](t, rec).Asset.ContentType)
	})

	t.Run("too large", func(t *testing.T) {
		env.app.MaxUploadSize = 16
		defer func() { env.app.MaxUploadSize = 1 << 20 }()

		body, ct := multipartBody(t, "photo.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 1024))
		rec := env.do(t, http.MethodPost, "/api/image", body, ct)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestUploadsReplacedBySelectionAreRemoved(t *testing.T) {
	env := newTestEnv(t)

	upload := func(filename string) imageView {
		body, ct := multipartBody(t, filename, "image/jpeg", []byte(filename))
		rec := env.do(t, http.MethodPost, "/api/image", body, ct)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		return decode[imageView](t, rec)
	}

	first := upload("first.jpg")
	second := upload("second.jpg")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, first.Asset.PreviewRef, nil, "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, second.Asset.PreviewRef, nil, "").Code)

	require.Eventually(t, func() bool {
		return env.app.Workspace.Image.State().Phase() == models.PhaseReady
	}, 2*time.Second, 5*time.Millisecond)

	// An upload the controller refuses is not kept either.
	require.NoError(t, env.app.Workspace.Close())
	body, ct := multipartBody(t, "clip.mp4", "video/mp4", []byte("frames"))
	rec := env.do(t, http.MethodPost, "/api/video", body, ct)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	root, err := env.store.GetFilePath("x")
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Dir(root))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, strings.TrimPrefix(second.Asset.PreviewRef, "/api/media/"), entries[0].Name())
}

func TestVideoFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/video/playback", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "no asset selected")

	body, ct := multipartBody(t, "clip.mp4", "video/mp4", []byte("frames"))
	rec = env.do(t, http.MethodPost, "/api/video", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PhasePreviewReady, decode[videoView](t, rec).Phase)

	rec = env.do(t, http.MethodPost, "/api/video/playback", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PhaseLivePreview, decode[videoView](t, rec).Phase)

	env.ticks <- time.Now()
	require.Eventually(t, func() bool {
		var v videoView
		rec := env.do(t, http.MethodGet, "/api/video", nil, "")
		return json.Unmarshal(rec.Body.Bytes(), &v) == nil && len(v.LiveDetections) >= live.MinLabels
	}, 2*time.Second, 5*time.Millisecond)

	rec = env.do(t, http.MethodPost, "/api/video/ended", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	ended := decode[videoView](t, rec)
	assert.Equal(t, models.PhasePaused, ended.Phase)
	assert.Empty(t, ended.LiveDetections)

	gate := make(chan struct{})
	env.backend.mu.Lock()
	env.backend.videoGate = gate
	env.backend.mu.Unlock()

	rec = env.do(t, http.MethodPost, "/api/video/analyze", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.PhaseAnalyzing, decode[videoView](t, rec).Phase)

	rec = env.do(t, http.MethodPost, "/api/video/analyze", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "single flight")

	close(gate)
	require.Eventually(t, func() bool {
		return env.app.Workspace.Video.State().Phase() == models.PhaseReady
	}, 2*time.Second, 5*time.Millisecond)

	view := decode[videoView](t, env.do(t, http.MethodGet, "/api/video", nil, ""))
	require.NotNil(t, view.Analysis)
	assert.Equal(t, []models.MissingEntry{{PersonID: 1, Missing: []string{"Chaleco"}}},
		view.Analysis.Result.Compliance.MissingItems)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{"message":"¿Qué es EPP?"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[chatResponse](t, rec)
	assert.Equal(t, "Equipo de Protección Personal", resp.Reply.Text)
	assert.Len(t, resp.Messages, 3)
	assert.False(t, resp.Typing)
	assert.Equal(t, session.GeneralSuggestions, resp.Suggestions)

	rec = env.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{"message":"   "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hola"}`), "application/json")
	assert.Equal(t, session.FallbackEmpty, decode[chatResponse](t, rec).Reply.Text)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/history", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	defer db.Close()

	repo := database.NewHistoryRepository(db)
	env.app.History = repo
	env.app.Workspace.Subscribe(RecordHistory(repo))

	body, ct := multipartBody(t, "photo.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/image", body, ct).Code)

	require.Eventually(t, func() bool {
		var records []models.AnalysisRecord
		rec := env.do(t, http.MethodGet, "/api/history?kind=image&limit=5", nil, "")
		return rec.Code == http.StatusOK && json.Unmarshal(rec.Body.Bytes(), &records) == nil && len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)

	records := decode[[]models.AnalysisRecord](t, env.do(t, http.MethodGet, "/api/history", nil, ""))
	require.Len(t, records, 1)
	assert.Equal(t, "photo.jpg", records[0].AssetName)
	assert.True(t, records[0].Compliant)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/history?kind=audio", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/history?limit=-2", nil, "").Code)
}

type failingHistory struct{}

func (failingHistory) Insert(context.Context, *models.AnalysisRecord) error {
	return errors.New("disk full")
}

func (failingHistory) ListRecent(context.Context, models.MediaKind, int) ([]models.AnalysisRecord, error) {
	return nil, errors.New("disk full")
}

func TestHistoryFailures(t *testing.T) {
	env := newTestEnv(t)
	env.app.History = failingHistory{}

	rec := env.do(t, http.MethodGet, "/api/history", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// A failing insert is logged and never disturbs the session.
	RecordHistory(failingHistory{})(session.Event{Type: session.EventAnalysisComplete})
}

func TestMedia(t *testing.T) {
	env := newTestEnv(t)

	w, err := env.store.CreateFile("processed_clip.mp4")
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("v"), 4096))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	req := httptest.NewRequest(http.MethodGet, "/api/media/processed_clip.mp4", nil)
	req.Header.Set("Range", "bytes=0-1023")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, 1024, rec.Body.Len())
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/media/missing.mp4", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/media/..%2Fsecret", nil, "").Code)
}

func TestProcessed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/processed/image/processed_photo.jpg?save=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "annotated-bytes", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	path, err := env.store.GetFilePath("processed_photo.jpg")
	require.NoError(t, err)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "annotated-bytes", string(saved))

	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodGet, "/api/processed/video/unknown.mp4", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/processed/audio/x.mp3", nil, "").Code)

	// A failed download keeps nothing in storage.
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodGet, "/api/processed/video/unknown.mp4?save=1", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/media/unknown.mp4", nil, "").Code)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "processed_photo.jpg", e.Name())
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[client.HealthStatus](t, rec)
	assert.True(t, status.ModelLoaded)

	env.backend.healthErr = &client.RequestError{Op: client.OpHealth, Err: errors.New("refused")}
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodGet, "/api/health", nil, "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/chat", strings.NewReader(`{"message":"¿Qué es EPP?"}`), "application/json")

	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `epp_assistant_messages_total{sender="assistant"} 1`)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.app.Hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = env.app.Workspace.Assistant.Send(context.Background(), "¿Qué es EPP?")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for _, want := range []string{"¿Qué es EPP?", "Equipo de Protección Personal"} {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev session.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, session.EventChatMessage, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, want, ev.Message.Text)
	}
}
