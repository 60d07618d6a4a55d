package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/zinara-studio/internal/export"
	"github.com/maauso/zinara-studio/internal/ingest"
	"github.com/maauso/zinara-studio/internal/job"
	"github.com/maauso/zinara-studio/internal/lesson"
	"github.com/maauso/zinara-studio/internal/narration"
	"github.com/maauso/zinara-studio/internal/studio"
)

// fakeGenerator completes jobs at once, or blocks until cancelled when block is set.
type fakeGenerator struct {
	repo  job.Repository
	block bool
	uri   string
}

func (g *fakeGenerator) Submit(ctx context.Context, in job.SubmitInput, progress job.ProgressFunc) (*job.Job, error) {
	j := job.NewWithID(in.JobID)
	_ = j.Submit()
	j.SetMessage(job.MessageAuthenticating)
	g.save(ctx, j, progress)

	_ = j.StartPolling("op-1")
	j.SetProgress(0, job.PollPhases[0])
	g.save(ctx, j, progress)

	if g.block {
		<-ctx.Done()
		_ = j.Cancel()
		j.SetMessage(job.MessageCancelled)
		g.save(context.WithoutCancel(ctx), j, progress)
		return j.Clone(), ctx.Err()
	}

	_ = j.Complete(g.uri)
	j.SetMessage(job.MessageComplete)
	g.save(ctx, j, progress)
	return j.Clone(), nil
}

func (g *fakeGenerator) save(ctx context.Context, j *job.Job, progress job.ProgressFunc) {
	_ = g.repo.Save(ctx, j)
	progress(j.Clone())
}

// repoJobs serves GetJob straight from a repository.
type repoJobs struct {
	repo job.Repository
}

func (r repoJobs) GetJob(ctx context.Context, id string) (*job.Job, error) {
	return r.repo.FindByID(ctx, id)
}

// mockNarrator implements studio.Narrator for testing.
type mockNarrator struct {
	mock.Mock
}

func (m *mockNarrator) Speak(ctx context.Context, text string, opts narration.Options) error {
	return m.Called(ctx, text, opts).Error(0)
}

func (m *mockNarrator) Pause() error  { return m.Called().Error(0) }
func (m *mockNarrator) Resume() error { return m.Called().Error(0) }
func (m *mockNarrator) Stop() error   { return m.Called().Error(0) }

// mockExporter implements studio.Exporter for testing.
type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) Export(ctx context.Context, uri string) (export.Result, error) {
	args := m.Called(ctx, uri)
	return args.Get(0).(export.Result), args.Error(1)
}

type testServer struct {
	handler   http.Handler
	generator *fakeGenerator
	narrator  *mockNarrator
	exporter  *mockExporter
	repo      job.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	repo := job.NewMemoryRepository()
	ts := &testServer{
		generator: &fakeGenerator{repo: repo, uri: "https://cdn/x.mp4"},
		narrator:  &mockNarrator{},
		exporter:  &mockExporter{},
		repo:      repo,
	}
	ts.narrator.On("Stop").Return(nil).Maybe()

	registry := studio.NewRegistry(func() studio.Dependencies {
		return studio.Dependencies{
			Generator: ts.generator,
			Narrator:  ts.narrator,
			Exporter:  ts.exporter,
			Ingestor:  ingest.NewIngestor(1 << 20),
			Logger:    logger,
		}
	})
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	h := NewHandlers(registry, repoJobs{repo: repo}, lesson.NewAssistant(nil, "", logger), logger)
	ts.handler = NewRouter(h, logger, DefaultConfig())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, path, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createSession(t *testing.T) SessionResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody[SessionResponse](t, rec)
}

func (ts *testServer) session(t *testing.T, id string) SessionResponse {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody[SessionResponse](t, rec)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	assert.Equal(t, status, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, code, resp.Code)
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	s := ts.createSession(t)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, studio.DefaultConfiguration(), s.Configuration)
	assert.False(t, s.Generating)

	rec := ts.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]SessionResponse](t, rec), 1)
}

func TestGetSession_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/sessions/missing", nil)
	assertError(t, rec, http.StatusNotFound, "SESSION_NOT_FOUND")
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)

	rec := ts.do(t, http.MethodDelete, "/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/sessions/"+s.ID, nil)
	assertError(t, rec, http.StatusNotFound, "SESSION_NOT_FOUND")
}

func TestUpdateConfig(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/sessions/" + s.ID + "/config"

	t.Run("valid update", func(t *testing.T) {
		rec := ts.do(t, http.MethodPatch, path, UpdateConfigRequest{Resolution: "1080p", VisualStyle: "Studio 3D"})
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeBody[SessionResponse](t, rec).Configuration
		assert.Equal(t, "1080p", got.Resolution)
		assert.Equal(t, "Studio 3D", got.VisualStyle)
		assert.Equal(t, "16:9", got.AspectRatio)
	})

	t.Run("invalid value", func(t *testing.T) {
		rec := ts.do(t, http.MethodPatch, path, UpdateConfigRequest{AspectRatio: "4:3"})
		assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
		assert.Equal(t, "16:9", ts.session(t, s.ID).Configuration.AspectRatio)
	})

	t.Run("empty update", func(t *testing.T) {
		rec := ts.do(t, http.MethodPatch, path, UpdateConfigRequest{})
		assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, path, bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, "INVALID_JSON")
	})
}

func TestGenerate_EmptyContent(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)

	rec := ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/generate", nil)

	resp := assertError(t, rec, http.StatusBadRequest, "EMPTY_CONTENT")
	assert.Equal(t, "Please provide some educational content or a prompt.", resp.Error)
}

func TestGenerate_CompletesAndExposesJob(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)

	rec := ts.do(t, http.MethodPut, "/sessions/"+s.ID+"/content", SetContentRequest{Content: "Intro to grids"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/generate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decodeBody[SessionResponse](t, rec).JobID
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		return !ts.session(t, s.ID).Generating
	}, 2*time.Second, 5*time.Millisecond)

	got := ts.session(t, s.ID)
	assert.Equal(t, "https://cdn/x.mp4", got.ResultURI)
	assert.Equal(t, job.MessageComplete, got.Status)
	require.NotNil(t, got.Job)
	assert.Equal(t, "done", got.Job.Status)

	rec = ts.do(t, http.MethodGet, "/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	jr := decodeBody[JobResponse](t, rec)
	assert.Equal(t, jobID, jr.ID)
	assert.True(t, jr.HasResult)
}

func TestGenerate_InFlightAndCancel(t *testing.T) {
	ts := newTestServer(t)
	ts.generator.block = true
	s := ts.createSession(t)
	ts.do(t, http.MethodPut, "/sessions/"+s.ID+"/content", SetContentRequest{Content: "Intro to grids"})

	rec := ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/generate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/generate", nil)
	assertError(t, rec, http.StatusConflict, "GENERATION_IN_FLIGHT")

	rec = ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/generate/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, job.MessageCancelled, decodeBody[SessionResponse](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/generate/cancel", nil)
	assertError(t, rec, http.StatusConflict, "NO_GENERATION")
}

func TestGetJob_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/jobs/missing", nil)
	assertError(t, rec, http.StatusNotFound, "JOB_NOT_FOUND")
}

func TestAttachDocument(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/sessions/" + s.ID + "/document"

	rec := ts.upload(t, path, "notes.txt", "text/plain", []byte("hello"))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[SessionResponse](t, rec)
	assert.Empty(t, got.DocumentName)
	assert.Empty(t, got.Status)

	rec = ts.upload(t, path, "grids.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeBody[SessionResponse](t, rec)
	assert.Equal(t, "grids.pdf", got.DocumentName)
	assert.Equal(t, "Ready with grids.pdf", got.Status)
}

func TestAttachVisual(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/sessions/" + s.ID + "/visual"

	rec := ts.upload(t, path, "clip.mp4", "video/mp4", []byte("mp4-bytes"))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[SessionResponse](t, rec)
	require.NotNil(t, got.Visual)
	assert.Equal(t, ingest.KindVideo, got.Visual.Kind)
	assert.Equal(t, "clip.mp4", got.Visual.Name)

	rec = ts.upload(t, path, "empty.png", "image/png", nil)
	assertError(t, rec, http.StatusBadRequest, "EMPTY_VISUAL")

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("not multipart"))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusBadRequest, "INVALID_MULTIPART")
}

func TestToggleNarration(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/sessions/" + s.ID + "/narration/toggle"

	rec := ts.do(t, http.MethodPost, path, nil)
	resp := assertError(t, rec, http.StatusBadRequest, "EMPTY_NARRATION")
	assert.Equal(t, "Please provide some educational content.", resp.Error)

	ts.narrator.On("Speak", mock.Anything, "Intro to grids", narration.Options{Language: "English", Engine: narration.EngineLocal}).Return(nil).Once()
	ts.do(t, http.MethodPut, "/sessions/"+s.ID+"/content", SetContentRequest{Content: "Intro to grids"})

	rec = ts.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return ts.session(t, s.ID).Status == studio.MessageAudioComplete
	}, 2*time.Second, 5*time.Millisecond)
	ts.narrator.AssertExpectations(t)
}

func TestNarrationControls_NotNarrating(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)

	for _, action := range []string{"pause", "resume"} {
		rec := ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/narration/"+action, nil)
		assertError(t, rec, http.StatusConflict, "NOT_NARRATING")
	}
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/sessions/" + s.ID + "/export"

	rec := ts.do(t, http.MethodPost, path, nil)
	assertError(t, rec, http.StatusConflict, "NO_VIDEO")

	ts.do(t, http.MethodPut, "/sessions/"+s.ID+"/content", SetContentRequest{Content: "Intro to grids"})
	ts.do(t, http.MethodPost, "/sessions/"+s.ID+"/generate", nil)
	require.Eventually(t, func() bool {
		return ts.session(t, s.ID).ResultURI != ""
	}, 2*time.Second, 5*time.Millisecond)

	ts.exporter.On("Export", mock.Anything, "https://cdn/x.mp4").
		Return(export.Result{Filename: "zinara-studio-export-42.mp4", Location: "/exports/zinara-studio-export-42.mp4", Bytes: 9}, nil).Once()

	rec = ts.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[ExportResponse](t, rec)
	assert.Equal(t, "zinara-studio-export-42.mp4", got.Filename)
	assert.False(t, got.OpenedExternally)
	ts.exporter.AssertExpectations(t)
}

func TestToggleFullscreen(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createSession(t)
	path := "/sessions/" + s.ID + "/fullscreen"

	rec := ts.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[FullscreenResponse](t, rec).Fullscreen)

	rec = ts.do(t, http.MethodPost, path, nil)
	assert.False(t, decodeBody[FullscreenResponse](t, rec).Fullscreen)
}

func TestLessonSummary(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/lessons/summary", SummaryRequest{Title: "Grids", Context: "Layout basics."})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `Welcome to "Grids". Layout basics.`, decodeBody[SummaryResponse](t, rec).Summary)

	rec = ts.do(t, http.MethodPost, "/lessons/summary", SummaryRequest{Context: "no title"})
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = ts.do(t, http.MethodPost, "/lessons/summary", SummaryRequest{Title: "Grids", Level: "Expert"})
	assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestLessonQuiz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/lessons/quiz", QuizRequest{Title: "Grids"})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[QuizResponse](t, rec)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, `What is the main topic of "Grids"?`, got.Questions[0].Question)
	assert.Len(t, got.Questions[0].Options, 4)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("render fault")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assertError(t, rec, http.StatusInternalServerError, "INTERNAL_ERROR")
}

func TestCORSMiddleware(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	t.Run("disallowed origin", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://studio.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
