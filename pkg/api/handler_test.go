package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-stress/pkg/analysis"
	"voice-stress/pkg/audio"
	"voice-stress/pkg/config"
	"voice-stress/pkg/models"
	"voice-stress/pkg/pipeline"
	"voice-stress/pkg/storage"
	"voice-stress/pkg/stress"
)

type testAPI struct {
	router *mux.Router
	store  storage.JobStore
}

func newTestAPI(t *testing.T, upload config.UploadConfig, start bool) *testAPI {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	if upload.MaxBytes == 0 {
		upload.MaxBytes = 8 << 20
	}
	analyzer, err := analysis.NewDefault(stress.DefaultReference())
	require.NoError(t, err)
	decoders := audio.NewRegistry(upload.AllowedExtensions)
	store := storage.NewMemoryStore()

	manager := pipeline.NewManager(pipeline.Options{
		Config: config.PipelineConfig{
			DecodeWorkers:   1,
			AnalysisWorkers: 1,
			StorageWorkers:  1,
			QueueSize:       16,
		},
		Timeout:  time.Minute,
		Store:    store,
		Decoders: decoders,
		Analyzer: analyzer,
		Logger:   log,
	})
	if start {
		require.NoError(t, manager.Start(context.Background()))
		t.Cleanup(manager.Stop)
	}

	h := NewHandlers(Options{
		Pipeline: manager,
		Store:    store,
		Analyzer: analyzer,
		Decoders: decoders,
		Upload:   upload,
		Timeout:  time.Minute,
		Logger:   log,
	})
	return &testAPI{router: NewRouter(h), store: store}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, target, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func wavTone(t *testing.T, freq float64) []byte {
	t.Helper()
	const rate = 16000
	samples := make([]float64, 2*rate)
	for i := range samples {
		samples[i] = 0.1 * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	var buf bytes.Buffer
	require.NoError(t, audio.EncodeWAV(&buf, samples, rate))
	return buf.Bytes()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func assertDetail(t *testing.T, rec *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()
	assert.Equal(t, status, rec.Code)
	assert.JSONEq(t, mustJSON(t, map[string]string{"detail": detail}), rec.Body.String())
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{}, false)
	rec := api.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAnalyzeStress_Text(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".opus"}}, false)

	for _, target := range []string{"/analyze-stress/", "/analyze-stress"} {
		rec := api.do(formRequest(target, url.Values{"text": {"I am anxious and panic"}}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"stress_level":40,"category":"Moderate Stress"}`, rec.Body.String())
	}

	rec := api.do(formRequest("/analyze-stress/", url.Values{"text": {"I feel fine"}}))
	assert.JSONEq(t, `{"stress_level":0,"category":"Very Low Stress"}`, rec.Body.String())
}

func TestAnalyzeStress_InputErrors(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".opus"}}, false)

	rec := api.do(formRequest("/analyze-stress/", url.Values{}))
	assertDetail(t, rec, http.StatusBadRequest, "Either a file, file path, or text input is required.")

	rec = api.do(formRequest("/analyze-stress/", url.Values{"text": {"   "}}))
	assertDetail(t, rec, http.StatusBadRequest, "Either a file, file path, or text input is required.")

	rec = api.do(uploadRequest(t, "/analyze-stress/", "clip.mp3", []byte{1, 2, 3}, nil))
	assertDetail(t, rec, http.StatusBadRequest, "Only .opus files are supported.")

	rec = api.do(formRequest("/analyze-stress/", url.Values{"file_path": {"/tmp/clip.opus"}}))
	assertDetail(t, rec, http.StatusBadRequest, "file_path input is disabled on this server.")

	rec = api.do(httptest.NewRequest(http.MethodGet, "/analyze-stress/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeStress_FilePath(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{
		AllowedExtensions: []string{".opus"},
		AllowFilePath:     true,
	}, false)

	rec := api.do(formRequest("/analyze-stress/", url.Values{"file_path": {"/definitely/missing/clip.opus"}}))
	assertDetail(t, rec, http.StatusBadRequest, "File path does not exist.")

	rec = api.do(formRequest("/analyze-stress/", url.Values{"file_path": {"/definitely/missing/clip.wav"}}))
	assertDetail(t, rec, http.StatusBadRequest, "Only .opus files are supported.")
}

func TestAnalyzeStress_VoiceUpload(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".opus", ".wav"}}, false)

	rec := api.do(uploadRequest(t, "/analyze-stress/", "tone.wav", wavTone(t, 110), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "male", body["gender"])
	assert.NotContains(t, body, "diagnostics")
	level := body["stress_level"].(float64)
	assert.GreaterOrEqual(t, level, 0.0)
	assert.LessOrEqual(t, level, 100.0)
	assert.Equal(t, models.CategoryFor(level).String(), body["category"])
}

func TestAnalyzeStress_FileTakesPrecedenceOverText(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".wav"}}, false)

	req := uploadRequest(t, "/analyze-stress/?diagnostics=true", "tone.wav", wavTone(t, 220),
		map[string]string{"text": "anxious nervous stress panic tense"})
	rec := api.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "female", body["gender"])
	diag, ok := body["diagnostics"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 220, diag["mean_f0"].(float64), 2)
}

func TestAnalyzeStress_Silence(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".wav"}}, false)

	rec := api.do(uploadRequest(t, "/analyze-stress/", "quiet.wav", wavTone(t, 0), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "undefined feature")
}

func TestAnalyzeStress_CorruptUpload(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".wav"}}, false)

	rec := api.do(uploadRequest(t, "/analyze-stress/", "bad.wav", []byte("not audio at all"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobs_SubmitAndPoll(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".wav"}}, true)

	rec := api.do(formRequest("/jobs", url.Values{"text": {"so tense"}, "session_id": {"s1"}}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "text", body["kind"])
	assert.Equal(t, "pending", body["status"])
	id := body["job_id"].(string)
	require.NotEmpty(t, id)

	var job map[string]interface{}
	require.Eventually(t, func() bool {
		rec := api.do(httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		job = decodeBody(t, rec)
		return job["status"] == "completed"
	}, 10*time.Second, 10*time.Millisecond)

	assert.Equal(t, "s1", job["session_id"])
	assert.NotContains(t, job, "text")
	result := job["result"].(map[string]interface{})
	assert.Equal(t, 20.0, result["stress_level"])
	assert.Equal(t, "Low Stress", result["category"])
}

func TestJobs_VoiceUpload(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{AllowedExtensions: []string{".wav"}}, true)

	rec := api.do(uploadRequest(t, "/jobs?diagnostics=1", "tone.wav", wavTone(t, 110), nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["job_id"].(string)

	require.Eventually(t, func() bool {
		job, err := api.store.GetJob(id)
		return err == nil && job.Status == models.StatusCompleted
	}, 10*time.Second, 10*time.Millisecond)

	job, err := api.store.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, "male", job.Result.Gender)
	assert.NotNil(t, job.Result.Diagnostics)
}

func TestJobs_Errors(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{}, true)

	rec := api.do(httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil))
	assertDetail(t, rec, http.StatusNotFound, "job not found")

	rec = api.do(formRequest("/jobs", url.Values{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stopped := newTestAPI(t, config.UploadConfig{}, false)
	rec = stopped.do(formRequest("/jobs", url.Values{"text": {"tense"}}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionJobs(t *testing.T) {
	api := newTestAPI(t, config.UploadConfig{}, true)

	for _, text := range []string{"tense", "calm", "panic"} {
		rec := api.do(formRequest("/jobs", url.Values{"text": {text}, "session_id": {"s9"}}))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	api.do(formRequest("/jobs", url.Values{"text": {"other"}, "session_id": {"s10"}}))

	rec := api.do(httptest.NewRequest(http.MethodGet, "/sessions/s9/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "s9", body["session_id"])
	assert.Equal(t, 3.0, body["count"])

	rec = api.do(httptest.NewRequest(http.MethodGet, "/sessions/s9/jobs?limit=2", nil))
	assert.Equal(t, 2.0, decodeBody(t, rec)["count"])

	rec = api.do(httptest.NewRequest(http.MethodGet, "/sessions/nobody/jobs", nil))
	assert.JSONEq(t, `{"session_id":"nobody","jobs":[],"count":0}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{analysis.ErrNoInput, http.StatusBadRequest},
		{analysis.ErrAmbiguousInput, http.StatusBadRequest},
		{audio.ErrUnsupportedFormat, http.StatusBadRequest},
		{stress.ErrUndefinedFeature, http.StatusUnprocessableEntity},
		{&stress.ComputationError{Op: "x", Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError},
		{storage.ErrJobNotFound, http.StatusNotFound},
		{pipeline.ErrQueueFull, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{badRequest("nope"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
