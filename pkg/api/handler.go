package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"voice-stress/pkg/analysis"
	"voice-stress/pkg/audio"
	"voice-stress/pkg/config"
	"voice-stress/pkg/models"
	"voice-stress/pkg/pipeline"
	"voice-stress/pkg/storage"
	"voice-stress/pkg/stress"
)

const defaultSessionLimit = 50

type Handlers struct {
	pipeline *pipeline.Manager
	store    storage.JobStore
	analyzer *analysis.Analyzer
	decoders *audio.Registry
	upload   config.UploadConfig
	timeout  time.Duration
	log      logrus.FieldLogger
}

type Options struct {
	Pipeline *pipeline.Manager
	Store    storage.JobStore
	Analyzer *analysis.Analyzer
	Decoders *audio.Registry
	Upload   config.UploadConfig
	Timeout  time.Duration
	Logger   logrus.FieldLogger
}

func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Handlers{
		pipeline: opts.Pipeline,
		store:    opts.Store,
		analyzer: opts.Analyzer,
		decoders: opts.Decoders,
		upload:   opts.Upload,
		timeout:  opts.Timeout,
		log:      opts.Logger.WithField("component", "api"),
	}
}

// NewRouter mounts every route on a gorilla/mux router.
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/analyze-stress/", h.AnalyzeStressHandler).Methods(http.MethodPost)
	router.HandleFunc("/analyze-stress", h.AnalyzeStressHandler).Methods(http.MethodPost)
	router.HandleFunc("/jobs", h.SubmitJobHandler).Methods(http.MethodPost)
	router.HandleFunc("/jobs/{id}", h.GetJobHandler).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{session_id}/jobs", h.GetSessionJobsHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws", h.WebSocketHandler)
	return router
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// analysisRequest is the form payload shared by the synchronous and the
// job endpoints. Exactly one of Data or Text is set after parsing.
type analysisRequest struct {
	Filename  string
	Data      []byte
	Text      string
	SessionID string
}

type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (h *Handlers) parseAnalysisForm(w http.ResponseWriter, r *http.Request) (*analysisRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, msg: "File is too large."}
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, badRequest("Failed to parse form: %v", err)
		}
		if err := r.ParseForm(); err != nil {
			return nil, badRequest("Failed to parse form: %v", err)
		}
	}

	req := &analysisRequest{
		Text:      r.FormValue("text"),
		SessionID: r.FormValue("session_id"),
	}
	filePath := r.FormValue("file_path")

	file, header, err := r.FormFile("file")
	hasFile := err == nil
	if hasFile {
		defer file.Close()
	}

	switch {
	case hasFile:
		if err := h.decoders.Check(header.Filename); err != nil {
			return nil, badRequest("%s", h.extensionMessage())
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, &requestError{status: http.StatusInternalServerError, msg: "Failed to read audio file"}
		}
		req.Filename = header.Filename
		req.Data = data
		req.Text = ""

	case filePath != "":
		if !h.upload.AllowFilePath {
			return nil, badRequest("file_path input is disabled on this server.")
		}
		if err := h.decoders.Check(filePath); err != nil {
			return nil, badRequest("%s", h.extensionMessage())
		}
		info, err := os.Stat(filePath)
		if err != nil || info.IsDir() {
			return nil, badRequest("File path does not exist.")
		}
		if info.Size() > h.upload.MaxBytes {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, msg: "File is too large."}
		}
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, &requestError{status: http.StatusInternalServerError, msg: "Failed to read audio file"}
		}
		req.Filename = filepath.Base(filePath)
		req.Data = data
		req.Text = ""

	case strings.TrimSpace(req.Text) == "":
		return nil, badRequest("Either a file, file path, or text input is required.")
	}
	return req, nil
}

func (h *Handlers) extensionMessage() string {
	return fmt.Sprintf("Only %s files are supported.", strings.Join(h.decoders.Allowed(), ", "))
}

// AnalyzeStressHandler scores one upload, server-side file or text and
// answers with the flat stress response.
func (h *Handlers) AnalyzeStressHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseAnalysisForm(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	diagnostics := queryBool(r, "diagnostics")

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	in := analysis.Input{Text: req.Text, Diagnostics: diagnostics}
	if req.Data != nil {
		wave, err := h.decoders.Decode(req.Filename, bytes.NewReader(req.Data))
		if err != nil {
			h.writeError(w, err)
			return
		}
		in.Waveform = wave
	}

	resp, err := h.analyzer.Analyze(ctx, in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"voice":        in.Waveform != nil,
		"stress_level": resp.StressLevel,
		"category":     resp.Category,
		"duration":     time.Since(start),
	}).Info("analysis served")
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseAnalysisForm(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var job *models.Job
	if req.Data != nil {
		job = models.NewVoiceJob(req.SessionID, req.Filename, req.Data)
	} else {
		job = models.NewTextJob(req.SessionID, req.Text)
	}
	id, kind, size := job.ID, job.Kind, job.Size

	if err := h.pipeline.Submit(job, queryBool(r, "diagnostics")); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.WithFields(logrus.Fields{"job_id": id, "kind": kind, "size": size}).Info("job submitted")
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": id,
		"kind":   kind,
		"status": models.StatusPending,
		"size":   size,
	})
}

func (h *Handlers) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.store.GetJob(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handlers) GetSessionJobsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	jobs, err := h.store.GetSessionJobs(sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	limit := defaultSessionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"jobs":       jobs,
		"count":      len(jobs),
	})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, analysis.ErrNoInput),
		errors.Is(err, analysis.ErrAmbiguousInput),
		audio.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, stress.ErrUndefinedFeature):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrQueueFull),
		errors.Is(err, pipeline.ErrShuttingDown),
		errors.Is(err, pipeline.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	entry := h.log.WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
