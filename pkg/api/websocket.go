package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"voice-stress/pkg/models"
	"voice-stress/pkg/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const statusPollInterval = 250 * time.Millisecond

// WebSocketMessage is used in both directions. Data carries base64 audio
// bytes from the client.
type WebSocketMessage struct {
	Type        string                 `json:"type"`
	SessionID   string                 `json:"session_id,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Data        json.RawMessage        `json:"data,omitempty"`
	Diagnostics bool                   `json:"diagnostics,omitempty"`
	JobID       string                 `json:"job_id,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Result      *models.StressResponse `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  logrus.FieldLogger
}

func (c *wsConn) send(msg WebSocketMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.WithError(err).Debug("websocket write failed")
	}
}

func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw, log: h.log}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var msg WebSocketMessage
		if err := raw.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case "analyze":
			h.handleAnalyze(ctx, conn, &msg)
		case "ping":
			conn.send(WebSocketMessage{Type: "pong"})
		default:
			conn.send(WebSocketMessage{
				Type:  "error",
				Error: "Unknown message type",
			})
		}
	}
}

func (h *Handlers) handleAnalyze(ctx context.Context, conn *wsConn, msg *WebSocketMessage) {
	var job *models.Job
	switch {
	case len(msg.Data) > 0:
		var audioData []byte
		if err := json.Unmarshal(msg.Data, &audioData); err != nil {
			conn.send(WebSocketMessage{Type: "error", Error: "Invalid audio data format"})
			return
		}
		if err := h.decoders.Check(msg.Filename); err != nil {
			conn.send(WebSocketMessage{Type: "error", Error: h.extensionMessage()})
			return
		}
		if int64(len(audioData)) > h.upload.MaxBytes {
			conn.send(WebSocketMessage{Type: "error", Error: "File is too large."})
			return
		}
		job = models.NewVoiceJob(msg.SessionID, msg.Filename, audioData)
	case strings.TrimSpace(msg.Text) != "":
		job = models.NewTextJob(msg.SessionID, msg.Text)
	default:
		conn.send(WebSocketMessage{Type: "error", Error: "Either audio data or text input is required."})
		return
	}
	id := job.ID

	h.log.WithFields(logrus.Fields{"job_id": id, "kind": job.Kind, "size": job.Size}).Info("websocket job received")
	conn.send(WebSocketMessage{
		Type:   "job_received",
		JobID:  id,
		Status: string(models.StatusPending),
	})

	if err := h.pipeline.Submit(job, msg.Diagnostics); err != nil {
		conn.send(WebSocketMessage{Type: "error", JobID: id, Error: err.Error()})
		return
	}

	go h.monitorJob(ctx, conn, id)
}

// monitorJob reports every status change of a job until it finishes.
func (h *Handlers) monitorJob(ctx context.Context, conn *wsConn, jobID string) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var last models.JobStatus
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := h.store.GetJob(jobID)
			if err != nil {
				if !errors.Is(err, storage.ErrJobNotFound) {
					conn.send(WebSocketMessage{Type: "error", JobID: jobID, Error: err.Error()})
				}
				return
			}

			if job.Status != last {
				last = job.Status
				conn.send(WebSocketMessage{
					Type:   "status_update",
					JobID:  jobID,
					Status: string(job.Status),
				})
			}

			switch job.Status {
			case models.StatusCompleted:
				conn.send(WebSocketMessage{
					Type:   "analysis_complete",
					JobID:  jobID,
					Status: string(job.Status),
					Result: job.Result,
				})
				return
			case models.StatusFailed:
				conn.send(WebSocketMessage{
					Type:   "analysis_failed",
					JobID:  jobID,
					Status: string(job.Status),
					Error:  job.Error,
				})
				return
			}
		}
	}
}
