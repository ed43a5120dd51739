package models

import (
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	KindVoice JobKind = "voice"
	KindText  JobKind = "text"
)

// Job is a unit of work tracked by the asynchronous pipeline. Data holds the
// encoded audio bytes exactly as uploaded and is never serialized.
type Job struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id,omitempty"`
	Kind        JobKind         `json:"kind"`
	Filename    string          `json:"filename,omitempty"`
	Data        []byte          `json:"-"`
	Text        string          `json:"-"`
	Size        int             `json:"size"`
	Checksum    string          `json:"checksum,omitempty"`
	Status      JobStatus       `json:"status"`
	Result      *StressResponse `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusDecoding  JobStatus = "decoding"
	StatusAnalyzing JobStatus = "analyzing"
	StatusStoring   JobStatus = "storing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PipelineMessage carries a job between pipeline stages. Waveform is filled
// by the decode stage and dropped once the job is analyzed.
type PipelineMessage struct {
	Job         *Job
	Waveform    *Waveform
	Diagnostics bool
	Cached      bool
	Stage       string
}

func NewVoiceJob(sessionID, filename string, data []byte) *Job {
	return &Job{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Kind:      KindVoice,
		Filename:  filename,
		Data:      data,
		Size:      len(data),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

func NewTextJob(sessionID, text string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Kind:      KindText,
		Text:      text,
		Size:      len(text),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// Snapshot returns a copy safe to hand to readers outside the pipeline.
func (j *Job) Snapshot() *Job {
	cp := *j
	cp.Data = nil
	cp.Text = ""
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	return &cp
}
