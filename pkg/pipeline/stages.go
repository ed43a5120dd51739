package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"voice-stress/pkg/analysis"
	"voice-stress/pkg/models"
	"voice-stress/pkg/storage"
)

// checksum identifies the analysis input. Diagnostics change the response
// shape so they are part of the key.
func checksum(job *models.Job, diagnostics bool) string {
	h := sha256.New()
	h.Write([]byte(job.Kind))
	if diagnostics {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	if job.Kind == models.KindVoice {
		h.Write(job.Data)
	} else {
		h.Write([]byte(job.Text))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (m *Manager) jobLog(msg *models.PipelineMessage) logrus.FieldLogger {
	return m.log.WithFields(logrus.Fields{
		"job_id": msg.Job.ID,
		"kind":   msg.Job.Kind,
		"stage":  msg.Stage,
	})
}

func (m *Manager) fail(msg *models.PipelineMessage, err error) {
	m.jobLog(msg).WithError(err).Warn("job failed")
	msg.Job.Status = models.StatusFailed
	msg.Job.Error = err.Error()
	msg.Job.Data = nil
	msg.Waveform = nil
	if serr := m.store.FailJob(msg.Job.ID, err.Error()); serr != nil {
		m.jobLog(msg).WithError(serr).Error("failed to record job failure")
	}
}

func (m *Manager) setStatus(msg *models.PipelineMessage, status models.JobStatus) {
	msg.Job.Status = status
	if err := m.store.UpdateJobStatus(msg.Job.ID, status); err != nil {
		m.jobLog(msg).WithError(err).Error("failed to update job status")
	}
}

func (m *Manager) ingest(msg *models.PipelineMessage) {
	job := msg.Job
	msg.Stage = "ingestion"

	if job.Kind == models.KindVoice && len(job.Data) == 0 {
		m.fail(msg, errors.New("empty audio data"))
		return
	}

	cached, err := m.cache.Get(job.Checksum)
	switch {
	case err == nil:
		m.jobLog(msg).WithField("checksum", job.Checksum).Debug("result cache hit")
		job.Result = cached
		job.Data = nil
		msg.Cached = true
		m.setStatus(msg, models.StatusStoring)
		m.forward(m.ctx, m.storageCh, msg)
		return
	case !errors.Is(err, storage.ErrCacheMiss):
		m.jobLog(msg).WithError(err).Warn("result cache lookup failed")
	}

	if job.Kind == models.KindText {
		m.setStatus(msg, models.StatusAnalyzing)
		m.forward(m.ctx, m.analysisCh, msg)
		return
	}
	m.setStatus(msg, models.StatusDecoding)
	m.forward(m.ctx, m.decodeCh, msg)
}

func (m *Manager) decodeAudio(ctx context.Context, msg *models.PipelineMessage) {
	msg.Stage = "decode"
	start := time.Now()

	w, err := m.decoders.Decode(msg.Job.Filename, bytes.NewReader(msg.Job.Data))
	if err != nil {
		m.fail(msg, fmt.Errorf("failed to decode audio: %w", err))
		return
	}
	msg.Waveform = w
	msg.Job.Data = nil

	m.jobLog(msg).WithFields(logrus.Fields{
		"samples":     len(w.Samples),
		"sample_rate": w.SampleRate,
		"duration":    time.Since(start),
	}).Debug("audio decoded")

	m.setStatus(msg, models.StatusAnalyzing)
	m.forward(ctx, m.analysisCh, msg)
}

func (m *Manager) analyze(ctx context.Context, msg *models.PipelineMessage) {
	msg.Stage = "analysis"
	start := time.Now()

	actx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp, err := m.analyzer.Analyze(actx, analysis.Input{
		Waveform:    msg.Waveform,
		Text:        msg.Job.Text,
		Diagnostics: msg.Diagnostics,
	})
	msg.Waveform = nil
	if err != nil {
		m.fail(msg, err)
		return
	}
	msg.Job.Result = resp

	m.jobLog(msg).WithFields(logrus.Fields{
		"stress_level": resp.StressLevel,
		"category":     resp.Category,
		"duration":     time.Since(start),
	}).Info("job analyzed")

	m.setStatus(msg, models.StatusStoring)
	m.forward(ctx, m.storageCh, msg)
}

func (m *Manager) storeResult(ctx context.Context, msg *models.PipelineMessage) {
	msg.Stage = "storage"
	job := msg.Job

	if !msg.Cached {
		if err := m.cache.Put(job.Checksum, job.Result); err != nil {
			m.jobLog(msg).WithError(err).Warn("failed to cache result")
		}
	}

	if err := m.store.CompleteJob(job.ID, job.Result); err != nil {
		m.fail(msg, fmt.Errorf("failed to store result: %w", err))
		return
	}
	job.Status = models.StatusCompleted
	m.jobLog(msg).Debug("job completed")
}
