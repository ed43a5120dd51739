package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"voice-stress/pkg/models"
)

var ErrJobNotFound = errors.New("job not found")

var now = time.Now

// JobStore tracks the lifecycle of pipeline jobs. Readers always receive
// snapshots, never the pipeline's own *Job.
type JobStore interface {
	SaveJob(job *models.Job) error
	GetJob(id string) (*models.Job, error)
	GetSessionJobs(sessionID string) ([]*models.Job, error)
	UpdateJobStatus(id string, status models.JobStatus) error
	CompleteJob(id string, result *models.StressResponse) error
	FailJob(id string, reason string) error
}

type memoryStore struct {
	jobs map[string]*models.Job
	mu   sync.RWMutex
}

func NewMemoryStore() JobStore {
	return &memoryStore{
		jobs: make(map[string]*models.Job),
	}
}

func (s *memoryStore) SaveJob(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Snapshot()
	return nil
}

func (s *memoryStore) GetJob(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// GetSessionJobs returns the session's jobs, newest first.
func (s *memoryStore) GetSessionJobs(sessionID string) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*models.Job
	for _, job := range s.jobs {
		if job.SessionID == sessionID {
			jobs = append(jobs, job.Snapshot())
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *memoryStore) UpdateJobStatus(id string, status models.JobStatus) error {
	return s.update(id, func(job *models.Job) {
		job.Status = status
	})
}

func (s *memoryStore) CompleteJob(id string, result *models.StressResponse) error {
	return s.update(id, func(job *models.Job) {
		job.Status = models.StatusCompleted
		job.Result = result
		job.Error = ""
		job.CompletedAt = now()
	})
}

func (s *memoryStore) FailJob(id string, reason string) error {
	return s.update(id, func(job *models.Job) {
		job.Status = models.StatusFailed
		job.Error = reason
		job.CompletedAt = now()
	})
}

func (s *memoryStore) update(id string, fn func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}
