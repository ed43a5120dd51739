package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"voice-stress/pkg/analysis"
	"voice-stress/pkg/audio"
	"voice-stress/pkg/config"
	"voice-stress/pkg/models"
	"voice-stress/pkg/storage"
)

var (
	ErrQueueFull    = errors.New("pipeline queue is full")
	ErrShuttingDown = errors.New("pipeline is shutting down")
	ErrNotStarted   = errors.New("pipeline is not running")
)

type Manager struct {
	config   config.PipelineConfig
	timeout  time.Duration
	store    storage.JobStore
	cache    storage.ResultCache
	decoders *audio.Registry
	analyzer *analysis.Analyzer
	log      logrus.FieldLogger

	// Pipeline channels
	ingestionCh chan *models.PipelineMessage
	decodeCh    chan *models.PipelineMessage
	analysisCh  chan *models.PipelineMessage
	storageCh   chan *models.PipelineMessage

	// Worker pools
	decodePool   *WorkerPool
	analysisPool *WorkerPool
	storagePool  *WorkerPool

	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type Options struct {
	Config   config.PipelineConfig
	Timeout  time.Duration
	Store    storage.JobStore
	Cache    storage.ResultCache
	Decoders *audio.Registry
	Analyzer *analysis.Analyzer
	Logger   logrus.FieldLogger
}

func NewManager(opts Options) *Manager {
	cfg := opts.Config
	if opts.Cache == nil {
		opts.Cache = storage.NewNoopCache()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Manager{
		config:   cfg,
		timeout:  opts.Timeout,
		store:    opts.Store,
		cache:    opts.Cache,
		decoders: opts.Decoders,
		analyzer: opts.Analyzer,
		log:      opts.Logger.WithField("component", "pipeline"),

		ingestionCh: make(chan *models.PipelineMessage, cfg.QueueSize),
		decodeCh:    make(chan *models.PipelineMessage, cfg.QueueSize),
		analysisCh:  make(chan *models.PipelineMessage, cfg.QueueSize),
		storageCh:   make(chan *models.PipelineMessage, cfg.QueueSize),
	}
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return errors.New("pipeline already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.log.Info("starting pipeline")

	m.decodePool = NewWorkerPool(m.config.DecodeWorkers, m.decodeAudio)
	m.analysisPool = NewWorkerPool(m.config.AnalysisWorkers, m.analyze)
	m.storagePool = NewWorkerPool(m.config.StorageWorkers, m.storeResult)

	m.decodePool.Start(m.ctx)
	m.analysisPool.Start(m.ctx)
	m.storagePool.Start(m.ctx)

	m.wg.Add(4)
	go m.runIngestionStage()
	go m.runStage("decode", m.decodeCh, m.decodePool)
	go m.runStage("analysis", m.analysisCh, m.analysisPool)
	go m.runStage("storage", m.storageCh, m.storagePool)

	m.log.WithFields(logrus.Fields{
		"decode_workers":   m.config.DecodeWorkers,
		"analysis_workers": m.config.AnalysisWorkers,
		"storage_workers":  m.config.StorageWorkers,
		"queue_size":       m.config.QueueSize,
	}).Info("pipeline running")
	return nil
}

// Stop cancels in-flight work and waits for every stage and worker to exit.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()
	if cancel == nil {
		return
	}

	m.stopOnce.Do(func() {
		m.log.Info("stopping pipeline")
		cancel()
		m.wg.Wait()
		m.decodePool.Stop()
		m.analysisPool.Stop()
		m.storagePool.Stop()
		m.log.Info("pipeline stopped")
	})
}

// Submit records the job as pending and queues it. It never blocks: a full
// queue fails the job immediately with ErrQueueFull.
func (m *Manager) Submit(job *models.Job, diagnostics bool) error {
	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()
	if ctx == nil {
		return ErrNotStarted
	}

	job.Checksum = checksum(job, diagnostics)
	if err := m.store.SaveJob(job); err != nil {
		return err
	}
	log := m.log.WithFields(logrus.Fields{"job_id": job.ID, "kind": job.Kind})

	msg := &models.PipelineMessage{Job: job, Diagnostics: diagnostics, Stage: "submitted"}
	select {
	case <-ctx.Done():
		m.store.FailJob(job.ID, ErrShuttingDown.Error())
		return ErrShuttingDown
	default:
	}
	select {
	case m.ingestionCh <- msg:
		log.Debug("job submitted")
		return nil
	default:
		log.Warn("queue full, rejecting job")
		m.store.FailJob(job.ID, ErrQueueFull.Error())
		return ErrQueueFull
	}
}

func (m *Manager) runIngestionStage() {
	defer m.wg.Done()

	for {
		select {
		case msg := <-m.ingestionCh:
			m.ingest(msg)
		case <-m.ctx.Done():
			m.log.WithField("stage", "ingestion").Debug("stage shutting down")
			return
		}
	}
}

func (m *Manager) runStage(name string, in <-chan *models.PipelineMessage, pool *WorkerPool) {
	defer m.wg.Done()
	log := m.log.WithField("stage", name)

	for {
		select {
		case msg := <-in:
			log.WithField("job_id", msg.Job.ID).Debug("job received")
			if !pool.Submit(m.ctx, msg) {
				return
			}
		case <-m.ctx.Done():
			log.Debug("stage shutting down")
			return
		}
	}
}

// forward moves msg to the next stage unless the pipeline is stopping.
func (m *Manager) forward(ctx context.Context, ch chan<- *models.PipelineMessage, msg *models.PipelineMessage) {
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}
