package pipeline

import (
	"context"
	"sync"

	"voice-stress/pkg/models"
)

type WorkerPool struct {
	workers    int
	taskQueue  chan *models.PipelineMessage
	workerFunc func(context.Context, *models.PipelineMessage)
	wg         sync.WaitGroup
}

func NewWorkerPool(workers int, workerFunc func(context.Context, *models.PipelineMessage)) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers:    workers,
		taskQueue:  make(chan *models.PipelineMessage, workers*2),
		workerFunc: workerFunc,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// Submit hands msg to a worker, giving up when ctx is done.
func (wp *WorkerPool) Submit(ctx context.Context, msg *models.PipelineMessage) bool {
	select {
	case wp.taskQueue <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop must only be called once no more Submit calls can happen.
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case msg, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			wp.workerFunc(ctx, msg)

		case <-ctx.Done():
			return
		}
	}
}
