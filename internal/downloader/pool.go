package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ringhist/pkg/download"
	"ringhist/pkg/logger"
	"ringhist/pkg/ring"
)

// DownloadJob represents a single recording acquisition task
type DownloadJob struct {
	Device string
	Event  ring.Event
	Local  time.Time
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Outcome  download.Outcome
	Path     string
	Error    error
	Duration time.Duration
}

// RecordingAcquirer acquires a single event's recording
type RecordingAcquirer interface {
	Acquire(ctx context.Context, deviceName string, ev ring.Event, local time.Time) (download.Outcome, string, error)
}

// WorkerPool manages concurrent recording downloads
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	acquirer    RecordingAcquirer
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(numWorkers int, acquirer RecordingAcquirer, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		acquirer:    acquirer,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop shuts down the pool after the queued jobs finish
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob handles a single download job
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()

	wp.logger.DebugWithFields("worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"device":    job.Device,
		"event_id":  job.Event.ID.String(),
	})

	outcome, path, err := wp.acquirer.Acquire(wp.ctx, job.Device, job.Event, job.Local)

	return DownloadResult{
		Job:      job,
		Outcome:  outcome,
		Path:     path,
		Error:    err,
		Duration: time.Since(start),
	}
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}
