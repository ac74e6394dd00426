package queue

import (
	"errors"
	"log/slog"
	"sync"
)

var ErrQueueClosed = errors.New("queue: closed")

type Job struct {
	Fn   func() error
	Errc chan error
}

// RequestQueueManager runs jobs on a fixed pool of workers. EnqueueJob blocks
// while the queue is full.
type RequestQueueManager struct {
	JobQueue   chan Job
	MaxWorkers int
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewRequestQueueManager(queueSize int, maxWorkers int) *RequestQueueManager {
	if queueSize < 0 {
		queueSize = 0
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	manager := &RequestQueueManager{
		JobQueue:   make(chan Job, queueSize),
		MaxWorkers: maxWorkers,
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.MaxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			slog.Debug("worker started", "worker", workerID)
			for job := range rqm.JobQueue {
				err := job.Fn()
				if job.Errc != nil {
					job.Errc <- err
				}
			}
			slog.Debug("worker stopped", "worker", workerID)
		}(i)
	}
}

func (rqm *RequestQueueManager) EnqueueJob(job Job) error {
	rqm.mu.RLock()
	defer rqm.mu.RUnlock()
	if rqm.closed {
		return ErrQueueClosed
	}
	rqm.JobQueue <- job
	return nil
}

// Pending is the number of jobs waiting for a worker.
func (rqm *RequestQueueManager) Pending() int {
	return len(rqm.JobQueue)
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (rqm *RequestQueueManager) Shutdown() {
	rqm.mu.Lock()
	if rqm.closed {
		rqm.mu.Unlock()
		return
	}
	rqm.closed = true
	close(rqm.JobQueue)
	rqm.mu.Unlock()

	rqm.wg.Wait()
}
