// Package worker bounds how many renders execute simultaneously. Each render
// drives its own encoding subprocesses, so the pool size is the effective cap
// on concurrent ffmpeg invocations per host.
package worker

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Job is a unit of work executed by the pool.
type Job interface {
	ID() string
	Execute() error
}

// Dispatcher owns a fixed set of workers pulling from one bounded queue.
type Dispatcher struct {
	queue chan Job
	quit  chan struct{}
	wg    sync.WaitGroup
	log   *logrus.Logger

	workers int
}

// NewDispatcher builds a dispatcher with the given worker count and queue
// capacity.
func NewDispatcher(workers, queueSize int, log *logrus.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan Job, queueSize),
		quit:    make(chan struct{}),
		log:     log,
		workers: workers,
	}
}

// Run starts the workers.
func (d *Dispatcher) Run() {
	d.log.WithField("workers", d.workers).Info("render dispatcher starting")
	for i := 1; i <= d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.log.WithFields(logrus.Fields{"worker": id, "job": job.ID()}).Info("render started")
			if err := job.Execute(); err != nil {
				d.log.WithFields(logrus.Fields{"worker": id, "job": job.ID()}).WithError(err).Error("render failed")
			} else {
				d.log.WithFields(logrus.Fields{"worker": id, "job": job.ID()}).Info("render finished")
			}
		case <-d.quit:
			return
		}
	}
}

// Submit enqueues a job, failing immediately when the queue is full so the
// caller can shed load instead of blocking.
func (d *Dispatcher) Submit(job Job) error {
	select {
	case d.queue <- job:
		return nil
	default:
		return fmt.Errorf("render queue full (capacity %d)", cap(d.queue))
	}
}

// Stop shuts the workers down after their current jobs complete.
func (d *Dispatcher) Stop() {
	close(d.quit)
	d.wg.Wait()
	d.log.Info("render dispatcher stopped")
}
