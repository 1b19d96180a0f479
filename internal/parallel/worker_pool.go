// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package parallel runs independent per-table scan jobs on a bounded
// worker pool. Tables are disjoint units of work, so jobs never share
// mutable state; callers merge results deterministically afterwards.
package parallel

import (
	"runtime"
	"sync"
	"time"

	"rs-miner/internal/observability"
)

// Job is one unit of per-table work.
type Job struct {
	TableID string
	Execute func() (interface{}, error)
}

// Result carries one job's output.
type Result struct {
	TableID  string
	Output   interface{}
	Err      error
	Duration time.Duration
}

// WorkerPool fans jobs out to a fixed number of workers.
type WorkerPool struct {
	workers  int
	jobs     chan *Job
	results  chan *Result
	wg       sync.WaitGroup
	observer *observability.StandardObserver
}

// NewWorkerPool creates a pool. A non-positive worker count defaults to
// the number of CPUs.
func NewWorkerPool(workers int, observer *observability.StandardObserver) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers:  workers,
		jobs:     make(chan *Job, workers*2),
		results:  make(chan *Result, workers*2),
		observer: observer,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobs {
		start := time.Now()
		out, err := job.Execute()
		duration := time.Since(start)

		if wp.observer != nil {
			wp.observer.LogOperation(observability.StandardObservabilityData{
				Component:  "parallel",
				Operation:  "scan_job",
				Table:      job.TableID,
				DurationMs: duration.Milliseconds(),
				Success:    err == nil,
			})
		}

		wp.results <- &Result{TableID: job.TableID, Output: out, Err: err, Duration: duration}
	}
}

// RunAll executes every job and returns results keyed by table identifier.
// It blocks until all jobs complete.
func (wp *WorkerPool) RunAll(jobs []*Job) map[string]*Result {
	wp.Start()

	go func() {
		for _, job := range jobs {
			wp.jobs <- job
		}
		close(wp.jobs)
	}()

	go func() {
		wp.wg.Wait()
		close(wp.results)
	}()

	out := make(map[string]*Result, len(jobs))
	for r := range wp.results {
		out[r.TableID] = r
	}
	return out
}
