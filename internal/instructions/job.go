package instructions

import (
	"context"
	"sync"
)

// Status is the caller-visible state of an asynchronous extraction, used to
// drive progress indicators.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Job tracks one asynchronous extraction. The extraction itself is the same
// pure transform as Extract; the job only adds observable state around it.
type Job struct {
	mu     sync.Mutex
	status Status
	result map[string]string
	err    error
	done   chan struct{}
}

// Start runs an extraction in the background and returns its job handle.
func (e *Extractor) Start(data []byte) *Job {
	j := &Job{
		status: StatusPending,
		done:   make(chan struct{}),
	}

	go func() {
		j.setStatus(StatusExtracting)
		result, err := e.Extract(data)
		j.mu.Lock()
		if err != nil {
			j.status = StatusFailed
			j.err = err
		} else {
			j.status = StatusDone
			j.result = result
		}
		j.mu.Unlock()
		close(j.done)
	}()

	return j
}

// Status returns the current state of the job.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Wait blocks until the extraction finishes or the context is canceled.
// Cancellation abandons the result; the underlying transform is bounded and
// needs no cleanup.
func (j *Job) Wait(ctx context.Context) (map[string]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-j.done:
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}
