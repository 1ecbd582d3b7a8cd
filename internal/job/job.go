package job

import (
	"context"
	"sync"
	"time"

	"github.com/skypro1111/transcript-diarizer/internal/diarize"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job has finished
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one submitted recording and its processing state
type Job struct {
	ID        string
	Name      string
	Size      int
	CreatedAt time.Time

	status     Status
	progress   float64 // percent
	result     *diarize.Transcription
	errMessage string
	startedAt  time.Time
	finishedAt time.Time

	subscribers map[chan Info]struct{}
	cancel      context.CancelFunc

	mu sync.RWMutex
}

// Info is a point-in-time snapshot of a job for APIs and subscribers
type Info struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Size       int                    `json:"size"`
	Status     Status                 `json:"status"`
	Progress   float64                `json:"progress"`
	Error      string                 `json:"error,omitempty"`
	Result     *diarize.Transcription `json:"result,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
}

func newJob(id, name string, size int, cancel context.CancelFunc) *Job {
	return &Job{
		ID:          id,
		Name:        name,
		Size:        size,
		CreatedAt:   time.Now(),
		status:      StatusQueued,
		subscribers: make(map[chan Info]struct{}),
		cancel:      cancel,
	}
}

// Info returns a snapshot including the result
func (j *Job) Info() Info {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshot(true)
}

// Status returns the current status
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Result returns the transcription of a completed job, or nil
func (j *Job) Result() *diarize.Transcription {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// snapshot must be called with j.mu held
func (j *Job) snapshot(withResult bool) Info {
	info := Info{
		ID:        j.ID,
		Name:      j.Name,
		Size:      j.Size,
		Status:    j.status,
		Progress:  j.progress,
		Error:     j.errMessage,
		CreatedAt: j.CreatedAt,
	}

	if !j.startedAt.IsZero() {
		startedAt := j.startedAt
		info.StartedAt = &startedAt
	}

	if !j.finishedAt.IsZero() {
		finishedAt := j.finishedAt
		info.FinishedAt = &finishedAt
	}

	if withResult {
		info.Result = j.result
	}

	return info
}

func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = StatusRunning
	j.startedAt = time.Now()
	j.notify()
}

// setProgress records a percentage; progress never moves backwards
func (j *Job) setProgress(percent float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() || percent <= j.progress {
		return
	}
	if percent > 100 {
		percent = 100
	}

	j.progress = percent
	j.notify()
}

func (j *Job) complete(result *diarize.Transcription) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = StatusCompleted
	j.progress = 100
	j.result = result
	j.finishedAt = time.Now()
	j.notify()
	j.closeSubscribers()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = StatusFailed
	j.errMessage = err.Error()
	j.finishedAt = time.Now()
	j.notify()
	j.closeSubscribers()
}

// subscribe registers a channel that always holds the latest snapshot.
// The channel is closed once the job finishes.
func (j *Job) subscribe() (<-chan Info, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan Info, 1)
	ch <- j.snapshot(false)

	if j.status.Terminal() {
		close(ch)
		return ch, func() {}
	}

	j.subscribers[ch] = struct{}{}

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subscribers[ch]; ok {
			delete(j.subscribers, ch)
			close(ch)
		}
	}
}

// notify must be called with j.mu held. A pending snapshot is replaced so
// slow subscribers only ever see the latest state.
func (j *Job) notify() {
	info := j.snapshot(false)
	for ch := range j.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- info:
		default:
		}
	}
}

// closeSubscribers must be called with j.mu held
func (j *Job) closeSubscribers() {
	for ch := range j.subscribers {
		close(ch)
		delete(j.subscribers, ch)
	}
}

func (j *Job) expired(now time.Time, retention time.Duration) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status.Terminal() && now.Sub(j.finishedAt) > retention
}
