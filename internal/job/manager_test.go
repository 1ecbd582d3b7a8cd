package job

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/transcript-diarizer/internal/diarize"
	"github.com/skypro1111/transcript-diarizer/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTranscription() *diarize.Transcription {
	return &diarize.Transcription{
		Segments: []diarize.Segment{{ID: 0, Start: 0, End: 1, Text: "hi", Speaker: "Speaker 1", Confidence: 0.85}},
		Duration: 1,
		Language: "en",
	}
}

// instantProcessor completes immediately with a fixed transcription
func instantProcessor(ctx context.Context, name string, data []byte, progress func(float64)) (*diarize.Transcription, error) {
	progress(20)
	progress(80)
	return testTranscription(), nil
}

// blockingProcessor waits until release is closed or the job is cancelled
func blockingProcessor(release <-chan struct{}) Processor {
	return func(ctx context.Context, name string, data []byte, progress func(float64)) (*diarize.Transcription, error) {
		progress(20)
		select {
		case <-release:
			return testTranscription(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func newTestManager(t *testing.T, config Config, processor Processor) *Manager {
	t.Helper()
	mgr, err := NewManager(testLogger(), config, processor, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func waitForStatus(t *testing.T, job *Job, expected Status) Info {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job.Status() == expected {
			return job.Info()
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("Job %s: expected status %s, got %s", job.ID, expected, job.Status())
	return Info{}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(testLogger(), Config{MaxConcurrent: 1}, nil, nil); err == nil {
		t.Error("Expected error for nil processor")
	}

	if _, err := NewManager(testLogger(), Config{}, instantProcessor, nil); err == nil {
		t.Error("Expected error for zero concurrency")
	}

	if _, err := NewManager(testLogger(), Config{MaxConcurrent: 1, MaxQueued: -1}, instantProcessor, nil); err == nil {
		t.Error("Expected error for negative queue limit")
	}
}

func TestSubmitCompletes(t *testing.T) {
	mgr := newTestManager(t, Config{MaxConcurrent: 2}, instantProcessor)

	job, err := mgr.Submit("clip.wav", []byte("data"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if job.ID == "" || job.Name != "clip.wav" || job.Size != 4 {
		t.Errorf("Unexpected job: %+v", job)
	}

	info := waitForStatus(t, job, StatusCompleted)
	if info.Progress != 100 {
		t.Errorf("Expected progress 100, got %f", info.Progress)
	}
	if info.Result == nil || len(info.Result.Segments) != 1 {
		t.Errorf("Expected result with 1 segment, got %+v", info.Result)
	}
	if info.StartedAt == nil || info.FinishedAt == nil {
		t.Error("Expected start and finish times")
	}

	got, err := mgr.Get(job.ID)
	if err != nil || got != job {
		t.Errorf("Get returned %v, %v", got, err)
	}
}

func TestSubmitRejectsEmptyData(t *testing.T) {
	mgr := newTestManager(t, Config{MaxConcurrent: 1}, instantProcessor)

	if _, err := mgr.Submit("empty.wav", nil); err == nil {
		t.Error("Expected error for empty data")
	}
}

func TestProcessorFailure(t *testing.T) {
	mgr := newTestManager(t, Config{MaxConcurrent: 1}, func(ctx context.Context, name string, data []byte, progress func(float64)) (*diarize.Transcription, error) {
		return nil, errors.New("unsupported audio format: notes.txt")
	})

	job, err := mgr.Submit("notes.txt", []byte("text"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	info := waitForStatus(t, job, StatusFailed)
	if info.Error != "unsupported audio format: notes.txt" {
		t.Errorf("Unexpected error message: %q", info.Error)
	}
	if info.Result != nil {
		t.Error("Expected no result for failed job")
	}
}

func TestNilResultFails(t *testing.T) {
	mgr := newTestManager(t, Config{MaxConcurrent: 1}, func(ctx context.Context, name string, data []byte, progress func(float64)) (*diarize.Transcription, error) {
		return nil, nil
	})

	job, err := mgr.Submit("clip.wav", []byte("data"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForStatus(t, job, StatusFailed)
}

func TestConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	mgr := newTestManager(t, Config{MaxConcurrent: 1}, blockingProcessor(release))

	first, err := mgr.Submit("first.wav", []byte("a"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForStatus(t, first, StatusRunning)

	second, err := mgr.Submit("second.wav", []byte("b"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if second.Status() != StatusQueued {
		t.Errorf("Expected second job to wait for a slot, got %s", second.Status())
	}

	if got := mgr.ActiveCount(); got != 2 {
		t.Errorf("Expected 2 active jobs, got %d", got)
	}

	close(release)
	waitForStatus(t, first, StatusCompleted)
	waitForStatus(t, second, StatusCompleted)

	counts := mgr.Counts()
	if counts[StatusCompleted] != 2 || counts[StatusQueued] != 0 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestQueueLimit(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	mgr := newTestManager(t, Config{MaxConcurrent: 1, MaxQueued: 1}, blockingProcessor(release))

	if _, err := mgr.Submit("first.wav", []byte("a")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := mgr.Submit("second.wav", []byte("b")); !errors.Is(err, ErrTooManyJobs) {
		t.Errorf("Expected ErrTooManyJobs, got %v", err)
	}
}

func TestRemoveCancelsRunningJob(t *testing.T) {
	mgr := newTestManager(t, Config{MaxConcurrent: 1}, blockingProcessor(make(chan struct{})))

	job, err := mgr.Submit("clip.wav", []byte("data"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForStatus(t, job, StatusRunning)

	updates, unsubscribe, err := mgr.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsubscribe()

	if err := mgr.Remove(job.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := mgr.Get(job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after removal, got %v", err)
	}

	var last Info
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case info, ok := <-updates:
			if !ok {
				done = true
				break
			}
			last = info
		case <-timeout:
			t.Fatal("Subscriber channel was not closed")
		}
	}

	if last.Status != StatusFailed || last.Error != "job cancelled" {
		t.Errorf("Expected cancelled failure, got %+v", last)
	}

	if err := mgr.Remove(job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second removal, got %v", err)
	}
}

func TestSubscribeProgress(t *testing.T) {
	release := make(chan struct{})
	mgr := newTestManager(t, Config{MaxConcurrent: 1}, blockingProcessor(release))

	job, err := mgr.Submit("clip.wav", []byte("data"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	updates, unsubscribe, err := mgr.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsubscribe()

	close(release)

	var statuses []Status
	previous := -1.0
	for info := range updates {
		if info.Progress < previous {
			t.Errorf("Progress went backwards: %f after %f", info.Progress, previous)
		}
		if info.Result != nil {
			t.Error("Subscriber snapshots should not carry results")
		}
		previous = info.Progress
		statuses = append(statuses, info.Status)
	}

	if len(statuses) == 0 || statuses[len(statuses)-1] != StatusCompleted {
		t.Errorf("Expected final status completed, got %v", statuses)
	}

	// Subscribing to a finished job yields one snapshot and a closed channel
	finished, _, err := mgr.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if info := <-finished; info.Status != StatusCompleted {
		t.Errorf("Expected completed snapshot, got %s", info.Status)
	}
	if _, ok := <-finished; ok {
		t.Error("Expected closed channel for finished job")
	}

	if _, _, err := mgr.Subscribe("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestJobTimeout(t *testing.T) {
	mgr := newTestManager(t, Config{MaxConcurrent: 1, Timeout: 20 * time.Millisecond}, blockingProcessor(make(chan struct{})))

	job, err := mgr.Submit("slow.wav", []byte("data"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	info := waitForStatus(t, job, StatusFailed)
	if info.Error != context.DeadlineExceeded.Error() {
		t.Errorf("Expected deadline error, got %q", info.Error)
	}
}

func TestListNewestFirst(t *testing.T) {
	mgr := newTestManager(t, Config{MaxConcurrent: 2}, instantProcessor)

	first, _ := mgr.Submit("first.wav", []byte("a"))
	time.Sleep(2 * time.Millisecond)
	second, _ := mgr.Submit("second.wav", []byte("b"))
	waitForStatus(t, first, StatusCompleted)
	waitForStatus(t, second, StatusCompleted)

	infos := mgr.List()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(infos))
	}
	if infos[0].ID != second.ID || infos[1].ID != first.ID {
		t.Errorf("Expected newest first, got %s then %s", infos[0].Name, infos[1].Name)
	}
	for _, info := range infos {
		if info.Result != nil {
			t.Error("List should not include results")
		}
	}
}

func TestCleanupExpiredJobs(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	mgr := newTestManager(t, Config{MaxConcurrent: 2, Retention: time.Minute}, func(ctx context.Context, name string, data []byte, progress func(float64)) (*diarize.Transcription, error) {
		if name == "pending.wav" {
			<-release
		}
		return testTranscription(), nil
	})

	done, _ := mgr.Submit("done.wav", []byte("a"))
	pending, _ := mgr.Submit("pending.wav", []byte("b"))
	waitForStatus(t, done, StatusCompleted)

	if removed := mgr.cleanupExpiredJobs(time.Now()); removed != 0 {
		t.Errorf("Expected nothing removed within retention, got %d", removed)
	}

	if removed := mgr.cleanupExpiredJobs(time.Now().Add(2 * time.Minute)); removed != 1 {
		t.Errorf("Expected 1 expired job removed, got %d", removed)
	}

	if _, err := mgr.Get(done.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected finished job to be cleaned up, got %v", err)
	}
	if _, err := mgr.Get(pending.ID); err != nil {
		t.Errorf("Unfinished job must survive cleanup: %v", err)
	}
}

func TestStopCancelsJobs(t *testing.T) {
	mgr, err := NewManager(testLogger(), Config{MaxConcurrent: 1}, blockingProcessor(make(chan struct{})), nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	job, err := mgr.Submit("clip.wav", []byte("data"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	mgr.Stop()

	if job.Status() != StatusFailed {
		t.Errorf("Expected job failed after stop, got %s", job.Status())
	}

	if _, err := mgr.Submit("late.wav", []byte("data")); err == nil {
		t.Error("Expected error submitting to stopped manager")
	}
}

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	mgr, err := NewManager(testLogger(), Config{MaxConcurrent: 1}, instantProcessor, m)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer mgr.Stop()

	job, _ := mgr.Submit("clip.wav", []byte("data"))
	waitForStatus(t, job, StatusCompleted)

	// metrics are recorded right after the status flips
	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(m.JobsCompleted) != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := testutil.ToFloat64(m.JobsCreated); got != 1 {
		t.Errorf("Expected 1 job created, got %f", got)
	}
	if got := testutil.ToFloat64(m.JobsCompleted); got != 1 {
		t.Errorf("Expected 1 job completed, got %f", got)
	}
}
