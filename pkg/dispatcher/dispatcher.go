// Package dispatcher implements the single-worker job dispatch loop of
// spec §4.8: pop from the priority queue, drive the printer backend, and
// apply the pending -> printing -> {completed | pending (retry) | failed}
// state machine, grounded on the teacher's single-goroutine,
// ticker-plus-stop-channel worker pattern (pkg/database.New's expiration
// sweep, reused already in pkg/ratelimit.Limiter.Sweep).
package dispatcher

import (
	"os"
	"time"

	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/SpacksD/Printer-connect/pkg/printer"
	"github.com/SpacksD/Printer-connect/pkg/queue"
	"lol.mleku.dev/log"
)

// DefaultPollTimeout is how long the worker blocks on an empty queue
// between shutdown checks.
const DefaultPollTimeout = 2 * time.Second

// jobStore is the minimal store surface the dispatcher needs.
type jobStore interface {
	GetJob(jobID string) (*model.Job, error)
	UpdateJob(jobID string, patch model.JobPatch) (*model.Job, error)
	IncrementClient(clientID string, deltaJobs, deltaPages int64) error
	UpsertDailyStats(date string, delta model.DailyStats) (*model.DailyStats, error)
}

// Dispatcher drives jobs from a queue.Queue to a printer.Backend.
type Dispatcher struct {
	store       jobStore
	queue       *queue.Queue
	backend     printer.Backend
	pollTimeout time.Duration
	stop        chan struct{}
	stopped     chan struct{}
}

// New constructs a Dispatcher. pollTimeout <= 0 selects DefaultPollTimeout.
func New(store jobStore, q *queue.Queue, backend printer.Backend, pollTimeout time.Duration) *Dispatcher {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Dispatcher{
		store:       store,
		queue:       q,
		backend:     backend,
		pollTimeout: pollTimeout,
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Run is the worker loop: poll the queue with a short timeout so shutdown
// is prompt, per spec §4.8. It returns once Stop has been called and the
// current job (if any) finishes.
func (d *Dispatcher) Run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		item, ok := d.queue.Pop(d.pollTimeout)
		if !ok {
			continue
		}
		d.ProcessOne(item)
	}
}

// Stop signals the worker to exit after its current job, then blocks until
// it has.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.stopped
}

// ProcessOne runs the full state machine for one dequeued admission, per
// spec §4.8. It is exported so tests can drive the dispatcher step by step
// without a background goroutine.
func (d *Dispatcher) ProcessOne(item queue.Item) {
	job, err := d.store.GetJob(item.JobID)
	if err != nil {
		log.W.F("dispatcher: job %s vanished from store before dispatch: %v", item.JobID, err)
		return
	}
	if job.Status != model.StatusPending {
		// Cancel race (or an already-terminal job): spec §4.8 requires the
		// dispatcher skip it rather than submit.
		log.T.F("dispatcher: skipping job %s, status is %s not pending", job.JobID, job.Status)
		return
	}

	startedAt := time.Now()
	printing := model.StatusPrinting
	if _, err = d.store.UpdateJob(job.JobID, model.JobPatch{Status: &printing, StartedAt: &startedAt}); err != nil {
		log.E.F("dispatcher: failed to mark job %s printing: %v", job.JobID, err)
		return
	}
	job.StartedAt = &startedAt

	if job.TempFilePath == "" || !fileExists(job.TempFilePath) {
		d.failPermanently(job, "source file missing")
		return
	}

	if status := d.backend.Status(); !status.Available {
		d.reenqueueTransient(job, "printer backend unavailable")
		return
	}

	ok, submitErr := d.backend.Submit(job.TempFilePath, job.Copies)
	if submitErr != nil {
		log.E.F("dispatcher: backend error submitting job %s: %v", job.JobID, submitErr)
	}
	if ok {
		d.succeed(job)
		return
	}
	d.retryOrFail(job)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (d *Dispatcher) succeed(job *model.Job) {
	completedAt := time.Now()
	processingMs := completedAt.Sub(*job.StartedAt).Milliseconds()
	completed := model.StatusCompleted
	empty := ""
	if _, err := d.store.UpdateJob(job.JobID, model.JobPatch{
		Status:           &completed,
		CompletedAt:      &completedAt,
		ProcessingTimeMs: &processingMs,
		ErrorMessage:     &empty,
	}); err != nil {
		log.E.F("dispatcher: failed to mark job %s completed: %v", job.JobID, err)
		return
	}
	if err := d.store.IncrementClient(job.ClientID, 1, int64(job.PageCount)); err != nil {
		log.W.F("dispatcher: failed to increment client counters for %s: %v", job.ClientID, err)
	}
	if _, err := d.store.UpsertDailyStats(model.DateKey(completedAt), model.DailyStats{
		TotalJobs:               1,
		CompletedJobs:           1,
		TotalPages:              int64(job.PageCount),
		AverageProcessingTimeMs: float64(processingMs),
	}); err != nil {
		log.W.F("dispatcher: failed to record daily stats for job %s: %v", job.JobID, err)
	}
}

func (d *Dispatcher) retryOrFail(job *model.Job) {
	if job.RetryCount < job.MaxRetries {
		newRetry := job.RetryCount + 1
		newPriority := job.Priority + 1
		if newPriority > 10 {
			newPriority = 10
		}
		pending := model.StatusPending
		errMsg := "print submission failed, retrying"
		if _, err := d.store.UpdateJob(job.JobID, model.JobPatch{
			Status:       &pending,
			RetryCount:   &newRetry,
			Priority:     &newPriority,
			ErrorMessage: &errMsg,
		}); err != nil {
			log.E.F("dispatcher: failed to requeue job %s for retry: %v", job.JobID, err)
			return
		}
		d.queue.Push(job.JobID, newPriority, time.Now())
		return
	}
	d.failPermanently(job, "print submission failed after exhausting retries")
}

func (d *Dispatcher) reenqueueTransient(job *model.Job, reason string) {
	pending := model.StatusPending
	if _, err := d.store.UpdateJob(job.JobID, model.JobPatch{Status: &pending, ErrorMessage: &reason}); err != nil {
		log.E.F("dispatcher: failed to re-enqueue job %s: %v", job.JobID, err)
		return
	}
	// Re-enqueued at the same priority without incrementing retry_count,
	// per spec §4.8 — a printer-offline condition is transient, not a
	// dispatch failure.
	d.queue.Push(job.JobID, job.Priority, time.Now())
}

func (d *Dispatcher) failPermanently(job *model.Job, reason string) {
	failed := model.StatusFailed
	completedAt := time.Now()
	if _, err := d.store.UpdateJob(job.JobID, model.JobPatch{
		Status:       &failed,
		CompletedAt:  &completedAt,
		ErrorMessage: &reason,
	}); err != nil {
		log.E.F("dispatcher: failed to mark job %s failed: %v", job.JobID, err)
		return
	}
	var processingMs int64
	if job.StartedAt != nil {
		processingMs = completedAt.Sub(*job.StartedAt).Milliseconds()
	}
	if _, err := d.store.UpsertDailyStats(model.DateKey(completedAt), model.DailyStats{
		TotalJobs:               1,
		FailedJobs:              1,
		AverageProcessingTimeMs: float64(processingMs),
	}); err != nil {
		log.W.F("dispatcher: failed to record daily stats for job %s: %v", job.JobID, err)
	}
}
