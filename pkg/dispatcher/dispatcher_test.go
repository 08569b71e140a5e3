package dispatcher

import (
	"os"
	"testing"
	"time"

	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/SpacksD/Printer-connect/pkg/printer"
	"github.com/SpacksD/Printer-connect/pkg/queue"
)

// fakeStore is an in-memory stand-in for the store's dispatcher-facing
// surface, so these tests exercise the state machine without badger.
type fakeStore struct {
	jobs       map[string]*model.Job
	printingHits map[string]int
	clientJobs map[string]int64
	clientPages map[string]int64
	dailyStats map[string]*model.DailyStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:         make(map[string]*model.Job),
		printingHits: make(map[string]int),
		clientJobs:   make(map[string]int64),
		clientPages:  make(map[string]int64),
		dailyStats:   make(map[string]*model.DailyStats),
	}
}

func (f *fakeStore) put(job *model.Job) { f.jobs[job.JobID] = job }

func (f *fakeStore) GetJob(jobID string) (*model.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, os.ErrNotExist
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) UpdateJob(jobID string, patch model.JobPatch) (*model.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, os.ErrNotExist
	}
	if patch.Status != nil {
		job.Status = *patch.Status
		if job.Status == model.StatusPrinting {
			f.printingHits[jobID]++
		}
	}
	if patch.StartedAt != nil {
		job.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		job.CompletedAt = patch.CompletedAt
	}
	if patch.ProcessingTimeMs != nil {
		job.ProcessingTimeMs = *patch.ProcessingTimeMs
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	if patch.RetryCount != nil {
		job.RetryCount = *patch.RetryCount
	}
	if patch.Priority != nil {
		job.Priority = *patch.Priority
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) IncrementClient(clientID string, deltaJobs, deltaPages int64) error {
	f.clientJobs[clientID] += deltaJobs
	f.clientPages[clientID] += deltaPages
	return nil
}

func (f *fakeStore) UpsertDailyStats(date string, delta model.DailyStats) (*model.DailyStats, error) {
	existing, ok := f.dailyStats[date]
	if !ok {
		existing = &model.DailyStats{Date: date}
		f.dailyStats[date] = existing
	}
	existing.TotalJobs += delta.TotalJobs
	existing.CompletedJobs += delta.CompletedJobs
	existing.FailedJobs += delta.FailedJobs
	existing.CancelledJobs += delta.CancelledJobs
	existing.TotalPages += delta.TotalPages
	existing.RateLimitedCount += delta.RateLimitedCount
	existing.ValidationRejectedCount += delta.ValidationRejectedCount
	existing.AverageProcessingTimeMs = delta.AverageProcessingTimeMs
	return existing, nil
}

func newFakeJob(t *testing.T, id string, priority int) *model.Job {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "job-*.pdf")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	_ = tmp.Close()
	return &model.Job{
		JobID:        id,
		ClientID:     "client-1",
		UserName:     "alice",
		Status:       model.StatusPending,
		Priority:     priority,
		CreatedAt:    time.Now(),
		MaxRetries:   3,
		TempFilePath: tmp.Name(),
		PageCount:    3,
		Copies:       1,
	}
}

// TestRetryBound establishes property 8: a job whose backend submit always
// fails transitions through exactly max_retries+1 printing entries before
// landing on failed.
func TestRetryBound(t *testing.T) {
	st := newFakeStore()
	job := newFakeJob(t, "job-1", 5)
	st.put(job)
	q := queue.New()
	backend := printer.NewMockBackend("mock")
	backend.FailNext = 1 << 30 // always fail
	d := New(st, q, backend, time.Second)

	item := queue.Item{JobID: job.JobID, Priority: job.Priority, EnqueueTime: job.CreatedAt}
	d.ProcessOne(item)
	for i := 0; i < job.MaxRetries; i++ {
		next, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("expected requeued job after failure %d", i)
		}
		d.ProcessOne(next)
	}

	final := st.jobs["job-1"]
	if final.Status != model.StatusFailed {
		t.Fatalf("expected final status failed, got %s", final.Status)
	}
	if st.printingHits["job-1"] != job.MaxRetries+1 {
		t.Fatalf("expected %d printing entries, got %d", job.MaxRetries+1, st.printingHits["job-1"])
	}
	if final.RetryCount != job.MaxRetries {
		t.Fatalf("expected retry_count %d, got %d", job.MaxRetries, final.RetryCount)
	}
}

// TestCancelRace establishes property 9: a job cancelled in the store
// after being popped is never submitted to the backend and remains
// cancelled.
func TestCancelRace(t *testing.T) {
	st := newFakeStore()
	job := newFakeJob(t, "job-cancel", 1)
	st.put(job)
	cancelled := model.StatusCancelled
	st.jobs["job-cancel"].Status = cancelled

	q := queue.New()
	backend := printer.NewMockBackend("mock")
	d := New(st, q, backend, time.Second)

	d.ProcessOne(queue.Item{JobID: "job-cancel", Priority: 1, EnqueueTime: time.Now()})

	if len(backend.Submissions()) != 0 {
		t.Fatal("expected cancelled job to never reach the backend")
	}
	if st.jobs["job-cancel"].Status != model.StatusCancelled {
		t.Fatalf("expected job to remain cancelled, got %s", st.jobs["job-cancel"].Status)
	}
}

// TestScenarioS5RetriesThenSucceeds mirrors end-to-end scenario S5: submit
// fails 3 times then succeeds with max_retries=3; final status completed
// with retry_count=3.
func TestScenarioS5RetriesThenSucceeds(t *testing.T) {
	st := newFakeStore()
	job := newFakeJob(t, "job-s5", 5)
	job.MaxRetries = 3
	st.put(job)
	q := queue.New()
	backend := printer.NewMockBackend("mock")
	backend.FailNext = 3
	d := New(st, q, backend, time.Second)

	item := queue.Item{JobID: job.JobID, Priority: job.Priority, EnqueueTime: job.CreatedAt}
	d.ProcessOne(item)
	for i := 0; i < 3; i++ {
		next, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("expected requeue %d", i)
		}
		d.ProcessOne(next)
	}

	final := st.jobs["job-s5"]
	if final.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.RetryCount != 3 {
		t.Fatalf("expected retry_count 3, got %d", final.RetryCount)
	}
}

// TestScenarioS6PriorityOrder mirrors end-to-end scenario S6: three jobs
// submitted at priorities 10, 1, 5 are submitted to the backend in order
// priority-1, priority-5, priority-10.
func TestScenarioS6PriorityOrder(t *testing.T) {
	st := newFakeStore()
	j10 := newFakeJob(t, "job-10", 10)
	j1 := newFakeJob(t, "job-1", 1)
	j5 := newFakeJob(t, "job-5", 5)
	st.put(j10)
	st.put(j1)
	st.put(j5)

	q := queue.New()
	q.Push(j10.JobID, j10.Priority, time.Now())
	q.Push(j1.JobID, j1.Priority, time.Now().Add(time.Millisecond))
	q.Push(j5.JobID, j5.Priority, time.Now().Add(2*time.Millisecond))

	backend := printer.NewMockBackend("mock")
	d := New(st, q, backend, time.Second)

	for i := 0; i < 3; i++ {
		item, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("expected item %d", i)
		}
		d.ProcessOne(item)
	}

	subs := backend.Submissions()
	if len(subs) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(subs))
	}
	wantOrder := []string{j1.TempFilePath, j5.TempFilePath, j10.TempFilePath}
	for i, want := range wantOrder {
		if subs[i].Path != want {
			t.Fatalf("submission %d: expected %s, got %s", i, want, subs[i].Path)
		}
	}
}

func TestMissingFileFailsPermanently(t *testing.T) {
	st := newFakeStore()
	job := newFakeJob(t, "job-missing", 1)
	job.TempFilePath = "/nonexistent/path/does-not-exist.pdf"
	st.put(job)
	q := queue.New()
	backend := printer.NewMockBackend("mock")
	d := New(st, q, backend, time.Second)

	d.ProcessOne(queue.Item{JobID: job.JobID, Priority: 1, EnqueueTime: time.Now()})

	final := st.jobs["job-missing"]
	if final.Status != model.StatusFailed {
		t.Fatalf("expected failed status for missing file, got %s", final.Status)
	}
	if len(backend.Submissions()) != 0 {
		t.Fatal("expected backend never invoked for a job with a missing file")
	}
}

// TestDailyStatsRecordedOnCompletionAndFailure establishes that both
// terminal outcomes durably bump the day's counters in the store.
func TestDailyStatsRecordedOnCompletionAndFailure(t *testing.T) {
	st := newFakeStore()
	completedJob := newFakeJob(t, "job-done", 5)
	st.put(completedJob)
	q := queue.New()
	backend := printer.NewMockBackend("mock")
	d := New(st, q, backend, time.Second)
	d.ProcessOne(queue.Item{JobID: completedJob.JobID, Priority: 5, EnqueueTime: time.Now()})

	today := model.DateKey(time.Now())
	stats, ok := st.dailyStats[today]
	if !ok {
		t.Fatal("expected a daily stats row to exist after a completed job")
	}
	if stats.CompletedJobs != 1 || stats.TotalJobs != 1 {
		t.Fatalf("expected 1 completed/total job, got %+v", stats)
	}
	if stats.TotalPages != int64(completedJob.PageCount) {
		t.Fatalf("expected total_pages %d, got %d", completedJob.PageCount, stats.TotalPages)
	}

	failedJob := newFakeJob(t, "job-missing-file", 1)
	failedJob.TempFilePath = "/nonexistent/does-not-exist.pdf"
	st.put(failedJob)
	d.ProcessOne(queue.Item{JobID: failedJob.JobID, Priority: 1, EnqueueTime: time.Now()})

	stats = st.dailyStats[today]
	if stats.FailedJobs != 1 {
		t.Fatalf("expected 1 failed job, got %+v", stats)
	}
	if stats.TotalJobs != 2 {
		t.Fatalf("expected total_jobs 2 after completion and failure, got %d", stats.TotalJobs)
	}
}

func TestBackendUnavailableReenqueuesWithoutRetryIncrement(t *testing.T) {
	st := newFakeStore()
	job := newFakeJob(t, "job-offline", 3)
	st.put(job)
	q := queue.New()
	backend := printer.NewMockBackend("mock")
	backend.SetAvailable(false)
	d := New(st, q, backend, time.Second)

	d.ProcessOne(queue.Item{JobID: job.JobID, Priority: 3, EnqueueTime: time.Now()})

	final := st.jobs["job-offline"]
	if final.Status != model.StatusPending {
		t.Fatalf("expected pending after transient re-enqueue, got %s", final.Status)
	}
	if final.RetryCount != 0 {
		t.Fatalf("expected retry_count unchanged at 0, got %d", final.RetryCount)
	}
	if q.Size() != 1 {
		t.Fatalf("expected job re-enqueued, queue size %d", q.Size())
	}
}
