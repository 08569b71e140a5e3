package store

import (
	"testing"
	"time"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestJob(jobID string, priority int, createdAt time.Time) *model.Job {
	return &model.Job{
		JobID:      jobID,
		ClientID:   "client-1",
		UserName:   "alice",
		Status:     model.StatusPending,
		Priority:   priority,
		CreatedAt:  createdAt,
		MaxRetries: model.DefaultMaxRetries,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	s := openTestStore(t)
	job := newTestJob("job-1", 5, time.Now())
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.InternalID == 0 {
		t.Fatal("expected InternalID to be assigned")
	}
	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.JobID != "job-1" || got.UserName != "alice" {
		t.Fatalf("unexpected job: %+v", got)
	}

	byInternal, err := s.GetJobByInternal(job.InternalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byInternal.JobID != "job-1" {
		t.Fatalf("expected job-1 by internal id, got %+v", byInternal)
	}
}

func TestCreateJobDuplicateRejected(t *testing.T) {
	s := openTestStore(t)
	job := newTestJob("job-dup", 1, time.Now())
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.CreateJob(newTestJob("job-dup", 1, time.Now()))
	if err == nil {
		t.Fatal("expected duplicate job_id to be rejected")
	}
	ae, ok := apperr.As(err)
	if !ok || ae.Code != "DUPLICATE_JOB_ID" {
		t.Fatalf("expected DUPLICATE_JOB_ID, got %+v", err)
	}
}

func TestPendingJobsOrderedByPriorityThenAge(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	// Out of order on purpose: priority 5 created first, priority 1 later,
	// priority 5 (again) even later — expect priority 1 first, then the two
	// priority-5 jobs ordered by creation time.
	must(t, s.CreateJob(newTestJob("p5-old", 5, base)))
	must(t, s.CreateJob(newTestJob("p1", 1, base.Add(time.Second))))
	must(t, s.CreateJob(newTestJob("p5-new", 5, base.Add(2*time.Second))))

	jobs, err := s.PendingJobs(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", len(jobs))
	}
	order := []string{jobs[0].JobID, jobs[1].JobID, jobs[2].JobID}
	want := []string{"p1", "p5-old", "p5-new"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}

	next, err := s.NextPending()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.JobID != "p1" {
		t.Fatalf("expected p1 as next pending, got %s", next.JobID)
	}
}

func TestUpdateJobPatchMovesStatusIndex(t *testing.T) {
	s := openTestStore(t)
	must(t, s.CreateJob(newTestJob("job-x", 3, time.Now())))

	completed := model.StatusCompleted
	updated, err := s.UpdateJob("job-x", model.JobPatch{Status: &completed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.StatusCompleted {
		t.Fatalf("expected status completed, got %s", updated.Status)
	}

	pending, err := s.PendingJobs(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending jobs after completion, got %d", len(pending))
	}
	done, err := s.JobsByStatus(model.StatusCompleted, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(done) != 1 || done[0].JobID != "job-x" {
		t.Fatalf("expected job-x in completed list, got %+v", done)
	}
}

func TestUpdateJobUnknownIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UpdateJob("missing", model.JobPatch{})
	if err == nil {
		t.Fatal("expected not-found error for unknown job_id")
	}
}

func TestDeleteJobRemovesFromIndices(t *testing.T) {
	s := openTestStore(t)
	must(t, s.CreateJob(newTestJob("job-del", 2, time.Now())))
	if err := s.DeleteJob("job-del"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GetJob("job-del"); err == nil {
		t.Fatal("expected job to be gone")
	}
	pending, _ := s.PendingJobs(10)
	if len(pending) != 0 {
		t.Fatalf("expected no pending jobs, got %d", len(pending))
	}
}

func TestClientUpsertAndIncrement(t *testing.T) {
	s := openTestStore(t)
	client, err := s.UpsertClient("client-1", "10.0.0.5", "workstation-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.TotalJobs != 0 {
		t.Fatalf("expected fresh client to have zero jobs, got %d", client.TotalJobs)
	}
	if err = s.IncrementClient("client-1", 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := s.UpsertClient("client-1", "10.0.0.6", "workstation-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.TotalJobs != 1 || again.TotalPages != 10 {
		t.Fatalf("expected counters preserved across upsert, got %+v", again)
	}
	if again.LastSeenIP != "10.0.0.6" {
		t.Fatalf("expected last_seen_ip updated, got %s", again.LastSeenIP)
	}
}

func TestUserCreateGetUpdatePassword(t *testing.T) {
	s := openTestStore(t)
	user := &model.User{Username: "alice", PasswordHash: "h", PasswordSalt: "s", Role: model.RoleUser, IsActive: true, CreatedAt: time.Now()}
	if err := s.CreateUser(user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateUser(user); err == nil {
		t.Fatal("expected duplicate username to be rejected")
	}
	if err := s.UpdateUserPassword("alice", "new-hash", "new-salt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetUser("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PasswordHash != "new-hash" || got.PasswordChangedAt == nil {
		t.Fatalf("expected password updated, got %+v", got)
	}
	if err = s.UpdateUserLastLogin("alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDailyStatsUpsertAccumulates(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UpsertDailyStats("2026-08-01", model.DailyStats{TotalJobs: 2, CompletedJobs: 2, AverageProcessingTimeMs: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, err := s.UpsertDailyStats("2026-08-01", model.DailyStats{TotalJobs: 1, CompletedJobs: 1, AverageProcessingTimeMs: 400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalJobs != 3 || stats.CompletedJobs != 3 {
		t.Fatalf("expected accumulated counters, got %+v", stats)
	}
	if stats.AverageProcessingTimeMs <= 100 || stats.AverageProcessingTimeMs >= 400 {
		t.Fatalf("expected weighted average between 100 and 400, got %f", stats.AverageProcessingTimeMs)
	}
}

func TestSummaryAggregates(t *testing.T) {
	s := openTestStore(t)
	must(t, s.CreateJob(newTestJob("a", 1, time.Now())))
	must(t, s.CreateJob(newTestJob("b", 2, time.Now())))
	completed := model.StatusCompleted
	if _, err := s.UpdateJob("b", model.JobPatch{Status: &completed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := s.Summary()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalJobs != 2 || summary.PendingJobs != 1 || summary.CompletedJobs != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCleanupOldJobsDeletesOldTerminalJobs(t *testing.T) {
	s := openTestStore(t)
	old := newTestJob("old-done", 1, time.Now().AddDate(0, 0, -30))
	recent := newTestJob("recent-done", 1, time.Now())
	must(t, s.CreateJob(old))
	must(t, s.CreateJob(recent))
	completed := model.StatusCompleted
	must2(t, s.UpdateJob("old-done", model.JobPatch{Status: &completed}))
	must2(t, s.UpdateJob("recent-done", model.JobPatch{Status: &completed}))

	removed, err := s.CleanupOldJobs(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly 1 job removed, got %d", removed)
	}
	if _, err = s.GetJob("old-done"); err == nil {
		t.Fatal("expected old completed job removed")
	}
	if _, err = s.GetJob("recent-done"); err != nil {
		t.Fatal("expected recent completed job retained")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func must2(t *testing.T, _ *model.Job, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
