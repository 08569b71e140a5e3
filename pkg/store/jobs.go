package store

import (
	"time"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
)

// CreateJob inserts job, assigning its InternalID, failing with
// DUPLICATE_JOB_ID if job_id is already present, per spec §4.6.
func (s *Store) CreateJob(job *model.Job) error {
	internalID, err := s.jobSeq.Next()
	if chk.E(err) {
		return internalErr("failed to assign internal id", err)
	}
	job.InternalID = internalID

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(jobKey(job.JobID)); getErr == nil {
			return apperr.New(apperr.Input, "DUPLICATE_JOB_ID", "job_id already exists").WithField("job_id")
		} else if getErr != badger.ErrKeyNotFound {
			return getErr
		}
		payload, encErr := encode(job)
		if encErr != nil {
			return encErr
		}
		if setErr := txn.Set(jobKey(job.JobID), payload); setErr != nil {
			return setErr
		}
		if setErr := txn.Set(jobSeqKey(internalID), []byte(job.JobID)); setErr != nil {
			return setErr
		}
		if setErr := txn.Set(statusIdxKey(job.Status, job.Priority, job.CreatedAt, job.JobID), []byte(job.JobID)); setErr != nil {
			return setErr
		}
		if setErr := txn.Set(userIdxKey(job.UserName, job.CreatedAt, job.JobID), []byte(job.JobID)); setErr != nil {
			return setErr
		}
		if setErr := txn.Set(recentIdxKey(job.CreatedAt, job.JobID), []byte(job.JobID)); setErr != nil {
			return setErr
		}
		return nil
	})
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if chk.E(err) {
		return internalErr("failed to create job", err)
	}
	return nil
}

// GetJob returns the job with the given job_id.
func (s *Store) GetJob(jobID string) (job *model.Job, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(jobKey(jobID))
		if getErr == badger.ErrKeyNotFound {
			return notFound("job")
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			job = new(model.Job)
			return decode(val, job)
		})
	})
	if ae, ok := apperr.As(err); ok {
		return nil, ae
	}
	if chk.E(err) {
		return nil, internalErr("failed to get job", err)
	}
	return job, nil
}

// GetJobByInternal returns the job with the given internal sequence id.
func (s *Store) GetJobByInternal(internalID uint64) (job *model.Job, err error) {
	var jobID string
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(jobSeqKey(internalID))
		if getErr == badger.ErrKeyNotFound {
			return notFound("job")
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			jobID = string(val)
			return nil
		})
	})
	if ae, ok := apperr.As(err); ok {
		return nil, ae
	}
	if chk.E(err) {
		return nil, internalErr("failed to get job by internal id", err)
	}
	return s.GetJob(jobID)
}

// UpdateJob applies a partial update to the named job. It is a no-op
// returning a NOT_FOUND error when job_id is unknown, per spec §4.6. When
// the patch changes status or priority, the status index entry is
// rewritten so pending_jobs/jobs_by_status stay consistent.
func (s *Store) UpdateJob(jobID string, patch model.JobPatch) (job *model.Job, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		item, getErr := txn.Get(jobKey(jobID))
		if getErr == badger.ErrKeyNotFound {
			return notFound("job")
		}
		if getErr != nil {
			return getErr
		}
		existing := new(model.Job)
		if valErr := item.Value(func(val []byte) error { return decode(val, existing) }); valErr != nil {
			return valErr
		}

		oldStatus, oldPriority := existing.Status, existing.Priority
		if patch.Status != nil {
			existing.Status = *patch.Status
		}
		if patch.StartedAt != nil {
			existing.StartedAt = patch.StartedAt
		}
		if patch.CompletedAt != nil {
			existing.CompletedAt = patch.CompletedAt
		}
		if patch.ProcessingTimeMs != nil {
			existing.ProcessingTimeMs = *patch.ProcessingTimeMs
		}
		if patch.ErrorMessage != nil {
			existing.ErrorMessage = *patch.ErrorMessage
		}
		if patch.RetryCount != nil {
			existing.RetryCount = *patch.RetryCount
		}
		if patch.Priority != nil {
			existing.Priority = *patch.Priority
		}
		if patch.QueuePosition != nil {
			existing.QueuePosition = *patch.QueuePosition
		}

		if existing.Status != oldStatus || existing.Priority != oldPriority {
			if delErr := txn.Delete(statusIdxKey(oldStatus, oldPriority, existing.CreatedAt, jobID)); delErr != nil {
				return delErr
			}
			if setErr := txn.Set(statusIdxKey(existing.Status, existing.Priority, existing.CreatedAt, jobID), []byte(jobID)); setErr != nil {
				return setErr
			}
		}

		payload, encErr := encode(existing)
		if encErr != nil {
			return encErr
		}
		if setErr := txn.Set(jobKey(jobID), payload); setErr != nil {
			return setErr
		}
		job = existing
		return nil
	})
	if ae, ok := apperr.As(err); ok {
		return nil, ae
	}
	if chk.E(err) {
		return nil, internalErr("failed to update job", err)
	}
	return job, nil
}

// PendingJobs returns up to limit pending jobs ordered by
// (priority ASC, created_at ASC), per spec §4.6.
func (s *Store) PendingJobs(limit int) ([]*model.Job, error) {
	return s.jobsByStatusIndex(model.StatusPending, limit)
}

// NextPending returns the single highest-priority, oldest pending job, or
// nil if the queue is empty.
func (s *Store) NextPending() (*model.Job, error) {
	jobs, err := s.PendingJobs(1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// JobsByStatus returns up to limit jobs in the given status, ordered by
// (priority ASC, created_at ASC).
func (s *Store) JobsByStatus(status model.Status, limit int) ([]*model.Job, error) {
	return s.jobsByStatusIndex(status, limit)
}

func (s *Store) jobsByStatusIndex(status model.Status, limit int) ([]*model.Job, error) {
	ids, err := s.sortedJobIDs(statusIdxPrefix(status), limit)
	if err != nil {
		return nil, err
	}
	return s.hydrateJobs(ids)
}

// JobsByUser returns up to limit jobs submitted by userName, ordered by
// created_at ASC.
func (s *Store) JobsByUser(userName string, limit int) ([]*model.Job, error) {
	ids, err := s.sortedJobIDs(userIdxPrefix(userName), limit)
	if err != nil {
		return nil, err
	}
	return s.hydrateJobs(ids)
}

// RecentJobs returns up to limit of the most recently created jobs across
// all users and statuses, newest first.
func (s *Store) RecentJobs(limit int) ([]*model.Job, error) {
	vals, err := s.scanPrefix([]byte(prefixRecentIdx), limit, true)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(vals))
	for i, v := range vals {
		ids[i] = string(v)
	}
	return s.hydrateJobs(ids)
}

// CountByStatus returns the number of jobs currently in the given status.
func (s *Store) CountByStatus(status model.Status) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := statusIdxPrefix(status)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if chk.E(err) {
		return 0, internalErr("failed to count jobs by status", err)
	}
	return count, nil
}

// DeleteJob removes a job and all of its index entries.
func (s *Store) DeleteJob(jobID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, getErr := txn.Get(jobKey(jobID))
		if getErr == badger.ErrKeyNotFound {
			return notFound("job")
		}
		if getErr != nil {
			return getErr
		}
		job := new(model.Job)
		if valErr := item.Value(func(val []byte) error { return decode(val, job) }); valErr != nil {
			return valErr
		}
		for _, key := range [][]byte{
			jobKey(jobID),
			jobSeqKey(job.InternalID),
			statusIdxKey(job.Status, job.Priority, job.CreatedAt, jobID),
			userIdxKey(job.UserName, job.CreatedAt, jobID),
			recentIdxKey(job.CreatedAt, jobID),
		} {
			if delErr := txn.Delete(key); delErr != nil {
				return delErr
			}
		}
		return nil
	})
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if chk.E(err) {
		return internalErr("failed to delete job", err)
	}
	return nil
}

// CleanupOldJobs deletes jobs in a terminal state (completed, failed,
// cancelled) whose CompletedAt (or CreatedAt if unset) is older than days
// ago, per spec §4.6. It returns the number of jobs removed.
func (s *Store) CleanupOldJobs(days int) (removed int, err error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	terminal := []model.Status{model.StatusCompleted, model.StatusFailed, model.StatusCancelled}
	for _, status := range terminal {
		jobs, scanErr := s.jobsByStatusIndex(status, 0)
		if scanErr != nil {
			return removed, scanErr
		}
		for _, job := range jobs {
			age := job.CreatedAt
			if job.CompletedAt != nil {
				age = *job.CompletedAt
			}
			if age.Before(cutoff) {
				if delErr := s.DeleteJob(job.JobID); delErr != nil {
					return removed, delErr
				}
				removed++
			}
		}
	}
	return removed, nil
}

func (s *Store) hydrateJobs(ids []string) ([]*model.Job, error) {
	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(id)
		if err != nil {
			if ae, ok := apperr.As(err); ok && ae.Code == "NOT_FOUND" {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
