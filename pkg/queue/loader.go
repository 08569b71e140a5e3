package queue

import "github.com/SpacksD/Printer-connect/pkg/model"

// jobSource is the minimal store surface the loader needs, so this package
// never imports the store's badger internals.
type jobSource interface {
	PendingJobs(limit int) ([]*model.Job, error)
}

// LoadPending restores the queue at boot from every job the store still
// has in pending status, preserving their stored priority and creation
// time as the enqueue time, per spec §4.7.
func LoadPending(q *Queue, source jobSource) (int, error) {
	jobs, err := source.PendingJobs(0)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		q.Push(job.JobID, job.Priority, job.CreatedAt)
	}
	return len(jobs), nil
}
