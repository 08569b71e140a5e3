package store

import (
	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
)

// UpsertDailyStats applies delta to the named date's counters, creating the
// record if absent, per spec §4.6. delta fields are added to the existing
// totals; AverageProcessingTimeMs is recomputed as a running mean over
// TotalJobs rather than summed.
func (s *Store) UpsertDailyStats(date string, delta model.DailyStats) (stats *model.DailyStats, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		existing := &model.DailyStats{Date: date}
		item, getErr := txn.Get(statsKey(date))
		if getErr == nil {
			if valErr := item.Value(func(val []byte) error { return decode(val, existing) }); valErr != nil {
				return valErr
			}
		} else if getErr != badger.ErrKeyNotFound {
			return getErr
		}

		priorJobs := existing.TotalJobs
		existing.TotalJobs += delta.TotalJobs
		existing.CompletedJobs += delta.CompletedJobs
		existing.FailedJobs += delta.FailedJobs
		existing.CancelledJobs += delta.CancelledJobs
		existing.TotalPages += delta.TotalPages
		existing.UptimeSeconds += delta.UptimeSeconds
		existing.RateLimitedCount += delta.RateLimitedCount
		existing.ValidationRejectedCount += delta.ValidationRejectedCount
		if delta.TotalJobs > 0 {
			totalTime := existing.AverageProcessingTimeMs*float64(priorJobs) + delta.AverageProcessingTimeMs*float64(delta.TotalJobs)
			existing.AverageProcessingTimeMs = totalTime / float64(existing.TotalJobs)
		}

		payload, encErr := encode(existing)
		if encErr != nil {
			return encErr
		}
		if setErr := txn.Set(statsKey(date), payload); setErr != nil {
			return setErr
		}
		stats = existing
		return nil
	})
	if chk.E(err) {
		return nil, internalErr("failed to upsert daily stats", err)
	}
	return stats, nil
}

// DailyStats returns the stats record for date, or a zero-valued record if
// none has been recorded yet.
func (s *Store) DailyStats(date string) (stats *model.DailyStats, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(statsKey(date))
		if getErr == badger.ErrKeyNotFound {
			stats = &model.DailyStats{Date: date}
			return nil
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			stats = new(model.DailyStats)
			return decode(val, stats)
		})
	})
	if chk.E(err) {
		return nil, internalErr("failed to get daily stats", err)
	}
	return stats, nil
}

// Summary returns the aggregated dashboard snapshot of spec §4.6.
func (s *Store) Summary() (*model.Summary, error) {
	summary := new(model.Summary)
	for status, dest := range map[model.Status]*int64{
		model.StatusPending:   &summary.PendingJobs,
		model.StatusPrinting:  &summary.PrintingJobs,
		model.StatusCompleted: &summary.CompletedJobs,
		model.StatusFailed:    &summary.FailedJobs,
		model.StatusCancelled: &summary.CancelledJobs,
	} {
		count, err := s.CountByStatus(status)
		if err != nil {
			return nil, err
		}
		*dest = count
		summary.TotalJobs += count
	}
	clients, err := s.TotalClients()
	if err != nil {
		return nil, err
	}
	summary.TotalClients = clients

	users, err := s.TotalUsers()
	if err != nil {
		return nil, err
	}
	summary.TotalUsers = users
	return summary, nil
}
