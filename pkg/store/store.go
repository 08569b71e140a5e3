// Package store implements the durable job/client/user/stats repository of
// spec §4.6, grounded on pkg/database.D in the teacher repo: the same
// github.com/dgraph-io/badger/v4 embedded KV store, opened with the same
// conservative block/table/memtable sizing to avoid OOM on startup, and the
// same single-file-per-database layout under a data directory. The
// teacher's binary Nostr-event index codec (database.orly/indexes) has no
// equivalent here; keys are plain, sortable byte strings built directly
// from job/client/user fields, and values are JSON — there being no
// domain-specific wire codec for these record types worth inventing.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/SpacksD/Printer-connect/pkg/utils/units"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
)

// Key prefixes. Each is followed by ':' and one or more sortable
// components so range scans over a prefix yield an ordered index.
const (
	prefixJob       = "job:"        // job:<job_id> -> Job JSON
	prefixJobSeq    = "jobseq:"     // jobseq:<internal_id be64> -> job_id
	prefixStatusIdx = "statusidx:"  // statusidx:<status>:<priority>:<created_at>:<job_id> -> job_id
	prefixUserIdx   = "useridx:"    // useridx:<user_name>:<created_at>:<job_id> -> job_id
	prefixRecentIdx = "recentidx:"  // recentidx:<created_at>:<job_id> -> job_id
	prefixClient    = "client:"     // client:<client_id> -> Client JSON
	prefixUser      = "user:"       // user:<username> -> User JSON
	prefixStats     = "stats:"      // stats:<date> -> DailyStats JSON
)

// Store wraps a badger.DB with the job/client/user/stats access patterns of
// spec §4.6. All multi-key operations are wrapped in a single badger
// transaction so each store call is atomic, per spec.
type Store struct {
	db      *badger.DB
	dataDir string
	jobSeq  *badger.Sequence
}

// Open opens (creating if absent) a badger-backed store at dataDir.
func Open(dataDir string) (s *Store, err error) {
	if err = os.MkdirAll(dataDir, 0o755); chk.E(err) {
		return nil, apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to create data directory", err)
	}
	opts := badger.DefaultOptions(dataDir)
	opts.BlockCacheSize = int64(256 * units.Mb)
	opts.BlockSize = 4 * units.Kb
	opts.BaseTableSize = 64 * units.Mb
	opts.MemTableSize = 64 * units.Mb
	opts.ValueLogFileSize = 256 * units.Mb
	opts.CompactL0OnClose = true
	opts.LmaxCompaction = true
	opts.Compression = options.None
	opts.Logger = newBadgerLogger()

	db, err := badger.Open(opts)
	if chk.E(err) {
		return nil, apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to open store", err)
	}
	s = &Store{db: db, dataDir: dataDir}
	if s.jobSeq, err = db.GetSequence([]byte("job_internal_id"), 100); chk.E(err) {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to acquire job sequence", err)
	}
	if err = s.runMigrations(); chk.E(err) {
		return nil, err
	}
	return s, nil
}

// Path returns the directory the store's files live under.
func (s *Store) Path() string { return s.dataDir }

// Close releases the job sequence lease and closes the underlying database.
func (s *Store) Close() (err error) {
	if s.jobSeq != nil {
		if err = s.jobSeq.Release(); chk.E(err) {
			return apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to release job sequence", err)
		}
	}
	log.D.F("%s: closing store", s.dataDir)
	if err = s.db.Close(); chk.E(err) {
		return apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to close store", err)
	}
	log.I.F("%s: store closed", s.dataDir)
	return nil
}

// Sync runs value log GC and flushes buffers to disk, mirroring the
// teacher's D.Sync.
func (s *Store) Sync() error {
	_ = s.db.RunValueLogGC(0.5)
	return s.db.Sync()
}

func notFound(what string) *apperr.Error {
	return apperr.New(apperr.Resource, "NOT_FOUND", what+" not found")
}

func internalErr(message string, err error) *apperr.Error {
	return apperr.Wrap(apperr.Internal, "SERVER_ERROR", message, err)
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if chk.E(err) {
		return nil, internalErr("failed to encode record", err)
	}
	return b, nil
}

func decode(b []byte, v any) error {
	if err := json.Unmarshal(b, v); chk.E(err) {
		return internalErr("failed to decode record", err)
	}
	return nil
}

func jobKey(jobID string) []byte { return []byte(prefixJob + jobID) }

func jobSeqKey(internalID uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, internalID)
	return append([]byte(prefixJobSeq), buf...)
}

func timeSortable(t time.Time) string {
	// Fixed-width nanoseconds: RFC3339Nano trims trailing zeros, which
	// breaks lexicographic ordering of the keys.
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func statusIdxKey(status model.Status, priority int, createdAt time.Time, jobID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%02d:%s:%s", prefixStatusIdx, status, priority, timeSortable(createdAt), jobID))
}

func statusIdxPrefix(status model.Status) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixStatusIdx, status))
}

func userIdxKey(userName string, createdAt time.Time, jobID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixUserIdx, userName, timeSortable(createdAt), jobID))
}

func userIdxPrefix(userName string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixUserIdx, userName))
}

func recentIdxKey(createdAt time.Time, jobID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixRecentIdx, timeSortable(createdAt), jobID))
}

func clientKey(clientID string) []byte { return []byte(prefixClient + clientID) }
func userKey(username string) []byte   { return []byte(prefixUser + username) }
func statsKey(date string) []byte      { return []byte(prefixStats + date) }

// scanPrefix collects the values stored under keys sharing prefix, in key
// order, up to limit (0 = unbounded), optionally in reverse key order.
func (s *Store) scanPrefix(prefix []byte, limit int, reverse bool) (values [][]byte, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if reverse {
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(values) >= limit {
				break
			}
			item := it.Item()
			val, copyErr := item.ValueCopy(nil)
			if copyErr != nil {
				return copyErr
			}
			values = append(values, val)
		}
		return nil
	})
	if chk.E(err) {
		return nil, internalErr("failed to scan store", err)
	}
	return values, nil
}

// sortedJobIDs returns the job_id pointed to by each key under prefix, in
// key order.
func (s *Store) sortedJobIDs(prefix []byte, limit int) ([]string, error) {
	vals, err := s.scanPrefix(prefix, limit, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(vals))
	for i, v := range vals {
		ids[i] = string(v)
	}
	return ids, nil
}

