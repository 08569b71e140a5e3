package store

import (
	"time"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
)

// UpsertClient updates last_seen (and last_seen_ip/hostname) for an
// existing client, preserving its counters, or creates a new client record
// if absent, per spec §4.6.
func (s *Store) UpsertClient(clientID, ip, hostname string) (client *model.Client, err error) {
	now := time.Now()
	err = s.db.Update(func(txn *badger.Txn) error {
		item, getErr := txn.Get(clientKey(clientID))
		existing := &model.Client{ClientID: clientID, FirstSeen: now}
		if getErr == nil {
			if valErr := item.Value(func(val []byte) error { return decode(val, existing) }); valErr != nil {
				return valErr
			}
		} else if getErr != badger.ErrKeyNotFound {
			return getErr
		}
		existing.LastSeenIP = ip
		existing.Hostname = hostname
		existing.LastSeen = now
		existing.IsActive = true
		payload, encErr := encode(existing)
		if encErr != nil {
			return encErr
		}
		if setErr := txn.Set(clientKey(clientID), payload); setErr != nil {
			return setErr
		}
		client = existing
		return nil
	})
	if chk.E(err) {
		return nil, internalErr("failed to upsert client", err)
	}
	return client, nil
}

// IncrementClient adds deltaJobs/deltaPages to the named client's running
// totals, per spec §4.6.
func (s *Store) IncrementClient(clientID string, deltaJobs, deltaPages int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, getErr := txn.Get(clientKey(clientID))
		if getErr == badger.ErrKeyNotFound {
			return notFound("client")
		}
		if getErr != nil {
			return getErr
		}
		existing := new(model.Client)
		if valErr := item.Value(func(val []byte) error { return decode(val, existing) }); valErr != nil {
			return valErr
		}
		existing.TotalJobs += deltaJobs
		existing.TotalPages += deltaPages
		payload, encErr := encode(existing)
		if encErr != nil {
			return encErr
		}
		return txn.Set(clientKey(clientID), payload)
	})
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if chk.E(err) {
		return internalErr("failed to increment client counters", err)
	}
	return nil
}

// GetClient returns the client record for clientID.
func (s *Store) GetClient(clientID string) (client *model.Client, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(clientKey(clientID))
		if getErr == badger.ErrKeyNotFound {
			return notFound("client")
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			client = new(model.Client)
			return decode(val, client)
		})
	})
	if ae, ok := apperr.As(err); ok {
		return nil, ae
	}
	if chk.E(err) {
		return nil, internalErr("failed to get client", err)
	}
	return client, nil
}

// TotalClients returns the number of distinct known clients.
func (s *Store) TotalClients() (int64, error) {
	vals, err := s.scanPrefix([]byte(prefixClient), 0, false)
	if err != nil {
		return 0, err
	}
	return int64(len(vals)), nil
}
