package store

import (
	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
)

// currentSchemaVersion mirrors the teacher's version-tag migration
// pattern (pkg/database.RunMigrations) without the Nostr-specific
// expiration-tag backfill: the schema defined by this package's key
// layout is version 1, and there is nothing yet to migrate from.
const currentSchemaVersion = 1

const versionKey = "schema_version"

func (s *Store) runMigrations() error {
	var stored uint32
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(versionKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 4 {
				stored = uint32(val[0])<<24 | uint32(val[1])<<16 | uint32(val[2])<<8 | uint32(val[3])
			}
			return nil
		})
	})
	if chk.E(err) {
		return internalErr("failed to read schema version", err)
	}
	if stored >= currentSchemaVersion {
		return nil
	}
	log.I.F("store: initializing schema version %d", currentSchemaVersion)
	v := currentSchemaVersion
	buf := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(versionKey), buf)
	})
	if chk.E(err) {
		return internalErr("failed to write schema version", err)
	}
	return nil
}
