package store

import (
	"time"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/dgraph-io/badger/v4"
	"lol.mleku.dev/chk"
)

// CreateUser inserts a new user, failing if username already exists.
func (s *Store) CreateUser(user *model.User) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(userKey(user.Username)); getErr == nil {
			return apperr.New(apperr.Input, "DUPLICATE_USERNAME", "username already exists").WithField("username")
		} else if getErr != badger.ErrKeyNotFound {
			return getErr
		}
		payload, encErr := encode(user)
		if encErr != nil {
			return encErr
		}
		return txn.Set(userKey(user.Username), payload)
	})
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if chk.E(err) {
		return internalErr("failed to create user", err)
	}
	return nil
}

// GetUser returns the user record for username.
func (s *Store) GetUser(username string) (user *model.User, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(userKey(username))
		if getErr == badger.ErrKeyNotFound {
			return notFound("user")
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			user = new(model.User)
			return decode(val, user)
		})
	})
	if ae, ok := apperr.As(err); ok {
		return nil, ae
	}
	if chk.E(err) {
		return nil, internalErr("failed to get user", err)
	}
	return user, nil
}

// UpdateUser overwrites the full user record, e.g. for role/is_active
// changes.
func (s *Store) UpdateUser(user *model.User) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(userKey(user.Username)); getErr == badger.ErrKeyNotFound {
			return notFound("user")
		} else if getErr != nil {
			return getErr
		}
		payload, encErr := encode(user)
		if encErr != nil {
			return encErr
		}
		return txn.Set(userKey(user.Username), payload)
	})
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if chk.E(err) {
		return internalErr("failed to update user", err)
	}
	return nil
}

// UpdateUserLastLogin stamps now onto the user's last_login field.
func (s *Store) UpdateUserLastLogin(username string) error {
	user, err := s.GetUser(username)
	if err != nil {
		return err
	}
	now := time.Now()
	user.LastLogin = &now
	return s.UpdateUser(user)
}

// UpdateUserPassword replaces the user's password hash/salt and stamps
// password_changed_at.
func (s *Store) UpdateUserPassword(username, hash, salt string) error {
	user, err := s.GetUser(username)
	if err != nil {
		return err
	}
	now := time.Now()
	user.PasswordHash = hash
	user.PasswordSalt = salt
	user.PasswordChangedAt = &now
	return s.UpdateUser(user)
}

// DeleteUser removes the user record for username.
func (s *Store) DeleteUser(username string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get(userKey(username)); getErr == badger.ErrKeyNotFound {
			return notFound("user")
		} else if getErr != nil {
			return getErr
		}
		return txn.Delete(userKey(username))
	})
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if chk.E(err) {
		return internalErr("failed to delete user", err)
	}
	return nil
}

// ListUsers returns every known user record.
func (s *Store) ListUsers() ([]*model.User, error) {
	vals, err := s.scanPrefix([]byte(prefixUser), 0, false)
	if err != nil {
		return nil, err
	}
	users := make([]*model.User, 0, len(vals))
	for _, v := range vals {
		u := new(model.User)
		if decErr := decode(v, u); decErr != nil {
			return nil, decErr
		}
		users = append(users, u)
	}
	return users, nil
}

// TotalUsers returns the number of known users.
func (s *Store) TotalUsers() (int64, error) {
	vals, err := s.scanPrefix([]byte(prefixUser), 0, false)
	if err != nil {
		return 0, err
	}
	return int64(len(vals)), nil
}
