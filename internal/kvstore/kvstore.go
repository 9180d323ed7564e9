// Package kvstore holds short-lived security state such as one-time codes and
// failed login counters. Entries expire on their own.
package kvstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	// Incr adds one to a counter and returns the new value. The TTL is applied
	// when the counter is created and is not extended by later increments.
	Incr(key string, ttl time.Duration) (int64, error)
	Delete(key string) error
	Close() error
}

type BadgerStore struct {
	db *badger.DB
}

// NewMemory opens an in-memory badger instance. Contents do not survive a restart.
func NewMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value store: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Set(key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BadgerStore) Incr(key string, ttl time.Duration) (int64, error) {
	var count int64

	// Concurrent increments on the same key surface as conflicts; retry a few times.
	for attempt := 0; attempt < 5; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			entry := badger.NewEntry([]byte(key), nil)

			item, err := txn.Get([]byte(key))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				count = 0
				if ttl > 0 {
					entry = entry.WithTTL(ttl)
				}
			case err != nil:
				return err
			default:
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if len(raw) == 8 {
					count = int64(binary.BigEndian.Uint64(raw))
				}
				entry.ExpiresAt = item.ExpiresAt()
			}

			count++
			entry.Value = binary.BigEndian.AppendUint64(nil, uint64(count))
			return txn.SetEntry(entry)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return count, nil
	}

	return 0, fmt.Errorf("failed to increment %q: %w", key, badger.ErrConflict)
}

func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
