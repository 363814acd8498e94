package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var checkpointsBucket = []byte("checkpoints")

// BboltStore keeps one bucket of JSON records in a bbolt file.
type BboltStore struct {
	path string

	mu sync.RWMutex
	db *bolt.DB
}

func NewBboltStore(path string) *BboltStore {
	return &BboltStore{path: path}
}

func (s *BboltStore) Init(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("bbolt path is required")
	}
	if s.db != nil {
		return nil
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bbolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *BboltStore) getDB() (*bolt.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("bbolt store is not initialized")
	}
	return s.db, nil
}

func (s *BboltStore) Save(_ context.Context, rec Record) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointsBucket).Put([]byte(rec.Name), payload)
	})
}

func (s *BboltStore) Load(_ context.Context, name string) (Record, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Record{}, false, err
	}
	var payload []byte
	err = db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(checkpointsBucket).Get([]byte(name))
		if v != nil {
			// Copy the value since it's only valid during the transaction
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || payload == nil {
		return Record{}, false, err
	}
	rec, err := decodeRecord(name, payload)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *BboltStore) List(context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	names := []string{}
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func (s *BboltStore) Delete(_ context.Context, name string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointsBucket).Delete([]byte(name))
	})
}

func (s *BboltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
