package scheduler

import (
	"fmt"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is where a job is in its lifecycle.
type State string

const (
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
	StateRetrying  State = "retrying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Finished reports whether the state is terminal for a one-shot run.
func (s State) Finished() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// JobStatus is the last known state of a named job.
type JobStatus struct {
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	RunID       string    `json:"run_id"`
	State       State     `json:"state"`
	SyncedCount int       `json:"synced_count"`
	Attempt     int       `json:"attempt"`
	UpdatedAt   time.Time `json:"updated_at"`
	Err         string    `json:"error,omitempty"`
}

var bucketJobs = []byte("jobs")

// StatusStore persists job statuses in a bbolt file so the outcome of the
// last run survives a restart.
type StatusStore struct {
	db *bolt.DB
}

// OpenStatusStore opens (or creates) the status database at path.
func OpenStatusStore(path string) (*StatusStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open status store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init status store: %w", err)
	}
	return &StatusStore{db: db}, nil
}

// Put stores st under its name, replacing any previous status.
func (s *StatusStore) Put(st JobStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Put([]byte(st.Name), data)
	})
}

// Get returns the status stored for name.
func (s *StatusStore) Get(name string) (JobStatus, bool, error) {
	var (
		st    JobStatus
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketJobs).Get([]byte(name))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &st)
	})
	return st, found, err
}

// ByTag returns every stored status with the given tag, ordered by name.
func (s *StatusStore) ByTag(tag string) ([]JobStatus, error) {
	var out []JobStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var st JobStatus
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("decode status %s: %w", k, err)
			}
			if st.Tag == tag {
				out = append(out, st)
			}
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// Prune deletes finished statuses last updated before cutoff and returns
// how many were removed.
func (s *StatusStore) Prune(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var st JobStatus
			if err := json.Unmarshal(v, &st); err != nil {
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			if st.State.Finished() && st.UpdatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (s *StatusStore) Close() error {
	return s.db.Close()
}
