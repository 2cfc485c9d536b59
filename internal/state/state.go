// Package state persists the small amount of durable client state: the
// preferred collection and a bounded, redacted operation history.
package state

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.sealbox/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second

	// DefaultHistoryLimit bounds the history bucket when no limit is given.
	DefaultHistoryLimit = 200
)

var (
	appBucket              = []byte("app")
	historyBucket          = []byte("history")
	preferredCollectionKey = []byte("preferred_collection")
)

// preferredCollection is the stored form of the preferred collection id.
type preferredCollection struct {
	ID string `json:"id"`
}

// Record is one completed operation. Params must already be redacted:
// records are written to disk as-is.
type Record struct {
	Sequence  uint64          `json:"sequence"`
	RequestID string          `json:"request_id"`
	Operation string          `json:"operation"`
	Outcome   string          `json:"outcome"`
	Params    json.RawMessage `json:"params,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	At        time.Time       `json:"at"`
}

// State wraps a bbolt database for all persistent application state.
type State struct {
	db           *bolt.DB
	historyLimit int
}

// DefaultPath returns ~/.sealbox/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".sealbox", "state.db"), nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// LoadAt opens a state database at the given path, creating it and its
// buckets if needed. historyLimit <= 0 selects DefaultHistoryLimit.
func LoadAt(path string, historyLimit int) (*State, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(appBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(historyBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db, historyLimit: historyLimit}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// PreferredCollection returns the stored collection id, or "". A value
// that cannot be decoded is deleted and reported as "".
func (s *State) PreferredCollection() (string, error) {
	var (
		id        string
		malformed bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(preferredCollectionKey)
		if v == nil {
			return nil
		}

		var pc preferredCollection
		if err := json.Unmarshal(v, &pc); err != nil || pc.ID == "" {
			malformed = true
			return nil
		}

		id = pc.ID

		return nil
	})
	if err != nil {
		return "", err
	}

	if malformed {
		if err := s.ClearPreferredCollection(); err != nil {
			return "", fmt.Errorf("clearing malformed preferred collection: %w", err)
		}
	}

	return id, nil
}

// SetPreferredCollection stores id. An empty id clears the value.
func (s *State) SetPreferredCollection(id string) error {
	if id == "" {
		return s.ClearPreferredCollection()
	}

	data, err := json.Marshal(preferredCollection{ID: id})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(preferredCollectionKey, data)
	})
}

// ClearPreferredCollection removes the stored id.
func (s *State) ClearPreferredCollection() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Delete(preferredCollectionKey)
	})
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)

	return k
}

// AppendHistory stores rec and prunes the oldest records beyond the
// limit. Sequence is assigned here.
func (s *State) AppendHistory(rec Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		rec.Sequence = seq

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		if err := b.Put(sequenceKey(seq), data); err != nil {
			return err
		}

		limit := uint64(s.historyLimit)
		if seq <= limit {
			return nil
		}

		// Keys are big-endian sequences, so everything at or below the
		// cutoff sorts first. Deleting through the cursor skips keys.
		cutoff := sequenceKey(seq - limit)

		var stale [][]byte

		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k, cutoff) <= 0; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

// History returns up to limit records, newest first. limit <= 0 returns
// everything retained.
func (s *State) History(limit int) ([]Record, error) {
	var out []Record

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}

			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding history record: %w", err)
			}

			out = append(out, rec)
		}

		return nil
	})

	return out, err
}

// ClearHistory removes every history record.
func (s *State) ClearHistory() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(historyBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucket(historyBucket)

		return err
	})
}
