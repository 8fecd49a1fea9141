package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"
)

var bucketCheckpoints = []byte("checkpoints")

// BoltStore implements Store on top of a single bbolt database file, for
// embedding the checkpoint ledger in the same process rather than managing a
// directory of files.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "checkpoints.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrEmitFailed, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCheckpoints)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create bucket: %v", ErrEmitFailed, err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Emit implements Store. Records are keyed by "<phase>/<rfc3339>"; List
// orders them by the timestamp stored in each record, not by key.
func (s *BoltStore) Emit(ctx context.Context, phase Phase, cp Checkpoint) error {
	wire, err := Serialize(cp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmitFailed, err)
	}

	now := nowRFC3339Nano()
	rec := fileRecord{Checkpoint: wire, Phase: phase, Timestamp: now}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrEmitFailed, err)
	}

	key := fmt.Sprintf("%s/%s", phase, now)
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: put: %v", ErrEmitFailed, err)
	}
	return nil
}

// ReadFirst implements Store.
func (s *BoltStore) ReadFirst(ctx context.Context, phase Phase) (Checkpoint, error) {
	files, err := s.List(ctx)
	if err != nil {
		return Checkpoint{}, err
	}
	for _, f := range files {
		if f.Phase == phase {
			return f.Checkpoint, nil
		}
	}
	return Checkpoint{}, &ErrNoCheckpoint{Phase: phase}
}

// List implements Store.
func (s *BoltStore) List(ctx context.Context) ([]CheckpointFile, error) {
	var files []CheckpointFile
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		return b.ForEach(func(k, v []byte) error {
			var rec fileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			cp, err := Parse(rec.Checkpoint)
			if err != nil {
				return nil
			}
			files = append(files, CheckpointFile{Phase: rec.Phase, Checkpoint: cp, Timestamp: rec.Timestamp})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Timestamp < files[j].Timestamp })
	return files, nil
}
