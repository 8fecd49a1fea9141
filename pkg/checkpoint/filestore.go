package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// fileRecord is the on-disk JSON shape of a checkpoint file.
type fileRecord struct {
	Checkpoint string `json:"checkpoint"`
	Phase      Phase  `json:"phase"`
	Timestamp  string `json:"timestamp"`
}

// FileStore persists checkpoints as a directory of
// checkpoint_<phase>_<rfc3339>.json files. Writes go through a temp file in
// the same directory followed by os.Rename, which POSIX and Windows both
// guarantee is atomic within a single filesystem, so a crash mid-write never
// leaves a partially written record visible to a reader.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. dir is created if it does
// not already exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create checkpoint dir: %v", ErrEmitFailed, err)
	}
	return &FileStore{dir: dir}, nil
}

// Emit implements Store.
func (s *FileStore) Emit(ctx context.Context, phase Phase, cp Checkpoint) error {
	wire, err := Serialize(cp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmitFailed, err)
	}

	now := nowRFC3339Nano()
	rec := fileRecord{Checkpoint: wire, Phase: phase, Timestamp: now}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrEmitFailed, err)
	}

	name := fmt.Sprintf("checkpoint_%s_%s.json", phase, now)
	final := filepath.Join(s.dir, name)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write temp file: %v", ErrEmitFailed, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename: %v", ErrEmitFailed, err)
	}
	return nil
}

// ReadFirst implements Store.
func (s *FileStore) ReadFirst(ctx context.Context, phase Phase) (Checkpoint, error) {
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
func (s *FileStore) List(ctx context.Context) ([]CheckpointFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list dir: %w", err)
	}

	var files []CheckpointFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		cp, err := Parse(rec.Checkpoint)
		if err != nil {
			continue
		}
		files = append(files, CheckpointFile{Phase: rec.Phase, Checkpoint: cp, Timestamp: rec.Timestamp})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Timestamp < files[j].Timestamp })
	return files, nil
}
