// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists judging progress so an interrupted run can
// resume without re-judging papers. Saves are atomic: a reader sees either
// the previous checkpoint or the new one, never a partial file.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/survey-engine/pkg/types"
)

var (
	// ErrNotFound is returned by Load when no checkpoint file exists.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt is returned by Load when the file exists but cannot be
	// decoded or fails validation.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// rename is swapped in tests to simulate a crash between write and rename.
var rename = os.Rename

// now is swapped in tests for deterministic timestamps.
var now = time.Now

// Store reads and writes the checkpoint file at a fixed path.
type Store struct {
	path string
	log  *slog.Logger
}

// NewStore returns a store for path. A nil logger discards output.
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{path: path, log: log}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether a checkpoint file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and validates the checkpoint. It returns ErrNotFound when there
// is no file and an error wrapping ErrCorrupt when the file is unusable.
func (s *Store) Load() (*types.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", s.path, err)
	}

	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if cp.Results == nil {
		cp.Results = map[string]types.JudgmentResult{}
	}
	if cp.JudgedPaperIDs == nil {
		cp.JudgedPaperIDs = []string{}
	}
	if err := cp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return &cp, nil
}

// Save writes cp atomically. The data goes to a temporary file in the same
// directory, is synced, and is then renamed over the checkpoint path.
func (s *Store) Save(cp *types.Checkpoint) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	snapshot := cp.Clone()
	snapshot.UpdatedAt = now().UTC()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(append(data, '\n'))
	syncErr := tmpFile.Sync()
	closeErr := tmpFile.Close()
	switch {
	case writeErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint: %w", writeErr)
	case syncErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("syncing checkpoint: %w", syncErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	syncDir(dir)

	s.log.Debug("checkpoint saved", "path", s.path,
		"judged", len(snapshot.JudgedPaperIDs), "batch_index", snapshot.BatchIndex)
	return nil
}

// Clear removes the checkpoint file. A missing file is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	if err == nil {
		s.log.Info("checkpoint cleared", "path", s.path)
	}
	return nil
}

// Preserve moves the current checkpoint aside to
// "<path>.<reason>-<timestamp>" so that a run that will not reuse it cannot
// overwrite it. It returns the new path, or "" when there was nothing to move.
func (s *Store) Preserve(reason string) (string, error) {
	if !s.Exists() {
		return "", nil
	}
	dest := fmt.Sprintf("%s.%s-%s", s.path, reason, now().UTC().Format("20060102T150405Z"))
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dest = fmt.Sprintf("%s.%s-%s.%d", s.path, reason, now().UTC().Format("20060102T150405Z"), i)
	}
	if err := rename(s.path, dest); err != nil {
		return "", fmt.Errorf("preserving checkpoint: %w", err)
	}
	s.log.Warn("existing checkpoint moved aside", "reason", reason, "path", dest)
	return dest, nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports syncing a directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
