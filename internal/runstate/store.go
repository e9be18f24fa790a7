package runstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrNoState is returned by Load when no snapshot has been written yet.
var ErrNoState = errors.New("no run state recorded")

// FileStore keeps a single snapshot at a fixed path, overwritten on every save.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a store for path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the snapshot file path.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes snap as indented JSON, replacing any previous content.
func (f *FileStore) Save(_ context.Context, snap *Snapshot) (err error) {
	if snap == nil {
		return errors.New("snapshot cannot be nil")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	err = os.WriteFile(f.path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	f.logger.Info("run-state-saved",
		zap.String("path", f.path),
		zap.String("run-id", snap.RunID))

	return nil
}

// Load reads the last snapshot.
func (f *FileStore) Load(_ context.Context) (snap *Snapshot, err error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	snap = &Snapshot{}
	err = json.Unmarshal(data, snap)
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return snap, nil
}
