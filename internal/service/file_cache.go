package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// snapshotVersion changes whenever Result gains or loses fields that a
// restarted server cannot read back safely.
const snapshotVersion = 1

// CacheData is the persisted snapshot of the last successful build.
type CacheData struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Result    *Result   `json:"result"`
}

// Age reports how old the snapshot is.
func (d *CacheData) Age() time.Duration {
	return time.Since(d.Timestamp).Round(time.Second)
}

// FileCache keeps the last build result on disk so a restarted server can
// answer before its first refresh completes.
type FileCache struct {
	mu     sync.RWMutex
	path   string
	logger Logger
}

// NewFileCache creates a snapshot store at path.
func NewFileCache(path string, logger Logger) *FileCache {
	return &FileCache{path: path, logger: logger}
}

// Load returns the stored snapshot, or nil when there is none or it was
// written by an incompatible version.
func (c *FileCache) Load() (*CacheData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", c.path, err)
	}

	var data CacheData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", c.path, err)
	}
	if data.Version != snapshotVersion || data.Result == nil {
		c.logger.Printf("Snapshot %s ignored (version %d)", c.path, data.Version)
		return nil, nil
	}

	c.logger.Printf("Snapshot loaded from %s (age: %v)", c.path, data.Age())
	return &data, nil
}

// Save replaces the snapshot with result. The new file is written next to
// the old one and renamed over it, so readers never see a partial snapshot.
func (c *FileCache) Save(result *Result) error {
	if result == nil {
		return errors.New("refusing to store an empty snapshot")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.MarshalIndent(CacheData{
		Version:   snapshotVersion,
		Timestamp: time.Now(),
		Result:    result,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	_, writeErr := tmp.Write(raw)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	return nil
}
