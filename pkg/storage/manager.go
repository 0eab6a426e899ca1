package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrRunInProgress is returned by Lock when another run holds the asset lock
var ErrRunInProgress = errors.New("another run for this asset is in progress")

// Manager owns the on-disk tree {base}/{asset_uid}/{submission_uuid}/{file}
type Manager struct {
	baseDir  string
	assetUID string
	lock     *flock.Flock
}

// NewManager creates a storage manager rooted at baseDir. The asset
// directory itself is only created once a submission needs it.
func NewManager(baseDir, assetUID string) (*Manager, error) {
	if err := checkSegment(assetUID); err != nil {
		return nil, fmt.Errorf("invalid asset uid: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		baseDir:  baseDir,
		assetUID: assetUID,
		lock:     flock.New(filepath.Join(baseDir, assetUID+".lock")),
	}, nil
}

// Lock takes the per-asset advisory lock without blocking
func (m *Manager) Lock() error {
	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire asset lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

// Unlock releases the asset lock
func (m *Manager) Unlock() error {
	return m.lock.Unlock()
}

// AssetDir returns {base}/{asset_uid}
func (m *Manager) AssetDir() string {
	return filepath.Join(m.baseDir, m.assetUID)
}

// SubmissionDir returns {base}/{asset_uid}/{uuid}
func (m *Manager) SubmissionDir(uuid string) string {
	return filepath.Join(m.AssetDir(), uuid)
}

// EnsureSubmissionDir creates the directory for a submission if needed
func (m *Manager) EnsureSubmissionDir(uuid string) (string, error) {
	if err := checkSegment(uuid); err != nil {
		return "", fmt.Errorf("invalid submission uuid: %w", err)
	}

	dir := m.SubmissionDir(uuid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create submission directory: %w", err)
	}
	return dir, nil
}

// Exists reports whether something is already present at path
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save writes a file through write into a temp file next to path and
// renames it into place. On any error the temp file is removed and
// nothing appears at path.
func (m *Manager) Save(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempName := tmp.Name()

	writeErr := write(tmp)
	closeErr := tmp.Close()

	if writeErr != nil {
		os.Remove(tempName)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tempName)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func checkSegment(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return fmt.Errorf("%q is not a usable directory name", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("%q contains a path separator", s)
	}
	return nil
}
