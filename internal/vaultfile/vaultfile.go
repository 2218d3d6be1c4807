// Package vaultfile reads and writes encrypted vault blobs on disk.
// The blob is opaque here; all cryptography lives in pkg/vault.
package vaultfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileMode is the permission of every vault file written by pman.
const FileMode os.FileMode = 0o600

var (
	// ErrNotFound is returned when the vault file does not exist
	ErrNotFound = errors.New("vaultfile: vault file not found")
	// ErrExists is returned by Create when the target already exists
	ErrExists = errors.New("vaultfile: vault file already exists")
)

// Read returns the full contents of the vault file at path.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("vaultfile: read %s: %w", path, err)
	}
	return data, nil
}

// Create writes blob to a new file at path. It never overwrites.
func Create(path string, blob []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("vaultfile: create %s: %w", path, err)
	}

	if _, err := f.Write(blob); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("vaultfile: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("vaultfile: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("vaultfile: close %s: %w", path, err)
	}
	return nil
}

// Write atomically replaces the file at path with blob. The data goes to a
// temp file in the same directory which is synced and renamed over path,
// so a failure at any step leaves the previous contents in place.
func Write(path string, blob []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("vaultfile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("vaultfile: write temp file: %w", err)
	}

	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("vaultfile: chmod temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("vaultfile: sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vaultfile: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vaultfile: replace %s: %w", path, err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Errors are ignored:
// not every platform supports fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
