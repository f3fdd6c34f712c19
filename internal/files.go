package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sensiblebit/certpack"
)

// File modes for written outputs.
const (
	ModePublic os.FileMode = 0644
	ModeSecret os.FileMode = 0600
)

// CheckInputs returns an *certpack.InputNotFoundError for the first path
// that does not exist.
func CheckInputs(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &certpack.InputNotFoundError{Path: p}
			}
			return fmt.Errorf("checking %s: %w", p, err)
		}
	}
	return nil
}

// ReadInput reads a required input file.
func ReadInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &certpack.InputNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path through a temporary file in the same
// directory, so readers never observe a partially written file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// Base64 encodes data as standard padded base64 on a single line.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// SidecarPath returns the path of the base64 sidecar written next to path.
func SidecarPath(path string) string {
	return path + ".b64"
}

// WriteSidecar writes the base64 encoding of data next to path and returns
// the sidecar path. The sidecar decodes to the container, so it gets the
// same mode.
func WriteSidecar(path string, data []byte, perm os.FileMode) (string, error) {
	sidecar := SidecarPath(path)
	if err := WriteFile(sidecar, []byte(Base64(data)), perm); err != nil {
		return "", err
	}
	return sidecar, nil
}
