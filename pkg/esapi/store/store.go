// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-esapi.
//
// go-esapi is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package store persists saved TPM contexts as named blobs.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-esapi/pkg/logging"
)

// FSEXT_TPM_CONTEXT is the file extension of a saved context blob.
const FSEXT_TPM_CONTEXT = ".ctx"

var (
	ErrBlobNotFound    = errors.New("store: blob not found")
	ErrBlobExists      = errors.New("store: blob already exists")
	ErrInvalidBlobName = errors.New("store: invalid blob name")
)

// BlobStore holds marshalled TPMS_CONTEXT blobs by name.
type BlobStore interface {
	Get(name string) ([]byte, error)
	Save(name string, data []byte, overwrite bool) error
	Delete(name string) error
	List() ([]string, error)
}

// FileStore is a BlobStore backed by a directory on an afero filesystem.
type FileStore struct {
	logger *logging.Logger
	fs     afero.Fs
	dir    string
}

// NewFileStore creates a file based blob store rooted at dir.
func NewFileStore(logger *logging.Logger, fs afero.Fs, dir string) *FileStore {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &FileStore{
		logger: logger,
		fs:     fs,
		dir:    dir,
	}
}

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBlobName, name)
	}
	return filepath.Join(s.dir, name+FSEXT_TPM_CONTEXT), nil
}

// Get reads a saved context blob.
func (s *FileStore) Get(name string) ([]byte, error) {
	filename, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, name)
		}
		return nil, fmt.Errorf("failed to read context blob %s: %w", filename, err)
	}
	return data, nil
}

// Save writes a saved context blob. Existing blobs are only replaced when
// overwrite is set.
func (s *FileStore) Save(name string, data []byte, overwrite bool) error {
	filename, err := s.path(name)
	if err != nil {
		return err
	}

	if !overwrite {
		exists, err := afero.Exists(s.fs, filename)
		if err != nil {
			return fmt.Errorf("failed to check file existence %s: %w", filename, err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrBlobExists, name)
		}
	}

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	if err := afero.WriteFile(s.fs, filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write context blob %s: %w", filename, err)
	}
	s.logger.Debug("saved context blob", "name", name, "bytes", len(data))
	return nil
}

// Delete scrubs and removes a saved context blob. Deleting a missing blob
// is not an error.
func (s *FileStore) Delete(name string) error {
	filename, err := s.path(name)
	if err != nil {
		return err
	}

	// overwrite the sealed context before unlinking it
	if info, err := s.fs.Stat(filename); err == nil && info.Mode().IsRegular() {
		zeros := make([]byte, info.Size())
		if err := afero.WriteFile(s.fs, filename, zeros, 0600); err != nil {
			s.logger.Warnf("failed to scrub %s: %v", filename, err)
		}
	}

	if err := s.fs.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete context blob %s: %w", filename, err)
	}
	return nil
}

// List returns the names of every saved blob in lexical order.
func (s *FileStore) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FSEXT_TPM_CONTEXT) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), FSEXT_TPM_CONTEXT))
	}
	sort.Strings(names)
	return names, nil
}
