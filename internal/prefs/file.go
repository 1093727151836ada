package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileStore persists preferences as a flat TOML table. Every Apply rewrites the
// file through a temp file, fsync and rename so readers never see a partial batch.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// NewFileStore loads the preferences at path. A missing file is an empty store.
//
// Values of any TOML type load as their string form; interpreting them is up to
// the reader.
func NewFileStore(path string) (*FileStore, error) {
	raw := make(map[string]any)
	if _, err := toml.DecodeFile(path, &raw); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, storageErr("load", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			values[k] = v
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return &FileStore{path: path, values: values}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FileStore) All() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values), nil
}

// Apply writes the batch to disk before it becomes visible in memory.
func (s *FileStore) Apply(set map[string]string, del []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := applyBatch(s.values, set, del)
	if err := writeFile(s.path, next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func writeFile(path string, values map[string]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return storageErr("create directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.tmp")
	if err != nil {
		return storageErr("create temp file", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(values); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("encode", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageErr("close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return storageErr("rename", err)
	}
	return nil
}
