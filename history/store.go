package history

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

var _ Store = (*MemStore)(nil)

type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (m *MemStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[key], nil
}

func (m *MemStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make([]byte, len(value))
	copy(b, value)
	m.blobs[key] = b
	return nil
}

func (m *MemStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

var _ Store = (*FileStore)(nil)

// FileStore persists each key as a JSON file next to Path. One file per
// key is plenty at this scale; last write wins, same as concurrent
// browser tabs.
type FileStore struct {
	Path string
}

func (f *FileStore) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

func (f *FileStore) Set(key string, value []byte) error {
	return os.WriteFile(f.Path, value, 0o644)
}

func (f *FileStore) Remove(key string) error {
	err := os.Remove(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
