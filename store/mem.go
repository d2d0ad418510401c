package store

import (
	"context"
	"io/fs"
	"sync"
)

var _ Store = (*MemStore)(nil)

type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMem() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (m *MemStore) String() string { return "in-memory store" }

func (m *MemStore) Close() error { return nil }

func (m *MemStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validateSimpleFilename(name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemStore) Put(ctx context.Context, name string, content []byte) error {
	if err := validateSimpleFilename(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b := make([]byte, len(content))
	copy(b, content)
	m.blobs[name] = b
	return nil
}
