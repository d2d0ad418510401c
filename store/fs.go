package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
)

var _ Store = (*FSStore)(nil)

type FSStore struct {
	root *os.Root
}

func NewFS(config *url.URL) (*FSStore, error) {
	path := config.Host + config.Path

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("opening root: %w", err)
	}

	return &FSStore{root: root}, nil
}

func (f *FSStore) String() string {
	return fmt.Sprintf("filesystem store at %s", f.root.Name())
}

func (f *FSStore) Close() error {
	return f.root.Close()
}

func (f *FSStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validateSimpleFilename(name); err != nil {
		return nil, err
	}
	return f.root.ReadFile(name)
}

func (f *FSStore) Put(ctx context.Context, name string, content []byte) error {
	if err := validateSimpleFilename(name); err != nil {
		return err
	}
	return f.root.WriteFile(name, content, os.FileMode(0o644))
}
