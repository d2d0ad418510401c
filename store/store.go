// Package store is a small named-blob store used as the transcript cache.
// Backends are selected by a URL: fs://path, b2://keyID:appKey@bucket,
// mem:// (tests).
package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
)

type Store interface {
	io.Closer
	fmt.Stringer
	// Get returns fs.ErrNotExist (wrapped) when the blob is missing.
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, content []byte) error
}

func New(ctx context.Context, rawURL string) (Store, error) {
	config, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing store url: %w", err)
	}

	switch config.Scheme {
	case "fs":
		return NewFS(config)
	case "b2":
		return NewB2(ctx, config)
	case "mem":
		return NewMem(), nil
	default:
		return nil, fmt.Errorf("unknown store scheme: %s", config.Scheme)
	}
}

func validateSimpleFilename(filename string) error {
	if filepath.Base(filename) != filename {
		return fmt.Errorf("filename %q must not contain path separators", filename)
	}
	return nil
}
