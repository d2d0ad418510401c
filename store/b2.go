package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"path/filepath"

	blazer "github.com/Backblaze/blazer/b2"
)

var _ Store = (*B2Store)(nil)

type B2Store struct {
	bucket *blazer.Bucket
}

func NewB2(ctx context.Context, config *url.URL) (*B2Store, error) {
	keyID := config.User.Username()
	appKey, _ := config.User.Password()
	bucketName := config.Hostname()

	client, err := blazer.NewClient(ctx, keyID, appKey)
	if err != nil {
		return nil, fmt.Errorf("creating blazer/b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("getting b2 bucket: %w", err)
	}

	return &B2Store{bucket: bucket}, nil
}

func (b2 *B2Store) String() string {
	return fmt.Sprintf("b2 %q bucket", b2.bucket.Name())
}

func (b2 *B2Store) Close() error {
	return nil
}

func (b2 *B2Store) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validateSimpleFilename(name); err != nil {
		return nil, err
	}

	r := b2.bucket.Object(name).NewReader(ctx)
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		if blazer.IsNotExist(err) {
			return nil, fs.ErrNotExist
		}
		return nil, fmt.Errorf("reading %q from b2: %w", name, err)
	}

	return b, nil
}

func (b2 *B2Store) Put(ctx context.Context, name string, content []byte) error {
	if err := validateSimpleFilename(name); err != nil {
		return err
	}

	attrs := blazer.Attrs{}
	if ext := filepath.Ext(name); ext != "" {
		attrs.ContentType = mime.TypeByExtension(ext)
	}

	obj := b2.bucket.Object(name)
	writer := obj.NewWriter(ctx, blazer.WithAttrsOption(&attrs))
	writer.UseFileBuffer = false

	if _, err := writer.ReadFrom(bytes.NewReader(content)); err != nil {
		writer.Close()
		return fmt.Errorf("copying %q to b2: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing b2 file: %w", err)
	}

	return nil
}
