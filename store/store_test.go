package store

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, "fs://"+t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Get(ctx, "missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, s.Put(ctx, "tr_abc.json", []byte(`{"raw_transcript":"hi"}`)))
	b, err := s.Get(ctx, "tr_abc.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"raw_transcript":"hi"}`), b)
}

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMem()

	_, err := s.Get(ctx, "missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, s.Put(ctx, "a.json", []byte("x")))
	b, err := s.Get(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), b)
}

func TestStoreRejectsPathSeparators(t *testing.T) {
	ctx := context.Background()
	s := NewMem()

	assert.Error(t, s.Put(ctx, "../escape.json", []byte("x")))
	_, err := s.Get(ctx, "a/b.json")
	assert.Error(t, err)
}

func TestNewRejectsUnknownScheme(t *testing.T) {
	_, err := New(context.Background(), "redis://localhost")
	assert.Error(t, err)
}
