package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(url string) Entry {
	return Entry{
		SourceURL:   url,
		Timestamp:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Kind:        "video",
		Title:       "clip",
		DownloadURL: "/api/proxy?url=" + url,
	}
}

func TestAddCapsAtFiveMostRecentFirst(t *testing.T) {
	l := New(NewMemStore())

	for i := 1; i <= 7; i++ {
		require.NoError(t, l.Add(entry(fmt.Sprintf("https://x.test/p/%d", i))))
	}

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, Cap)

	// newest first, the two oldest evicted
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("https://x.test/p/%d", 7-i), e.SourceURL)
	}
}

func TestAddDeduplicatesBySourceURL(t *testing.T) {
	l := New(NewMemStore())

	require.NoError(t, l.Add(entry("https://x.test/p/1")))
	require.NoError(t, l.Add(entry("https://x.test/p/2")))

	repeat := entry("https://x.test/p/1")
	repeat.Title = "updated"
	require.NoError(t, l.Add(repeat))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://x.test/p/1", entries[0].SourceURL)
	assert.Equal(t, "updated", entries[0].Title)
	assert.Equal(t, "https://x.test/p/2", entries[1].SourceURL)
}

func TestClearRemovesEverything(t *testing.T) {
	l := New(NewMemStore())
	require.NoError(t, l.Add(entry("https://x.test/p/1")))
	require.NoError(t, l.Clear())

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStorePersistsAcrossLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	l := New(&FileStore{Path: path})
	require.NoError(t, l.Add(entry("https://x.test/p/1")))

	reopened := New(&FileStore{Path: path})
	entries, err := reopened.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://x.test/p/1", entries[0].SourceURL)
}

func TestEmptyStoreYieldsNoEntries(t *testing.T) {
	l := New(&FileStore{Path: filepath.Join(t.TempDir(), "missing.json")})
	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
