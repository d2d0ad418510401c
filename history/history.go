// Package history keeps a small most-recent-first list of successful
// lookups behind an injected blob store, mirroring what the web client
// keeps in browser local storage.
package history

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cap is the maximum number of entries retained; older entries are
// silently evicted.
const Cap = 5

const defaultKey = "download_history"

// Store is the get/set/remove capability the list persists through.
type Store interface {
	Get(key string) ([]byte, error) // nil, nil when absent
	Set(key string, value []byte) error
	Remove(key string) error
}

type Entry struct {
	SourceURL   string      `json:"url"`
	Timestamp   time.Time   `json:"timestamp"`
	Kind        string      `json:"kind"`
	Title       string      `json:"title"`
	DownloadURL string      `json:"downloadUrl"`
	ThumbURL    string      `json:"thumbnail,omitempty"`
	Picker      []PickerRef `json:"picker,omitempty"`
}

type PickerRef struct {
	URL  string `json:"url"`
	Kind string `json:"type"`
}

type List struct {
	mu    sync.Mutex
	store Store
	key   string
}

func New(store Store) *List {
	return &List{store: store, key: defaultKey}
}

// Add prepends an entry. A repeated source URL replaces the earlier entry
// and moves it to the front instead of duplicating it.
func (l *List) Add(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return err
	}

	kept := make([]Entry, 0, len(entries)+1)
	kept = append(kept, e)
	for _, old := range entries {
		if old.SourceURL == e.SourceURL {
			continue
		}
		kept = append(kept, old)
	}
	if len(kept) > Cap {
		kept = kept[:Cap]
	}

	return l.save(kept)
}

func (l *List) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *List) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Remove(l.key)
}

func (l *List) load() ([]Entry, error) {
	b, err := l.store.Get(l.key)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("unmarshaling history: %w", err)
	}
	return entries, nil
}

func (l *List) save(entries []Entry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	if err := l.store.Set(l.key, b); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}
