package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Feature keys. Each render task keeps its own list; masked edits share one.
const (
	KeyExterior = "history:exterior"
	KeyInterior = "history:interior"
	KeyFacade   = "history:facade"
	KeyPlanning = "history:planning"
	KeyStaging  = "history:staging"
	KeyUpscale  = "history:upscale"
	KeyEdit     = "history:edit"
	KeyTour     = "history:tour"
)

// Prune step sizes. Render entries carry several images each, so two at a
// time frees space quickly; edit entries carry one result image, so three.
const (
	renderPruneStep = 2
	editPruneStep   = 3
)

// Image is one stored image payload.
type Image struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// RenderItem is one completed generation batch.
type RenderItem struct {
	ID        int64   `json:"id"`
	Timestamp string  `json:"timestamp"`
	Prompt    string  `json:"prompt"`
	Images    []Image `json:"images"`
}

// EntryID implements Entry.
func (r RenderItem) EntryID() int64 { return r.ID }

// EditItem is one completed masked edit, with enough context to replay it.
type EditItem struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Prompt    string `json:"prompt"`
	Source    Image  `json:"source"`
	Mask      Image  `json:"mask"`
	Result    Image  `json:"result"`
}

// EntryID implements Entry.
func (e EditItem) EntryID() int64 { return e.ID }

// Entry is anything a Store can keep and look up by id.
type Entry interface {
	EntryID() int64
}

// NewItemID returns a creation id for a history entry. Millisecond
// timestamps keep ids ordered and unique enough for a single workspace.
func NewItemID() int64 {
	return time.Now().UnixMilli()
}

// Timestamp formats the display time stored alongside each entry.
func Timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// Store keeps one feature's most-recent-first list in memory and mirrors
// every mutation to the KV. A capacity failure on write shrinks the tail,
// pruneStep entries per attempt, until the write fits or the list is empty;
// an empty list deletes the key. Capacity failures never reach the caller.
type Store[T Entry] struct {
	kv        KV
	key       string
	pruneStep int

	mu    sync.Mutex
	items []T
}

// NewRenderStore returns the history list for one render feature key.
func NewRenderStore(kv KV, key string) *Store[RenderItem] {
	return &Store[RenderItem]{kv: kv, key: key, pruneStep: renderPruneStep}
}

// NewEditStore returns the shared masked-edit history list.
func NewEditStore(kv KV) *Store[EditItem] {
	return &Store[EditItem]{kv: kv, key: KeyEdit, pruneStep: editPruneStep}
}

// Load hydrates the in-memory list from the KV. A corrupt payload is
// discarded rather than wedging the feature.
func (s *Store[T]) Load(ctx context.Context) error {
	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("Discarding corrupt history payload")
		return nil
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// Record prepends item and persists the list. Persistence failures are
// logged, never returned; the in-memory list keeps the entry either way.
func (s *Store[T]) Record(ctx context.Context, item T) {
	s.mu.Lock()
	s.items = append([]T{item}, s.items...)
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// Items returns a copy of the list, newest first.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]T, len(s.items))
	copy(cp, s.items)
	return cp
}

// Len reports the current entry count.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Find returns the entry with the given id, if present.
func (s *Store[T]) Find(id int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.EntryID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Clear empties the list and removes the persisted key.
func (s *Store[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	return s.kv.Delete(ctx, s.key)
}

// persistLocked writes the current list, pruning the oldest entries on
// capacity failures. Callers hold s.mu.
func (s *Store[T]) persistLocked(ctx context.Context) {
	for len(s.items) > 0 {
		data, err := json.Marshal(s.items)
		if err != nil {
			log.Error().Err(err).Str("key", s.key).Msg("Failed to serialize history")
			return
		}

		err = s.kv.Set(ctx, s.key, data)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrValueTooLarge) {
			log.Error().Err(err).Str("key", s.key).Msg("Failed to persist history")
			return
		}

		drop := s.pruneStep
		if drop > len(s.items) {
			drop = len(s.items)
		}
		s.items = s.items[:len(s.items)-drop]
		log.Warn().
			Str("key", s.key).
			Int("dropped", drop).
			Int("remaining", len(s.items)).
			Msg("History over capacity, pruned oldest entries")
	}

	// Nothing fits. Remove the key so a stale oversized payload is not
	// left behind.
	if err := s.kv.Delete(ctx, s.key); err != nil {
		log.Error().Err(err).Str("key", s.key).Msg("Failed to delete emptied history")
	}
}
