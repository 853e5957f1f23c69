package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tour holds the virtual-tour frame sequence with a cursor for linear
// undo/redo. Appending after an undo discards the frames past the cursor,
// so redo never resurrects an abandoned branch. Undo at the first frame is
// a no-op rather than an error.
type Tour struct {
	kv KV

	mu     sync.Mutex
	frames []Image
	pos    int
}

// tourState is the persisted shape.
type tourState struct {
	Frames   []Image `json:"frames"`
	Position int     `json:"position"`
}

// NewTour returns an empty tour backed by kv.
func NewTour(kv KV) *Tour {
	return &Tour{kv: kv, pos: -1}
}

// Load hydrates the tour from the KV, clamping a cursor that no longer
// points inside the frame list.
func (t *Tour) Load(ctx context.Context) error {
	data, found, err := t.kv.Get(ctx, KeyTour)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	var state tourState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Err(err).Msg("Discarding corrupt tour payload")
		return nil
	}

	t.mu.Lock()
	t.frames = state.Frames
	t.pos = state.Position
	if t.pos >= len(t.frames) {
		t.pos = len(t.frames) - 1
	}
	if t.pos < 0 && len(t.frames) > 0 {
		t.pos = 0
	}
	t.mu.Unlock()
	return nil
}

// Current returns the frame under the cursor.
func (t *Tour) Current() (Image, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pos < 0 || t.pos >= len(t.frames) {
		return Image{}, false
	}
	return t.frames[t.pos], true
}

// Position reports the cursor index and frame count.
func (t *Tour) Position() (pos, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos, len(t.frames)
}

// Append adds a frame after the cursor, truncating any undone tail, and
// moves the cursor to it.
func (t *Tour) Append(ctx context.Context, frame Image) {
	t.mu.Lock()
	t.frames = append(t.frames[:t.pos+1], frame)
	t.pos = len(t.frames) - 1
	t.persistLocked(ctx)
	t.mu.Unlock()
}

// Undo steps the cursor back one frame. Returns false when already at the
// first frame or the tour is empty.
func (t *Tour) Undo(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pos <= 0 {
		return false
	}
	t.pos--
	t.persistLocked(ctx)
	return true
}

// Redo steps the cursor forward one frame. Returns false at the newest
// frame.
func (t *Tour) Redo(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pos >= len(t.frames)-1 {
		return false
	}
	t.pos++
	t.persistLocked(ctx)
	return true
}

// Reset discards all frames and removes the persisted key.
func (t *Tour) Reset(ctx context.Context) error {
	t.mu.Lock()
	t.frames = nil
	t.pos = -1
	t.mu.Unlock()
	return t.kv.Delete(ctx, KeyTour)
}

// persistLocked mirrors the tour to the KV. Over-capacity writes drop the
// oldest frame and pull the cursor along; other failures are logged and the
// in-memory state stands. Callers hold t.mu.
func (t *Tour) persistLocked(ctx context.Context) {
	for len(t.frames) > 0 {
		data, err := json.Marshal(tourState{Frames: t.frames, Position: t.pos})
		if err != nil {
			log.Error().Err(err).Msg("Failed to serialize tour")
			return
		}

		err = t.kv.Set(ctx, KeyTour, data)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrValueTooLarge) {
			log.Error().Err(err).Msg("Failed to persist tour")
			return
		}

		t.frames = t.frames[1:]
		if t.pos > 0 {
			t.pos--
		}
		log.Warn().Int("remaining", len(t.frames)).Msg("Tour over capacity, dropped oldest frame")
	}

	t.pos = -1
	if err := t.kv.Delete(ctx, KeyTour); err != nil {
		log.Error().Err(err).Msg("Failed to delete emptied tour")
	}
}
