// Package history keeps per-feature, most-recent-first lists of past
// generation results, persisted through an injected key-value capability.
// Persistence failures from capacity limits are absorbed by pruning the
// oldest entries until the write fits; they are never raised to the caller.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// KV is the injected persistence capability. Implementations must be safe
// for concurrent use. Get returns found=false (not an error) for a missing
// key; Set may reject oversized values with ErrValueTooLarge (wrapped).
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ErrValueTooLarge signals that a Set exceeded the backend's capacity for a
// single value. The stores respond by pruning and retrying; every other Set
// error is terminal for that write.
var ErrValueTooLarge = errors.New("value exceeds storage capacity")

// MemKV is an in-memory KV, used by tests and as a fallback when no state
// directory is configured. MaxValueBytes of zero means unlimited.
type MemKV struct {
	MaxValueBytes int

	mu     sync.Mutex
	values map[string][]byte
}

// NewMemKV creates an empty in-memory store.
func NewMemKV(maxValueBytes int) *MemKV {
	return &MemKV{
		MaxValueBytes: maxValueBytes,
		values:        make(map[string][]byte),
	}
}

// Get returns the stored value for key, if any.
func (m *MemKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

// Set stores value under key, enforcing the configured capacity.
func (m *MemKV) Set(ctx context.Context, key string, value []byte) error {
	if m.MaxValueBytes > 0 && len(value) > m.MaxValueBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrValueTooLarge, len(value), m.MaxValueBytes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.values[key] = cp
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
