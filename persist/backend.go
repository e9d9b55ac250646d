package persist

import (
	"bytes"
	"context"
	"sync"
)

// Backend is a storage medium holding at most one Snapshot.
// Save replaces whatever was stored; it is not crash-consistent.
type Backend interface {
	// Save stores snap, replacing any previous tree
	Save(ctx context.Context, snap *Snapshot) error

	// Load returns the stored tree or ErrNotExist if nothing was saved.
	// Unreadable data yields an error wrapping ErrCorrupt.
	Load(ctx context.Context) (*Snapshot, error)

	// Close releases the medium
	Close() error
}

// MemoryBackend keeps the encoded snapshot in process memory.
// Backs the "none" storage type and tests.
type MemoryBackend struct {
	codec Codec
	data  []byte
	mu    sync.Mutex
}

// NewMemoryBackend creates an empty MemoryBackend; a nil codec selects xdr
func NewMemoryBackend(codec Codec) *MemoryBackend {
	if codec == nil {
		codec = XDRCodec{}
	}
	return &MemoryBackend{codec: codec}
}

func (m *MemoryBackend) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := m.codec.Encode(&buf, snap); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = buf.Bytes()
	return nil
}

func (m *MemoryBackend) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotExist
	}
	return m.codec.Decode(bytes.NewReader(m.data))
}

// Bytes returns the raw encoded data (nil if never saved)
func (m *MemoryBackend) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// SetBytes replaces the raw encoded data
func (m *MemoryBackend) SetBytes(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

func (m *MemoryBackend) Close() error { return nil }
