package persist

import (
	"context"
	"fmt"
	"sync"

	"github.com/brettbedarf/treefs/config"
)

// Factory opens a Backend from its decoded-at-will options map
type Factory func(ctx context.Context, opts map[string]any, codec Codec) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register ties a Factory to a storage "type" key and should be called for
// each backend type during app init
func Register(backendType string, factory Factory) {
	mu.Lock()
	factories[backendType] = factory
	mu.Unlock()
}

// Open picks the factory registered for cfg.Type and opens the backend.
// All expected backend types should be registered with [Register] (or
// [RegisterBuiltins]) before calling this function.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	mu.RLock()
	f, ok := factories[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for %q", cfg.Type)
	}
	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	b, err := f(ctx, cfg.Options, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Type, err)
	}
	return b, nil
}
