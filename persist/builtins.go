package persist

import (
	"context"

	"github.com/brettbedarf/treefs/config"
)

// RegisterBuiltins registers all built-in backends by default
// or only the specific ones if keys are provided
func RegisterBuiltins(types ...string) {
	if len(types) == 0 {
		types = append(types, config.StorageNone, config.StorageFile, config.StorageBadger, config.StorageS3)
	}

	for _, key := range types {
		switch key {
		case config.StorageNone:
			Register(config.StorageNone, func(_ context.Context, _ map[string]any, codec Codec) (Backend, error) {
				return NewMemoryBackend(codec), nil
			})
		case config.StorageFile:
			Register(config.StorageFile, openFileBackend)
		case config.StorageBadger:
			Register(config.StorageBadger, openBadgerBackend)
		case config.StorageS3:
			Register(config.StorageS3, openS3Backend)
		}
	}
}
