package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/brettbedarf/treefs/internal/util"
	"github.com/mitchellh/mapstructure"
)

// FileBackendConfig are the "file" storage options
type FileBackendConfig struct {
	Path string `mapstructure:"path"`
}

// FileBackend keeps the encoded snapshot in a single local file
type FileBackend struct {
	path  string
	codec Codec
}

func openFileBackend(_ context.Context, opts map[string]any, codec Codec) (Backend, error) {
	var cfg FileBackendConfig
	if err := mapstructure.Decode(opts, &cfg); err != nil {
		return nil, fmt.Errorf("invalid file storage options: %w", err)
	}
	return NewFileBackend(cfg.Path, codec)
}

// NewFileBackend prepares the directory holding path. The file itself is
// only created on the first Save.
func NewFileBackend(path string, codec Codec) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("file storage requires a path")
	}
	if codec == nil {
		codec = XDRCodec{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{path: path, codec: codec}, nil
}

// Path returns the snapshot file location
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Save(ctx context.Context, snap *Snapshot) error {
	logger := util.GetLogger("FileBackend.Save")
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := b.codec.Encode(&buf, snap); err != nil {
		return err
	}

	// write next to the target then rename so a failed write keeps the old tree
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	logger.Debug().Str("path", b.path).Int("bytes", buf.Len()).Str("codec", b.codec.Name()).Msg("Saved snapshot")
	return nil
}

func (b *FileBackend) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	defer f.Close()
	return b.codec.Decode(f)
}

func (b *FileBackend) Close() error { return nil }
