package filesystem

import (
	"slices"
	"testing"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Storage = config.StorageConfig{Type: config.StorageNone}
	return cfg
}

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()
	return NewFS(createTestConfig())
}

// listNames collects the names listed at p
func listNames(t *testing.T, fs *FileSystem, p string) []string {
	t.Helper()
	seq, err := fs.List(p)
	require.NoError(t, err)
	var names []string
	for e := range seq {
		names = append(names, e.Name)
	}
	return names
}

func listEntries(t *testing.T, fs *FileSystem, p string) []treefs.Entry {
	t.Helper()
	seq, err := fs.List(p)
	require.NoError(t, err)
	return slices.Collect(seq)
}

// writeFile creates p (if needed) with perm 644 and writes data to it
func writeFile(t *testing.T, fs *FileSystem, p string, data string) {
	t.Helper()
	if _, _, err := fs.Stat(p); err != nil {
		require.NoError(t, fs.Create(p, 644))
	}
	require.NoError(t, fs.Open(p, treefs.ModeWrite))
	require.NoError(t, fs.Write(p, []byte(data)))
	require.NoError(t, fs.Close(p))
}

// readFile opens p for reading and returns its full content
func readFile(t *testing.T, fs *FileSystem, p string) string {
	t.Helper()
	require.NoError(t, fs.Open(p, treefs.ModeRead))
	defer func() { require.NoError(t, fs.Close(p)) }()
	data, err := fs.Read(p, 1<<20)
	require.NoError(t, err)
	return string(data)
}
