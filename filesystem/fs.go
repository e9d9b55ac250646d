// Package filesystem implements the in-memory namespace: the node store,
// path resolution, namespace and link operations, the open-file state
// machine and snapshot conversion for the persist package.
package filesystem

import (
	"sync"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/google/uuid"
)

const (
	// DefaultRootPerm is the permission value of a fresh root directory
	DefaultRootPerm treefs.Perm = 755

	// SymlinkPerm is the permission value given to every new symbolic link
	SymlinkPerm treefs.Perm = 777

	// MaxSymlinkHops bounds symbolic link chasing during resolution
	MaxSymlinkHops = 40
)

// FileSystem is one namespace session: a tree plus its current-directory
// cursor. Mutating operations hold the write lock for their full duration,
// read-only operations the read lock.
type FileSystem struct {
	cfg    *config.Config
	mu     sync.RWMutex
	st     *store
	cwd    treefs.NodeID
	treeID string // identifies the tree across saves
}

// NewFS creates a namespace holding only an empty root directory
func NewFS(cfg *config.Config) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	fs := &FileSystem{cfg: cfg}
	fs.resetLocked()
	return fs
}

// resetLocked replaces the tree with a fresh root. Caller must hold fs.mu
// for writing (or own fs exclusively).
func (fs *FileSystem) resetLocked() {
	fs.st = newStore(fs.cfg.MaxChildren, DefaultRootPerm)
	fs.cwd = treefs.RootID
	fs.treeID = uuid.NewString()
}

// Config returns the configuration the namespace was created with
func (fs *FileSystem) Config() *config.Config {
	return fs.cfg
}

// TreeID returns the uuid identifying this tree; preserved by Save/Load
func (fs *FileSystem) TreeID() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.treeID
}

// cursor returns the current directory, falling back to the root
func (fs *FileSystem) cursor() *Node {
	if n, ok := fs.st.get(fs.cwd); ok {
		return n
	}
	return fs.st.root
}
