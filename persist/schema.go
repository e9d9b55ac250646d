// Package persist stores and restores whole namespace trees.
//
// A tree is captured as a [Snapshot]: an explicit schema keyed by stable
// node and inode ids rather than by in-memory addresses. Snapshots are
// encoded by a [Codec] and kept by a [Backend] (local file, badger, s3).
package persist

import (
	"errors"
	"fmt"
)

// Magic identifies treefs snapshot data. FormatVersion is bumped on any
// incompatible schema change; loads reject versions they don't know.
const (
	Magic                = "TRFS"
	FormatVersion uint32 = 1
)

var (
	// ErrNotExist is returned by Backend.Load when nothing has been saved yet
	ErrNotExist = errors.New("persist: no stored tree")

	// ErrCorrupt is returned when stored data cannot be decoded or fails
	// integrity checks
	ErrCorrupt = errors.New("persist: stored tree is corrupt")
)

// corruptf wraps ErrCorrupt with detail
func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// Snapshot is the serialized form of a whole tree
type Snapshot struct {
	Version uint32 `yaml:"version"`
	TreeID  string `yaml:"tree_id"`  // uuid of the tree; stable across saves
	SavedAt int64  `yaml:"saved_at"` // unix nanoseconds
	RootID  uint64 `yaml:"root_id"`
	// Entries are in pre-order starting with the root
	Entries []EntryRecord `yaml:"entries"`
	Inodes  []InodeRecord `yaml:"inodes"`
}

// EntryRecord is one namespace entry (a name in a directory)
type EntryRecord struct {
	ID       uint64   `yaml:"id"`
	ParentID uint64   `yaml:"parent_id"` // 0 only for the root
	Name     string   `yaml:"name"`
	InodeID  uint64   `yaml:"inode_id"`
	Children []uint64 `yaml:"children,omitempty,flow"` // ordered entry ids
}

// InodeRecord is the object one or more entries name
type InodeRecord struct {
	ID            uint64 `yaml:"id"`
	Kind          uint32 `yaml:"kind"`
	Perm          int32  `yaml:"perm"`
	Nlink         uint32 `yaml:"nlink"`
	HasContent    bool   `yaml:"has_content"`
	Content       []byte `yaml:"content,omitempty"`
	SymlinkTarget string `yaml:"symlink_target,omitempty"`
	Ctime         int64  `yaml:"ctime"`
	Mtime         int64  `yaml:"mtime"`
}
