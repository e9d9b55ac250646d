// Package treefs contains the core domain types shared by the in-memory
// namespace, its persistence layer and its front ends.
package treefs

import "strconv"

// NodeID identifies a namespace entry for the lifetime of a tree.
// 0 is never assigned; the root is always [RootID].
type NodeID = uint64

// RootID is the NodeID of the root directory (matches fuse.FUSE_ROOT_ID)
const RootID NodeID = 1

// Kind is the type of a node
type Kind uint32

const (
	KindFile Kind = iota + 1
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "dir"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Perm is a three-digit octal-style permission value written in decimal,
// i.e. 644 means owner rw-, group r--, other r--.
// Only the owner (hundreds) digit is ever enforced.
type Perm int32

// Owner permission bits of the hundreds digit
const (
	PermExec  = 1
	PermWrite = 2
	PermRead  = 4
)

// Owner returns the owner digit
func (p Perm) Owner() int {
	v := int(p)
	if v < 0 {
		v = -v
	}
	return (v / 100) % 10
}

// Allows reports whether every bit of want is present in the owner digit
func (p Perm) Allows(want int) bool {
	return p.Owner()&want == want
}

// Mode converts the three decimal digits into unix mode bits (0o000-0o777).
// Digits above 7 are clamped.
func (p Perm) Mode() uint32 {
	v := int(p)
	if v < 0 {
		v = -v
	}
	var mode uint32
	for shift := 0; shift < 9; shift += 3 {
		d := min(v%10, 7)
		mode |= uint32(d) << shift
		v /= 10
	}
	return mode
}

// Entry is the listing/stat view of a single node
type Entry struct {
	ID            NodeID `json:"id" yaml:"id"`
	Kind          Kind   `json:"kind" yaml:"kind"`
	Name          string `json:"name" yaml:"name"`
	Permissions   Perm   `json:"permissions" yaml:"permissions"`
	Size          uint64 `json:"size" yaml:"size"` // files only
	Nlink         uint32 `json:"nlink" yaml:"nlink"`
	SymlinkTarget string `json:"symlink_target,omitempty" yaml:"symlink_target,omitempty"`
}

// IsSymlink reports whether the entry is a symbolic link
func (e Entry) IsSymlink() bool {
	return e.SymlinkTarget != ""
}

// NodeInfo provides read-only access to node information for external consumers
type NodeInfo interface {
	// Name returns the node's name (last path component)
	Name() string

	// NodeID returns the unique node identifier
	NodeID() NodeID

	// Path returns the absolute path to the node
	Path() string
}
