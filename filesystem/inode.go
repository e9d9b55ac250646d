package filesystem

import (
	"os"
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Inode is the object one or more [Node] entries name. Hard links share a
// single Inode so content, permissions and open state are common to every
// name. Fields are protected by the owning FileSystem's lock.
type Inode struct {
	ino           uint64
	kind          treefs.Kind
	perm          treefs.Perm
	content       []byte
	hasContent    bool // false until the first write
	symlinkTarget string
	nlink         uint32 // entries naming this inode
	isOpen        bool
	openMode      treefs.OpenMode
	ctime         time.Time
	mtime         time.Time
}

func newInode(ino uint64, kind treefs.Kind, perm treefs.Perm) *Inode {
	now := time.Now()
	return &Inode{
		ino:   ino,
		kind:  kind,
		perm:  perm,
		ctime: now,
		mtime: now,
	}
}

// Ino returns the inode number
func (in *Inode) Ino() uint64 {
	return in.ino
}

func (in *Inode) IsDir() bool {
	return in.kind == treefs.KindDirectory
}

// IsSymlink reports whether the inode only carries a target path
func (in *Inode) IsSymlink() bool {
	return in.symlinkTarget != ""
}

// Size is the content length for files and 0 for directories and links
func (in *Inode) Size() uint64 {
	return uint64(len(in.content))
}

// setContent replaces the content wholesale with a private copy of data
func (in *Inode) setContent(data []byte) {
	in.content = append([]byte(nil), data...)
	in.hasContent = true
	in.touch()
}

func (in *Inode) touch() {
	in.mtime = time.Now()
}

// Attr returns the inode's fuse wire protocol attributes
func (in *Inode) Attr() fuse.Attr {
	var typ uint32
	switch {
	case in.IsDir():
		typ = fuse.S_IFDIR
	case in.IsSymlink():
		typ = fuse.S_IFLNK
	default:
		typ = fuse.S_IFREG
	}

	size := in.Size()
	if in.IsSymlink() {
		size = uint64(len(in.symlinkTarget))
	}

	return fuse.Attr{
		Ino:   in.ino,
		Size:  size,
		Mode:  typ | in.perm.Mode(),
		Nlink: in.nlink,
		Owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
		Atime:     uint64(in.mtime.Unix()),
		Mtime:     uint64(in.mtime.Unix()),
		Ctime:     uint64(in.ctime.Unix()),
		Atimensec: uint32(in.mtime.Nanosecond()),
		Mtimensec: uint32(in.mtime.Nanosecond()),
		Ctimensec: uint32(in.ctime.Nanosecond()),
		Blocks:    (size + 511) / 512,
		Blksize:   4096, // preferred size for fs ops
	}
}
