package server

import (
	"syscall"
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Cache timeouts handed to the kernel. The tree changes underneath the
// mount, so they are kept short.
const (
	entryTimeout = time.Second
	attrTimeout  = time.Second
)

// NodeIDManager resolves FUSE node ids, which are namespace NodeIDs, to
// locked read views. ctx.Close() must be called when finished.
type NodeIDManager interface {
	GetNodeCtx(id treefs.NodeID) *filesystem.NodeContext
	GetChildCtx(parentID treefs.NodeID, name string) *filesystem.NodeContext
}

// FuseRaw implements the low-level FUSE wire protocol as a read-only view
// of the namespace. It never uses the namespace open sessions, so mounting
// doesn't interfere with Open/Read/Write callers.
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	fs     NodeIDManager
	server *fuse.Server
}

func NewFuseRaw(fs NodeIDManager) *FuseRaw {
	return &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
	}
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "treefs"
}

// Access allows everything; permission bits are reported through GetAttr
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	return fuse.OK
}

// Lookup is called by the kernel when the VFS wants to know
// about a file inside a directory.
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	ctx := r.fs.GetChildCtx(header.NodeId, name)
	if ctx == nil {
		return fuse.ENOENT
	}
	defer ctx.Close()

	fillEntry(ctx, out)
	return fuse.OK
}

// Forget needs no bookkeeping: node ids stay valid until the entry is deleted
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	ctx := r.fs.GetNodeCtx(input.NodeId)
	if ctx == nil {
		return fuse.ENOENT
	}
	defer ctx.Close()

	out.Attr = ctx.Attr()
	out.SetTimeout(attrTimeout)
	return fuse.OK
}

func (r *FuseRaw) Readlink(cancel <-chan struct{}, header *fuse.InHeader) ([]byte, fuse.Status) {
	ctx := r.fs.GetNodeCtx(header.NodeId)
	if ctx == nil {
		return nil, fuse.ENOENT
	}
	defer ctx.Close()

	if !ctx.IsSymlink() {
		return nil, fuse.EINVAL
	}
	return []byte(ctx.SymlinkTarget()), fuse.OK
}

// Open only grants read access
func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	logger := util.GetLogger("Fuse.Open")
	ctx := r.fs.GetNodeCtx(input.NodeId)
	if ctx == nil {
		return fuse.ENOENT
	}
	defer ctx.Close()

	if ctx.IsDir() {
		return fuse.EISDIR
	}
	if input.Flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		logger.Debug().Str("path", ctx.Path()).Uint32("flags", input.Flags).Msg("Rejected write open")
		return fuse.EROFS
	}
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	ctx := r.fs.GetNodeCtx(input.NodeId)
	if ctx == nil {
		return nil, fuse.ENOENT
	}
	defer ctx.Close()

	content := ctx.Content()
	if input.Offset >= uint64(len(content)) {
		return fuse.ReadResultData(nil), fuse.OK
	}
	end := min(input.Offset+uint64(input.Size), uint64(len(content)))
	return fuse.ReadResultData(content[input.Offset:end]), fuse.OK
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	ctx := r.fs.GetNodeCtx(input.NodeId)
	if ctx == nil {
		return fuse.ENOENT
	}
	defer ctx.Close()

	if !ctx.IsDir() {
		return fuse.ENOTDIR
	}
	return fuse.OK
}

func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	return r.readDir(input, func(child *filesystem.NodeContext) bool {
		return out.AddDirEntry(dirEntry(child))
	})
}

func (r *FuseRaw) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	return r.readDir(input, func(child *filesystem.NodeContext) bool {
		entryOut := out.AddDirLookupEntry(dirEntry(child))
		if entryOut == nil {
			return false
		}
		fillEntry(child, entryOut)
		return true
	})
}

// readDir feeds the children of the directory past input.Offset to add
// until it reports the kernel buffer is full
func (r *FuseRaw) readDir(input *fuse.ReadIn, add func(child *filesystem.NodeContext) bool) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")
	logger.Trace().Uint64("nodeID", input.NodeId).Uint64("offset", input.Offset).Msg("ReadDir called")

	ctx := r.fs.GetNodeCtx(input.NodeId)
	if ctx == nil {
		return fuse.ENOENT
	}
	defer ctx.Close()
	if !ctx.IsDir() {
		return fuse.ENOTDIR
	}

	idx := uint64(0)
	full := false
	ctx.IterChildren(func(child *filesystem.NodeContext) {
		if full {
			return
		}
		if idx >= input.Offset && !add(child) {
			full = true
		}
		idx++
	})
	return fuse.OK
}

func dirEntry(ctx *filesystem.NodeContext) fuse.DirEntry {
	attr := ctx.Attr()
	return fuse.DirEntry{
		Name: ctx.Name(),
		Mode: attr.Mode,
		Ino:  attr.Ino,
	}
}

func fillEntry(ctx *filesystem.NodeContext, out *fuse.EntryOut) {
	out.NodeId = ctx.NodeID()
	out.Attr = ctx.Attr()
	out.SetEntryTimeout(entryTimeout)
	out.SetAttrTimeout(attrTimeout)
}
