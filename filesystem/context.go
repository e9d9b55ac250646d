package filesystem

import (
	"github.com/brettbedarf/treefs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var _ treefs.NodeInfo = (*NodeContext)(nil)

// NodeContext is a read view of a [Node] taken under the FileSystem read
// lock. Calling NodeContext.Close() unwinds all unlocking/cleanup callbacks
// in reverse order. Do NOT call FileSystem methods while a context is
// active; use the accessors below.
//
// NOTE: NodeContext itself is **not** thread-safe meaning references
// to it should not be shared between goroutines
type NodeContext struct {
	fs       *FileSystem
	node     *Node
	closeFns []func()
}

// newNodeContext read-locks fs and returns the view of the node with id.
// Returns nil (with the lock released) if the node does not exist.
func (fs *FileSystem) newNodeContext(id treefs.NodeID) *NodeContext {
	fs.mu.RLock()
	node, ok := fs.st.get(id)
	if !ok {
		fs.mu.RUnlock()
		return nil
	}
	ctx := &NodeContext{fs: fs, node: node}
	ctx.AddClose(fs.mu.RUnlock)
	return ctx
}

// RootCtx returns a locked context of the root directory
func (fs *FileSystem) RootCtx() *NodeContext {
	return fs.newNodeContext(treefs.RootID)
}

// GetNodeCtx returns a locked NodeContext with its Close() wired up
// If the node does not exist, returns nil
func (fs *FileSystem) GetNodeCtx(id treefs.NodeID) *NodeContext {
	return fs.newNodeContext(id)
}

// GetChildCtx finds a child of the directory parentID by name and returns a
// locked NodeContext. If the parent or child do not exist, returns nil
//
// Caller is responsible for closing the context when done `defer ctx.Close()`.
func (fs *FileSystem) GetChildCtx(parentID treefs.NodeID, name string) *NodeContext {
	ctx := fs.newNodeContext(parentID)
	if ctx == nil {
		return nil
	}
	_, child := fs.st.lookup(ctx.node, name)
	if child == nil {
		ctx.Close()
		return nil
	}
	ctx.node = child
	return ctx
}

// Name returns the node's name
func (ctx *NodeContext) Name() string {
	return ctx.node.name
}

func (ctx *NodeContext) NodeID() treefs.NodeID {
	return ctx.node.id
}

// Path returns the absolute path of the node
func (ctx *NodeContext) Path() string {
	return ctx.fs.st.path(ctx.node)
}

func (ctx *NodeContext) Entry() treefs.Entry {
	return ctx.node.entry()
}

// Attr returns the fuse attributes of the node's inode
func (ctx *NodeContext) Attr() fuse.Attr {
	return ctx.node.Attr()
}

func (ctx *NodeContext) IsDir() bool {
	return ctx.node.IsDir()
}

func (ctx *NodeContext) IsSymlink() bool {
	return ctx.node.IsSymlink()
}

func (ctx *NodeContext) SymlinkTarget() string {
	return ctx.node.symlinkTarget
}

// Content returns a copy of the file content
func (ctx *NodeContext) Content() []byte {
	return append([]byte(nil), ctx.node.content...)
}

// IterChildren calls fn with a view of every child in creation order.
// Child views share this context's lock and must not be closed or retained.
func (ctx *NodeContext) IterChildren(fn func(child *NodeContext)) {
	for _, id := range ctx.node.children {
		if child, ok := ctx.fs.st.get(id); ok {
			fn(&NodeContext{fs: ctx.fs, node: child})
		}
	}
}

// HardLinkCount returns the number of hard links (Nlink).
func (ctx *NodeContext) HardLinkCount() uint64 {
	return uint64(ctx.node.nlink)
}

// AddClose pushes a cleanup callback (e.g., unlock) onto the end of the stack.
func (ctx *NodeContext) AddClose(fn func()) {
	ctx.closeFns = append(ctx.closeFns, fn)
}

// Close unwinds all cleanup callbacks in reverse order.
// Safe to call even if ctx is nil or no locks were acquired; it is
// a no-op in those cases, so you can `defer ctx.Close()` unconditionally.
//
// Example:
//
//	ctx := fs.GetChildCtx(parentID, name)
//	defer ctx.Close()
func (ctx *NodeContext) Close() {
	if ctx == nil {
		return
	}
	for i := len(ctx.closeFns) - 1; i >= 0; i-- {
		ctx.closeFns[i]()
	}
	ctx.closeFns = nil
}
