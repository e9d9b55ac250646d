package filesystem

import (
	"iter"
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Create adds an empty file named by the final component of p
func (fs *FileSystem) Create(p string, perm treefs.Perm) error {
	logger := util.GetLogger("FS.Create")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.newEntryLocked("create", p, func(name string) *Node {
		return fs.st.allocate(treefs.KindFile, name, perm)
	})
	if err != nil {
		return err
	}
	logger.Debug().Str("path", p).Uint64("nodeID", node.id).Int32("perm", int32(perm)).Msg("Created file")
	return nil
}

// Mkdir adds an empty directory named by the final component of p
func (fs *FileSystem) Mkdir(p string, perm treefs.Perm) error {
	logger := util.GetLogger("FS.Mkdir")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.newEntryLocked("mkdir", p, func(name string) *Node {
		return fs.st.allocate(treefs.KindDirectory, name, perm)
	})
	if err != nil {
		return err
	}
	logger.Debug().Str("path", p).Uint64("nodeID", node.id).Int32("perm", int32(perm)).Msg("Created directory")
	return nil
}

// newEntryLocked resolves p for creation and attaches the node built by
// alloc under the final path component. Caller must hold fs.mu for writing.
func (fs *FileSystem) newEntryLocked(op, p string, alloc func(name string) *Node) (*Node, error) {
	res, err := fs.resolve(op, p, false)
	if err != nil {
		return nil, err
	}
	if res.exists() {
		return nil, treefs.NewError(treefs.CodeNameExists, op, p)
	}
	if err := fs.validName(op, p, res.leaf); err != nil {
		return nil, err
	}
	return fs.attachNewLocked(op, p, res.parent, alloc(res.leaf))
}

// attachNewLocked attaches a freshly allocated node, undoing the allocation
// on failure
func (fs *FileSystem) attachNewLocked(op, p string, parent, node *Node) (*Node, error) {
	if err := fs.st.attach(parent, node); err != nil {
		fs.st.discard(node)
		return nil, treefs.NewError(treefs.CodeOf(err), op, p)
	}
	return node, nil
}

// List returns the entries of the directory at p in creation order.
// An empty p lists the current directory. The sequence reads the directory
// afresh every time it is ranged over.
func (fs *FileSystem) List(p string) (iter.Seq[treefs.Entry], error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if p == "" {
		p = "."
	}
	res, err := fs.resolve("list", p, true)
	if err != nil {
		return nil, err
	}
	if !res.exists() {
		return nil, treefs.NewError(treefs.CodeNameNotFound, "list", p)
	}
	if !res.node.IsDir() {
		return nil, treefs.NewError(treefs.CodeNotADirectory, "list", p)
	}

	dirID := res.node.id
	return func(yield func(treefs.Entry) bool) {
		for _, e := range fs.childEntries(dirID) {
			if !yield(e) {
				return
			}
		}
	}, nil
}

// childEntries copies the entries of dir under the read lock so callers can
// range without holding it
func (fs *FileSystem) childEntries(dirID treefs.NodeID) []treefs.Entry {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dir, ok := fs.st.get(dirID)
	if !ok {
		return nil
	}
	entries := make([]treefs.Entry, 0, len(dir.children))
	for _, id := range dir.children {
		if child, ok := fs.st.get(id); ok {
			entries = append(entries, child.entry())
		}
	}
	return entries
}

// Chdir moves the cursor to the directory at p. Stepping above the root
// fails with AlreadyAtRoot and leaves the cursor unchanged.
func (fs *FileSystem) Chdir(p string) error {
	logger := util.GetLogger("FS.Chdir")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve("chdir", p, true)
	if err != nil {
		return err
	}
	if res.aboveRoot {
		return treefs.NewError(treefs.CodeAlreadyAtRoot, "chdir", p)
	}
	if !res.exists() {
		return treefs.NewError(treefs.CodeNameNotFound, "chdir", p)
	}
	if !res.node.IsDir() {
		return treefs.NewError(treefs.CodeNotADirectory, "chdir", p)
	}
	fs.cwd = res.node.id
	logger.Trace().Str("cwd", fs.st.path(res.node)).Msg("Changed directory")
	return nil
}

// Cwd returns the absolute path of the cursor
func (fs *FileSystem) Cwd() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.st.path(fs.cursor())
}

// Delete removes the entry at p. A non-empty directory is only removed when
// recursive is set, in which case its subtree is destroyed children first.
// A cursor inside the removed subtree moves to the removed entry's parent.
func (fs *FileSystem) Delete(p string, recursive bool) error {
	logger := util.GetLogger("FS.Delete")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve("delete", p, false)
	if err != nil {
		return err
	}
	if !res.exists() {
		return treefs.NewError(treefs.CodeNameNotFound, "delete", p)
	}
	node := res.node
	if node.IsRoot() {
		return treefs.NewError(treefs.CodePathInvalid, "delete", p)
	}
	if node.IsDir() && len(node.children) > 0 && !recursive {
		return treefs.NewError(treefs.CodeDirectoryNotEmpty, "delete", p)
	}

	parent := fs.st.parentOf(node)
	if fs.st.isAncestor(node, fs.cursor()) {
		fs.cwd = parent.id
	}
	fs.st.detach(parent, parent.childIndex(node.id))
	fs.st.destroySubtree(node)
	logger.Debug().Str("path", p).Uint64("nodeID", node.id).Bool("recursive", recursive).Msg("Deleted")
	return nil
}

// destination resolves dst for copy and move. An existing directory means
// "inside it, under name"; anything else existing is taken.
func (fs *FileSystem) destination(op, dst, name string) (*Node, string, error) {
	res, err := fs.resolve(op, dst, false)
	if err != nil {
		return nil, "", err
	}
	if !res.exists() {
		return res.parent, res.leaf, nil
	}
	if !res.node.IsDir() {
		return nil, "", treefs.NewError(treefs.CodeNameExists, op, dst)
	}
	if _, taken := fs.st.lookup(res.node, name); taken != nil {
		return nil, "", treefs.NewError(treefs.CodeNameExists, op, dst)
	}
	return res.node, name, nil
}

// sourceFile resolves src to an existing file (or symbolic link)
func (fs *FileSystem) sourceFile(op, src string) (*Node, error) {
	res, err := fs.resolve(op, src, false)
	if err != nil {
		return nil, err
	}
	if !res.exists() {
		return nil, treefs.NewError(treefs.CodeNameNotFound, op, src)
	}
	if res.node.IsDir() {
		return nil, treefs.NewError(treefs.CodeNotAFile, op, src)
	}
	return res.node, nil
}

// Copy creates a new file at dst with the permissions and a private copy of
// the content of the file at src. A symbolic link is copied as a link.
func (fs *FileSystem) Copy(src, dst string) error {
	logger := util.GetLogger("FS.Copy")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	source, err := fs.sourceFile("copy", src)
	if err != nil {
		return err
	}
	parent, name, err := fs.destination("copy", dst, source.name)
	if err != nil {
		return err
	}
	if err := fs.validName("copy", dst, name); err != nil {
		return err
	}

	node := fs.st.allocate(treefs.KindFile, name, source.perm)
	node.symlinkTarget = source.symlinkTarget
	if source.hasContent {
		node.setContent(source.content)
	}
	if _, err := fs.attachNewLocked("copy", dst, parent, node); err != nil {
		return err
	}
	logger.Debug().Str("src", src).Str("dst", fs.st.path(node)).Uint64("bytes", node.Size()).Msg("Copied file")
	return nil
}

// Move renames the entry at src to dst. The entry keeps its inode so hard
// links and open state are preserved. The destination is fully validated
// before anything changes; on failure the source is untouched.
func (fs *FileSystem) Move(src, dst string) error {
	logger := util.GetLogger("FS.Move")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve("move", src, false)
	if err != nil {
		return err
	}
	if !res.exists() {
		return treefs.NewError(treefs.CodeNameNotFound, "move", src)
	}
	node := res.node
	if node.IsRoot() {
		return treefs.NewError(treefs.CodePathInvalid, "move", src)
	}

	parent, name, err := fs.destination("move", dst, node.name)
	if err != nil {
		return err
	}
	if err := fs.validName("move", dst, name); err != nil {
		return err
	}
	if node.IsDir() && fs.st.isAncestor(node, parent) {
		return treefs.NewError(treefs.CodePathInvalid, "move", dst)
	}
	oldParent := fs.st.parentOf(node)
	if parent.id != oldParent.id && len(parent.children) >= fs.st.maxChildren {
		return treefs.NewError(treefs.CodeDirectoryFull, "move", dst)
	}

	oldIndex := oldParent.childIndex(node.id)
	fs.st.detach(oldParent, oldIndex)
	oldName := node.name
	node.name = name
	if err := fs.st.attach(parent, node); err != nil {
		// restore the source at its old position
		node.name = oldName
		if rerr := fs.st.attachAt(oldParent, node, oldIndex); rerr != nil {
			logger.Error().Err(rerr).Str("src", src).Uint64("nodeID", node.id).Msg("Failed to restore moved entry")
		}
		return treefs.NewError(treefs.CodeOf(err), "move", dst)
	}
	node.ctime = time.Now()
	logger.Debug().Str("src", src).Str("dst", fs.st.path(node)).Msg("Moved")
	return nil
}

// Chmod overwrites the permissions of the entry at p. The value is not
// range checked.
func (fs *FileSystem) Chmod(p string, perm treefs.Perm) error {
	logger := util.GetLogger("FS.Chmod")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolve("chmod", p, false)
	if err != nil {
		return err
	}
	if !res.exists() {
		return treefs.NewError(treefs.CodeNameNotFound, "chmod", p)
	}
	res.node.perm = perm
	res.node.ctime = time.Now()
	logger.Debug().Str("path", p).Int32("perm", int32(perm)).Msg("Changed permissions")
	return nil
}

// Stat returns the entry at p with its fuse attributes
func (fs *FileSystem) Stat(p string) (treefs.Entry, fuse.Attr, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	res, err := fs.resolve("stat", p, true)
	if err != nil {
		return treefs.Entry{}, fuse.Attr{}, err
	}
	if !res.exists() {
		return treefs.Entry{}, fuse.Attr{}, treefs.NewError(treefs.CodeNameNotFound, "stat", p)
	}
	return res.node.entry(), res.node.Attr(), nil
}
