package filesystem

import (
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
)

// Link adds name as a hard link to the file at target. Both entries share
// one inode; it is released when the last entry naming it is deleted.
func (fs *FileSystem) Link(target, name string) error {
	logger := util.GetLogger("FS.Link")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	source, err := fs.sourceFile("link", target)
	if err != nil {
		return err
	}
	node, err := fs.newEntryLocked("link", name, func(leaf string) *Node {
		return fs.st.allocateLink(leaf, source.Inode)
	})
	if err != nil {
		return err
	}
	node.ctime = time.Now()
	logger.Debug().Str("target", target).Str("name", name).Uint32("nlink", node.nlink).Msg("Created hard link")
	return nil
}

// Symlink adds name as a symbolic link storing target. The target is not
// checked and may dangle.
func (fs *FileSystem) Symlink(target, name string) error {
	logger := util.GetLogger("FS.Symlink")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if target == "" {
		return treefs.NewError(treefs.CodePathInvalid, "symlink", target)
	}
	_, err := fs.newEntryLocked("symlink", name, func(leaf string) *Node {
		node := fs.st.allocate(treefs.KindFile, leaf, SymlinkPerm)
		node.symlinkTarget = target
		return node
	})
	if err != nil {
		return err
	}
	logger.Debug().Str("target", target).Str("name", name).Msg("Created symbolic link")
	return nil
}

// Readlink returns the target stored by the symbolic link at p
func (fs *FileSystem) Readlink(p string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	res, err := fs.resolve("readlink", p, false)
	if err != nil {
		return "", err
	}
	if !res.exists() {
		return "", treefs.NewError(treefs.CodeNameNotFound, "readlink", p)
	}
	if !res.node.IsSymlink() {
		return "", treefs.NewError(treefs.CodeNotASymlink, "readlink", p)
	}
	return res.node.symlinkTarget, nil
}
