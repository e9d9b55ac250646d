package filesystem

import (
	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
)

// openTarget resolves p to an existing regular file, chasing links when
// enabled. Caller must hold fs.mu.
func (fs *FileSystem) openTarget(op, p string) (*Node, error) {
	res, err := fs.resolve(op, p, true)
	if err != nil {
		return nil, err
	}
	if !res.exists() {
		return nil, treefs.NewError(treefs.CodeNameNotFound, op, p)
	}
	if res.node.IsDir() || res.node.IsSymlink() {
		return nil, treefs.NewError(treefs.CodeNotAFile, op, p)
	}
	return res.node, nil
}

// Open starts the single open session of the file at p. The session belongs
// to the inode so it is shared by every hard link.
func (fs *FileSystem) Open(p string, mode treefs.OpenMode) error {
	logger := util.GetLogger("FS.Open")
	if !mode.Valid() {
		return treefs.NewError(treefs.CodeInvalidMode, "open", p)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.openTarget("open", p)
	if err != nil {
		return err
	}
	if !node.perm.Allows(mode.PermBits()) {
		return treefs.NewError(treefs.CodePermissionDenied, "open", p)
	}
	if node.isOpen {
		return treefs.NewError(treefs.CodeAlreadyOpen, "open", p)
	}
	node.isOpen = true
	node.openMode = mode
	logger.Trace().Str("path", p).Stringer("mode", mode).Msg("Opened")
	return nil
}

// Read returns a copy of at most maxLen-1 bytes of the file's content.
// A file that was never written reads as empty.
func (fs *FileSystem) Read(p string, maxLen int) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, err := fs.openTarget("read", p)
	if err != nil {
		return nil, err
	}
	if !node.isOpen {
		return nil, treefs.NewError(treefs.CodeNotOpen, "read", p)
	}
	if !node.openMode.CanRead() {
		return nil, treefs.NewError(treefs.CodeNotOpenForRead, "read", p)
	}

	if maxLen <= 1 {
		return []byte{}, nil
	}
	n := min(maxLen-1, len(node.content))
	return append([]byte(nil), node.content[:n]...), nil
}

// Write replaces the file's content with data
func (fs *FileSystem) Write(p string, data []byte) error {
	logger := util.GetLogger("FS.Write")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.openTarget("write", p)
	if err != nil {
		return err
	}
	if !node.isOpen {
		return treefs.NewError(treefs.CodeNotOpen, "write", p)
	}
	if !node.openMode.CanWrite() {
		return treefs.NewError(treefs.CodeNotOpenForWrite, "write", p)
	}
	if limit := fs.cfg.MaxFileSize; limit > 0 && len(data) > limit {
		return treefs.NewError(treefs.CodeFileTooLarge, "write", p)
	}
	node.setContent(data)
	logger.Debug().Str("path", p).Int("bytes", len(data)).Msg("Wrote file")
	return nil
}

// Close ends the open session of the file at p
func (fs *FileSystem) Close(p string) error {
	logger := util.GetLogger("FS.Close")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.openTarget("close", p)
	if err != nil {
		return err
	}
	if !node.isOpen {
		return treefs.NewError(treefs.CodeNotOpen, "close", p)
	}
	node.isOpen = false
	node.openMode = 0
	logger.Trace().Str("path", p).Msg("Closed")
	return nil
}
