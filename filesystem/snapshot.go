package filesystem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/persist"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Snapshot captures the whole tree. Entries are in pre-order from the root;
// inodes appear in the order they are first named. Open state is not
// captured.
func (fs *FileSystem) Snapshot() *persist.Snapshot {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	snap := &persist.Snapshot{
		Version: persist.FormatVersion,
		TreeID:  fs.treeID,
		SavedAt: time.Now().UnixNano(),
		RootID:  treefs.RootID,
	}
	seen := make(map[uint64]bool)
	fs.st.walk(fs.st.root, func(n *Node) {
		snap.Entries = append(snap.Entries, persist.EntryRecord{
			ID:       n.id,
			ParentID: n.parent,
			Name:     n.name,
			InodeID:  n.ino,
			Children: append([]uint64(nil), n.children...),
		})
		if seen[n.ino] {
			return
		}
		seen[n.ino] = true
		snap.Inodes = append(snap.Inodes, persist.InodeRecord{
			ID:            n.ino,
			Kind:          uint32(n.kind),
			Perm:          int32(n.perm),
			Nlink:         n.nlink,
			HasContent:    n.hasContent,
			Content:       n.content, // content is replaced, never mutated in place
			SymlinkTarget: n.symlinkTarget,
			Ctime:         n.ctime.UnixNano(),
			Mtime:         n.mtime.UnixNano(),
		})
	})
	return snap
}

// Save writes the whole tree to b
func (fs *FileSystem) Save(ctx context.Context, b persist.Backend) error {
	logger := util.GetLogger("FS.Save")
	snap := fs.Snapshot()
	if err := b.Save(ctx, snap); err != nil {
		logger.Error().Err(err).Msg("Failed to save tree")
		return fmt.Errorf("failed to save tree: %w", err)
	}
	logger.Debug().Int("entries", len(snap.Entries)).Int("inodes", len(snap.Inodes)).Msg("Saved tree")
	return nil
}

// Load replaces the tree with the one stored in b. The cursor returns to
// the root and no file is open afterwards. On error the current tree is
// kept; invalid stored trees yield an error wrapping persist.ErrCorrupt.
func (fs *FileSystem) Load(ctx context.Context, b persist.Backend) error {
	snap, err := b.Load(ctx)
	if err != nil {
		return err
	}
	return fs.Restore(snap)
}

// Restore validates snap and replaces the tree with it
func (fs *FileSystem) Restore(snap *persist.Snapshot) error {
	logger := util.GetLogger("FS.Restore")
	st, err := buildStore(snap, fs.cfg.MaxChildren)
	if err != nil {
		return err
	}

	treeID := snap.TreeID
	if treeID == "" {
		treeID = uuid.NewString()
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.st = st
	fs.cwd = treefs.RootID
	fs.treeID = treeID
	logger.Debug().Str("treeID", treeID).Int("entries", len(snap.Entries)).Msg("Restored tree")
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", persist.ErrCorrupt, fmt.Sprintf(format, args...))
}

// buildStore checks the structural invariants of snap and converts it:
// ids are unique, there is a single root, parents and children agree, every
// entry is reached exactly once and every referenced inode exists. Link
// counts are recomputed from the entries.
func buildStore(snap *persist.Snapshot, maxChildren int) (*store, error) {
	if snap.Version != persist.FormatVersion {
		return nil, corrupt("unsupported format version %d", snap.Version)
	}
	if snap.RootID != treefs.RootID || len(snap.Entries) == 0 || snap.Entries[0].ID != treefs.RootID {
		return nil, corrupt("tree does not start at root %d", treefs.RootID)
	}

	inodes := make(map[uint64]*Inode, len(snap.Inodes))
	var maxIno uint64
	for _, rec := range snap.Inodes {
		if rec.ID == 0 {
			return nil, corrupt("inode id 0")
		}
		if _, dup := inodes[rec.ID]; dup {
			return nil, corrupt("duplicate inode %d", rec.ID)
		}
		kind := treefs.Kind(rec.Kind)
		if kind != treefs.KindFile && kind != treefs.KindDirectory {
			return nil, corrupt("inode %d has unknown kind %d", rec.ID, rec.Kind)
		}
		in := &Inode{
			ino:           rec.ID,
			kind:          kind,
			perm:          treefs.Perm(rec.Perm),
			hasContent:    rec.HasContent,
			symlinkTarget: rec.SymlinkTarget,
			ctime:         time.Unix(0, rec.Ctime),
			mtime:         time.Unix(0, rec.Mtime),
		}
		if rec.HasContent {
			in.content = append([]byte(nil), rec.Content...)
		}
		inodes[rec.ID] = in
		maxIno = max(maxIno, rec.ID)
	}

	recs := make(map[treefs.NodeID]*persist.EntryRecord, len(snap.Entries))
	var maxID treefs.NodeID
	for i := range snap.Entries {
		rec := &snap.Entries[i]
		if rec.ID == 0 {
			return nil, corrupt("entry id 0")
		}
		if _, dup := recs[rec.ID]; dup {
			return nil, corrupt("duplicate entry %d", rec.ID)
		}
		if _, ok := inodes[rec.InodeID]; !ok {
			return nil, corrupt("entry %d names missing inode %d", rec.ID, rec.InodeID)
		}
		recs[rec.ID] = rec
		maxID = max(maxID, rec.ID)
	}

	st := &store{
		maxChildren: maxChildren,
		nodes:       xsync.NewMap[treefs.NodeID, *Node](),
		inodes:      xsync.NewMap[uint64, *Inode](),
	}
	st.lastID.Store(maxID)
	st.lastIno.Store(maxIno)

	rootRec := recs[treefs.RootID]
	if rootRec.ParentID != 0 {
		return nil, corrupt("root has parent %d", rootRec.ParentID)
	}
	if !inodes[rootRec.InodeID].IsDir() {
		return nil, corrupt("root is not a directory")
	}

	// walk from the root rather than trusting ParentID alone so cycles and
	// unreachable entries are caught
	var build func(rec *persist.EntryRecord) (*Node, error)
	build = func(rec *persist.EntryRecord) (*Node, error) {
		if _, visited := st.nodes.Load(rec.ID); visited {
			return nil, corrupt("entry %d reached twice", rec.ID)
		}
		in := inodes[rec.InodeID]
		if in.IsDir() && in.nlink > 0 {
			return nil, corrupt("directory inode %d named twice", in.ino)
		}
		if !in.IsDir() && len(rec.Children) > 0 {
			return nil, corrupt("file entry %d has children", rec.ID)
		}
		if rec.ID != treefs.RootID && (rec.Name == "" || rec.Name == "." || rec.Name == ".." || strings.ContainsRune(rec.Name, '/')) {
			return nil, corrupt("entry %d has invalid name %q", rec.ID, rec.Name)
		}
		in.nlink++
		n := &Node{id: rec.ID, name: rec.Name, parent: rec.ParentID, Inode: in}
		st.register(n)

		names := make(map[string]bool, len(rec.Children))
		for _, cid := range rec.Children {
			crec, ok := recs[cid]
			if !ok {
				return nil, corrupt("entry %d lists missing child %d", rec.ID, cid)
			}
			if crec.ParentID != rec.ID {
				return nil, corrupt("entry %d lists child %d whose parent is %d", rec.ID, cid, crec.ParentID)
			}
			if names[crec.Name] {
				return nil, corrupt("entry %d has duplicate child name %q", rec.ID, crec.Name)
			}
			names[crec.Name] = true
			if _, err := build(crec); err != nil {
				return nil, err
			}
			n.children = append(n.children, cid)
		}
		return n, nil
	}

	root, err := build(rootRec)
	if err != nil {
		return nil, err
	}
	if size := st.nodes.Size(); size != len(recs) {
		return nil, corrupt("%d of %d entries unreachable from root", len(recs)-size, len(recs))
	}
	// inodes no entry names were never registered and are dropped here
	st.root = root
	return st, nil
}

// Bootstrap creates the namespace from whatever b holds. Nothing stored
// yields an empty root. Unreadable data is an error unless cfg.OnCorrupt is
// "reset", in which case it is logged and an empty root is used.
func Bootstrap(ctx context.Context, cfg *config.Config, b persist.Backend) (*FileSystem, error) {
	logger := util.GetLogger("FS.Bootstrap")
	fs := NewFS(cfg)

	err := fs.Load(ctx, b)
	switch {
	case err == nil:
		logger.Info().Str("treeID", fs.TreeID()).Msg("Loaded stored tree")
	case errors.Is(err, persist.ErrNotExist):
		logger.Info().Msg("No stored tree; starting with an empty root")
	case errors.Is(err, persist.ErrCorrupt) && fs.cfg.OnCorrupt == config.OnCorruptReset:
		logger.Warn().Err(err).Msg("Stored tree is unreadable; starting with an empty root")
	default:
		logger.Error().Err(err).Msg("Failed to load stored tree")
		return nil, fmt.Errorf("failed to load stored tree: %w", err)
	}
	return fs, nil
}
