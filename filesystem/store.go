package filesystem

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/brettbedarf/treefs"
	"github.com/puzpuzpuz/xsync/v4"
)

// store owns every node and inode of one tree. The children relation is only
// changed through attach and detach.
type store struct {
	maxChildren int
	root        *Node
	lastID      atomic.Uint64                    // last NodeID assigned
	lastIno     atomic.Uint64                    // last inode number assigned
	nodes       *xsync.Map[treefs.NodeID, *Node] // attached nodes by id
	inodes      *xsync.Map[uint64, *Inode]       // live inodes by number
}

// newStore creates a store holding only a root directory with perm
func newStore(maxChildren int, perm treefs.Perm) *store {
	s := &store{
		maxChildren: maxChildren,
		nodes:       xsync.NewMap[treefs.NodeID, *Node](),
		inodes:      xsync.NewMap[uint64, *Inode](),
	}
	s.root = s.allocate(treefs.KindDirectory, "/", perm)
	s.register(s.root)
	return s
}

// allocate returns a new unattached node with a fresh inode (nlink 1)
func (s *store) allocate(kind treefs.Kind, name string, perm treefs.Perm) *Node {
	inode := newInode(s.lastIno.Add(1), kind, perm)
	return s.allocateLink(name, inode)
}

// allocateLink returns a new unattached node naming an existing inode
func (s *store) allocateLink(name string, inode *Inode) *Node {
	inode.nlink++
	return &Node{
		id:    s.lastID.Add(1),
		name:  name,
		Inode: inode,
	}
}

// discard undoes allocate/allocateLink for a node that never got attached
func (s *store) discard(n *Node) {
	n.nlink--
}

func (s *store) register(n *Node) {
	s.nodes.Store(n.id, n)
	s.inodes.Store(n.ino, n.Inode)
}

// attach appends node to parent's children and registers it
func (s *store) attach(parent, node *Node) error {
	return s.attachAt(parent, node, len(parent.children))
}

// attachAt inserts node into parent's children at index (clamped to the
// current length) and registers it
func (s *store) attachAt(parent, node *Node, index int) error {
	if !parent.IsDir() {
		return treefs.NewError(treefs.CodeNotADirectory, "attach", parent.name)
	}
	if len(parent.children) >= s.maxChildren {
		return treefs.NewError(treefs.CodeDirectoryFull, "attach", parent.name)
	}
	index = max(0, min(index, len(parent.children)))
	parent.children = slices.Insert(parent.children, index, node.id)
	parent.touch()
	node.parent = parent.id
	s.register(node)
	return nil
}

// detach removes the child at index, preserving sibling order, and returns it.
// The child stays registered; callers either re-attach or destroy it.
func (s *store) detach(parent *Node, index int) *Node {
	id := parent.children[index]
	parent.children = append(parent.children[:index], parent.children[index+1:]...)
	parent.touch()
	child, _ := s.nodes.Load(id)
	if child != nil {
		child.parent = 0
	}
	return child
}

// destroySubtree releases every descendant of n post-order, then n itself.
// n must already be detached.
func (s *store) destroySubtree(n *Node) {
	for _, id := range n.children {
		if child, ok := s.nodes.Load(id); ok {
			s.destroySubtree(child)
		}
	}
	n.children = nil
	s.release(n)
}

// release unregisters the entry and unlinks its inode, dropping the inode
// and its content once no entry names it
func (s *store) release(n *Node) {
	s.nodes.Delete(n.id)
	n.nlink--
	if n.nlink == 0 {
		n.isOpen = false
		n.openMode = 0
		n.content = nil
		s.inodes.Delete(n.ino)
	}
}

func (s *store) get(id treefs.NodeID) (*Node, bool) {
	return s.nodes.Load(id)
}

// parentOf returns n's parent or n itself for the root
func (s *store) parentOf(n *Node) *Node {
	if n.parent == 0 {
		return n
	}
	if p, ok := s.nodes.Load(n.parent); ok {
		return p
	}
	return n
}

// lookup scans dir's children for name; first match wins
func (s *store) lookup(dir *Node, name string) (int, *Node) {
	for i, id := range dir.children {
		if child, ok := s.nodes.Load(id); ok && child.name == name {
			return i, child
		}
	}
	return -1, nil
}

// isAncestor reports whether a is n or one of its ancestors
func (s *store) isAncestor(a, n *Node) bool {
	for cur := n; ; {
		if cur.id == a.id {
			return true
		}
		if cur.parent == 0 {
			return false
		}
		p, ok := s.nodes.Load(cur.parent)
		if !ok {
			return false
		}
		cur = p
	}
}

// path returns the absolute path of n
func (s *store) path(n *Node) string {
	if n.IsRoot() {
		return "/"
	}
	var parts []string
	for cur := n; cur != nil && !cur.IsRoot(); {
		parts = append(parts, cur.name)
		p, ok := s.nodes.Load(cur.parent)
		if !ok {
			break
		}
		cur = p
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

// walk visits n and its descendants in pre-order
func (s *store) walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, id := range n.children {
		if child, ok := s.nodes.Load(id); ok {
			s.walk(child, fn)
		}
	}
}
