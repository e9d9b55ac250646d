package filesystem

import (
	"github.com/brettbedarf/treefs"
)

// Node is a namespace entry: a name inside a directory. The parent and
// children relations are NodeIDs into the owning store, so a directory never
// holds pointers to its children.
type Node struct {
	id       treefs.NodeID
	name     string
	parent   treefs.NodeID   // 0 only for the root
	children []treefs.NodeID // creation order; directories only
	*Inode
}

// NodeID returns the node's id; stable for the lifetime of the tree
func (n *Node) NodeID() treefs.NodeID {
	return n.id
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) IsRoot() bool {
	return n.id == treefs.RootID
}

// entry builds the listing view of the node
func (n *Node) entry() treefs.Entry {
	e := treefs.Entry{
		ID:            n.id,
		Kind:          n.kind,
		Name:          n.name,
		Permissions:   n.perm,
		Nlink:         n.nlink,
		SymlinkTarget: n.symlinkTarget,
	}
	if n.kind == treefs.KindFile {
		e.Size = n.Size()
	}
	return e
}

// childIndex returns the position of id in n.children or -1
func (n *Node) childIndex(id treefs.NodeID) int {
	for i, c := range n.children {
		if c == id {
			return i
		}
	}
	return -1
}
