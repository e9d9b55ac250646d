package filesystem

import (
	"testing"

	"github.com/brettbedarf/treefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Parallel()

	s := newStore(3, DefaultRootPerm)
	require.NotNil(t, s.root)
	assert.Equal(t, treefs.RootID, s.root.id)
	assert.Equal(t, uint64(1), s.root.ino)
	assert.EqualValues(t, 0, s.root.parent)
	assert.True(t, s.root.IsDir())
	assert.True(t, s.root.IsRoot())
	assert.EqualValues(t, 1, s.root.nlink)
	assert.Equal(t, "/", s.path(s.root))

	got, ok := s.get(treefs.RootID)
	require.True(t, ok)
	assert.Same(t, s.root, got)
}

func TestStore_AttachDetachOrder(t *testing.T) {
	t.Parallel()

	s := newStore(10, DefaultRootPerm)
	var ids []treefs.NodeID
	for _, name := range []string{"a", "b", "c", "d"} {
		n := s.allocate(treefs.KindFile, name, 644)
		require.NoError(t, s.attach(s.root, n))
		assert.Equal(t, s.root.id, n.parent)
		ids = append(ids, n.id)
	}
	assert.Equal(t, ids, s.root.children)

	b := s.detach(s.root, 1)
	require.NotNil(t, b)
	assert.Equal(t, "b", b.name)
	assert.EqualValues(t, 0, b.parent)
	assert.Equal(t, []treefs.NodeID{ids[0], ids[2], ids[3]}, s.root.children)
}

func TestStore_AttachAtRestoresPosition(t *testing.T) {
	t.Parallel()

	s := newStore(10, DefaultRootPerm)
	var ids []treefs.NodeID
	for _, name := range []string{"a", "b", "c"} {
		n := s.allocate(treefs.KindFile, name, 644)
		require.NoError(t, s.attach(s.root, n))
		ids = append(ids, n.id)
	}

	b := s.detach(s.root, 1)
	require.NoError(t, s.attachAt(s.root, b, 1))
	assert.Equal(t, ids, s.root.children)
	assert.Equal(t, s.root.id, b.parent)

	// out of range indexes are clamped
	a := s.detach(s.root, 0)
	require.NoError(t, s.attachAt(s.root, a, -3))
	c := s.detach(s.root, 2)
	require.NoError(t, s.attachAt(s.root, c, 99))
	assert.Equal(t, ids, s.root.children)
}

func TestStore_AttachErrors(t *testing.T) {
	t.Parallel()

	s := newStore(2, DefaultRootPerm)
	file := s.allocate(treefs.KindFile, "f", 644)
	require.NoError(t, s.attach(s.root, file))

	err := s.attach(file, s.allocate(treefs.KindFile, "x", 644))
	assert.ErrorIs(t, err, treefs.ErrNotADirectory)

	require.NoError(t, s.attach(s.root, s.allocate(treefs.KindFile, "g", 644)))
	err = s.attach(s.root, s.allocate(treefs.KindFile, "h", 644))
	assert.ErrorIs(t, err, treefs.ErrDirectoryFull)
	assert.Len(t, s.root.children, 2)
}

func TestStore_DestroySubtreePostOrder(t *testing.T) {
	t.Parallel()

	s := newStore(10, DefaultRootPerm)
	dir := s.allocate(treefs.KindDirectory, "d", 755)
	require.NoError(t, s.attach(s.root, dir))
	sub := s.allocate(treefs.KindDirectory, "sub", 755)
	require.NoError(t, s.attach(dir, sub))
	leaf := s.allocate(treefs.KindFile, "leaf", 644)
	require.NoError(t, s.attach(sub, leaf))

	s.detach(s.root, 0)
	s.destroySubtree(dir)

	for _, n := range []*Node{dir, sub, leaf} {
		_, ok := s.get(n.id)
		assert.False(t, ok, "node %s still registered", n.name)
		_, ok = s.inodes.Load(n.ino)
		assert.False(t, ok, "inode of %s still registered", n.name)
	}
	assert.Empty(t, s.root.children)
}

func TestStore_SharedInodeReleasedWithLastEntry(t *testing.T) {
	t.Parallel()

	s := newStore(10, DefaultRootPerm)
	a := s.allocate(treefs.KindFile, "a", 644)
	require.NoError(t, s.attach(s.root, a))
	b := s.allocateLink("b", a.Inode)
	require.NoError(t, s.attach(s.root, b))
	assert.EqualValues(t, 2, a.nlink)
	assert.Same(t, a.Inode, b.Inode)

	s.release(s.detach(s.root, 0))
	assert.EqualValues(t, 1, b.nlink)
	_, ok := s.inodes.Load(b.ino)
	assert.True(t, ok)

	s.release(s.detach(s.root, 0))
	_, ok = s.inodes.Load(b.ino)
	assert.False(t, ok)
}

func TestStore_PathAndAncestry(t *testing.T) {
	t.Parallel()

	s := newStore(10, DefaultRootPerm)
	a := s.allocate(treefs.KindDirectory, "a", 755)
	require.NoError(t, s.attach(s.root, a))
	b := s.allocate(treefs.KindDirectory, "b", 755)
	require.NoError(t, s.attach(a, b))

	assert.Equal(t, "/a/b", s.path(b))
	assert.True(t, s.isAncestor(a, b))
	assert.True(t, s.isAncestor(b, b))
	assert.False(t, s.isAncestor(b, a))
	assert.Same(t, a, s.parentOf(b))
	assert.Same(t, s.root, s.parentOf(s.root))

	idx, got := s.lookup(s.root, "a")
	assert.Equal(t, 0, idx)
	assert.Same(t, a, got)
	idx, got = s.lookup(s.root, "missing")
	assert.Equal(t, -1, idx)
	assert.Nil(t, got)
}
