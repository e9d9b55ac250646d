package server

import (
	"syscall"
	"testing"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRaw(t *testing.T) (*FuseRaw, *filesystem.FileSystem) {
	t.Helper()
	fs := filesystem.NewFS(config.NewDefaultConfig())
	require.NoError(t, fs.Mkdir("/docs", 750))
	require.NoError(t, fs.Create("/docs/readme", 644))
	require.NoError(t, fs.Open("/docs/readme", treefs.ModeWrite))
	require.NoError(t, fs.Write("/docs/readme", []byte("hello fuse")))
	require.NoError(t, fs.Close("/docs/readme"))
	require.NoError(t, fs.Symlink("/docs/readme", "/ln"))
	return NewFuseRaw(fs), fs
}

func lookup(t *testing.T, r *FuseRaw, parent uint64, name string) *fuse.EntryOut {
	t.Helper()
	out := &fuse.EntryOut{}
	status := r.Lookup(nil, &fuse.InHeader{NodeId: parent}, name, out)
	require.Equal(t, fuse.OK, status, name)
	return out
}

func TestFuseRaw_LookupAndGetAttr(t *testing.T) {
	t.Parallel()
	r, _ := newTestRaw(t)

	docs := lookup(t, r, fuse.FUSE_ROOT_ID, "docs")
	assert.Equal(t, uint32(fuse.S_IFDIR|0o750), docs.Attr.Mode)

	readme := lookup(t, r, docs.NodeId, "readme")
	assert.Equal(t, uint32(fuse.S_IFREG|0o644), readme.Attr.Mode)
	assert.EqualValues(t, len("hello fuse"), readme.Attr.Size)

	attrOut := &fuse.AttrOut{}
	in := &fuse.GetAttrIn{}
	in.NodeId = readme.NodeId
	require.Equal(t, fuse.OK, r.GetAttr(nil, in, attrOut))
	assert.Equal(t, readme.Attr.Ino, attrOut.Attr.Ino)

	missing := &fuse.EntryOut{}
	assert.Equal(t, fuse.ENOENT, r.Lookup(nil, &fuse.InHeader{NodeId: docs.NodeId}, "nope", missing))
	in.NodeId = 9999
	assert.Equal(t, fuse.ENOENT, r.GetAttr(nil, in, attrOut))
}

func TestFuseRaw_Read(t *testing.T) {
	t.Parallel()
	r, fs := newTestRaw(t)
	docs := lookup(t, r, fuse.FUSE_ROOT_ID, "docs")
	readme := lookup(t, r, docs.NodeId, "readme")

	open := &fuse.OpenIn{Flags: syscall.O_RDONLY}
	open.NodeId = readme.NodeId
	require.Equal(t, fuse.OK, r.Open(nil, open, &fuse.OpenOut{}))
	open.Flags = syscall.O_RDWR
	assert.Equal(t, fuse.EROFS, r.Open(nil, open, &fuse.OpenOut{}))

	read := func(off uint64, size uint32) string {
		in := &fuse.ReadIn{Offset: off, Size: size}
		in.NodeId = readme.NodeId
		res, status := r.Read(nil, in, make([]byte, size))
		require.Equal(t, fuse.OK, status)
		data, status := res.Bytes(make([]byte, size))
		require.Equal(t, fuse.OK, status)
		return string(data)
	}
	assert.Equal(t, "hello fuse", read(0, 64))
	assert.Equal(t, "fuse", read(6, 64))
	assert.Equal(t, "ell", read(1, 3))
	assert.Equal(t, "", read(100, 8))

	// the mount doesn't take the namespace's open session
	require.NoError(t, fs.Open("/docs/readme", treefs.ModeRead))
}

func TestFuseRaw_Readlink(t *testing.T) {
	t.Parallel()
	r, _ := newTestRaw(t)

	ln := lookup(t, r, fuse.FUSE_ROOT_ID, "ln")
	assert.Equal(t, uint32(fuse.S_IFLNK|0o777), ln.Attr.Mode)
	target, status := r.Readlink(nil, &fuse.InHeader{NodeId: ln.NodeId})
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, "/docs/readme", string(target))

	_, status = r.Readlink(nil, &fuse.InHeader{NodeId: fuse.FUSE_ROOT_ID})
	assert.Equal(t, fuse.EINVAL, status)
}

func TestFuseRaw_OpenDir(t *testing.T) {
	t.Parallel()
	r, _ := newTestRaw(t)
	docs := lookup(t, r, fuse.FUSE_ROOT_ID, "docs")
	readme := lookup(t, r, docs.NodeId, "readme")

	in := &fuse.OpenIn{}
	in.NodeId = docs.NodeId
	assert.Equal(t, fuse.OK, r.OpenDir(nil, in, &fuse.OpenOut{}))
	in.NodeId = readme.NodeId
	assert.Equal(t, fuse.ENOTDIR, r.OpenDir(nil, in, &fuse.OpenOut{}))
	assert.Equal(t, fuse.EISDIR, r.Open(nil, &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: docs.NodeId}}, &fuse.OpenOut{}))
}
