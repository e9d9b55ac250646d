package filesystem

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brettbedarf/treefs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFS(t *testing.T) {
	t.Parallel()

	fs := NewFS(nil)
	require.NotNil(t, fs.Config())
	assert.Equal(t, "/", fs.Cwd())
	assert.NotEmpty(t, fs.TreeID())
	assert.Empty(t, listNames(t, fs, "/"))
}

func TestFileSystem_CreateThenList(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"f.txt", "a", "with space", "ünïcode", strings.Repeat("x", 255)} {
		fs := newTestFS(t)
		require.NoError(t, fs.Mkdir("/d", 755))
		require.NoError(t, fs.Create("/d/"+name, 640))

		entries := listEntries(t, fs, "/d")
		require.Len(t, entries, 1, name)
		assert.Equal(t, name, entries[0].Name)
		assert.Equal(t, treefs.KindFile, entries[0].Kind)
		assert.Equal(t, treefs.Perm(640), entries[0].Permissions)
		assert.Zero(t, entries[0].Size)
		assert.EqualValues(t, 1, entries[0].Nlink)
	}
}

func TestFileSystem_CreateErrors(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Create("/f", 644))
	require.NoError(t, fs.Mkdir("/d", 755))

	tests := []struct {
		path string
		want error
	}{
		{"/missing/f", treefs.ErrPathInvalid},
		{"/f/x", treefs.ErrPathInvalid},
		{"", treefs.ErrPathInvalid},
		{"/f", treefs.ErrNameExists},
		{"/d", treefs.ErrNameExists},
		{"/", treefs.ErrNameExists},
		{"/" + strings.Repeat("n", 256), treefs.ErrNameTooLong},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, fs.Create(tt.path, 644), tt.want, "create %q", tt.path)
		assert.ErrorIs(t, fs.Mkdir(tt.path, 755), tt.want, "mkdir %q", tt.path)
	}
}

func TestFileSystem_DirectoryFull(t *testing.T) {
	t.Parallel()
	cfg := createTestConfig()
	cfg.MaxChildren = 3
	fs := NewFS(cfg)

	for i := range 3 {
		require.NoError(t, fs.Create(fmt.Sprintf("/f%d", i), 644))
	}
	assert.ErrorIs(t, fs.Create("/f3", 644), treefs.ErrDirectoryFull)
	assert.ErrorIs(t, fs.Mkdir("/d", 755), treefs.ErrDirectoryFull)
	assert.Len(t, listNames(t, fs, "/"), 3)
}

func TestFileSystem_ListOrderAndRestart(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, fs.Create("/"+name, 644))
	}
	require.NoError(t, fs.Mkdir("/dir", 700))
	require.NoError(t, fs.Symlink("/zeta", "/ln"))

	seq, err := fs.List("/")
	require.NoError(t, err)

	var first, second []string
	for e := range seq {
		first = append(first, e.Name)
	}
	for e := range seq {
		second = append(second, e.Name)
	}
	want := []string{"zeta", "alpha", "mid", "dir", "ln"}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second)

	// early break
	var one []string
	for e := range seq {
		one = append(one, e.Name)
		break
	}
	assert.Equal(t, []string{"zeta"}, one)

	entries := listEntries(t, fs, "/")
	assert.Equal(t, treefs.KindDirectory, entries[3].Kind)
	assert.Equal(t, "/zeta", entries[4].SymlinkTarget)
	assert.True(t, entries[4].IsSymlink())
}

func TestFileSystem_ListErrors(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Create("/f", 644))

	_, err := fs.List("/f")
	assert.ErrorIs(t, err, treefs.ErrNotADirectory)
	_, err = fs.List("/missing")
	assert.ErrorIs(t, err, treefs.ErrNameNotFound)
	_, err = fs.List("/missing/x")
	assert.ErrorIs(t, err, treefs.ErrPathInvalid)
}

func TestFileSystem_ListEmptyPathIsCursor(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/d", 755))
	require.NoError(t, fs.Create("/d/inner", 644))
	require.NoError(t, fs.Chdir("/d"))

	assert.Equal(t, []string{"inner"}, listNames(t, fs, ""))
}

func TestFileSystem_Chdir(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/a", 755))
	require.NoError(t, fs.Mkdir("/a/b", 755))
	require.NoError(t, fs.Create("/a/f", 644))

	require.NoError(t, fs.Chdir("a"))
	assert.Equal(t, "/a", fs.Cwd())
	require.NoError(t, fs.Chdir("b"))
	assert.Equal(t, "/a/b", fs.Cwd())
	require.NoError(t, fs.Chdir(".."))
	assert.Equal(t, "/a", fs.Cwd())
	require.NoError(t, fs.Chdir("/"))
	assert.Equal(t, "/", fs.Cwd())

	assert.ErrorIs(t, fs.Chdir(".."), treefs.ErrAlreadyAtRoot)
	assert.ErrorIs(t, fs.Chdir("/.."), treefs.ErrAlreadyAtRoot)
	assert.ErrorIs(t, fs.Chdir("../.."), treefs.ErrAlreadyAtRoot)
	assert.ErrorIs(t, fs.Chdir("/a/../.."), treefs.ErrAlreadyAtRoot)
	assert.Equal(t, "/", fs.Cwd())

	// ".." at the root stays at the root when the path continues
	require.NoError(t, fs.Chdir("../a"))
	assert.Equal(t, "/a", fs.Cwd())
	require.NoError(t, fs.Chdir("/../a/b"))
	assert.Equal(t, "/a/b", fs.Cwd())
	require.NoError(t, fs.Chdir("/../../a"))
	assert.Equal(t, "/a", fs.Cwd())
	require.NoError(t, fs.Chdir("/"))
	assert.ErrorIs(t, fs.Chdir("/a/f"), treefs.ErrNotADirectory)
	assert.ErrorIs(t, fs.Chdir("/nope"), treefs.ErrNameNotFound)
	assert.ErrorIs(t, fs.Chdir("/nope/x"), treefs.ErrPathInvalid)
	assert.Equal(t, "/", fs.Cwd())
}

func TestFileSystem_DeleteFile(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, fs.Create("/"+name, 644))
	}

	require.NoError(t, fs.Delete("/b", false))
	assert.Equal(t, []string{"a", "c"}, listNames(t, fs, "/"))
	assert.ErrorIs(t, fs.Delete("/b", false), treefs.ErrNameNotFound)
	assert.ErrorIs(t, fs.Delete("/x/b", false), treefs.ErrPathInvalid)
	assert.ErrorIs(t, fs.Delete("/", true), treefs.ErrPathInvalid)
}

func TestFileSystem_DeleteDirectory(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/d", 755))
	require.NoError(t, fs.Mkdir("/d/sub", 755))
	require.NoError(t, fs.Create("/d/sub/f", 644))
	require.NoError(t, fs.Create("/d/g", 644))
	require.NoError(t, fs.Mkdir("/empty", 755))

	assert.ErrorIs(t, fs.Delete("/d", false), treefs.ErrDirectoryNotEmpty)
	assert.Equal(t, []string{"sub", "g"}, listNames(t, fs, "/d"))

	// empty directories don't need recursive
	require.NoError(t, fs.Delete("/empty", false))

	require.NoError(t, fs.Delete("/d", true))
	assert.Empty(t, listNames(t, fs, "/"))
	for _, p := range []string{"/d", "/d/g", "/d/sub", "/d/sub/f"} {
		_, _, err := fs.Stat(p)
		require.Error(t, err, p)
		code := treefs.CodeOf(err)
		assert.True(t, code == treefs.CodePathInvalid || code == treefs.CodeNameNotFound, "%s: %v", p, err)
	}
	// everything below root was released
	assert.Equal(t, 1, fs.st.nodes.Size())
	assert.Equal(t, 1, fs.st.inodes.Size())
}

func TestFileSystem_DeleteMovesCursorOut(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/a", 755))
	require.NoError(t, fs.Mkdir("/a/b", 755))
	require.NoError(t, fs.Mkdir("/a/b/c", 755))
	require.NoError(t, fs.Chdir("/a/b/c"))

	require.NoError(t, fs.Delete("/a/b", true))
	assert.Equal(t, "/a", fs.Cwd())

	// deleting elsewhere leaves the cursor alone
	require.NoError(t, fs.Mkdir("/other", 755))
	require.NoError(t, fs.Delete("/other", false))
	assert.Equal(t, "/a", fs.Cwd())
}

func TestFileSystem_Copy(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/a", 755))
	require.NoError(t, fs.Mkdir("/b", 755))
	writeFile(t, fs, "/a/f.txt", "payload")
	require.NoError(t, fs.Chmod("/a/f.txt", 640))

	require.NoError(t, fs.Copy("/a/f.txt", "/b/g.txt"))
	assert.Equal(t, "payload", readFile(t, fs, "/b/g.txt"))
	entry, _, err := fs.Stat("/b/g.txt")
	require.NoError(t, err)
	assert.Equal(t, treefs.Perm(640), entry.Permissions)
	assert.EqualValues(t, 7, entry.Size)

	// copies don't share content
	writeFile(t, fs, "/b/g.txt", "changed")
	assert.Equal(t, "payload", readFile(t, fs, "/a/f.txt"))

	// into an existing directory keeps the source name
	require.NoError(t, fs.Copy("/a/f.txt", "/b"))
	assert.Equal(t, []string{"g.txt", "f.txt"}, listNames(t, fs, "/b"))

	// never-written files copy as never-written
	require.NoError(t, fs.Create("/a/empty", 644))
	require.NoError(t, fs.Copy("/a/empty", "/b/empty"))
	assert.Equal(t, "", readFile(t, fs, "/b/empty"))
}

func TestFileSystem_CopyErrors(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/d", 755))
	require.NoError(t, fs.Create("/f", 644))
	require.NoError(t, fs.Create("/d/f", 644))

	assert.ErrorIs(t, fs.Copy("/missing", "/x"), treefs.ErrNameNotFound)
	assert.ErrorIs(t, fs.Copy("/d", "/x"), treefs.ErrNotAFile)
	assert.ErrorIs(t, fs.Copy("/f", "/nope/x"), treefs.ErrPathInvalid)
	assert.ErrorIs(t, fs.Copy("/f", "/d/f"), treefs.ErrNameExists)
	assert.ErrorIs(t, fs.Copy("/f", "/d"), treefs.ErrNameExists)
	assert.Equal(t, []string{"d", "f"}, listNames(t, fs, "/"))
}

func TestFileSystem_CopySymlinkCopiesLink(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Symlink("/target", "/ln"))

	require.NoError(t, fs.Copy("/ln", "/ln2"))
	target, err := fs.Readlink("/ln2")
	require.NoError(t, err)
	assert.Equal(t, "/target", target)
}

func TestFileSystem_Move(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/a", 755))
	require.NoError(t, fs.Mkdir("/b", 755))
	writeFile(t, fs, "/a/f.txt", "content")

	require.NoError(t, fs.Move("/a/f.txt", "/b/g.txt"))
	assert.Empty(t, listNames(t, fs, "/a"))
	assert.Equal(t, []string{"g.txt"}, listNames(t, fs, "/b"))
	assert.Equal(t, "content", readFile(t, fs, "/b/g.txt"))
}

func TestFileSystem_MoveFailureKeepsSource(t *testing.T) {
	t.Parallel()
	cfg := createTestConfig()
	cfg.MaxChildren = 1
	fs := NewFS(cfg)
	require.NoError(t, fs.Mkdir("/a", 755))
	require.NoError(t, fs.Mkdir("/a/full", 755))
	require.NoError(t, fs.Create("/a/full/x", 644))
	writeFile(t, fs, "/a/full/x", "keep")

	assert.ErrorIs(t, fs.Move("/a/full/x", "/nope/g.txt"), treefs.ErrPathInvalid)
	assert.ErrorIs(t, fs.Move("/a/full/x", "/a/y"), treefs.ErrDirectoryFull)
	assert.ErrorIs(t, fs.Move("/a/full/x", "/a/full"), treefs.ErrNameExists)
	assert.ErrorIs(t, fs.Move("/missing", "/a/y"), treefs.ErrNameNotFound)

	assert.Equal(t, []string{"x"}, listNames(t, fs, "/a/full"))
	assert.Equal(t, "keep", readFile(t, fs, "/a/full/x"))
}

func TestFileSystem_MoveDirectory(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/src", 755))
	require.NoError(t, fs.Mkdir("/src/inner", 755))
	writeFile(t, fs, "/src/inner/f", "deep")
	require.NoError(t, fs.Mkdir("/dst", 755))
	require.NoError(t, fs.Chdir("/src/inner"))

	assert.ErrorIs(t, fs.Move("/src", "/src/inner/x"), treefs.ErrPathInvalid)
	assert.ErrorIs(t, fs.Move("/src", "/src"), treefs.ErrPathInvalid)
	assert.ErrorIs(t, fs.Move("/", "/dst/root"), treefs.ErrPathInvalid)

	require.NoError(t, fs.Move("/src", "/dst"))
	assert.Equal(t, []string{"dst"}, listNames(t, fs, "/"))
	assert.Equal(t, "deep", readFile(t, fs, "/dst/src/inner/f"))
	// the cursor follows its directory
	assert.Equal(t, "/dst/src/inner", fs.Cwd())
}

func TestFileSystem_MoveKeepsOpenStateAndLinks(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	writeFile(t, fs, "/f", "v1")
	require.NoError(t, fs.Link("/f", "/hard"))
	require.NoError(t, fs.Open("/f", treefs.ModeReadWrite))

	require.NoError(t, fs.Move("/f", "/renamed"))
	require.NoError(t, fs.Write("/renamed", []byte("v2")))
	require.NoError(t, fs.Close("/renamed"))
	assert.Equal(t, "v2", readFile(t, fs, "/hard"))
}

func TestFileSystem_Chmod(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Create("/f", 644))
	require.NoError(t, fs.Mkdir("/d", 755))

	require.NoError(t, fs.Chmod("/f", 9999)) // not range checked
	require.NoError(t, fs.Chmod("/d", 700))
	entries := listEntries(t, fs, "/")
	assert.Equal(t, treefs.Perm(9999), entries[0].Permissions)
	assert.Equal(t, treefs.Perm(700), entries[1].Permissions)

	assert.ErrorIs(t, fs.Chmod("/missing", 644), treefs.ErrNameNotFound)
	assert.ErrorIs(t, fs.Chmod("/missing/x", 644), treefs.ErrPathInvalid)
}

func TestFileSystem_Stat(t *testing.T) {
	t.Parallel()
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/d", 750))
	writeFile(t, fs, "/d/f", "hello")
	require.NoError(t, fs.Symlink("/d/f", "/ln"))

	entry, attr, err := fs.Stat("/d/f")
	require.NoError(t, err)
	assert.Equal(t, "f", entry.Name)
	assert.EqualValues(t, 5, entry.Size)
	assert.EqualValues(t, 5, attr.Size)
	assert.Equal(t, uint32(fuse.S_IFREG|0o644), attr.Mode)
	assert.EqualValues(t, 1, attr.Nlink)

	_, attr, err = fs.Stat("/d")
	require.NoError(t, err)
	assert.Equal(t, uint32(fuse.S_IFDIR|0o750), attr.Mode)

	entry, attr, err = fs.Stat("/ln")
	require.NoError(t, err)
	assert.Equal(t, "/d/f", entry.SymlinkTarget)
	assert.Equal(t, uint32(fuse.S_IFLNK|0o777), attr.Mode)
	assert.EqualValues(t, len("/d/f"), attr.Size)

	_, _, err = fs.Stat("/d/missing")
	assert.ErrorIs(t, err, treefs.ErrNameNotFound)
}
