package filesystem

import (
	"strings"

	"github.com/brettbedarf/treefs"
)

// resolution is the outcome of resolving a path. Either node is set (the
// path denotes an existing entry) or only parent and leaf are set (the final
// component is missing but every preceding one is an existing directory).
type resolution struct {
	node   *Node
	parent *Node  // directory the final component lives or would live in
	leaf   string // final component name
	// aboveRoot is set when the walk ended on a ".." applied at the root
	// (only "." may follow it)
	aboveRoot bool
}

// exists reports whether the path denotes an existing entry
func (r resolution) exists() bool {
	return r.node != nil
}

// resolve walks p from the root (absolute) or the cursor (relative).
// Symbolic links are only chased when Config.FollowSymlinks is set; the
// final component is chased only if followFinal is set as well.
// Caller must hold fs.mu.
func (fs *FileSystem) resolve(op, p string, followFinal bool) (resolution, error) {
	if p == "" {
		return resolution{}, treefs.NewError(treefs.CodePathInvalid, op, p)
	}
	hops := 0
	return fs.walkPath(op, p, p, fs.cursor(), followFinal, &hops)
}

func (fs *FileSystem) walkPath(op, errPath, p string, start *Node, followFinal bool, hops *int) (resolution, error) {
	cur := start
	if strings.HasPrefix(p, "/") {
		cur = fs.st.root
	}

	aboveRoot := false
	parts := splitPath(p)
	for i, part := range parts {
		last := i == len(parts)-1
		switch part {
		case ".":
		case "..":
			aboveRoot = cur.IsRoot()
			cur = fs.st.parentOf(cur)
		default:
			aboveRoot = false
			_, child := fs.st.lookup(cur, part)
			if child == nil {
				if last {
					return resolution{parent: cur, leaf: part, aboveRoot: aboveRoot}, nil
				}
				return resolution{}, treefs.NewError(treefs.CodePathInvalid, op, errPath)
			}

			if child.IsSymlink() && fs.cfg.FollowSymlinks && (!last || followFinal) {
				target, err := fs.chase(op, errPath, cur, child, hops)
				if err != nil {
					return resolution{}, err
				}
				if target == nil {
					code := treefs.CodePathInvalid
					if last {
						code = treefs.CodeNameNotFound
					}
					return resolution{}, treefs.NewError(code, op, errPath)
				}
				child = target
			}

			if last {
				return resolution{node: child, parent: cur, leaf: part, aboveRoot: aboveRoot}, nil
			}
			if !child.IsDir() {
				return resolution{}, treefs.NewError(treefs.CodePathInvalid, op, errPath)
			}
			cur = child
		}
	}

	// "/", "." or a path ending in "." or ".."
	return resolution{node: cur, parent: fs.st.parentOf(cur), leaf: cur.name, aboveRoot: aboveRoot}, nil
}

// chase resolves link's target relative to dir, the directory holding link.
// Returns a nil node for a dangling link.
func (fs *FileSystem) chase(op, errPath string, dir, link *Node, hops *int) (*Node, error) {
	*hops++
	if *hops > MaxSymlinkHops {
		return nil, treefs.NewError(treefs.CodeSymlinkLoop, op, errPath)
	}
	res, err := fs.walkPath(op, errPath, link.symlinkTarget, dir, true, hops)
	if err != nil {
		if treefs.CodeOf(err) == treefs.CodePathInvalid {
			return nil, nil
		}
		return nil, err
	}
	return res.node, nil
}

// splitPath splits p into components, dropping empty ones so repeated and
// trailing slashes are ignored
func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

// validName checks a name about to be linked into a directory
func (fs *FileSystem) validName(op, p, name string) error {
	switch {
	case name == "", name == ".", name == "..", strings.ContainsRune(name, '/'):
		return treefs.NewError(treefs.CodePathInvalid, op, p)
	case len(name) > fs.cfg.MaxNameLen:
		return treefs.NewError(treefs.CodeNameTooLong, op, p)
	}
	return nil
}
