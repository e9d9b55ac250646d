package requests

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Namespace is the set of operations a batch can drive.
// *filesystem.FileSystem implements it.
type Namespace interface {
	Create(path string, perm treefs.Perm) error
	Mkdir(path string, perm treefs.Perm) error
	List(path string) (iter.Seq[treefs.Entry], error)
	Chdir(path string) error
	Cwd() string
	Delete(path string, recursive bool) error
	Copy(src, dst string) error
	Move(src, dst string) error
	Chmod(path string, perm treefs.Perm) error
	Stat(path string) (treefs.Entry, fuse.Attr, error)
	Open(path string, mode treefs.OpenMode) error
	Read(path string, maxLen int) ([]byte, error)
	Write(path string, data []byte) error
	Close(path string) error
	Link(target, name string) error
	Symlink(target, name string) error
	Readlink(path string) (string, error)
}

// Result is the structured outcome of one operation. Code is 0 on success;
// a failure that is not a namespace error (i.e. an unknown op or a missing
// field) only sets Error.
type Result struct {
	Op      OpType           `json:"op" yaml:"op"`
	Path    string           `json:"path,omitempty" yaml:"path,omitempty"`
	Code    treefs.ErrorCode `json:"code,omitempty" yaml:"code,omitempty"`
	Error   string           `json:"error,omitempty" yaml:"error,omitempty"`
	Entries []treefs.Entry   `json:"entries,omitempty" yaml:"entries,omitempty"` // list
	Entry   *treefs.Entry    `json:"entry,omitempty" yaml:"entry,omitempty"`     // stat
	Data    string           `json:"data,omitempty" yaml:"data,omitempty"`       // read, readlink, cwd
}

// OK reports whether the operation succeeded
func (r Result) OK() bool {
	return r.Error == ""
}

var (
	// ErrUnknownOp is reported for ops the runner doesn't know
	ErrUnknownOp = errors.New("unknown op")

	// ErrMissingField is reported when an op lacks a field it requires
	ErrMissingField = errors.New("missing field")
)

// Run applies ops in order and returns one Result per op. A failed op does
// not stop the batch.
func Run(ns Namespace, ops []OpDTO) []Result {
	logger := util.GetLogger("Requests.Run")
	results := make([]Result, 0, len(ops))
	failed := 0
	for _, op := range ops {
		res := Apply(ns, op)
		if !res.OK() {
			failed++
		}
		results = append(results, res)
	}
	logger.Debug().Int("ops", len(ops)).Int("failed", failed).Msg("Batch done")
	return results
}

// Apply runs a single op
func Apply(ns Namespace, op OpDTO) Result {
	logger := util.GetLogger("Requests.Apply")
	res := Result{Op: op.Op, Path: op.Path}

	err := apply(ns, op, &res)
	if err != nil {
		res.Code = treefs.CodeOf(err)
		res.Error = err.Error()
		logger.Debug().Err(err).Str("op", string(op.Op)).Str("path", op.Path).Msg("Op failed")
	}
	return res
}

func apply(ns Namespace, op OpDTO, res *Result) error {
	switch op.Op {
	case OpCreate:
		return ns.Create(op.Path, treefs.Perm(valueOrDefault(op.Perms, DefaultFilePerms)))
	case OpMkdir:
		return ns.Mkdir(op.Path, treefs.Perm(valueOrDefault(op.Perms, DefaultDirPerms)))
	case OpList:
		seq, err := ns.List(op.Path)
		if err != nil {
			return err
		}
		res.Entries = slices.Collect(seq)
		return nil
	case OpChdir:
		return ns.Chdir(op.Path)
	case OpCwd:
		res.Data = ns.Cwd()
		return nil
	case OpDelete:
		return ns.Delete(op.Path, valueOrDefault(op.Recursive, false))
	case OpCopy:
		return ns.Copy(op.Path, op.Dest)
	case OpMove:
		return ns.Move(op.Path, op.Dest)
	case OpChmod:
		if op.Perms == nil {
			return fmt.Errorf("%w: chmod requires perms", ErrMissingField)
		}
		return ns.Chmod(op.Path, treefs.Perm(*op.Perms))
	case OpStat:
		entry, _, err := ns.Stat(op.Path)
		if err != nil {
			return err
		}
		res.Entry = &entry
		return nil
	case OpOpen:
		mode, err := treefs.ParseOpenMode(op.Mode)
		if err != nil {
			return err
		}
		return ns.Open(op.Path, mode)
	case OpRead:
		data, err := ns.Read(op.Path, valueOrDefault(op.MaxLen, DefaultMaxLen))
		if err != nil {
			return err
		}
		res.Data = string(data)
		return nil
	case OpWrite:
		return ns.Write(op.Path, []byte(valueOrDefault(op.Data, "")))
	case OpClose:
		return ns.Close(op.Path)
	case OpLink:
		return ns.Link(op.Path, op.Dest)
	case OpSymlink:
		return ns.Symlink(op.Path, op.Dest)
	case OpReadlink:
		target, err := ns.Readlink(op.Path)
		if err != nil {
			return err
		}
		res.Data = target
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, op.Op)
	}
}
