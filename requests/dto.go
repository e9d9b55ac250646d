package requests

// OpType names a namespace operation in a batch file
type OpType string

const (
	OpCreate   OpType = "create"
	OpMkdir    OpType = "mkdir"
	OpList     OpType = "list"
	OpChdir    OpType = "chdir"
	OpCwd      OpType = "cwd"
	OpDelete   OpType = "delete"
	OpCopy     OpType = "copy"
	OpMove     OpType = "move"
	OpChmod    OpType = "chmod"
	OpStat     OpType = "stat"
	OpOpen     OpType = "open"
	OpRead     OpType = "read"
	OpWrite    OpType = "write"
	OpClose    OpType = "close"
	OpLink     OpType = "link"
	OpSymlink  OpType = "symlink"
	OpReadlink OpType = "readlink"
)

// Defaults applied to omitted DTO fields
const (
	DefaultFilePerms = 644
	DefaultDirPerms  = 755
	DefaultMaxLen    = 4096
)

// OpDTO is the YAML/JSON representation of one already-tokenized operation.
//
// Field use per op:
//
//	create, mkdir, chmod          path, perms
//	list, chdir, stat, readlink   path
//	delete                        path, recursive
//	copy, move                    path (source), dest
//	open                          path, mode ("r", "w", "rw")
//	read                          path, max_len
//	write                         path, data
//	close                         path
//	link, symlink                 path (target), dest (new name)
type OpDTO struct {
	Op        OpType  `json:"op" yaml:"op"`
	Path      string  `json:"path,omitempty" yaml:"path,omitempty"`
	Dest      string  `json:"dest,omitempty" yaml:"dest,omitempty"`
	Perms     *int32  `json:"perms,omitempty" yaml:"perms,omitempty"` // i.e. 644
	Mode      string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Data      *string `json:"data,omitempty" yaml:"data,omitempty"`
	Recursive *bool   `json:"recursive,omitempty" yaml:"recursive,omitempty"`
	MaxLen    *int    `json:"max_len,omitempty" yaml:"max_len,omitempty"` // (Default 4096)
}

// BatchDTO is the top level of a batch file
type BatchDTO struct {
	Ops []OpDTO `json:"ops" yaml:"ops"`
}
