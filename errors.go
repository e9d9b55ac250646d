package treefs

import "errors"

// ErrorCode represents the category of a namespace error.
//
// Front ends translate ErrorCode to whatever they present to users
// (messages, exit codes, errno values).
type ErrorCode int

const (
	// CodePathInvalid indicates a path component is missing or not traversable
	CodePathInvalid ErrorCode = iota + 1

	// CodeNotADirectory indicates the operation expected a directory
	CodeNotADirectory

	// CodeNotAFile indicates the operation expected a file
	CodeNotAFile

	// CodeDirectoryFull indicates the parent is at its child capacity
	CodeDirectoryFull

	// CodeNameNotFound indicates a lookup failed in an existing directory
	CodeNameNotFound

	// CodeAlreadyAtRoot indicates an attempt to move above the root
	CodeAlreadyAtRoot

	CodeAlreadyOpen
	CodeNotOpen

	// CodePermissionDenied indicates the owner bits lack the requested access
	CodePermissionDenied

	// CodeNotOpenForRead / CodeNotOpenForWrite indicate the open mode lacks
	// the bit required by read or write
	CodeNotOpenForRead
	CodeNotOpenForWrite

	// CodeInvalidMode indicates an unrecognized open mode token
	CodeInvalidMode

	// CodeNameExists indicates a sibling with the same name already exists
	CodeNameExists

	// CodeNameTooLong indicates a name exceeds the configured maximum
	CodeNameTooLong

	// CodeDirectoryNotEmpty indicates a non-recursive delete of a populated directory
	CodeDirectoryNotEmpty

	CodeNotASymlink

	// CodeSymlinkLoop indicates symbolic link following exceeded the hop limit
	CodeSymlinkLoop

	// CodeFileTooLarge indicates a write beyond the configured maximum file size
	CodeFileTooLarge
)

var codeText = map[ErrorCode]string{
	CodePathInvalid:       "invalid path",
	CodeNotADirectory:     "not a directory",
	CodeNotAFile:          "not a file",
	CodeDirectoryFull:     "directory full",
	CodeNameNotFound:      "name not found",
	CodeAlreadyAtRoot:     "already at root",
	CodeAlreadyOpen:       "already open",
	CodeNotOpen:           "not open",
	CodePermissionDenied:  "permission denied",
	CodeNotOpenForRead:    "not open for reading",
	CodeNotOpenForWrite:   "not open for writing",
	CodeInvalidMode:       "invalid open mode",
	CodeNameExists:        "name already exists",
	CodeNameTooLong:       "name too long",
	CodeDirectoryNotEmpty: "directory not empty",
	CodeNotASymlink:       "not a symbolic link",
	CodeSymlinkLoop:       "too many levels of symbolic links",
	CodeFileTooLarge:      "file too large",
}

func (c ErrorCode) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return "unknown error"
}

// Error is the structured error returned by every namespace operation
type Error struct {
	Code ErrorCode
	// Op is the operation that failed, i.e. "create"
	Op string
	// Path is the path argument related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	return msg
}

// Is matches any *Error carrying the same Code so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError builds an *Error for op on path
func NewError(code ErrorCode, op, path string) *Error {
	return &Error{Code: code, Op: op, Path: path}
}

// CodeOf returns the ErrorCode carried by err or 0 if err is not an *Error
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Sentinels for use with errors.Is
var (
	ErrPathInvalid       = &Error{Code: CodePathInvalid}
	ErrNotADirectory     = &Error{Code: CodeNotADirectory}
	ErrNotAFile          = &Error{Code: CodeNotAFile}
	ErrDirectoryFull     = &Error{Code: CodeDirectoryFull}
	ErrNameNotFound      = &Error{Code: CodeNameNotFound}
	ErrAlreadyAtRoot     = &Error{Code: CodeAlreadyAtRoot}
	ErrAlreadyOpen       = &Error{Code: CodeAlreadyOpen}
	ErrNotOpen           = &Error{Code: CodeNotOpen}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied}
	ErrNotOpenForRead    = &Error{Code: CodeNotOpenForRead}
	ErrNotOpenForWrite   = &Error{Code: CodeNotOpenForWrite}
	ErrInvalidMode       = &Error{Code: CodeInvalidMode}
	ErrNameExists        = &Error{Code: CodeNameExists}
	ErrNameTooLong       = &Error{Code: CodeNameTooLong}
	ErrDirectoryNotEmpty = &Error{Code: CodeDirectoryNotEmpty}
	ErrNotASymlink       = &Error{Code: CodeNotASymlink}
	ErrSymlinkLoop       = &Error{Code: CodeSymlinkLoop}
	ErrFileTooLarge      = &Error{Code: CodeFileTooLarge}
)
