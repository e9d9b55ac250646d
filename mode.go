package treefs

import "strings"

// OpenMode is the bitmask granted by a successful open
type OpenMode uint8

const (
	ModeRead OpenMode = 1 << iota
	ModeWrite

	ModeReadWrite = ModeRead | ModeWrite
)

// CanRead reports whether the Read bit is set
func (m OpenMode) CanRead() bool { return m&ModeRead != 0 }

// CanWrite reports whether the Write bit is set
func (m OpenMode) CanWrite() bool { return m&ModeWrite != 0 }

// Valid reports whether m is a non-empty subset of {Read, Write}
func (m OpenMode) Valid() bool {
	return m != 0 && m&^ModeReadWrite == 0
}

// PermBits returns the owner permission bits the mode requires
func (m OpenMode) PermBits() int {
	bits := 0
	if m.CanRead() {
		bits |= PermRead
	}
	if m.CanWrite() {
		bits |= PermWrite
	}
	return bits
}

func (m OpenMode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeReadWrite:
		return "rw"
	default:
		return ""
	}
}

// ParseOpenMode maps the user-facing tokens "r", "w" and "rw" (or "wr")
// to an OpenMode. Any other token fails with ErrInvalidMode.
func ParseOpenMode(token string) (OpenMode, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "r":
		return ModeRead, nil
	case "w":
		return ModeWrite, nil
	case "rw", "wr":
		return ModeReadWrite, nil
	default:
		return 0, NewError(CodeInvalidMode, "open", token)
	}
}
