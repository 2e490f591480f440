package vfs

import (
	"strings"
)

// Mode selects how Namespace.Open completes a handle.
type Mode uint8

const (
	OREAD  Mode = 0
	OWRITE Mode = 1
	ORDWR  Mode = 2

	OCREATE Mode = 0x10
)

func (m Mode) write() bool  { return m&0x3 == OWRITE || m&0x3 == ORDWR }
func (m Mode) create() bool { return m&OCREATE != 0 }

// SplitPath separates a namespace path "<mount>:<name>" at the
// first colon. The name keeps any further colons, so
// "tcp:10.0.0.5:23" is mount "tcp", name "10.0.0.5:23".
// A name of "" or "/" selects the mount's root.
func SplitPath(p string) (mount, name string, err error) {
	mount, name, ok := strings.Cut(p, ":")
	if !ok || mount == "" {
		return "", "", NewError("open", p, ErrInvalidName, nil)
	}
	if strings.ContainsAny(mount, "/\\ ") {
		return "", "", NewError("open", p, ErrInvalidName, nil)
	}
	return mount, name, nil
}

// IsRoot reports whether name selects a root.
func IsRoot(name string) bool {
	return name == "" || name == "/"
}

// ValidName checks a single flat file name: non-empty,
// not "." or "..", and free of path separators.
func ValidName(name string) bool {
	if len(name) == 0 || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "\\/")
}
