package vfs

import (
	"context"
	"strings"
	"time"
)

// Flag holds the capability tags of a Handle.
type Flag uint32

const (
	FDIRECTORY Flag = 1 << iota // may be enumerated with ReadDir
	FNETWORK                    // backed by a network endpoint
	FSTREAM                     // protocol stream, no seek or metadata
	FOPEN                       // backend state is attached
	FOWNSTATE                   // the handle owns its backend state
	FNODESTROY                  // never released (roots)
)

var flagNames = []string{
	"DIRECTORY", "NETWORK", "STREAM", "OPEN", "OWNSTATE", "NODESTROY",
}

func (f Flag) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of mask is set.
func (f Flag) Has(mask Flag) bool {
	return f&mask == mask
}

// FileInfo describes a file as reported by Stat or ReadDir.
type FileInfo struct {
	Name    string
	Size    int64
	Flags   Flag
	ModTime time.Time
}

// Handle is the uniform view of an open file of any backend.
// All methods are safe to call concurrently with Close: once Close
// has begun, Read and Write fail with ErrNotConnected.
type Handle interface {
	Read(ctx context.Context, p []byte) (int, error)
	Write(ctx context.Context, p []byte) (int, error)
	Stat(ctx context.Context) (FileInfo, error)
	Ioctl(ctx context.Context, req uint32, arg []byte) (int, error)

	// Path copies the canonical name into buf and returns the
	// number of bytes written.
	Path(buf []byte) int
	// Size is -1 when the file is unbounded or unknown.
	Size() int64

	// Close must be idempotent.
	// It is a no-op on FNODESTROY handles.
	Close(ctx context.Context) error

	Flags() Flag
	Name() string
	Offset() int64
	FileSystem() *FileSystem
}

// FileOps is the table of per-file operations a backend supplies.
// Every call receives the live backend state; the generic File
// never calls into FileOps once the state has been released.
type FileOps[S any] interface {
	Read(ctx context.Context, st *S, p []byte) (int, error)
	Write(ctx context.Context, st *S, p []byte) (int, error)
	Stat(ctx context.Context, st *S) (FileInfo, error)
	Ioctl(ctx context.Context, st *S, req uint32, arg []byte) (int, error)
	Path(st *S) string
	Size(st *S) int64

	// Release tears down state owned by a closing handle.
	// Called at most once per attached state.
	Release(ctx context.Context, st *S) error
}

// Driver is the table of filesystem operations a backend supplies.
//
// Note: Resolve must not publish a partially initialized handle.
// On failure it returns a nil Handle and releases everything
// acquired during the attempt.
type Driver interface {
	// Open completes a resolved handle. Backends that connect
	// eagerly during Resolve treat this as a no-op.
	Open(ctx context.Context, h Handle, create, write bool) error
	Close(ctx context.Context, h Handle) error
	Resolve(ctx context.Context, fs *FileSystem, name string) (Handle, error)
	// Root never fails and always returns the same handle.
	Root(fs *FileSystem) Handle
	Teardown(ctx context.Context, fs *FileSystem) error
}

// Lister is implemented by drivers whose root can be enumerated.
type Lister interface {
	List(ctx context.Context, fs *FileSystem) ([]FileInfo, error)
}

// FileSystem is the record for one mounted backend.
// It is the factory and authority for handles of its kind.
type FileSystem struct {
	name string
	ops  Driver
	priv any
}

// NewFileSystem creates the record for a driver.
// priv is optional driver-private state.
func NewFileSystem(name string, ops Driver, priv any) *FileSystem {
	return &FileSystem{name: name, ops: ops, priv: priv}
}

func (fs *FileSystem) Name() string   { return fs.name }
func (fs *FileSystem) Driver() Driver { return fs.ops }
func (fs *FileSystem) Private() any   { return fs.priv }

func (fs *FileSystem) Resolve(ctx context.Context, name string) (Handle, error) {
	return fs.ops.Resolve(ctx, fs, name)
}

func (fs *FileSystem) Open(ctx context.Context, h Handle, create, write bool) error {
	return fs.ops.Open(ctx, h, create, write)
}

func (fs *FileSystem) Close(ctx context.Context, h Handle) error {
	return fs.ops.Close(ctx, h)
}

func (fs *FileSystem) Root() Handle {
	return fs.ops.Root(fs)
}

func (fs *FileSystem) Teardown(ctx context.Context) error {
	return fs.ops.Teardown(ctx, fs)
}
