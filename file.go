package vfs

import (
	"context"
	"sync/atomic"
)

// File is the runtime handle for one backend, typed on its state.
//
// The state pointer is the single source of truth for "open":
// Close swaps it to nil before calling Release, so any operation
// that loads nil fails with ErrNotConnected instead of touching
// released state. FOPEN and FOWNSTATE are derived from it.
type File[S any] struct {
	ops   FileOps[S]
	fs    *FileSystem // non-owning
	name  string
	flags Flag // immutable; never holds FOPEN or FOWNSTATE
	pos   atomic.Int64
	state atomic.Pointer[S]
}

var _ Handle = (*File[struct{}])(nil)

// NewFile binds a handle to ops and fs.
// If st is non-nil the handle is created open and owning st.
func NewFile[S any](fs *FileSystem, ops FileOps[S], name string, flags Flag, st *S) *File[S] {
	f := &File[S]{ops: ops, fs: fs, name: name, flags: flags &^ (FOPEN | FOWNSTATE)}
	if st != nil {
		f.state.Store(st)
	}
	return f
}

// NewRoot creates a filesystem root: a stateless directory
// that Close never releases.
func NewRoot[S any](fs *FileSystem, ops FileOps[S]) *File[S] {
	return NewFile[S](fs, ops, "/", FDIRECTORY|FNODESTROY, nil)
}

// Attach installs st into a handle that has none.
// Only valid before the handle is published to other goroutines
// (i.e. from Driver.Open); returns false if state is present
// or the handle is a root.
func (f *File[S]) Attach(st *S) bool {
	if st == nil || f.flags&FNODESTROY != 0 {
		return false
	}
	return f.state.CompareAndSwap(nil, st)
}

// State returns the attached backend state, or nil.
func (f *File[S]) State() *S {
	return f.state.Load()
}

// Flags reports FOPEN|FOWNSTATE exactly while state is attached.
func (f *File[S]) Flags() Flag {
	if f.state.Load() != nil {
		return f.flags | FOPEN | FOWNSTATE
	}
	return f.flags
}

func (f *File[S]) Name() string            { return f.name }
func (f *File[S]) Offset() int64           { return f.pos.Load() }
func (f *File[S]) FileSystem() *FileSystem { return f.fs }

func (f *File[S]) live(op string) (*S, error) {
	st := f.state.Load()
	if st == nil {
		return nil, NewError(op, f.name, ErrNotConnected, nil)
	}
	return st, nil
}

func (f *File[S]) Read(ctx context.Context, p []byte) (int, error) {
	st, err := f.live("read")
	if err != nil {
		return 0, err
	}
	n, err := f.ops.Read(ctx, st, p)
	if n > 0 {
		f.pos.Add(int64(n))
	}
	return n, err
}

func (f *File[S]) Write(ctx context.Context, p []byte) (int, error) {
	st, err := f.live("write")
	if err != nil {
		return 0, err
	}
	n, err := f.ops.Write(ctx, st, p)
	if n > 0 {
		f.pos.Add(int64(n))
	}
	return n, err
}

func (f *File[S]) Stat(ctx context.Context) (FileInfo, error) {
	st, err := f.live("stat")
	if err != nil {
		return FileInfo{}, err
	}
	return f.ops.Stat(ctx, st)
}

func (f *File[S]) Ioctl(ctx context.Context, req uint32, arg []byte) (int, error) {
	st, err := f.live("ioctl")
	if err != nil {
		return 0, err
	}
	return f.ops.Ioctl(ctx, st, req, arg)
}

func (f *File[S]) Path(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	name := f.name
	if st := f.state.Load(); st != nil {
		name = f.ops.Path(st)
	}
	return copy(buf, name)
}

func (f *File[S]) Size() int64 {
	st := f.state.Load()
	if st == nil {
		return -1
	}
	return f.ops.Size(st)
}

// Close releases owned state exactly once.
// Calling it again, or on a handle that never had state,
// succeeds without side effects.
func (f *File[S]) Close(ctx context.Context) error {
	if f.flags&FNODESTROY != 0 {
		return nil
	}
	st := f.state.Swap(nil)
	if st == nil {
		return nil
	}
	if err := f.ops.Release(ctx, st); err != nil {
		return NewError("close", f.name, nil, err)
	}
	return nil
}
