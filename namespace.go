package vfs

import (
	"context"
	"sort"
	"sync"
)

// Fd names an open handle within a Namespace.
type Fd int32

const NOFD Fd = -1

// mountEnt is one entry of the mount table. refs counts open
// descriptors plus Opens still in flight; Unmount refuses while
// it is non-zero.
type mountEnt struct {
	name string
	fs   *FileSystem
	drv  Driver // fs.Driver(), wrapped once at Mount
	refs int
}

// Internal representation of a descriptor.
// Each descriptor holds one reference on its mount.
type fdEnt struct {
	mnt *mountEnt
	h   Handle
}

// Namespace is a mount table plus a descriptor table.
// It dispatches calls on descriptors of any backend through
// the generic Handle and Driver contracts.
//
// Note: the table lock is only held to look up or change
// entries, never across a backend call, so a blocked Read on
// one descriptor does not stall others.
type Namespace struct {
	mu     sync.Mutex
	mounts map[string]*mountEnt
	wrap   func(Driver) Driver
	fds    map[Fd]*fdEnt
	nextfd Fd
}

type NamespaceOption func(*Namespace)

// WithDriverWrapper decorates every mounted driver, e.g. with
// NewLogger. The FileSystem records themselves are unchanged.
func WithDriverWrapper(wrap func(Driver) Driver) NamespaceOption {
	return func(ns *Namespace) {
		ns.wrap = wrap
	}
}

func NewNamespace(opts ...NamespaceOption) *Namespace {
	ns := &Namespace{
		mounts: make(map[string]*mountEnt),
		fds:    make(map[Fd]*fdEnt),
	}
	for _, opt := range opts {
		opt(ns)
	}
	return ns
}

// Mount adds fs under its own name.
func (ns *Namespace) Mount(fs *FileSystem) error {
	drv := fs.Driver()
	if ns.wrap != nil {
		drv = ns.wrap(drv)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, found := ns.mounts[fs.Name()]; found {
		return NewError("mount", fs.Name(), ErrExist, nil)
	}
	ns.mounts[fs.Name()] = &mountEnt{name: fs.Name(), fs: fs, drv: drv}
	return nil
}

// Unmount removes a mount and tears it down.
// It fails with ErrBusy while descriptors on it remain open
// or an Open on it is still running.
func (ns *Namespace) Unmount(ctx context.Context, name string) error {
	ns.mu.Lock()
	mnt, found := ns.mounts[name]
	if !found {
		ns.mu.Unlock()
		return NewError("unmount", name, ErrNotExist, nil)
	}
	if mnt.refs > 0 {
		ns.mu.Unlock()
		return NewError("unmount", name, ErrBusy, nil)
	}
	delete(ns.mounts, name)
	ns.mu.Unlock()

	return mnt.drv.Teardown(withMount(ctx, name), mnt.fs)
}

// Mounts lists mount names in order.
func (ns *Namespace) Mounts() []string {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	names := make([]string, 0, len(ns.mounts))
	for name := range ns.mounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// acquire looks up the mount of p and takes a reference on it.
func (ns *Namespace) acquire(p string) (*mountEnt, string, error) {
	mount, name, err := SplitPath(p)
	if err != nil {
		return nil, "", err
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	mnt, found := ns.mounts[mount]
	if !found {
		return nil, "", NewError("open", p, ErrNotExist, nil)
	}
	mnt.refs++
	return mnt, name, nil
}

func (ns *Namespace) release(mnt *mountEnt) {
	ns.mu.Lock()
	mnt.refs--
	ns.mu.Unlock()
}

// Open resolves p = "<mount>:<name>" and completes the handle
// with the driver's Open. A root is returned as-is.
func (ns *Namespace) Open(ctx context.Context, p string, mode Mode) (Fd, error) {
	mnt, name, err := ns.acquire(p)
	if err != nil {
		return NOFD, err
	}
	ctx = withMount(ctx, mnt.name)
	drv := mnt.drv

	var h Handle
	if IsRoot(name) {
		h = drv.Root(mnt.fs)
	} else {
		h, err = drv.Resolve(ctx, mnt.fs, name)
		if err != nil {
			ns.release(mnt)
			return NOFD, err
		}
		// The handle is unpublished until it enters the table,
		// so a failed Open can release it without racing anyone.
		if err = drv.Open(ctx, h, mode.create(), mode.write()); err != nil {
			err = combineErrors(err, drv.Close(ctx, h))
			ns.release(mnt)
			return NOFD, err
		}
	}

	// The reference taken by acquire moves to the descriptor.
	return ns.newFd(mnt, h), nil
}

func (ns *Namespace) newFd(mnt *mountEnt, h Handle) Fd {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	for {
		fd := ns.nextfd
		ns.nextfd++
		if ns.nextfd < 0 {
			ns.nextfd = 0
		}
		if _, found := ns.fds[fd]; !found {
			ns.fds[fd] = &fdEnt{mnt: mnt, h: h}
			return fd
		}
	}
}

func (ns *Namespace) getFd(fd Fd) (*fdEnt, error) {
	if fd == NOFD {
		return nil, NewError("fd", "", ErrBadFd, nil)
	}
	ns.mu.Lock()
	ent, found := ns.fds[fd]
	ns.mu.Unlock()
	if !found {
		return nil, NewError("fd", "", ErrBadFd, nil)
	}
	return ent, nil
}

// Handle returns the handle behind fd.
func (ns *Namespace) Handle(fd Fd) (Handle, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return nil, err
	}
	return ent.h, nil
}

func (ns *Namespace) Read(ctx context.Context, fd Fd, p []byte) (int, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return 0, err
	}
	return ent.h.Read(withMount(ctx, ent.mnt.name), p)
}

func (ns *Namespace) Write(ctx context.Context, fd Fd, p []byte) (int, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return 0, err
	}
	return ent.h.Write(withMount(ctx, ent.mnt.name), p)
}

func (ns *Namespace) Stat(ctx context.Context, fd Fd) (FileInfo, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return FileInfo{}, err
	}
	return ent.h.Stat(withMount(ctx, ent.mnt.name))
}

func (ns *Namespace) Ioctl(ctx context.Context, fd Fd, req uint32, arg []byte) (int, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return 0, err
	}
	return ent.h.Ioctl(withMount(ctx, ent.mnt.name), req, arg)
}

func (ns *Namespace) Path(fd Fd, buf []byte) (int, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return 0, err
	}
	return ent.h.Path(buf), nil
}

func (ns *Namespace) Size(fd Fd) (int64, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return 0, err
	}
	return ent.h.Size(), nil
}

func (ns *Namespace) Flags(fd Fd) (Flag, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return 0, err
	}
	return ent.h.Flags(), nil
}

// ReadDir lists the children of a directory descriptor.
func (ns *Namespace) ReadDir(ctx context.Context, fd Fd) ([]FileInfo, error) {
	ent, err := ns.getFd(fd)
	if err != nil {
		return nil, err
	}
	return readDir(withMount(ctx, ent.mnt.name), ent.mnt.drv, ent.mnt.fs, ent.h)
}

// Close removes fd from the table, then closes the handle
// through its driver. Roots only lose the descriptor.
// The mount stays busy until the driver Close returns.
func (ns *Namespace) Close(ctx context.Context, fd Fd) error {
	ns.mu.Lock()
	ent, found := ns.fds[fd]
	if !found {
		ns.mu.Unlock()
		return NewError("close", "", ErrBadFd, nil)
	}
	delete(ns.fds, fd)
	ns.mu.Unlock()

	err := closeEnt(withMount(ctx, ent.mnt.name), ent)
	ns.release(ent.mnt)
	return err
}

func closeEnt(ctx context.Context, ent *fdEnt) error {
	if ent.h.Flags()&FNODESTROY != 0 {
		return nil
	}
	return ent.mnt.drv.Close(ctx, ent.h)
}

// Stop closes every descriptor. err is returned combined with
// any close failures.
func (ns *Namespace) Stop(err error) error {
	ns.mu.Lock()
	ents := ns.fds
	ns.fds = make(map[Fd]*fdEnt)
	ns.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // nothing may block on the way out
	for _, ent := range ents {
		err = combineErrors(err, closeEnt(withMount(ctx, ent.mnt.name), ent))
		ns.release(ent.mnt)
	}
	return err
}
