// Package memfs is a flat in-memory filesystem of named buffers.
//
// Resolving a name never fails for a valid name; the handle comes
// back unopened and Open either finds the buffer or, with create,
// makes it.
package memfs

import (
	"context"
	"sync"

	"github.com/frobnitzem/go-vfs"
	"go.uber.org/zap"
)

const DefaultName = "mem"

// openFile is the state of one open handle.
type openFile struct {
	sync.Mutex
	node   *node
	offset int64
	write  bool
}

// Driver implements vfs.Driver and vfs.Lister.
type Driver struct {
	sync.Mutex
	nodes map[string]*node
	log   *zap.Logger

	fs   *vfs.FileSystem
	root *vfs.File[openFile]
}

var (
	_ vfs.Driver = &Driver{}
	_ vfs.Lister = &Driver{}
)

type Option func(*options)

type options struct {
	name string
	log  *zap.Logger
}

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func New(opts ...Option) *Driver {
	o := options{name: DefaultName, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Driver{
		nodes: make(map[string]*node),
		log:   o.log.Named(o.name),
	}
	d.fs = vfs.NewFileSystem(o.name, d, nil)
	d.root = vfs.NewRoot[openFile](d.fs, fileOps{})
	return d
}

func (d *Driver) FileSystem() *vfs.FileSystem {
	return d.fs
}

func (d *Driver) Resolve(ctx context.Context, fs *vfs.FileSystem, name string) (vfs.Handle, error) {
	if fs != d.fs {
		return nil, vfs.NewError("resolve", name, vfs.ErrNotSupported, nil)
	}
	if !vfs.ValidName(name) {
		return nil, vfs.NewError("resolve", name, vfs.ErrInvalidName, nil)
	}
	return vfs.NewFile[openFile](d.fs, fileOps{}, name, 0, nil), nil
}

// Open attaches the named buffer, creating it if asked.
func (d *Driver) Open(ctx context.Context, h vfs.Handle, create, write bool) error {
	f, ok := h.(*vfs.File[openFile])
	if !ok {
		return vfs.NewError("open", h.Name(), vfs.ErrNotSupported, nil)
	}

	d.Lock()
	n, found := d.nodes[f.Name()]
	if !found {
		if !create {
			d.Unlock()
			return vfs.NewError("open", f.Name(), vfs.ErrNotExist, nil)
		}
		n = newNode(f.Name())
		d.nodes[f.Name()] = n
		d.log.Debug("created", zap.String("name", f.Name()))
	}
	d.Unlock()

	if !f.Attach(&openFile{node: n, write: write}) {
		return vfs.NewError("open", f.Name(), vfs.ErrExist, nil)
	}
	return nil
}

func (d *Driver) Close(ctx context.Context, h vfs.Handle) error {
	return h.Close(ctx)
}

func (d *Driver) Root(fs *vfs.FileSystem) vfs.Handle {
	return d.root
}

// Remove drops a buffer. Handles already open on it keep their data.
func (d *Driver) Remove(name string) error {
	d.Lock()
	defer d.Unlock()
	if _, found := d.nodes[name]; !found {
		return vfs.NewError("remove", name, vfs.ErrNotExist, nil)
	}
	delete(d.nodes, name)
	return nil
}

func (d *Driver) List(ctx context.Context, fs *vfs.FileSystem) ([]vfs.FileInfo, error) {
	d.Lock()
	nodes := make([]*node, 0, len(d.nodes))
	for _, n := range d.nodes {
		nodes = append(nodes, n)
	}
	d.Unlock()

	ents := make([]vfs.FileInfo, len(nodes))
	for i, n := range nodes {
		ents[i] = n.info()
	}
	return ents, nil
}

// Teardown discards every buffer.
func (d *Driver) Teardown(ctx context.Context, fs *vfs.FileSystem) error {
	d.Lock()
	defer d.Unlock()
	d.log.Debug("teardown", zap.Int("files", len(d.nodes)))
	d.nodes = make(map[string]*node)
	return nil
}
