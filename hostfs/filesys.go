// Package hostfs exposes the regular files directly under a host
// directory as a flat filesystem.
package hostfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/frobnitzem/go-vfs"
	"go.uber.org/zap"
)

const DefaultName = "host"

// Driver implements vfs.Driver and vfs.Lister.
type Driver struct {
	Base string // base directory, in OS format
	log  *zap.Logger

	fs   *vfs.FileSystem
	root *vfs.File[os.File]
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

// New serves root, which must be an existing directory.
func New(root string, opts ...Option) (*Driver, error) {
	o := options{name: DefaultName, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, vfs.NewError("mount", root, vfs.ErrNotDir, nil)
	}

	d := &Driver{Base: base, log: o.log.Named(o.name)}
	d.fs = vfs.NewFileSystem(o.name, d, nil)
	d.root = vfs.NewRoot[os.File](d.fs, fileOps{})
	return d, nil
}

func (d *Driver) FileSystem() *vfs.FileSystem {
	return d.fs
}

// fullPath is the only way a name becomes a host path.
// It keeps every access inside Base.
func (d *Driver) fullPath(name string) (string, error) {
	if !vfs.ValidName(name) {
		return "", vfs.NewError("resolve", name, vfs.ErrInvalidName, nil)
	}
	return filepath.Join(d.Base, name), nil
}

func (d *Driver) Resolve(ctx context.Context, fs *vfs.FileSystem, name string) (vfs.Handle, error) {
	if fs != d.fs {
		return nil, vfs.NewError("resolve", name, vfs.ErrNotSupported, nil)
	}
	if _, err := d.fullPath(name); err != nil {
		return nil, err
	}
	return vfs.NewFile[os.File](d.fs, fileOps{}, name, 0, nil), nil
}

func oflags(create, write bool) int {
	flags := os.O_RDONLY
	if write {
		flags = os.O_RDWR
	}
	if create {
		flags |= os.O_CREATE
	}
	return flags
}

// hostError tags host failures with the matching kind.
func hostError(op, name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return vfs.NewError(op, name, vfs.ErrNotExist, err)
	case errors.Is(err, fs.ErrExist):
		return vfs.NewError(op, name, vfs.ErrExist, err)
	}
	return vfs.NewError(op, name, nil, err)
}

func (d *Driver) Open(ctx context.Context, h vfs.Handle, create, write bool) error {
	f, ok := h.(*vfs.File[os.File])
	if !ok {
		return vfs.NewError("open", h.Name(), vfs.ErrNotSupported, nil)
	}
	fpath, err := d.fullPath(f.Name())
	if err != nil {
		return err
	}

	file, err := os.OpenFile(fpath, oflags(create, write), 0o666)
	if err != nil {
		return hostError("open", f.Name(), err)
	}
	info, err := file.Stat()
	if err == nil && !info.Mode().IsRegular() {
		err = vfs.NewError("open", f.Name(), vfs.ErrNotSupported, nil)
	}
	if err != nil {
		file.Close()
		return err
	}
	if !f.Attach(file) {
		file.Close()
		return vfs.NewError("open", f.Name(), vfs.ErrExist, nil)
	}
	d.log.Debug("open", zap.String("path", fpath), zap.Bool("write", write))
	return nil
}

func (d *Driver) Close(ctx context.Context, h vfs.Handle) error {
	return h.Close(ctx)
}

func (d *Driver) Root(fs *vfs.FileSystem) vfs.Handle {
	return d.root
}

// List reports the regular files in Base.
func (d *Driver) List(ctx context.Context, fs *vfs.FileSystem) ([]vfs.FileInfo, error) {
	entries, err := os.ReadDir(d.Base)
	if err != nil {
		return nil, hostError("readdir", d.Base, err)
	}
	var ents []vfs.FileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		ents = append(ents, fileInfo(info))
	}
	return ents, nil
}

func (d *Driver) Teardown(ctx context.Context, fs *vfs.FileSystem) error {
	return nil
}

func fileInfo(info fs.FileInfo) vfs.FileInfo {
	return vfs.FileInfo{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}
}
