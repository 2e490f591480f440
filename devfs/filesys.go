// Package devfs serves a fixed set of character devices:
//
//	null   reads hit EOF, writes are discarded
//	zero   reads fill the buffer with zeros
//	sleep  reads and writes wait a per-handle delay first
//
// "sleep.<ms>" opens the sleep device with an initial delay.
package devfs

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/frobnitzem/go-vfs"
	"go.uber.org/zap"
)

const DefaultName = "dev"

type kind int

const (
	kindNull kind = iota
	kindZero
	kindSleep
)

var devices = map[string]kind{
	"null":  kindNull,
	"zero":  kindZero,
	"sleep": kindSleep,
}

// Driver implements vfs.Driver and vfs.Lister.
type Driver struct {
	log   *zap.Logger
	start time.Time

	fs   *vfs.FileSystem
	root *vfs.File[device]
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
	d := &Driver{log: o.log.Named(o.name), start: time.Now()}
	d.fs = vfs.NewFileSystem(o.name, d, nil)
	d.root = vfs.NewRoot[device](d.fs, fileOps{})
	return d
}

func (d *Driver) FileSystem() *vfs.FileSystem {
	return d.fs
}

// parseName splits "sleep.250" into the device and its delay.
func parseName(name string) (kind, time.Duration, bool) {
	base, ms, hasDelay := strings.Cut(name, ".")
	k, ok := devices[base]
	if !ok {
		return 0, 0, false
	}
	if !hasDelay {
		return k, 0, true
	}
	if k != kindSleep {
		return 0, 0, false
	}
	n, err := strconv.Atoi(ms)
	if err != nil || n < 0 {
		return 0, 0, false
	}
	return k, time.Duration(n) * time.Millisecond, true
}

// Resolve opens devices eagerly; they hold no external resources.
func (d *Driver) Resolve(ctx context.Context, fs *vfs.FileSystem, name string) (vfs.Handle, error) {
	if fs != d.fs {
		return nil, vfs.NewError("resolve", name, vfs.ErrNotSupported, nil)
	}
	k, delay, ok := parseName(name)
	if !ok {
		return nil, vfs.NewError("resolve", name, vfs.ErrNotExist, nil)
	}
	dev := &device{kind: k, name: name}
	dev.delay.Store(int64(delay))
	d.log.Debug("resolve", zap.String("name", name), zap.Duration("delay", delay))
	return vfs.NewFile[device](d.fs, fileOps{}, name, vfs.FSTREAM, dev), nil
}

func (d *Driver) Open(ctx context.Context, h vfs.Handle, create, write bool) error {
	if create {
		return vfs.NewError("open", h.Name(), vfs.ErrNotSupported, nil)
	}
	return nil
}

func (d *Driver) Close(ctx context.Context, h vfs.Handle) error {
	return h.Close(ctx)
}

func (d *Driver) Root(fs *vfs.FileSystem) vfs.Handle {
	return d.root
}

func (d *Driver) List(ctx context.Context, fs *vfs.FileSystem) ([]vfs.FileInfo, error) {
	ents := make([]vfs.FileInfo, 0, len(devices))
	for name := range devices {
		ents = append(ents, vfs.FileInfo{Name: name, Size: -1, Flags: vfs.FSTREAM, ModTime: d.start})
	}
	return ents, nil
}

func (d *Driver) Teardown(ctx context.Context, fs *vfs.FileSystem) error {
	return nil
}
