// Package netfs presents connected stream endpoints as files.
//
// Resolving "host:port" looks the host up, prepares a transport
// session and connects it, then hands back an open handle that
// owns the session. Reads and writes go straight to the session;
// closing the handle closes the session.
package netfs

import (
	"context"
	"errors"
	"net/netip"

	"github.com/frobnitzem/go-vfs"
	"go.uber.org/zap"
)

// DefaultName is the mount name used unless WithName is given.
const DefaultName = "tcp"

var (
	errMissingPort = errors.New("missing port")
	errEmptyHost   = errors.New("empty host")
	errBadHost     = errors.New("invalid character in host")
	errNoIPv4      = errors.New("no IPv4 address")
)

// Endpoint is the backend state of a connected handle.
// The address is fixed at creation; the session is owned
// exclusively and closed once when the handle closes.
type Endpoint struct {
	addr netip.AddrPort
	sess Session
}

func (ep *Endpoint) Addr() netip.AddrPort {
	return ep.addr
}

// Driver is the network filesystem. It implements vfs.Driver.
type Driver struct {
	name      string
	resolver  Resolver
	transport Transport
	log       *zap.Logger

	fs   *vfs.FileSystem
	root *vfs.File[Endpoint] // read-only after New
}

var _ vfs.Driver = &Driver{}

type Option func(*Driver)

func WithName(name string) Option {
	return func(d *Driver) {
		d.name = name
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// New creates the driver together with its filesystem record
// and root handle.
func New(resolver Resolver, transport Transport, opts ...Option) *Driver {
	d := &Driver{
		name:      DefaultName,
		resolver:  resolver,
		transport: transport,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.Named(d.name)
	d.fs = vfs.NewFileSystem(d.name, d, nil)
	d.root = vfs.NewRoot[Endpoint](d.fs, fileOps{})
	return d
}

// FileSystem returns the record new handles are bound to.
func (d *Driver) FileSystem() *vfs.FileSystem {
	return d.fs
}

// Dial resolves name and connects it, returning the typed handle.
func (d *Driver) Dial(ctx context.Context, name string) (*vfs.File[Endpoint], error) {
	return d.dial(ctx, name)
}

// Steps are undone in reverse on any failure: nothing acquired
// here outlives a failed call, and the endpoint is only reachable
// once it sits inside the returned handle.
func (d *Driver) dial(ctx context.Context, name string) (*vfs.File[Endpoint], error) {
	host, port, err := ParseAddr(name)
	if err != nil {
		d.log.Debug("parse failed", zap.String("name", name), zap.Error(err))
		return nil, err
	}

	ip, err := d.resolver.Resolve(ctx, host)
	if err == nil && !ip.Unmap().Is4() {
		err = errNoIPv4
	}
	if err != nil {
		d.log.Warn("resolve failed", zap.String("host", host), zap.Error(err))
		return nil, vfs.NewError("resolve", name, vfs.ErrResolve, err)
	}
	ep := &Endpoint{addr: netip.AddrPortFrom(ip.Unmap(), port)}
	d.log.Debug("resolved", zap.String("host", host), zap.Stringer("addr", ep.addr))

	sess, err := d.transport.Prepare(ctx)
	if err != nil {
		d.log.Warn("prepare failed", zap.Stringer("addr", ep.addr), zap.Error(err))
		return nil, vfs.NewError("prepare", name, vfs.ErrEndpointInit, err)
	}
	owned := false
	defer func() {
		if owned {
			return
		}
		if cerr := sess.Close(); cerr != nil {
			d.log.Warn("rollback close failed", zap.Stringer("addr", ep.addr), zap.Error(cerr))
		}
	}()

	if err := sess.Connect(ctx, ep.addr); err != nil {
		d.log.Warn("connect failed", zap.Stringer("addr", ep.addr), zap.Error(err))
		return nil, vfs.NewError("connect", name, vfs.ErrConnect, err)
	}
	ep.sess = sess

	f := vfs.NewFile[Endpoint](d.fs, fileOps{}, FormatAddr(ep.addr), vfs.FNETWORK|vfs.FSTREAM, ep)
	owned = true
	d.log.Debug("connected", zap.Stringer("addr", ep.addr))
	return f, nil
}

// Open is a no-op: connections are made eagerly by Resolve.
func (d *Driver) Open(ctx context.Context, h vfs.Handle, create, write bool) error {
	return nil
}

func (d *Driver) Close(ctx context.Context, h vfs.Handle) error {
	return h.Close(ctx)
}

// Resolve only serves the driver's own filesystem record; a foreign
// one is refused before anything is dialed.
func (d *Driver) Resolve(ctx context.Context, fs *vfs.FileSystem, name string) (vfs.Handle, error) {
	if fs != d.fs {
		return nil, vfs.NewError("resolve", name, vfs.ErrNotSupported, nil)
	}
	f, err := d.dial(ctx, name)
	if err != nil {
		return nil, err // not a typed nil
	}
	return f, nil
}

func (d *Driver) Root(fs *vfs.FileSystem) vfs.Handle {
	return d.root
}

// Teardown has nothing to release: sessions belong to handles.
func (d *Driver) Teardown(ctx context.Context, fs *vfs.FileSystem) error {
	return nil
}
