package netfs

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"

	"github.com/frobnitzem/go-vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Counting fakes for the resolver and transport collaborators.

type fakeResolver struct {
	mu    sync.Mutex
	hosts map[string]netip.Addr
	calls int
}

func (r *fakeResolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return StaticResolver(r.hosts).Resolve(ctx, host)
}

type fakeTransport struct {
	mu         sync.Mutex
	prepareErr error
	connectErr error
	sessions   []*fakeSession
}

func (t *fakeTransport) Prepare(ctx context.Context) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.prepareErr != nil {
		return nil, t.prepareErr
	}
	s := &fakeSession{t: t}
	t.sessions = append(t.sessions, s)
	return s, nil
}

func (t *fakeTransport) prepared() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// fakeSession echoes everything sent back to the receiver.
type fakeSession struct {
	t      *fakeTransport
	mu     sync.Mutex
	addr   netip.AddrPort
	buf    bytes.Buffer
	closes int
}

func (s *fakeSession) Connect(ctx context.Context, addr netip.AddrPort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addr = addr
	return s.t.connectErr
}

func (s *fakeSession) Send(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *fakeSession) Receive(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Read(p)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func newTestDriver(t *testing.T) (*Driver, *fakeResolver, *fakeTransport) {
	r := &fakeResolver{hosts: map[string]netip.Addr{
		"example.test": netip.MustParseAddr("10.0.0.5"),
		"1.2.3.4":      netip.MustParseAddr("1.2.3.4"),
		"v6.test":      netip.MustParseAddr("2001:db8::1"),
		"mapped.test":  netip.MustParseAddr("::ffff:192.0.2.7"),
	}}
	tr := &fakeTransport{}
	return New(r, tr, WithLogger(zaptest.NewLogger(t))), r, tr
}

const connectedFlags = vfs.FNETWORK | vfs.FSTREAM | vfs.FOPEN | vfs.FOWNSTATE

func TestResolveFlags(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, _, tr := newTestDriver(t)

	for _, name := range []string{"example.test:23", "1.2.3.4:80", "mapped.test:0", "example.test:65535"} {
		h, err := d.Resolve(ctx, d.FileSystem(), name)
		require.NoError(t, err, name)
		assert.Equal(connectedFlags, h.Flags(), name)
		assert.Same(d.FileSystem(), h.FileSystem())

		f, ok := h.(*vfs.File[Endpoint])
		require.True(t, ok)
		assert.NotNil(f.State())
		assert.NoError(h.Close(ctx))
	}
	assert.Equal(4, tr.prepared())
}

func TestResolveForeignFileSystem(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, r, tr := newTestDriver(t)

	other := vfs.NewFileSystem("other", d, nil)
	h, err := d.Resolve(ctx, other, "example.test:23")
	assert.Nil(h)
	assert.ErrorIs(err, vfs.ErrNotSupported)
	assert.Equal(0, r.calls)
	assert.Equal(0, tr.prepared())
}

func TestResolveMalformed(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, r, tr := newTestDriver(t)

	for _, name := range []string{
		"", "example.test", ":80", "example.test:", "example.test:http",
		"example.test:-1", "example.test:65536", "example.test:+80",
		" example.test:80", "example.test:80 ", "[::1]:80",
	} {
		h, err := d.Resolve(ctx, d.FileSystem(), name)
		assert.Nil(h, name)
		assert.ErrorIs(err, vfs.ErrParse, name)
	}
	assert.Equal(0, r.calls)
	assert.Equal(0, tr.prepared())
}

func TestResolveFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, r, tr := newTestDriver(t)

	h, err := d.Resolve(ctx, d.FileSystem(), "nosuchhost:80")
	assert.Nil(h)
	assert.ErrorIs(err, vfs.ErrResolve)
	assert.Equal(1, r.calls)
	assert.Equal(0, tr.prepared(), "no session may be created")

	h, err = d.Resolve(ctx, d.FileSystem(), "v6.test:80")
	assert.Nil(h)
	assert.ErrorIs(err, vfs.ErrResolve)
	assert.Equal(0, tr.prepared())
}

func TestPrepareFailure(t *testing.T) {
	assert := assert.New(t)
	d, _, tr := newTestDriver(t)
	cause := errors.New("out of sockets")
	tr.prepareErr = cause

	h, err := d.Resolve(context.Background(), d.FileSystem(), "example.test:23")
	assert.Nil(h)
	assert.ErrorIs(err, vfs.ErrEndpointInit)
	assert.ErrorIs(err, cause)
	assert.Equal(0, tr.prepared())
}

func TestConnectFailure(t *testing.T) {
	assert := assert.New(t)
	d, _, tr := newTestDriver(t)
	cause := errors.New("connection refused")
	tr.connectErr = cause

	h, err := d.Resolve(context.Background(), d.FileSystem(), "example.test:23")
	assert.Nil(h)
	assert.ErrorIs(err, vfs.ErrConnect)
	assert.ErrorIs(err, cause)
	require.Equal(t, 1, tr.prepared())
	assert.Equal(1, tr.sessions[0].closeCount(), "half-open session must be released")
}

func TestPathQuery(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, _, _ := newTestDriver(t)

	f, err := d.Dial(ctx, "1.2.3.4:80")
	require.NoError(t, err)
	defer f.Close(ctx)

	buf := make([]byte, 64)
	n := f.Path(buf)
	assert.Equal("1.2.3.4:80", string(buf[:n]))
	assert.Equal(0, f.Path(nil))
	assert.Equal(0, f.Path(buf[:0]))

	short := make([]byte, 4)
	assert.Equal(4, f.Path(short))
	assert.Equal("1.2.", string(short))
	assert.Equal("1.2.3.4:80", f.Name())
}

func TestUnsupportedOps(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, _, _ := newTestDriver(t)

	f, err := d.Dial(ctx, "example.test:23")
	require.NoError(t, err)
	defer f.Close(ctx)

	assert.Equal(int64(-1), f.Size())

	_, err = f.Stat(ctx)
	assert.ErrorIs(err, vfs.ErrNotSeekable)

	for _, req := range []uint32{0, 1, 0x5401, 0xffffffff} {
		for _, arg := range [][]byte{nil, {}, []byte("data")} {
			n, err := f.Ioctl(ctx, req, arg)
			assert.Equal(-1, n)
			assert.ErrorIs(err, vfs.ErrNoSuchDevice)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, _, tr := newTestDriver(t)

	h, err := d.Resolve(ctx, d.FileSystem(), "example.test:23")
	require.NoError(t, err)

	assert.NoError(d.Close(ctx, h))
	assert.NoError(d.Close(ctx, h))
	assert.NoError(h.Close(ctx))
	assert.Equal(1, tr.sessions[0].closeCount())
	assert.Equal(vfs.FNETWORK|vfs.FSTREAM, h.Flags())

	_, err = h.Read(ctx, make([]byte, 8))
	assert.ErrorIs(err, vfs.ErrNotConnected)
	_, err = h.Write(ctx, []byte("late"))
	assert.ErrorIs(err, vfs.ErrNotConnected)
	assert.Equal(int64(-1), h.Size())
}

func TestRoot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, _, _ := newTestDriver(t)

	r1 := d.Root(d.FileSystem())
	r2 := d.FileSystem().Root()
	assert.Same(r1, r2)
	assert.True(r1.Flags().Has(vfs.FNODESTROY | vfs.FDIRECTORY))
	assert.Equal("/", r1.Name())

	buf := make([]byte, 8)
	assert.Equal("/", string(buf[:r1.Path(buf)]))

	assert.NoError(d.Close(ctx, r1))
	assert.Same(r1, d.Root(d.FileSystem()))
	assert.Equal(vfs.FDIRECTORY|vfs.FNODESTROY, r1.Flags())

	_, err := r1.Read(ctx, buf)
	assert.ErrorIs(err, vfs.ErrNotConnected)

	_, err = vfs.ReadDir(ctx, r1)
	assert.ErrorIs(err, vfs.ErrNotSupported)
}

func TestEcho(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, _, tr := newTestDriver(t)

	h, err := d.Resolve(ctx, d.FileSystem(), "example.test:23")
	require.NoError(t, err)
	defer h.Close(ctx)

	buf := make([]byte, 32)
	assert.Equal("10.0.0.5:23", string(buf[:h.Path(buf)]))
	assert.Equal(netip.MustParseAddrPort("10.0.0.5:23"), tr.sessions[0].addr)

	msg := []byte("hello, endpoint")
	n, err := h.Write(ctx, msg)
	assert.NoError(err)
	assert.Equal(len(msg), n)

	got := make([]byte, len(msg))
	n, err = h.Read(ctx, got)
	assert.NoError(err)
	assert.Equal(msg, got[:n])
	assert.Equal(int64(2*len(msg)), h.Offset())
}

func TestNamespaceDispatch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d, _, tr := newTestDriver(t)

	ns := vfs.NewNamespace()
	require.NoError(t, ns.Mount(d.FileSystem()))

	fd, err := ns.Open(ctx, "tcp:example.test:23", vfs.ORDWR)
	require.NoError(t, err)

	_, err = ns.Write(ctx, fd, []byte("ping"))
	assert.NoError(err)
	buf := make([]byte, 4)
	n, err := ns.Read(ctx, fd, buf)
	assert.NoError(err)
	assert.Equal("ping", string(buf[:n]))

	flags, err := ns.Flags(fd)
	assert.NoError(err)
	assert.Equal(connectedFlags, flags)

	assert.NoError(ns.Close(ctx, fd))
	assert.Equal(1, tr.sessions[0].closeCount())

	_, err = ns.Open(ctx, "tcp:nosuchhost:80", vfs.ORDWR)
	assert.ErrorIs(err, vfs.ErrResolve)
	assert.Equal(1, tr.prepared())
}
