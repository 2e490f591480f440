package hostfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/frobnitzem/go-vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestNamespace(t *testing.T) (*vfs.Namespace, string) {
	dir := t.TempDir()
	d, err := New(dir, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	ns := vfs.NewNamespace()
	require.NoError(t, ns.Mount(d.FileSystem()))
	return ns, dir
}

func TestNew(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	_, err := New(filepath.Join(dir, "missing"))
	assert.ErrorIs(err, os.ErrNotExist)

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file)
	assert.ErrorIs(err, vfs.ErrNotDir)
}

func TestReadWrite(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ns, dir := newTestNamespace(t)

	_, err := ns.Open(ctx, "host:data.txt", vfs.OREAD)
	assert.ErrorIs(err, vfs.ErrNotExist)

	fd, err := ns.Open(ctx, "host:data.txt", vfs.ORDWR|vfs.OCREATE)
	require.NoError(t, err)
	n, err := ns.Write(ctx, fd, []byte("on disk"))
	assert.NoError(err)
	assert.Equal(7, n)

	size, _ := ns.Size(fd)
	assert.Equal(int64(7), size)
	info, err := ns.Stat(ctx, fd)
	assert.NoError(err)
	assert.Equal("data.txt", info.Name)
	assert.Equal(int64(7), info.Size)

	buf := make([]byte, 32)
	n, err = ns.Path(fd, buf)
	assert.NoError(err)
	assert.Equal("data.txt", string(buf[:n]))
	_, err = ns.Ioctl(ctx, fd, 1, nil)
	assert.ErrorIs(err, vfs.ErrNoSuchDevice)
	assert.NoError(ns.Close(ctx, fd))

	got, err := os.ReadFile(filepath.Join(dir, "data.txt"))
	require.NoError(t, err)
	assert.Equal("on disk", string(got))

	fd, err = ns.Open(ctx, "host:data.txt", vfs.OREAD)
	require.NoError(t, err)
	_, err = ns.Write(ctx, fd, []byte("nope"))
	assert.Error(err)
	n, err = ns.Read(ctx, fd, buf)
	assert.NoError(err)
	assert.Equal("on disk", string(buf[:n]))
	_, err = ns.Read(ctx, fd, buf)
	assert.Equal(io.EOF, err)
	assert.NoError(ns.Close(ctx, fd))
}

func TestInvalidNames(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ns, dir := newTestNamespace(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	for _, p := range []string{"host:..", "host:.", "host:../etc", "host:sub/x", "host:a\\b"} {
		_, err := ns.Open(ctx, p, vfs.ORDWR|vfs.OCREATE)
		assert.ErrorIs(err, vfs.ErrInvalidName, p)
	}

	_, err := ns.Open(ctx, "host:sub", vfs.OREAD)
	assert.ErrorIs(err, vfs.ErrNotSupported)
}

func TestList(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ns, dir := newTestNamespace(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	root, err := ns.Open(ctx, "host:", vfs.OREAD)
	require.NoError(t, err)
	ents, err := ns.ReadDir(ctx, root)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal("a", ents[0].Name)
	assert.Equal(int64(1), ents[0].Size)
	assert.Equal("b", ents[1].Name)
	assert.Equal(int64(2), ents[1].Size)
}

func TestResolveForeignFileSystem(t *testing.T) {
	ctx := context.Background()
	d, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = d.Resolve(ctx, vfs.NewFileSystem("other", d, nil), "f")
	assert.ErrorIs(t, err, vfs.ErrNotSupported)
}
