package netfs

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/frobnitzem/go-vfs"
)

// fileOps is shared by every endpoint handle.
type fileOps struct{}

var _ vfs.FileOps[Endpoint] = fileOps{}

// ioError tags a transport failure. A session closed under a
// racing Close reports ErrNotConnected; io.EOF passes through
// untouched so callers can use it as end of stream.
func ioError(op string, ep *Endpoint, err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	if errors.Is(err, net.ErrClosed) {
		return vfs.NewError(op, FormatAddr(ep.addr), vfs.ErrNotConnected, err)
	}
	return vfs.NewError(op, FormatAddr(ep.addr), nil, err)
}

func (fileOps) Read(ctx context.Context, ep *Endpoint, p []byte) (int, error) {
	n, err := ep.sess.Receive(ctx, p)
	return n, ioError("read", ep, err)
}

func (fileOps) Write(ctx context.Context, ep *Endpoint, p []byte) (int, error) {
	n, err := ep.sess.Send(ctx, p)
	return n, ioError("write", ep, err)
}

func (fileOps) Stat(ctx context.Context, ep *Endpoint) (vfs.FileInfo, error) {
	return vfs.FileInfo{}, vfs.NewError("stat", FormatAddr(ep.addr), vfs.ErrNotSeekable, nil)
}

func (fileOps) Ioctl(ctx context.Context, ep *Endpoint, req uint32, arg []byte) (int, error) {
	return -1, vfs.NewError("ioctl", FormatAddr(ep.addr), vfs.ErrNoSuchDevice, nil)
}

func (fileOps) Path(ep *Endpoint) string {
	return FormatAddr(ep.addr)
}

func (fileOps) Size(ep *Endpoint) int64 {
	return -1
}

func (fileOps) Release(ctx context.Context, ep *Endpoint) error {
	return ep.sess.Close()
}
