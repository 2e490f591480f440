package hostfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/frobnitzem/go-vfs"
)

// fileOps serves handles whose state is the open host file.
type fileOps struct{}

var _ vfs.FileOps[os.File] = fileOps{}

func (fileOps) Read(ctx context.Context, f *os.File, p []byte) (int, error) {
	n, err := f.Read(p)
	if err != nil && err != io.EOF {
		err = hostError("read", filepath.Base(f.Name()), err)
	}
	return n, err
}

func (fileOps) Write(ctx context.Context, f *os.File, p []byte) (int, error) {
	n, err := f.Write(p)
	if err != nil {
		err = hostError("write", filepath.Base(f.Name()), err)
	}
	return n, err
}

func (fileOps) Stat(ctx context.Context, f *os.File) (vfs.FileInfo, error) {
	info, err := f.Stat()
	if err != nil {
		return vfs.FileInfo{}, hostError("stat", filepath.Base(f.Name()), err)
	}
	return fileInfo(info), nil
}

func (fileOps) Ioctl(ctx context.Context, f *os.File, req uint32, arg []byte) (int, error) {
	return -1, vfs.NewError("ioctl", filepath.Base(f.Name()), vfs.ErrNoSuchDevice, nil)
}

func (fileOps) Path(f *os.File) string {
	return filepath.Base(f.Name())
}

func (fileOps) Size(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return -1
	}
	return info.Size()
}

func (fileOps) Release(ctx context.Context, f *os.File) error {
	return f.Close()
}
