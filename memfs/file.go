package memfs

import (
	"context"

	"github.com/frobnitzem/go-vfs"
)

type fileOps struct{}

var _ vfs.FileOps[openFile] = fileOps{}

func (fileOps) Read(ctx context.Context, st *openFile, p []byte) (int, error) {
	st.Lock()
	defer st.Unlock()
	n, err := st.node.ReadAt(p, st.offset)
	st.offset += int64(n)
	return n, err
}

func (fileOps) Write(ctx context.Context, st *openFile, p []byte) (int, error) {
	if !st.write {
		return 0, vfs.NewError("write", st.node.name, vfs.ErrNotSupported, nil)
	}
	st.Lock()
	defer st.Unlock()
	n, err := st.node.WriteAt(p, st.offset)
	st.offset += int64(n)
	return n, err
}

func (fileOps) Stat(ctx context.Context, st *openFile) (vfs.FileInfo, error) {
	return st.node.info(), nil
}

func (fileOps) Ioctl(ctx context.Context, st *openFile, req uint32, arg []byte) (int, error) {
	return -1, vfs.NewError("ioctl", st.node.name, vfs.ErrNoSuchDevice, nil)
}

func (fileOps) Path(st *openFile) string {
	return st.node.name
}

func (fileOps) Size(st *openFile) int64 {
	return st.node.size()
}

func (fileOps) Release(ctx context.Context, st *openFile) error {
	return nil
}
