package memfs

import (
	"io"
	"sync"
	"time"

	"github.com/frobnitzem/go-vfs"
)

// node is one named buffer. Handles opened on the same name
// share the node; each keeps its own offset.
type node struct {
	sync.Mutex
	name  string
	data  []byte
	mtime time.Time
}

func newNode(name string) *node {
	return &node{name: name, mtime: time.Now()}
}

func (n *node) ReadAt(p []byte, offset int64) (int, error) {
	n.Lock()
	defer n.Unlock()

	size := int64(len(n.data))
	if offset >= size {
		return 0, io.EOF
	}
	m := int64(len(p))
	if offset+m > size {
		m = size - offset
	}
	copy(p[:m], n.data[offset:offset+m])
	return int(m), nil
}

// WriteAt overwrites in place and extends at the end.
// Writing past the end leaves no holes: it fails instead.
func (n *node) WriteAt(p []byte, offset int64) (int, error) {
	n.Lock()
	defer n.Unlock()

	size := int64(len(n.data))
	if offset > size {
		return 0, vfs.NewError("write", n.name, vfs.ErrNotSeekable, nil)
	}
	n.mtime = time.Now()

	m := int64(len(p))
	if offset+m > size {
		k := size - offset // in [0:m)
		copy(n.data[offset:], p[:k])
		n.data = append(n.data, p[k:]...)
	} else {
		copy(n.data[offset:offset+m], p)
	}
	return int(m), nil
}

func (n *node) info() vfs.FileInfo {
	n.Lock()
	defer n.Unlock()
	return vfs.FileInfo{Name: n.name, Size: int64(len(n.data)), ModTime: n.mtime}
}

func (n *node) size() int64 {
	n.Lock()
	defer n.Unlock()
	return int64(len(n.data))
}
