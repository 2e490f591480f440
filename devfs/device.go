package devfs

import (
	"context"
	"encoding/binary"
	"io"
	"sync/atomic"
	"time"

	"github.com/frobnitzem/go-vfs"
)

// Device control requests.
const (
	// IOCGNAME copies the device name into arg and returns its length.
	IOCGNAME uint32 = 0x6401
	// IOCSDELAY sets the sleep delay from an 8-byte big-endian
	// nanosecond count in arg.
	IOCSDELAY uint32 = 0x6402
)

// device is the state of one open device handle.
type device struct {
	kind  kind
	name  string
	delay atomic.Int64 // nanoseconds
}

type fileOps struct{}

var _ vfs.FileOps[device] = fileOps{}

// pause waits out the handle's delay or until ctx is done.
func (dev *device) pause(ctx context.Context) error {
	dt := time.Duration(dev.delay.Load())
	if dt <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dt)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (fileOps) Read(ctx context.Context, dev *device, p []byte) (int, error) {
	switch dev.kind {
	case kindZero:
		clear(p)
		return len(p), nil
	case kindSleep:
		if err := dev.pause(ctx); err != nil {
			return 0, err
		}
	}
	return 0, io.EOF
}

func (fileOps) Write(ctx context.Context, dev *device, p []byte) (int, error) {
	if dev.kind == kindSleep {
		if err := dev.pause(ctx); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (fileOps) Stat(ctx context.Context, dev *device) (vfs.FileInfo, error) {
	return vfs.FileInfo{Name: dev.name, Size: -1, Flags: vfs.FSTREAM}, nil
}

func (fileOps) Ioctl(ctx context.Context, dev *device, req uint32, arg []byte) (int, error) {
	switch {
	case req == IOCGNAME:
		return copy(arg, dev.name), nil
	case req == IOCSDELAY && dev.kind == kindSleep:
		if len(arg) != 8 {
			return -1, vfs.NewError("ioctl", dev.name, vfs.ErrNotSupported, nil)
		}
		ns := int64(binary.BigEndian.Uint64(arg))
		if ns < 0 {
			return -1, vfs.NewError("ioctl", dev.name, vfs.ErrNotSupported, nil)
		}
		dev.delay.Store(ns)
		return 0, nil
	}
	return -1, vfs.NewError("ioctl", dev.name, vfs.ErrNoSuchDevice, nil)
}

// EncodeDelay renders d as an IOCSDELAY argument.
func EncodeDelay(d time.Duration) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(d))
}

func (fileOps) Path(dev *device) string {
	return dev.name
}

func (fileOps) Size(dev *device) int64 {
	return -1
}

func (fileOps) Release(ctx context.Context, dev *device) error {
	return nil
}
