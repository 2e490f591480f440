package vfs

import (
	"context"

	"go.uber.org/zap"
)

type logging struct {
	driver Driver
	logger *zap.SugaredLogger
}

var _ Driver = &logging{}

// Wrap a Driver, producing a log line whenever Open, Close,
// Resolve, Root and Teardown are called.
// Lister is forwarded when the wrapped driver has it.
func NewLogger(logger *zap.SugaredLogger, driver Driver) Driver {
	l := &logging{driver: driver, logger: logger}
	if _, ok := driver.(Lister); ok {
		return &listLogging{l}
	}
	return l
}

func (l *logging) Open(ctx context.Context, h Handle, create, write bool) (err error) {
	err = l.driver.Open(ctx, h, create, write)
	l.logger.Debugw("open", "mount", MountName(ctx), "name", h.Name(),
		"create", create, "write", write, "flags", h.Flags().String(), "err", err)
	return
}

func (l *logging) Close(ctx context.Context, h Handle) (err error) {
	err = l.driver.Close(ctx, h)
	l.logger.Debugw("close", "mount", MountName(ctx), "name", h.Name(), "err", err)
	return
}

func (l *logging) Resolve(ctx context.Context, fs *FileSystem, name string) (h Handle, err error) {
	h, err = l.driver.Resolve(ctx, fs, name)
	if err != nil {
		l.logger.Warnw("resolve", "mount", fs.Name(), "name", name, "err", err)
		return
	}
	l.logger.Debugw("resolve", "mount", fs.Name(), "name", name,
		"handle", h.Name(), "flags", h.Flags().String())
	return
}

func (l *logging) Root(fs *FileSystem) Handle {
	h := l.driver.Root(fs)
	l.logger.Debugw("root", "mount", fs.Name(), "flags", h.Flags().String())
	return h
}

func (l *logging) Teardown(ctx context.Context, fs *FileSystem) (err error) {
	err = l.driver.Teardown(ctx, fs)
	l.logger.Infow("teardown", "mount", fs.Name(), "err", err)
	return
}

type listLogging struct {
	*logging
}

func (l *listLogging) List(ctx context.Context, fs *FileSystem) (ents []FileInfo, err error) {
	ents, err = l.driver.(Lister).List(ctx, fs)
	l.logger.Debugw("list", "mount", fs.Name(), "entries", len(ents), "err", err)
	return
}
