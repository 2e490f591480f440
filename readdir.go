package vfs

import (
	"context"
	"sort"
)

// ReadDir lists the children of a directory handle.
// The handle must carry FDIRECTORY and its driver must
// implement Lister. Entries come back sorted by name.
func ReadDir(ctx context.Context, h Handle) ([]FileInfo, error) {
	fs := h.FileSystem()
	if fs == nil {
		return nil, NewError("readdir", h.Name(), ErrNotSupported, nil)
	}
	return readDir(ctx, fs.Driver(), fs, h)
}

func readDir(ctx context.Context, drv Driver, fs *FileSystem, h Handle) ([]FileInfo, error) {
	if h.Flags()&FDIRECTORY == 0 {
		return nil, NewError("readdir", h.Name(), ErrNotDir, nil)
	}
	lister, ok := drv.(Lister)
	if !ok {
		return nil, NewError("readdir", h.Name(), ErrNotSupported, nil)
	}
	ents, err := lister.List(ctx, fs)
	if err != nil {
		return nil, err
	}
	dirs := make([]FileInfo, len(ents))
	copy(dirs, ents) // make our own copy!
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	return dirs, nil
}
