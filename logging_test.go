package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingDriver(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	core, logs := observer.New(zapcore.DebugLevel)
	wrap := func(d Driver) Driver { return NewLogger(zap.New(core).Sugar(), d) }
	ns := NewNamespace(WithDriverWrapper(wrap))

	fs, _ := newBlobFS("blob")
	require.NoError(t, ns.Mount(fs))

	fd, err := ns.Open(ctx, "blob:x", ORDWR)
	require.NoError(t, err)
	require.NoError(t, ns.Close(ctx, fd))
	_, err = ns.Open(ctx, "blob:missing", OREAD)
	assert.Error(err)
	require.NoError(t, ns.Unmount(ctx, "blob"))

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal([]string{"resolve", "open", "close", "resolve", "teardown"}, msgs)

	open := logs.FilterMessage("open").All()[0]
	assert.Equal("blob", open.ContextMap()["mount"])
	assert.Equal("x", open.ContextMap()["name"])

	failed := logs.FilterMessage("resolve").FilterLevelExact(zapcore.WarnLevel).All()
	assert.Len(failed, 1)
	assert.Equal(1, logs.FilterMessage("teardown").FilterLevelExact(zapcore.InfoLevel).Len())
}

func TestLoggingForwardsLister(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := &blobDriver{ops: &blobOps{}, list: []FileInfo{{Name: "b"}, {Name: "a"}}}
	fs := NewFileSystem("blob", listBlobDriver{d}, nil)
	d.root = NewRoot[blob](fs, d.ops)

	core, logs := observer.New(zapcore.DebugLevel)
	wrapped := NewLogger(zap.New(core).Sugar(), fs.Driver())
	_, ok := wrapped.(Lister)
	assert.True(ok)
	_, ok = NewLogger(zap.NewNop().Sugar(), &blobDriver{}).(Lister)
	assert.False(ok)

	ents, err := readDir(ctx, wrapped, fs, wrapped.Root(fs))
	assert.NoError(err)
	assert.Equal([]FileInfo{{Name: "a"}, {Name: "b"}}, ents)
	assert.Equal(1, logs.FilterMessage("list").Len())
	assert.Equal(1, logs.FilterMessage("root").Len())
}
