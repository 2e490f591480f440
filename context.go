package vfs

import "context"

type mountKey struct{}

func withMount(ctx context.Context, mount string) context.Context {
	return context.WithValue(ctx, mountKey{}, mount)
}

// MountName reports the mount a driver call was dispatched through,
// or "" for calls that did not come from a Namespace.
func MountName(ctx context.Context) string {
	name, _ := ctx.Value(mountKey{}).(string)
	return name
}
