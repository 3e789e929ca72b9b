package fs_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/fs/memfs"
)

func TestMountNamespace(t *testing.T) {
	n := neko.Modern(t)

	ctx := context.Background()

	var ns *fs.MountNamespace

	n.Setup(func() {
		ns = fs.NewMountNamespace(0)
		ns.SetRoot(memfs.NewRoot())
	})

	n.It("creates and finds nested entries", func(t *testing.T) {
		dir, err := ns.Create(ctx, nil, "/etc", fs.Directory)
		require.NoError(t, err)
		require.True(t, dir.IsDir())

		f, err := ns.Create(ctx, dir, "motd", fs.RegularFile)
		require.NoError(t, err)
		require.Equal(t, "/etc/motd", f.FullPath())

		_, err = f.Inode.Ops.WriteAt(ctx, f.Inode, []byte("hi"), 0)
		require.NoError(t, err)

		found, err := ns.LookupPath(ctx, nil, "/etc/motd")
		require.NoError(t, err)

		data, err := found.ReadAll(ctx)
		require.NoError(t, err)
		require.Equal(t, "hi", string(data))
	})

	n.It("resolves relative paths and dot entries against a base", func(t *testing.T) {
		sub, err := ns.Create(ctx, nil, "sub", fs.Directory)
		require.NoError(t, err)

		_, err = ns.Create(ctx, sub, "inner", fs.Directory)
		require.NoError(t, err)

		d, err := ns.LookupPath(ctx, sub, "./inner/..")
		require.NoError(t, err)
		require.Equal(t, "/sub", d.FullPath())

		root, err := ns.LookupPath(ctx, sub, "..")
		require.NoError(t, err)
		require.Equal(t, "/", root.FullPath())
	})

	n.It("reports missing paths", func(t *testing.T) {
		_, err := ns.LookupPath(ctx, nil, "/nope/deeper")
		require.Equal(t, fs.ErrUnknownPath, errors.Cause(err))
	})

	n.It("refuses to walk through a file", func(t *testing.T) {
		_, err := ns.Create(ctx, nil, "file", fs.RegularFile)
		require.NoError(t, err)

		_, err = ns.LookupPath(ctx, nil, "/file/child")
		require.Equal(t, fs.ErrNotDirectory, errors.Cause(err))

		_, err = ns.Create(ctx, nil, "/file/child", fs.RegularFile)
		require.Equal(t, fs.ErrNotDirectory, errors.Cause(err))
	})

	n.It("refuses to create over an existing entry", func(t *testing.T) {
		_, err := ns.Create(ctx, nil, "twice", fs.Directory)
		require.NoError(t, err)

		_, err = ns.Create(ctx, nil, "twice", fs.Directory)
		require.Equal(t, fs.ErrExists, errors.Cause(err))
	})

	n.It("follows symlinks relative to the link", func(t *testing.T) {
		bin, err := ns.Create(ctx, nil, "bin", fs.Directory)
		require.NoError(t, err)

		tgt, err := ns.Create(ctx, bin, "busybox", fs.RegularFile)
		require.NoError(t, err)
		_, err = tgt.Inode.Ops.WriteAt(ctx, tgt.Inode, []byte("bb"), 0)
		require.NoError(t, err)

		link, err := ns.Create(ctx, bin, "sh", fs.Symlink)
		require.NoError(t, err)
		_, err = link.Inode.Ops.WriteAt(ctx, link.Inode, []byte("busybox"), 0)
		require.NoError(t, err)

		d, err := ns.LookupPath(ctx, nil, "/bin/sh")
		require.NoError(t, err)
		require.Equal(t, "/bin/busybox", d.FullPath())

		d, err = ns.LookupDirent(ctx, nil, "/bin/sh")
		require.NoError(t, err)
		require.Equal(t, fs.Symlink, d.Inode.StableAttr.Type)
	})

	n.It("serves repeat lookups from the dirent cache", func(t *testing.T) {
		_, err := ns.Create(ctx, nil, "cached", fs.Directory)
		require.NoError(t, err)

		a, err := ns.LookupPath(ctx, nil, "/cached")
		require.NoError(t, err)

		b, err := ns.LookupPath(ctx, nil, "cached")
		require.NoError(t, err)

		require.True(t, a == b)
		require.True(t, ns.DirentCache.Contains("/cached"))
	})

	n.Meow()
}

func TestMemFile(t *testing.T) {
	n := neko.Modern(t)

	ctx := context.Background()

	n.It("grows on write past the end and truncates", func(t *testing.T) {
		inode := fs.NewInode(fs.RegularFile, memfs.NewFile(0644, []byte("abc")))

		_, err := inode.Ops.WriteAt(ctx, inode, []byte("xy"), 5)
		require.NoError(t, err)

		us, err := inode.Ops.UnstableAttr(ctx, inode)
		require.NoError(t, err)
		require.Equal(t, int64(7), us.Size)

		require.NoError(t, inode.Ops.Truncate(ctx, inode, 0))

		buf := make([]byte, 4)
		n, err := inode.Ops.ReadAt(ctx, inode, buf, 0)
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})

	n.It("rejects directory operations", func(t *testing.T) {
		inode := fs.NewInode(fs.RegularFile, memfs.NewFile(0644, nil))

		_, err := inode.Ops.LookupChild(ctx, inode, "x")
		require.Equal(t, fs.ErrNotDirectory, err)
	})

	n.Meow()
}
