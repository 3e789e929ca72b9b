package tarfs

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/runable/rvkernel/fs"
)

func buildTar(t *testing.T, hdrs ...*tar.Header) *bytes.Buffer {
	var buf bytes.Buffer

	tw := tar.NewWriter(&buf)

	for _, hdr := range hdrs {
		body := []byte(hdr.Linkname)
		if hdr.Typeflag == tar.TypeReg {
			body = []byte("contents of " + hdr.Name)
			hdr.Size = int64(len(body))
		}

		require.NoError(t, tw.WriteHeader(hdr))

		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write(body)
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())

	return &buf
}

func TestTarFS(t *testing.T) {
	n := neko.Modern(t)

	ctx := context.Background()

	n.It("builds a tree with files, directories and links", func(t *testing.T) {
		buf := buildTar(t,
			&tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0755},
			&tar.Header{Name: "./bin/", Typeflag: tar.TypeDir, Mode: 0755},
			&tar.Header{Name: "./bin/true", Typeflag: tar.TypeReg, Mode: 0755},
			&tar.Header{Name: "./bin/yes", Typeflag: tar.TypeSymlink, Linkname: "true", Mode: 0777},
			&tar.Header{Name: "./usr/lib/libc.so", Typeflag: tar.TypeReg, Mode: 0644},
		)

		tf, err := NewTarFS(buf)
		require.NoError(t, err)

		root, err := tf.Root()
		require.NoError(t, err)

		ns := fs.NewMountNamespace(0)
		ns.SetRoot(root)

		d, err := ns.LookupPath(ctx, nil, "/bin/yes")
		require.NoError(t, err)
		require.Equal(t, "/bin/true", d.FullPath())

		data, err := d.ReadAll(ctx)
		require.NoError(t, err)
		require.Equal(t, "contents of ./bin/true", string(data))

		lib, err := ns.LookupPath(ctx, nil, "/usr/lib/libc.so")
		require.NoError(t, err)

		us, err := lib.Inode.Ops.UnstableAttr(ctx, lib.Inode)
		require.NoError(t, err)
		require.Equal(t, 0644, us.Perms)

		usr, err := ns.LookupPath(ctx, nil, "/usr")
		require.NoError(t, err)
		require.True(t, usr.IsDir())
	})

	n.It("stays writable after loading", func(t *testing.T) {
		buf := buildTar(t, &tar.Header{Name: "etc/", Typeflag: tar.TypeDir, Mode: 0755})

		tf, err := NewTarFS(buf)
		require.NoError(t, err)

		root, err := tf.Root()
		require.NoError(t, err)

		ns := fs.NewMountNamespace(0)
		ns.SetRoot(root)

		_, err = ns.Create(ctx, nil, "/etc/hosts", fs.RegularFile)
		require.NoError(t, err)

		_, err = ns.LookupPath(ctx, nil, "/etc/hosts")
		require.NoError(t, err)
	})

	n.Meow()
}
