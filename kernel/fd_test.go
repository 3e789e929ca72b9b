package kernel

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/runable/rvkernel/fs"
)

func TestProcessFiles(t *testing.T) {
	n := neko.Modern(t)

	ctx := context.Background()

	var (
		k *Kernel
		p *Process
	)

	n.Setup(func() {
		k, _ = newTestKernel(map[string][]byte{
			"/etc/motd": []byte("hello"),
			"/sub/":     nil,
		})

		p = k.NewProcess().Process
		p.HookupStdio(k.Config)
	})

	n.It("reuses the lowest closed descriptor", func(t *testing.T) {
		require.NoError(t, p.Close(2))

		fd, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_RDONLY)
		require.NoError(t, err)
		require.Equal(t, 2, fd)

		fd, err = p.Open(ctx, AT_FDCWD, "etc/motd", O_RDONLY)
		require.NoError(t, err)
		require.Equal(t, 3, fd)
	})

	n.It("fails to close an empty slot", func(t *testing.T) {
		require.NoError(t, p.Close(1))

		err := p.Close(1)
		require.Equal(t, ErrBadDescriptor, errors.Cause(err))

		err = p.Close(99)
		require.Equal(t, ErrBadDescriptor, errors.Cause(err))
	})

	n.It("reads a regular file from a shared offset", func(t *testing.T) {
		fd, err := p.Open(ctx, AT_FDCWD, "./etc/motd", O_RDONLY)
		require.NoError(t, err)

		require.Equal(t, "hel", readString(t, p, fd, 3))
		require.Equal(t, "lo", readString(t, p, fd, 10))
		require.Equal(t, "", readString(t, p, fd, 10))
	})

	n.It("shares one handle between a descriptor and its dup", func(t *testing.T) {
		fd, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_RDWR|O_TRUNC)
		require.NoError(t, err)

		dup, err := p.Dup(fd)
		require.NoError(t, err)
		require.Equal(t, 4, dup)

		writeString(t, p, dup, "hello")
		writeString(t, p, fd, " world")

		require.NoError(t, p.Close(fd))
		writeString(t, p, dup, "!")

		other, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_RDONLY)
		require.NoError(t, err)
		require.Equal(t, "hello world!", readString(t, p, other, 64))
	})

	n.It("refuses to dup an empty slot", func(t *testing.T) {
		_, err := p.Dup(40)
		require.Equal(t, ErrBadDescriptor, errors.Cause(err))
	})

	n.It("does not support dup3", func(t *testing.T) {
		_, err := p.Dup3(0, 5)
		require.Equal(t, ErrUnsupported, errors.Cause(err))
	})

	n.It("fails to open a missing file without create", func(t *testing.T) {
		_, err := p.Open(ctx, AT_FDCWD, "/etc/passwd", O_RDONLY)
		require.Equal(t, fs.ErrUnknownPath, errors.Cause(err))
	})

	n.It("creates a missing file when asked", func(t *testing.T) {
		fd, err := p.Open(ctx, AT_FDCWD, "/etc/passwd", O_CREATE|O_RDWR)
		require.NoError(t, err)

		writeString(t, p, fd, "root:x:0:0")

		again, err := p.Open(ctx, AT_FDCWD, "/etc/passwd", O_CREATE|O_RDONLY)
		require.NoError(t, err)
		require.Equal(t, "root:x:0:0", readString(t, p, again, 64))
	})

	n.It("truncates on open", func(t *testing.T) {
		fd, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_WRONLY|O_TRUNC)
		require.NoError(t, err)

		st, err := p.Fstat(ctx, fd)
		require.NoError(t, err)
		require.Equal(t, int64(0), st.Size)
	})

	n.It("honours access modes", func(t *testing.T) {
		fd, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_RDONLY)
		require.NoError(t, err)

		_, err = p.Write(ctx, fd, userBuf([]byte("x")))
		require.Equal(t, ErrNotWritable, errors.Cause(err))

		fd, err = p.Open(ctx, AT_FDCWD, "/etc/motd", O_WRONLY)
		require.NoError(t, err)

		_, err = p.Read(ctx, fd, userBuf(make([]byte, 1)))
		require.Equal(t, ErrNotReadable, errors.Cause(err))
	})

	n.It("requires a directory for O_DIRECTORY", func(t *testing.T) {
		_, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_DIRECTORY)
		require.Equal(t, fs.ErrNotDirectory, errors.Cause(err))

		_, err = p.Open(ctx, AT_FDCWD, "/etc", O_DIRECTORY)
		require.NoError(t, err)
	})

	n.It("resolves relative to a directory descriptor", func(t *testing.T) {
		dfd, err := p.Open(ctx, AT_FDCWD, "/etc", O_DIRECTORY)
		require.NoError(t, err)

		fd, err := p.Open(ctx, dfd, "motd", O_RDONLY)
		require.NoError(t, err)
		require.Equal(t, "hello", readString(t, p, fd, 64))

		_, err = p.Open(ctx, 30, "motd", O_RDONLY)
		require.Equal(t, ErrBadDescriptor, errors.Cause(err))

		_, err = p.Open(ctx, fd, "motd", O_RDONLY)
		require.Equal(t, fs.ErrNotDirectory, errors.Cause(err))
	})

	n.It("duplicates the directory descriptor for dot", func(t *testing.T) {
		dfd, err := p.Open(ctx, AT_FDCWD, "/etc", O_DIRECTORY)
		require.NoError(t, err)

		dot, err := p.Open(ctx, dfd, ".", O_RDONLY)
		require.NoError(t, err)
		require.NotEqual(t, dfd, dot)

		a, err := p.File(dfd)
		require.NoError(t, err)
		defer a.Close()

		b, err := p.File(dot)
		require.NoError(t, err)
		defer b.Close()

		require.True(t, a == b)
	})

	n.It("makes directories relative to a descriptor", func(t *testing.T) {
		dfd, err := p.Mkdirat(ctx, AT_FDCWD, "var")
		require.NoError(t, err)

		fd, err := p.Mkdirat(ctx, dfd, "log")
		require.NoError(t, err)

		st, err := p.Fstat(ctx, fd)
		require.NoError(t, err)
		require.Equal(t, uint32(S_IFDIR), st.Mode&S_IFDIR)

		_, err = p.Open(ctx, fd, "syslog", O_CREATE|O_WRONLY)
		require.NoError(t, err)

		d, err := k.Mount.LookupPath(ctx, nil, "/var/log/syslog")
		require.NoError(t, err)
		require.False(t, d.IsDir())

		_, err = p.Mkdirat(ctx, AT_FDCWD, "var")
		require.Equal(t, fs.ErrExists, errors.Cause(err))
	})

	n.It("changes directory and reports the name it was given", func(t *testing.T) {
		require.Equal(t, "/", p.Getcwd())

		require.NoError(t, p.Chdir(ctx, "sub"))
		require.Equal(t, "sub", p.Getcwd())

		fd, err := p.Open(ctx, AT_FDCWD, "note", O_CREATE|O_RDWR)
		require.NoError(t, err)
		require.True(t, fd >= 3)

		_, err = k.Mount.LookupPath(ctx, nil, "/sub/note")
		require.NoError(t, err)
	})

	n.It("refuses to change into a file or a missing path", func(t *testing.T) {
		err := p.Chdir(ctx, "/etc/motd")
		require.Equal(t, fs.ErrNotDirectory, errors.Cause(err))

		err = p.Chdir(ctx, "/missing")
		require.Equal(t, fs.ErrUnknownPath, errors.Cause(err))

		require.Equal(t, "/", p.Getcwd())
	})

	n.It("stats files, streams and pipes", func(t *testing.T) {
		fd, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_RDONLY)
		require.NoError(t, err)

		st, err := p.Fstat(ctx, fd)
		require.NoError(t, err)
		require.Equal(t, uint32(S_IFREG), st.Mode&0170000)
		require.Equal(t, int64(5), st.Size)
		require.NotZero(t, st.Ino)

		st, err = p.Fstat(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, uint32(S_IFCHR), st.Mode&0170000)

		rfd, _, err := p.Pipe()
		require.NoError(t, err)

		st, err = p.Fstat(ctx, rfd)
		require.NoError(t, err)
		require.Equal(t, uint32(S_IFIFO), st.Mode&0170000)

		_, err = p.Fstat(ctx, 77)
		require.Equal(t, ErrBadDescriptor, errors.Cause(err))
	})

	n.It("writes to the console", func(t *testing.T) {
		k, out := newTestKernel(nil)

		p := k.NewProcess().Process
		p.HookupStdio(k.Config)

		writeString(t, p, 1, "to stdout\n")
		writeString(t, p, 2, "to stderr\n")

		require.Equal(t, "to stdout\nto stderr\n", out.String())
	})

	n.It("pins a descriptor past a close", func(t *testing.T) {
		fd, err := p.Open(ctx, AT_FDCWD, "/etc/motd", O_RDONLY)
		require.NoError(t, err)

		d, err := p.File(fd)
		require.NoError(t, err)
		require.Equal(t, 2, d.Refs())

		require.NoError(t, p.Close(fd))
		require.Equal(t, 1, d.Refs())

		require.NoError(t, d.Close())
	})

	n.Meow()
}
