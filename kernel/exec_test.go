package kernel

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/internal/testutil"
	"github.com/runable/rvkernel/loader"
	"github.com/runable/rvkernel/memory"
)

func TestExec(t *testing.T) {
	n := neko.Modern(t)

	ctx := context.Background()

	var k *Kernel

	n.Setup(func() {
		k, _ = newTestKernel(map[string][]byte{
			"/bin/true": testutil.Program(ecall),
			"/bin/junk": []byte("#!/bin/sh\n"),
		})
	})

	argv := func(t *testing.T, p *Process, base uint64, i int) string {
		ptr, err := memory.ReadUint64(p.Token(), base+uint64(i)*8)
		require.NoError(t, err)

		s, err := memory.TranslateString(p.Token(), ptr)
		require.NoError(t, err)

		return s
	}

	n.It("starts init with the console and the image loaded", func(t *testing.T) {
		proc, err := k.InitProcess(ctx, "/bin/true", nil)
		require.NoError(t, err)

		require.Equal(t, 1, proc.Pid)
		require.Equal(t, proc, k.Init())
		require.Equal(t, 0, proc.Getppid())
		require.Equal(t, "/", proc.Getcwd())

		tr := proc.MainTask().Trap
		require.Equal(t, uint64(0x10000), tr.Sepc)
		require.Equal(t, uint64(1), tr.X[RegA0])
		require.NotZero(t, tr.X[RegSP])
		require.Equal(t, "/bin/true", argv(t, proc, tr.X[RegA1], 0))

		for fd := 0; fd < 3; fd++ {
			st, err := proc.Fstat(ctx, fd)
			require.NoError(t, err)
			require.Equal(t, uint32(S_IFCHR), st.Mode&0170000)
		}

		require.Equal(t, 1, k.Sched.(*RunQueue).Len())
	})

	n.It("only starts init once", func(t *testing.T) {
		_, err := k.InitProcess(ctx, "/bin/true", nil)
		require.NoError(t, err)

		_, err = k.InitProcess(ctx, "/bin/true", nil)
		require.Error(t, err)
	})

	n.It("fails to start init from a missing image", func(t *testing.T) {
		_, err := k.InitProcess(ctx, "/bin/nope", nil)
		require.Equal(t, fs.ErrUnknownPath, errors.Cause(err))

		require.Nil(t, k.Init())
		require.Equal(t, 0, k.Processes().Len())
	})

	n.It("replaces the image and resets the main task", func(t *testing.T) {
		task := k.NewProcess()
		p := task.Process

		task.Trap.Sepc = 0xdead
		task.SetRegister(RegA2, 42)

		old := p.Token()

		argc, err := p.Exec(ctx, "bin/true", []string{"true", "-v", "x"})
		require.NoError(t, err)
		require.Equal(t, 3, argc)

		require.NotEqual(t, old, p.Token())

		_, err = memory.Lookup(old)
		require.Error(t, err)

		tr := task.Trap
		require.Equal(t, uint64(0x10000), tr.Sepc)
		require.Equal(t, uint64(3), tr.X[RegA0])
		require.Equal(t, uint64(0), tr.X[RegA2])

		require.Equal(t, "true", argv(t, p, tr.X[RegA1], 0))
		require.Equal(t, "-v", argv(t, p, tr.X[RegA1], 1))
		require.Equal(t, "x", argv(t, p, tr.X[RegA1], 2))
	})

	n.It("resolves a relative image from the working directory", func(t *testing.T) {
		p := k.NewProcess().Process

		require.NoError(t, p.Chdir(ctx, "/bin"))

		argc, err := p.Exec(ctx, "true", []string{"true"})
		require.NoError(t, err)
		require.Equal(t, 1, argc)

		_, err = p.Exec(ctx, "bin/true", nil)
		require.Equal(t, fs.ErrUnknownPath, errors.Cause(err))
	})

	n.It("leaves the image alone when the load fails", func(t *testing.T) {
		p := k.NewProcess().Process
		old := p.Token()

		_, err := p.Exec(ctx, "/bin/junk", nil)
		require.Equal(t, loader.ErrBadImage, errors.Cause(err))

		_, err = p.Exec(ctx, "/bin", nil)
		require.Equal(t, fs.ErrIsDirectory, errors.Cause(err))

		require.Equal(t, old, p.Token())
	})

	n.It("execs in a child without touching the parent", func(t *testing.T) {
		parent, err := k.InitProcess(ctx, "/bin/true", nil)
		require.NoError(t, err)

		child, err := parent.Fork()
		require.NoError(t, err)

		_, err = child.Exec(ctx, "/bin/true", []string{"child"})
		require.NoError(t, err)

		require.Equal(t, "child", argv(t, child, child.MainTask().Register(RegA1), 0))
		require.Equal(t, "/bin/true", argv(t, parent, parent.MainTask().Register(RegA1), 0))
	})

	n.Meow()
}
