package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/memory"
)

func interrupted(err error) bool {
	switch errors.Cause(err) {
	case context.Canceled, context.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func userBuffer(t *kernel.Task, ptr, sz uint64) (*memory.UserBuffer, error) {
	bufs, err := memory.TranslateBytes(t.Token(), ptr, sz)
	if err != nil {
		return nil, err
	}

	return memory.NewUserBuffer(bufs), nil
}

func sysWrite(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		fd  = asFD(args.Args.R0)
		ptr = args.Args.R1
		sz  = args.Args.R2
	)

	buf, err := userBuffer(t, ptr, sz)
	if err != nil {
		l.Error("error translating write buffer", "error", err, "ptr", ptr, "len", sz)
		return -1
	}

	n, err := t.Write(ctx, fd, buf)
	if err != nil {
		if interrupted(err) {
			return -kernel.EINTR
		}

		l.Debug("write failed", "error", err, "fd", fd)
		return -1
	}

	return int64(n)
}

func sysRead(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		fd  = asFD(args.Args.R0)
		ptr = args.Args.R1
		sz  = args.Args.R2
	)

	buf, err := userBuffer(t, ptr, sz)
	if err != nil {
		l.Error("error translating read buffer", "error", err, "ptr", ptr, "len", sz)
		return -1
	}

	n, err := t.Read(ctx, fd, buf)
	if err != nil {
		if interrupted(err) {
			return -kernel.EINTR
		}

		l.Debug("read failed", "error", err, "fd", fd)
		return -1
	}

	return int64(n)
}

func sysClose(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	fd := asFD(args.Args.R0)

	err := t.Close(fd)
	if err != nil {
		if errors.Cause(err) != kernel.ErrBadDescriptor {
			l.Error("error closing fd", "error", err, "fd", fd)
		}

		return -1
	}

	return 0
}

func sysDup(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	nfd, err := t.Dup(asFD(args.Args.R0))
	if err != nil {
		return -1
	}

	return int64(nfd)
}

func sysDup3(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	_, err := t.Dup3(asFD(args.Args.R0), asFD(args.Args.R1))
	l.Debug("dup3 unsupported", "error", err)
	return -1
}

func sysPipe2(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	addr := args.Args.R0

	rfd, wfd, err := t.Pipe()
	if err != nil {
		l.Error("unable to create pipe", "error", err)
		return -1
	}

	type pipeBuf struct {
		Read, Write uint64
	}

	err = memory.CopyOut(t.Token(), addr, pipeBuf{
		Read:  uint64(rfd),
		Write: uint64(wfd),
	})
	if err != nil {
		l.Error("error writing pipe fds", "error", err)
		t.Close(rfd)
		t.Close(wfd)
		return -1
	}

	return 0
}

func sysFstat(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		fd  = asFD(args.Args.R0)
		ptr = args.Args.R1
	)

	st, err := t.Fstat(ctx, fd)
	if err != nil {
		return 1
	}

	err = memory.CopyOut(t.Token(), ptr, &st)
	if err != nil {
		l.Error("error copying stat out", "error", err)
		return 1
	}

	return 0
}

func init() {
	Syscalls[SYS_WRITE] = sysWrite
	Syscalls[SYS_READ] = sysRead
	Syscalls[SYS_CLOSE] = sysClose
	Syscalls[SYS_DUP] = sysDup
	Syscalls[SYS_DUP3] = sysDup3
	Syscalls[SYS_PIPE2] = sysPipe2
	Syscalls[SYS_FSTAT] = sysFstat
}
