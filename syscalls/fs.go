package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/memory"
)

func sysOpenat(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		dirfd = asFD(args.Args.R0)
		ptr   = args.Args.R1
		flags = kernel.OpenFlags(args.Args.R2)
	)

	path, err := memory.TranslateString(t.Token(), ptr)
	if err != nil {
		l.Error("error reading open path", "error", err)
		return -1
	}

	l.Trace("open file", "dirfd", dirfd, "path", path, "flags", flags)

	nfd, err := t.Open(ctx, dirfd, path, flags)
	if err != nil {
		switch errors.Cause(err) {
		case fs.ErrUnknownPath, fs.ErrNotDirectory, kernel.ErrBadDescriptor:
		default:
			l.Error("error opening file", "error", err, "path", path)
		}

		return -1
	}

	return int64(nfd)
}

func sysMkdirat(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		dirfd = asFD(args.Args.R0)
		ptr   = args.Args.R1
	)

	path, err := memory.TranslateString(t.Token(), ptr)
	if err != nil {
		l.Error("error reading mkdir path", "error", err)
		return -1
	}

	nfd, err := t.Mkdirat(ctx, dirfd, path)
	if err != nil {
		l.Debug("mkdirat failed", "error", err, "path", path)
		return -1
	}

	return int64(nfd)
}

// sysChdir reports 0 on success and 1 on failure.
func sysChdir(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	path, err := memory.TranslateString(t.Token(), args.Args.R0)
	if err != nil {
		l.Error("error reading chdir path", "error", err)
		return 1
	}

	err = t.Chdir(ctx, path)
	if err != nil {
		l.Debug("chdir failed", "error", err, "path", path)
		return 1
	}

	return 0
}

// sysGetcwd copies as much of the working directory name as fits in the
// buffer, without a terminator, and reports 1.
func sysGetcwd(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		ptr = args.Args.R0
		sz  = args.Args.R1
	)

	buf, err := userBuffer(t, ptr, sz)
	if err != nil {
		l.Error("error translating getcwd buffer", "error", err)
		return -1
	}

	name := t.Getcwd()

	n, _ := buf.Write([]byte(name))
	if n < len(name) {
		l.Warn("getcwd truncated", "name", name, "size", sz)
	}

	return 1
}

func init() {
	Syscalls[SYS_OPENAT] = sysOpenat
	Syscalls[SYS_MKDIRAT] = sysMkdirat
	Syscalls[SYS_CHDIR] = sysChdir
	Syscalls[SYS_GETCWD] = sysGetcwd
}
