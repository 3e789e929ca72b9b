package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/memory"
)

const utsFieldLen = 65

type utsname struct {
	Sysname    [utsFieldLen]byte
	Nodename   [utsFieldLen]byte
	Release    [utsFieldLen]byte
	Version    [utsFieldLen]byte
	Machine    [utsFieldLen]byte
	Domainname [utsFieldLen]byte
}

func utsField(s string) [utsFieldLen]byte {
	var f [utsFieldLen]byte
	copy(f[:utsFieldLen-1], s)
	return f
}

func newUtsname(cfg kernel.Config) utsname {
	return utsname{
		Sysname:    utsField(cfg.Sysname),
		Nodename:   utsField(cfg.Nodename),
		Release:    utsField(cfg.Release),
		Version:    utsField(cfg.Version),
		Machine:    utsField(cfg.Machine),
		Domainname: utsField(cfg.Domainname),
	}
}

func sysUname(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	err := memory.CopyOut(t.Token(), args.Args.R0, newUtsname(t.Kernel.Config))
	if err != nil {
		l.Error("error copying utsname", "error", err)
		return -1
	}

	return 0
}

// The heap and mapping calls are accepted and ignored.

func sysBrk(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	return 0
}

func sysMmap(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	l.Trace("mmap ignored", "addr", args.Args.R0, "len", args.Args.R1)
	return 0
}

func sysMunmap(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	return 0
}

func init() {
	Syscalls[SYS_UNAME] = sysUname
	Syscalls[SYS_BRK] = sysBrk
	Syscalls[SYS_MMAP] = sysMmap
	Syscalls[SYS_MUNMAP] = sysMunmap
}
