package syscalls

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/memory"
)

type timeval struct {
	Sec  uint64
	USec uint64
}

type timespec struct {
	Sec  uint64
	NSec uint64
}

// tms carries user, system, child user and child system time. All four
// report time since boot.
type tms struct {
	Utime, Stime, Cutime, Cstime uint64
}

// sysGetTime returns milliseconds since boot.
func sysGetTime(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	return t.Kernel.Uptime().Milliseconds()
}

func sysGettimeofday(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	us := uint64(t.Kernel.Uptime().Microseconds())

	tv := timeval{
		Sec:  us / 1000000,
		USec: us % 1000000,
	}

	err := memory.CopyOut(t.Token(), args.Args.R0, tv)
	if err != nil {
		l.Error("error copying timeval", "error", err)
		return -1
	}

	return 0
}

func sysTimes(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	us := uint64(t.Kernel.Uptime().Microseconds())

	err := memory.CopyOut(t.Token(), args.Args.R0, tms{us, us, us, us})
	if err != nil {
		l.Error("error copying tms", "error", err)
		return -1
	}

	return int64(us)
}

// sysNanosleep yields until the requested interval has passed.
func sysNanosleep(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var ts timespec

	err := memory.CopyIn(t.Token(), args.Args.R0, &ts)
	if err != nil {
		l.Error("error copying timespec", "error", err)
		return -1
	}

	deadline := time.Now().Add(time.Duration(ts.Sec)*time.Second + time.Duration(ts.NSec))

	for time.Now().Before(deadline) {
		err = t.Kernel.Sched.Yield(ctx)
		if err != nil {
			return -kernel.EINTR
		}
	}

	return 0
}

func sysSchedYield(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	err := t.Kernel.Sched.Yield(ctx)
	if err != nil {
		return -kernel.EINTR
	}

	return 0
}

func init() {
	Syscalls[SYS_GET_TIME] = sysGetTime
	Syscalls[SYS_GETTIMEOFDAY] = sysGettimeofday
	Syscalls[SYS_TIMES] = sysTimes
	Syscalls[SYS_NANOSLEEP] = sysNanosleep
	Syscalls[SYS_SCHED_YIELD] = sysSchedYield
}
