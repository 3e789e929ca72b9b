package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/memory"
)

// sysClone returns the child's pid here; the child resumes with a0 = 0.
func sysClone(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	stack := args.Args.R1

	child, err := t.Clone(stack)
	if err != nil {
		l.Error("error forking process", "error", err)
		return -1
	}

	return int64(child.Pid)
}

// waitTarget reads the pid argument of waitpid and wait4. Only -1 selects
// any child; other negative values match nothing.
func waitTarget(r uint64) int {
	return int(int64(r))
}

// sysWaitpid never blocks. It reports -2 while matching children are still
// running and stores the raw exit code.
func sysWaitpid(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		pid      = waitTarget(args.Args.R0)
		codeAddr = args.Args.R1
	)

	cpid, code, err := t.Waitpid(pid)
	if err != nil {
		return int64(cpid)
	}

	if codeAddr != 0 {
		err = memory.WriteInt32(t.Token(), codeAddr, int32(code))
		if err != nil {
			l.Error("error writing exit code", "error", err, "child", cpid)
		}
	}

	return int64(cpid)
}

// sysWait4 blocks until a matching child exits and stores the code shifted
// into wait status form.
func sysWait4(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		pid      = waitTarget(args.Args.R0)
		codeAddr = args.Args.R1
	)

	cpid, code, err := t.Wait4(ctx, pid)
	if err != nil {
		if interrupted(err) {
			return -kernel.EINTR
		}

		if errors.Cause(err) != kernel.ErrNoChild {
			l.Error("error waiting for child", "error", err)
		}

		return -1
	}

	if codeAddr != 0 {
		err = memory.WriteInt32(t.Token(), codeAddr, int32(code)<<8)
		if err != nil {
			l.Error("error writing wait status", "error", err, "child", cpid)
		}
	}

	l.Trace("wait4-found-child", "pid", cpid, "code", code)

	return int64(cpid)
}

func sysKill(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		pid = int(int64(args.Args.R0))
		sig = args.Args.R1
	)

	err := t.Kernel.Kill(pid, sig)
	if err != nil {
		l.Debug("kill failed", "error", err)
		return -1
	}

	return 0
}

func sysGetpid(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	return int64(t.Getpid())
}

func sysGetppid(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	return int64(t.Getppid())
}

func init() {
	Syscalls[SYS_CLONE] = sysClone
	Syscalls[SYS_WAITPID] = sysWaitpid
	Syscalls[SYS_WAIT4] = sysWait4
	Syscalls[SYS_KILL] = sysKill
	Syscalls[SYS_GETPID] = sysGetpid
	Syscalls[SYS_GETPPID] = sysGetppid
}
