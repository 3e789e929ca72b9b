package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/log"
)

type Invoker struct {
	Kernel *kernel.Kernel
	L      hclog.Logger
}

func NewInvoker(k *kernel.Kernel) *Invoker {
	return &Invoker{
		Kernel: k,
		L:      log.L.Named("syscall"),
	}
}

// InvokeSyscall runs the handler for args against the task carried in ctx.
func (i *Invoker) InvokeSyscall(ctx context.Context, args SysArgs) int64 {
	if args.Index < 0 || args.Index >= len(Syscalls) || Syscalls[args.Index] == nil {
		i.L.Warn("unknown syscall", "index", args.Index)
		return -kernel.ENOSYS
	}

	t, ok := kernel.GetTask(ctx)
	if !ok {
		return -kernel.ENOSYS
	}

	if i.L.IsTrace() {
		i.L.Trace("syscall", "pid", t.Pid, "name", SyscallNames[args.Index], "args", args.Args)
	}

	return Syscalls[args.Index](ctx, i.L, t, args)
}

// Dispatch services the ecall t trapped on: a7 selects the handler, a0-a5
// are its arguments, sepc moves past the ecall and the result lands in a0.
func (i *Invoker) Dispatch(ctx context.Context, t *kernel.Task) int64 {
	tc := &t.Trap

	args := SysArgs{
		Index: int(tc.X[kernel.RegA7]),
		Args: SyscallRequest{
			R0: tc.X[kernel.RegA0],
			R1: tc.X[kernel.RegA1],
			R2: tc.X[kernel.RegA2],
			R3: tc.X[kernel.RegA3],
			R4: tc.X[kernel.RegA4],
			R5: tc.X[kernel.RegA5],
		},
	}

	tc.Sepc += 4

	ret := i.InvokeSyscall(kernel.SetTask(ctx, t), args)

	tc.X[kernel.RegA0] = uint64(ret)

	return ret
}
