// Package rvkernel joins the kernel to whatever executes user code. A Hart
// runs a task until it traps; the Machine services the trap and puts the
// task back on the hart.
package rvkernel

import (
	"context"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/log"
	"github.com/runable/rvkernel/syscalls"
)

type Cause int

const (
	CauseEcall Cause = iota
	CausePageFault
	CauseIllegalInstruction
)

func (c Cause) String() string {
	switch c {
	case CauseEcall:
		return "ecall"
	case CausePageFault:
		return "page-fault"
	case CauseIllegalInstruction:
		return "illegal-instruction"
	default:
		return "unknown"
	}
}

// Exit codes given to a process killed by a fault.
const (
	FaultExitCode   = -2
	IllegalExitCode = -3
)

type Trap struct {
	Cause Cause
	Addr  uint64
}

// Hart executes t in user mode from t.Trap until the next trap.
type Hart interface {
	Resume(ctx context.Context, t *kernel.Task) (Trap, error)
}

var ErrNoHart = errors.New("no hart attached")

type Machine struct {
	L       hclog.Logger
	Kernel  *kernel.Kernel
	Invoker *syscalls.Invoker
	Hart    Hart

	queue *kernel.RunQueue
	wg    sync.WaitGroup
}

func NewMachine(cfg kernel.Config, mount *fs.MountNamespace, hart Hart) *Machine {
	queue := kernel.NewRunQueue()
	k := kernel.NewKernel(cfg, mount, queue)

	return &Machine{
		L:       log.L.Named("machine"),
		Kernel:  k,
		Invoker: syscalls.NewInvoker(k),
		Hart:    hart,
		queue:   queue,
	}
}

// Run starts init from path and drives tasks until init exits or ctx is
// done.
func (m *Machine) Run(ctx context.Context, path string, args []string) error {
	if m.Hart == nil {
		return ErrNoHart
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	initp, err := m.Kernel.InitProcess(ctx, path, args)
	if err != nil {
		return errors.Wrapf(err, "starting %s", path)
	}

	m.L.Info("init started", "pid", initp.Pid, "path", path)

	defer func() {
		cancel()
		m.wg.Wait()
	}()

	for {
		m.startReady(ctx)

		select {
		case <-m.queue.Added():
		case <-m.Kernel.Done():
			code, _ := initp.ExitCode()
			m.L.Info("init exited", "code", code)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Machine) startReady(ctx context.Context) {
	for {
		t, ok := m.queue.Fetch()
		if !ok {
			return
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.RunTask(ctx, t)
		}()
	}
}

// RunTask alternates between the hart and the kernel until the task's
// process exits.
func (m *Machine) RunTask(ctx context.Context, t *kernel.Task) {
	for !t.IsZombie() {
		trap, err := m.Hart.Resume(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			m.L.Error("hart failed", "pid", t.Pid, "error", err)
			t.Exit(FaultExitCode)
			return
		}

		m.HandleTrap(ctx, t, trap)
	}
}

// HandleTrap services one trap taken by t.
func (m *Machine) HandleTrap(ctx context.Context, t *kernel.Task, trap Trap) {
	switch trap.Cause {
	case CauseEcall:
		m.Invoker.Dispatch(ctx, t)
	case CausePageFault:
		m.L.Warn("page fault", "pid", t.Pid, "addr", hclog.Fmt("%#x", trap.Addr), "sepc", hclog.Fmt("%#x", t.Trap.Sepc))
		t.DeliverSignal(kernel.SIGSEGV)
		t.Exit(FaultExitCode)
	case CauseIllegalInstruction:
		m.L.Warn("illegal instruction", "pid", t.Pid, "sepc", hclog.Fmt("%#x", t.Trap.Sepc))
		t.DeliverSignal(kernel.SIGILL)
		t.Exit(IllegalExitCode)
	default:
		m.L.Error("unknown trap", "pid", t.Pid, "cause", trap.Cause)
		t.Exit(FaultExitCode)
	}
}
