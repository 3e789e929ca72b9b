package kernel

import (
	"context"

	"github.com/pkg/errors"

	"github.com/runable/rvkernel/memory"
)

// InitProcess creates the first process with the console on fds 0, 1 and 2,
// the namespace root as its working directory, and path loaded as its
// image. Its main task is handed to the scheduler.
func (k *Kernel) InitProcess(ctx context.Context, path string, args []string) (*Process, error) {
	if k.initProc != nil {
		return nil, errors.New("init process already started")
	}

	if k.Mount == nil || k.Mount.Root == nil {
		return nil, errors.New("no root filesystem mounted")
	}

	proc := newProcess(k, memory.NewAddressSpace())

	proc.mu.Lock()
	proc.setCwdLocked(k.Mount.Root, "/")
	task := proc.addTaskLocked()
	proc.mu.Unlock()

	// The kernel holds init in place of a parent.
	proc.refs.Add(1)

	proc.HookupStdio(k.Config)

	if len(args) == 0 {
		args = []string{path}
	}

	_, err := proc.Exec(SetTask(ctx, task), path, args)
	if err != nil {
		k.processes.RemoveProc(proc)
		proc.Space().Release()
		return nil, err
	}

	k.initProc = proc

	k.L.Debug("init started", "pid", proc.Pid, "path", path)

	k.Sched.Add(task)

	return proc, nil
}

// NewProcess creates a parentless process with an empty image, running in
// the namespace root. It is used to host work that does not start from an
// executable.
func (k *Kernel) NewProcess() *Task {
	proc := newProcess(k, memory.NewAddressSpace())

	proc.mu.Lock()
	if k.Mount != nil && k.Mount.Root != nil {
		proc.setCwdLocked(k.Mount.Root, "/")
	}
	task := proc.addTaskLocked()
	proc.mu.Unlock()

	proc.refs.Add(1)

	return task
}
