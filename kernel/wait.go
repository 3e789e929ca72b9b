package kernel

import (
	"context"
	"fmt"

	"github.com/runable/rvkernel/log"
)

// WaitAny matches every child in Waitpid and Wait4. No other negative pid
// matches anything.
const WaitAny = -1

// findLocked returns the index of the first zombie child matching pid, and
// whether any child matches at all.
func (p *Process) findLocked(pid int) (int, bool) {
	found := false

	for i, c := range p.children {
		if pid != WaitAny && c.Pid != pid {
			continue
		}

		found = true

		if c.IsZombie() {
			return i, true
		}
	}

	return -1, found
}

// reapLocked unlinks the zombie at children[i]. By now the children slot must
// be the only thing keeping it alive.
func (p *Process) reapLocked(i int) (int, int) {
	child := p.children[i]
	p.children = append(p.children[:i], p.children[i+1:]...)

	if n := child.refs.Load(); n != 1 {
		panic(fmt.Sprintf("reaping %s with %d references", child, n))
	}

	child.refs.Store(0)

	code, _ := child.ExitCode()

	p.Kernel.processes.RemoveProc(child)

	log.L.Trace("process-reap", "parent", p.Pid, "child", child.Pid, "code", code)

	return child.Pid, code
}

// Waitpid reaps a zombie child matching pid without blocking. It fails with
// ErrNoChild when nothing matches and ErrNotExited when the matches are all
// still running.
func (p *Process) Waitpid(pid int) (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, found := p.findLocked(pid)
	if !found {
		return -1, 0, ErrNoChild
	}

	if i < 0 {
		return -2, 0, ErrNotExited
	}

	cpid, code := p.reapLocked(i)
	return cpid, code, nil
}

// Wait4 blocks until a child matching pid can be reaped. The lock is dropped
// while parked; the registration happens first so an exit in between is not
// missed.
func (p *Process) Wait4(ctx context.Context, pid int) (int, int, error) {
	c := make(chan struct{}, 1)
	ev := p.childEvents.RegisterChannel(EventChildExit, c)
	defer p.childEvents.Unregister(ev)

	for {
		cpid, code, err := p.Waitpid(pid)
		if err != ErrNotExited {
			return cpid, code, err
		}

		err = p.Kernel.Sched.Suspend(ctx, c)
		if err != nil {
			return -1, 0, err
		}
	}
}
