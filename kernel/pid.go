package kernel

import (
	"sort"
	"sync"
	"weak"
)

// ProcessManager maps pids to processes. Entries are weak so the registry
// never keeps a process alive on its own.
type ProcessManager struct {
	mu        sync.RWMutex
	highWater int
	processes map[int]weak.Pointer[Process]
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		processes: make(map[int]weak.Pointer[Process]),
	}
}

// AssignPid gives proc the lowest pid not currently registered.
func (p *ProcessManager) AssignPid(proc *Process) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 1; i <= p.highWater; i++ {
		if _, ok := p.processes[i]; !ok {
			proc.Pid = i
			p.processes[i] = weak.Make(proc)
			return i
		}
	}

	p.highWater++
	pid := p.highWater
	p.processes[pid] = weak.Make(proc)
	proc.Pid = pid

	return pid
}

func (p *ProcessManager) Lookup(pid int) (*Process, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	wp, ok := p.processes[pid]
	if !ok {
		return nil, false
	}

	proc := wp.Value()
	return proc, proc != nil
}

func (p *ProcessManager) RemoveProc(proc *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.processes, proc.Pid)
}

func (p *ProcessManager) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.processes)
}

// Pids returns the registered pids in ascending order.
func (p *ProcessManager) Pids() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pids := make([]int, 0, len(p.processes))
	for pid := range p.processes {
		pids = append(pids, pid)
	}

	sort.Ints(pids)

	return pids
}
