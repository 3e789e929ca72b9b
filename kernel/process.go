package kernel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/log"
	"github.com/runable/rvkernel/memory"
	"github.com/runable/rvkernel/pkg/waiter"
)

const (
	// EventChildExit fires on a parent when one of its children becomes a
	// zombie.
	EventChildExit waiter.EventType = 1 << iota
)

type prockey struct{}

func GetTask(ctx context.Context) (*Task, bool) {
	if v := ctx.Value(prockey{}); v != nil {
		return v.(*Task), true
	}

	return nil, false
}

func SetTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, prockey{}, t)
}

// Task is one thread of execution. Trap is owned by whoever is running the
// task; the kernel only rewrites it on fork and exec.
type Task struct {
	*Process

	Trap TrapContext
}

// Register reads general purpose register r.
func (t *Task) Register(r int) uint64 {
	return t.Trap.X[r]
}

func (t *Task) SetRegister(r int, v uint64) {
	t.Trap.X[r] = v
}

type Process struct {
	Kernel *Kernel
	Pid    int

	// refs counts strong holders: the parent's children slot (or the kernel
	// for init) plus each live task.
	refs atomic.Int32

	mu sync.Mutex

	parent   weak.Pointer[Process]
	children []*Process
	tasks    []*Task

	fds   *FDTable
	cwd   *FileDescriptor
	space *memory.AddressSpace

	signals  SignalFlags
	exiting  bool
	zombie   bool
	exitCode int

	childEvents waiter.Waiter
}

func newProcess(k *Kernel, space *memory.AddressSpace) *Process {
	p := &Process{
		Kernel: k,
		fds:    NewFDTable(),
		space:  space,
	}

	k.processes.AssignPid(p)

	return p
}

// addTaskLocked appends a task sharing p and takes a reference for it.
func (p *Process) addTaskLocked() *Task {
	t := &Task{Process: p}
	p.tasks = append(p.tasks, t)
	p.refs.Add(1)
	return t
}

func (p *Process) String() string {
	return fmt.Sprintf("process(pid=%d)", p.Pid)
}

// Dump returns a readable rendering of the process state for tracing.
func (p *Process) Dump() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := struct {
		Pid      int
		Children []int
		Tasks    int
		FDs      int
		Signals  string
		Zombie   bool
		ExitCode int
	}{
		Pid:      p.Pid,
		Tasks:    len(p.tasks),
		FDs:      p.fds.Len(),
		Signals:  p.signals.String(),
		Zombie:   p.zombie,
		ExitCode: p.exitCode,
	}

	for _, c := range p.children {
		state.Children = append(state.Children, c.Pid)
	}

	return spew.Sdump(state)
}

func (p *Process) Getpid() int {
	return p.Pid
}

// Parent returns nil for init, or once the parent has been destroyed.
func (p *Process) Parent() *Process {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.parent.Value()
}

// Getppid reports 0 when there is no parent.
func (p *Process) Getppid() int {
	parent := p.Parent()
	if parent == nil {
		return 0
	}

	return parent.Pid
}

func (p *Process) IsZombie() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.zombie
}

// ExitCode is valid only once the process is a zombie.
func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exitCode, p.zombie
}

// Token identifies the address space for translation requests.
func (p *Process) Token() memory.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.space == nil {
		return 0
	}

	return p.space.Token()
}

func (p *Process) Space() *memory.AddressSpace {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.space
}

func (p *Process) MainTask() *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tasks) == 0 {
		return nil
	}

	return p.tasks[0]
}

func (p *Process) Children() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pids := make([]int, len(p.children))
	for i, c := range p.children {
		pids[i] = c.Pid
	}

	return pids
}

// Refs reports the number of strong holders.
func (p *Process) Refs() int {
	return int(p.refs.Load())
}

// Fork creates a child with a copy of the address space, a table sharing
// every descriptor, and a main task copied from ours. The child is
// registered and linked before the lock is dropped but not yet runnable.
func (p *Process) Fork() (*Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exiting {
		return nil, ErrExited
	}

	if len(p.tasks) == 0 {
		return nil, errors.Wrapf(ErrNoSuchProcess, "fork of %s with no tasks", p)
	}

	child := newProcess(p.Kernel, p.space.Fork())
	child.parent = weak.Make(p)
	child.fds = p.fds.Clone()

	if p.cwd != nil {
		p.cwd.incRef()
		child.cwd = p.cwd
	}

	task := child.addTaskLocked()
	task.Trap = p.tasks[0].Trap

	child.refs.Add(1)
	p.children = append(p.children, child)

	log.L.Trace("process-fork", "parent", p.Pid, "child", child.Pid)

	return child, nil
}

// Clone forks and starts the child. The child's main task observes 0 in a0
// and, when stack is non-zero, starts on that stack.
func (t *Task) Clone(stack uint64) (*Process, error) {
	child, err := t.Fork()
	if err != nil {
		return nil, err
	}

	ct := child.MainTask()
	ct.SetRegister(RegA0, 0)

	if stack != 0 {
		ct.SetRegister(RegSP, stack)
	}

	t.Kernel.Sched.Add(ct)

	return child, nil
}

// Exec replaces the image with the executable at path and points the main
// task at its entry. It returns argc, which is also left in a0.
func (p *Process) Exec(ctx context.Context, path string, args []string) (int, error) {
	d, err := p.Lookup(ctx, AT_FDCWD, path)
	if err != nil {
		return 0, err
	}

	if d.IsDir() {
		return 0, errors.Wrapf(fs.ErrIsDirectory, "exec %s", path)
	}

	data, err := NewOSInode(true, false, d, path).ReadAll(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "exec %s", path)
	}

	prog, err := p.Kernel.Loader.Load(data, args)
	if err != nil {
		return 0, errors.Wrapf(err, "exec %s", path)
	}

	p.mu.Lock()

	if p.exiting {
		p.mu.Unlock()
		prog.Space.Release()
		return 0, ErrExited
	}

	old := p.space
	p.space = prog.Space

	t := p.tasks[0]
	t.Trap = TrapContext{Sepc: prog.Entry}
	t.Trap.X[RegSP] = prog.StackTop
	t.Trap.X[RegA0] = uint64(prog.Argc)
	t.Trap.X[RegA1] = prog.ArgvBase

	p.mu.Unlock()

	if old != nil {
		old.Release()
	}

	log.L.Trace("process-exec", "pid", p.Pid, "path", path, "argc", prog.Argc)

	return prog.Argc, nil
}

// Exit turns p into a zombie holding code. Descriptors are closed, the
// address space released, and living children handed to init before the
// parent is told.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	if p.exiting {
		p.mu.Unlock()
		return
	}

	p.exiting = true

	fds := p.fds.Drain()
	cwd := p.cwd
	p.cwd = nil
	space := p.space
	p.space = nil
	children := p.children
	p.children = nil

	p.mu.Unlock()

	log.L.Trace("process-exit", "pid", p.Pid, "code", code)

	for _, d := range fds {
		d.Close()
	}

	if cwd != nil {
		cwd.Close()
	}

	if space != nil {
		space.Release()
	}

	p.Kernel.adopt(p, children)

	p.mu.Lock()

	p.exitCode = code
	p.zombie = true
	p.refs.Add(-int32(len(p.tasks)))
	p.tasks = nil
	parent := p.parent.Value()

	p.mu.Unlock()

	if parent != nil {
		parent.childEvents.Notify(EventChildExit)
	} else {
		p.Kernel.processExited(p)
	}
}

// adopt links children under init. Any that already exited are announced
// to init so a waiting init can reap them.
func (k *Kernel) adopt(from *Process, children []*Process) {
	if len(children) == 0 {
		return
	}

	initp := k.initProc
	if initp == nil || initp == from {
		log.L.Warn("orphaned children with no init", "pid", from.Pid, "count", len(children))
		return
	}

	initp.mu.Lock()

	notify := false

	for _, c := range children {
		c.mu.Lock()
		c.parent = weak.Make(initp)
		if c.zombie {
			notify = true
		}
		c.mu.Unlock()

		initp.children = append(initp.children, c)
	}

	initp.mu.Unlock()

	log.L.Trace("reparent", "from", from.Pid, "to", initp.Pid, "count", len(children))

	if notify {
		initp.childEvents.Notify(EventChildExit)
	}
}
