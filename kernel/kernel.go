package kernel

import (
	"io"
	"os"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/loader"
	"github.com/runable/rvkernel/log"
)

type Config struct {
	Sysname    string
	Nodename   string
	Release    string
	Version    string
	Machine    string
	Domainname string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	LoaderCacheSize int
}

func DefaultConfig() Config {
	return Config{
		Sysname:    "Runable",
		Nodename:   "root",
		Release:    "0.0",
		Version:    "0.0",
		Machine:    "RISC-V64",
		Domainname: "https://gitlab.eduxiji.net/runable/oskernel2023-Runable",

		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,

		LoaderCacheSize: loader.DefaultCacheSize,
	}
}

type Kernel struct {
	L      hclog.Logger
	Config Config
	Mount  *fs.MountNamespace
	Loader *loader.Loader
	Sched  Scheduler

	processes *ProcessManager
	initProc  *Process
	boot      time.Time

	doneOnce sync.Once
	done     chan struct{}
}

func NewKernel(cfg Config, mount *fs.MountNamespace, sched Scheduler) *Kernel {
	if sched == nil {
		sched = NewRunQueue()
	}

	return &Kernel{
		L:         log.L.Named("kernel"),
		Config:    cfg,
		Mount:     mount,
		Loader:    loader.NewLoader(loader.NewCache(cfg.LoaderCacheSize)),
		Sched:     sched,
		processes: NewProcessManager(),
		boot:      time.Now(),
		done:      make(chan struct{}),
	}
}

// Uptime is the time since the kernel was created.
func (k *Kernel) Uptime() time.Duration {
	return time.Since(k.boot)
}

func (k *Kernel) Processes() *ProcessManager {
	return k.processes
}

func (k *Kernel) Lookup(pid int) (*Process, bool) {
	return k.processes.Lookup(pid)
}

func (k *Kernel) Init() *Process {
	return k.initProc
}

// Kill marks sig pending on pid. A zero sig only checks that pid exists.
func (k *Kernel) Kill(pid int, sig uint64) error {
	proc, ok := k.processes.Lookup(pid)
	if !ok {
		return errors.Wrapf(ErrNoSuchProcess, "kill %d", pid)
	}

	flags, ok := SignalFromBits(sig)
	if !ok {
		return errors.Wrapf(ErrInvalidSignal, "kill %d: %#x", pid, sig)
	}

	proc.DeliverSignal(flags)

	return nil
}

// Done is closed once a process with no parent, normally init, exits.
func (k *Kernel) Done() <-chan struct{} {
	return k.done
}

func (k *Kernel) processExited(p *Process) {
	k.L.Info("parentless process exited", "pid", p.Pid)

	if p == k.initProc {
		k.doneOnce.Do(func() { close(k.done) })
	}
}
