package kernel

import (
	"strings"

	"github.com/runable/rvkernel/log"
)

type SignalFlags uint32

const (
	SIGINT  SignalFlags = 1 << 2
	SIGILL  SignalFlags = 1 << 4
	SIGABRT SignalFlags = 1 << 6
	SIGFPE  SignalFlags = 1 << 8
	SIGSEGV SignalFlags = 1 << 11

	allSignals = SIGINT | SIGILL | SIGABRT | SIGFPE | SIGSEGV
)

// SignalFromBits accepts v only when every set bit is a known signal.
func SignalFromBits(v uint64) (SignalFlags, bool) {
	if v&^uint64(allSignals) != 0 {
		return 0, false
	}

	return SignalFlags(v), true
}

var signalNames = []struct {
	flag SignalFlags
	name string
}{
	{SIGINT, "SIGINT"},
	{SIGILL, "SIGILL"},
	{SIGABRT, "SIGABRT"},
	{SIGFPE, "SIGFPE"},
	{SIGSEGV, "SIGSEGV"},
}

func (s SignalFlags) String() string {
	var parts []string

	for _, sn := range signalNames {
		if s&sn.flag != 0 {
			parts = append(parts, sn.name)
		}
	}

	if len(parts) == 0 {
		return "0"
	}

	return strings.Join(parts, "|")
}

// DeliverSignal records sig as pending. Pending bits are consumed by the trap
// layer, never by this package.
func (p *Process) DeliverSignal(sig SignalFlags) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.signals |= sig

	log.L.Trace("signal-pending", "pid", p.Pid, "signal", sig, "pending", p.signals)
}

func (p *Process) PendingSignals() SignalFlags {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.signals
}
