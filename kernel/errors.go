package kernel

import "github.com/pkg/errors"

var (
	ErrBadDescriptor = errors.New("bad file descriptor")
	ErrUnsupported   = errors.New("operation not supported")
	ErrNotReadable   = errors.New("file not open for reading")
	ErrNotWritable   = errors.New("file not open for writing")
	ErrBrokenPipe    = errors.New("broken pipe")
	ErrNoSuchProcess = errors.New("no such process")
	ErrInvalidSignal = errors.New("invalid signal")
	ErrNoChild       = errors.New("no matching child")
	ErrNotExited     = errors.New("child has not exited")
	ErrExited        = errors.New("process has exited")
)

// errno values, negated at the syscall boundary where a handler reports them.
const (
	EPERM   = 1
	ENOENT  = 2
	ESRCH   = 3
	EINTR   = 4
	EIO     = 5
	EBADF   = 9
	ECHILD  = 10
	EFAULT  = 14
	EEXIST  = 17
	ENOTDIR = 20
	EINVAL  = 22
	EPIPE   = 32
	ENOSYS  = 38
)
