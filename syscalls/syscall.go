package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/runable/rvkernel/kernel"
)

type SysArgs struct {
	Index int
	Args  SyscallRequest
}

// SyscallRequest holds a0 through a5 as the task left them.
type SyscallRequest struct {
	R0, R1, R2, R3, R4, R5 uint64
}

// Handler returns the value placed in a0. Negative values are failures.
type Handler func(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64

var Syscalls [1024]Handler

const (
	SYS_GETCWD       = 17
	SYS_DUP          = 23
	SYS_DUP3         = 24
	SYS_MKDIRAT      = 34
	SYS_CHDIR        = 49
	SYS_OPENAT       = 56
	SYS_CLOSE        = 57
	SYS_PIPE2        = 59
	SYS_READ         = 63
	SYS_WRITE        = 64
	SYS_FSTAT        = 80
	SYS_EXIT         = 93
	SYS_EXIT_GROUP   = 94
	SYS_NANOSLEEP    = 101
	SYS_SCHED_YIELD  = 124
	SYS_KILL         = 129
	SYS_TIMES        = 153
	SYS_UNAME        = 160
	SYS_GETTIMEOFDAY = 169
	SYS_GETPID       = 172
	SYS_GETPPID      = 173
	SYS_BRK          = 214
	SYS_MUNMAP       = 215
	SYS_CLONE        = 220
	SYS_EXECVE       = 221
	SYS_MMAP         = 222
	SYS_WAIT4        = 260

	// Not part of the Linux table.
	SYS_GET_TIME = 1000
	SYS_WAITPID  = 1001
)

var SyscallNames = map[int]string{
	SYS_GETCWD:       "getcwd",
	SYS_DUP:          "dup",
	SYS_DUP3:         "dup3",
	SYS_MKDIRAT:      "mkdirat",
	SYS_CHDIR:        "chdir",
	SYS_OPENAT:       "openat",
	SYS_CLOSE:        "close",
	SYS_PIPE2:        "pipe2",
	SYS_READ:         "read",
	SYS_WRITE:        "write",
	SYS_FSTAT:        "fstat",
	SYS_EXIT:         "exit",
	SYS_EXIT_GROUP:   "exit_group",
	SYS_NANOSLEEP:    "nanosleep",
	SYS_SCHED_YIELD:  "sched_yield",
	SYS_KILL:         "kill",
	SYS_TIMES:        "times",
	SYS_UNAME:        "uname",
	SYS_GETTIMEOFDAY: "gettimeofday",
	SYS_GETPID:       "getpid",
	SYS_GETPPID:      "getppid",
	SYS_BRK:          "brk",
	SYS_MUNMAP:       "munmap",
	SYS_CLONE:        "clone",
	SYS_EXECVE:       "execve",
	SYS_MMAP:         "mmap",
	SYS_WAIT4:        "wait4",
	SYS_GET_TIME:     "get_time",
	SYS_WAITPID:      "waitpid",
}

// asFD reinterprets a register as a signed descriptor, so AT_FDCWD survives.
func asFD(r uint64) int {
	return int(int64(r))
}
