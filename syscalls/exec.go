package syscalls

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/kernel"
	"github.com/runable/rvkernel/memory"
)

// copyStringArray reads a NULL terminated array of string pointers.
func copyStringArray(tok memory.Token, addr uint64) ([]string, error) {
	var args []string

	if addr == 0 {
		return nil, nil
	}

	for ptr := addr; ; ptr += 8 {
		sp, err := memory.ReadUint64(tok, ptr)
		if err != nil {
			return nil, err
		}

		if sp == 0 {
			break
		}

		str, err := memory.TranslateString(tok, sp)
		if err != nil {
			return nil, err
		}

		args = append(args, str)
	}

	return args, nil
}

// sysExecve returns argc, which the new image also finds in a0.
func sysExecve(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	var (
		pathAddr = args.Args.R0
		argvAddr = args.Args.R1
	)

	tok := t.Token()

	path, err := memory.TranslateString(tok, pathAddr)
	if err != nil {
		l.Error("error reading exec path", "error", err)
		return -1
	}

	execArgs, err := copyStringArray(tok, argvAddr)
	if err != nil {
		l.Error("error copying argv", "error", err)
		return -1
	}

	argc, err := t.Exec(ctx, path, execArgs)
	if err != nil {
		if errors.Cause(err) != fs.ErrUnknownPath {
			l.Error("unable to exec", "error", err, "path", path)
		}

		return -1
	}

	return int64(argc)
}

// sysExit does not come back to the task; the runner sees the process is a
// zombie and stops.
func sysExit(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) int64 {
	t.Exit(int(int32(args.Args.R0)))
	return 0
}

func init() {
	Syscalls[SYS_EXECVE] = sysExecve
	Syscalls[SYS_EXIT] = sysExit
	Syscalls[SYS_EXIT_GROUP] = sysExit
}
