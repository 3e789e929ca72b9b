package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"

	"github.com/runable/rvkernel"
	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/kernel"
	clog "github.com/runable/rvkernel/log"
)

var (
	fRoot      = pflag.StringP("root", "r", "", "directory to mount as the root")
	fTar       = pflag.StringP("tar", "t", "", "tar archive to unpack as the root")
	fNodename  = pflag.String("nodename", "", "node name reported by uname")
	fCacheSize = pflag.Int("dirent-cache", fs.DefaultDirentCacheSize, "entries kept in the dirent cache")
	fLogLevel  = pflag.String("log-level", "", "log level (trace, debug, info, warn, error)")
)

// main boots the kernel, loads init and reports the state the first hart
// would start from.
func main() {
	pflag.Parse()

	if *fLogLevel != "" {
		clog.SetLevel(*fLogLevel)
	}

	inputArgs := pflag.Args()
	if len(inputArgs) == 0 {
		fmt.Fprintf(os.Stderr, "usage: rvkernel [flags] <init> [args...]\n")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	var (
		mount *fs.MountNamespace
		err   error
	)

	switch {
	case *fTar != "":
		mount, err = rvkernel.MountTar(*fTar, *fCacheSize)
	case *fRoot != "":
		mount, err = rvkernel.MountHost(*fRoot, *fCacheSize)
	default:
		log.Fatal("one of --root or --tar is required")
	}

	if err != nil {
		log.Fatal(err)
	}

	cfg := kernel.DefaultConfig()
	if *fNodename != "" {
		cfg.Nodename = *fNodename
	}

	m := rvkernel.NewMachine(cfg, mount, nil)

	cmd := inputArgs[0]
	args := append([]string{filepath.Base(cmd)}, inputArgs[1:]...)

	proc, err := m.Kernel.InitProcess(context.Background(), cmd, args)
	if err != nil {
		log.Fatal(err)
	}

	t := proc.MainTask()

	fmt.Printf("init pid=%d entry=%#x sp=%#x argc=%d\n",
		proc.Pid, t.Trap.Sepc, t.Trap.X[kernel.RegSP], t.Trap.X[kernel.RegA0])

	if clog.L.IsTrace() {
		fmt.Print(proc.Dump())
		spew.Dump(t.Trap)
	}
}
