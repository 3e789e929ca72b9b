package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

var (
	fArgs = pflag.StringSliceP("arg", "a", nil, "arguments to push on the stack")
	fRaw  = pflag.Bool("raw", false, "dump the parsed image structure")
)

func main() {
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: rvdump [flags] <elf>\n")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	err := dump(pflag.Arg(0), *fArgs, *fRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
