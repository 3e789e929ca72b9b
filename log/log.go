// Package log holds the process-wide logger. Every subsystem derives a
// named logger from L.
package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{
		Name:   "rvkernel",
		Output: os.Stderr,
		Level:  hclog.Info,
	})

	// RVKERNEL_LOG names a level; TRACE=1 is shorthand for trace.
	SetLevel(os.Getenv("RVKERNEL_LOG"))
	EnableDebug()
}
