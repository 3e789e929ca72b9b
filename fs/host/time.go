//go:build linux

package host

import (
	"time"

	"golang.org/x/sys/unix"
)

func timespecToTime(ts unix.Timespec) time.Time {
	return time.Unix(ts.Unix())
}
