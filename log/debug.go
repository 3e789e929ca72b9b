package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// EnableDebug re-reads TRACE, for callers that set it after init.
func EnableDebug() {
	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// SetLevel parses a level name ("trace", "debug", "info", ...) and applies it.
func SetLevel(name string) {
	lvl := hclog.LevelFromString(name)
	if lvl == hclog.NoLevel {
		return
	}

	L.SetLevel(lvl)
}
