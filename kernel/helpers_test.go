package kernel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runable/rvkernel/internal/testutil"
	"github.com/runable/rvkernel/memory"
)

// ecall is the only instruction test images need.
var ecall = []byte{0x73, 0x00, 0x00, 0x00}

func newTestKernel(files map[string][]byte) (*Kernel, *bytes.Buffer) {
	var out bytes.Buffer

	cfg := DefaultConfig()
	cfg.Stdin = strings.NewReader("")
	cfg.Stdout = &out
	cfg.Stderr = &out

	if files == nil {
		files = map[string][]byte{}
	}

	return NewKernel(cfg, testutil.RootFS(files), nil), &out
}

func userBuf(b []byte) *memory.UserBuffer {
	return memory.NewUserBuffer([][]byte{b})
}

func readString(t *testing.T, p *Process, fd int, max int) string {
	buf := make([]byte, max)

	n, err := p.Read(context.Background(), fd, userBuf(buf))
	require.NoError(t, err)

	return string(buf[:n])
}

func writeString(t *testing.T, p *Process, fd int, s string) {
	n, err := p.Write(context.Background(), fd, userBuf([]byte(s)))
	require.NoError(t, err)
	require.Equal(t, len(s), n)
}
