package kernel

import (
	"context"
	"io"

	"github.com/runable/rvkernel/memory"
)

// Stream adapts a host reader or writer into a File, used for the console.
type Stream struct {
	name string
	r    io.Reader
	w    io.Writer
}

func NewInputStream(name string, r io.Reader) *Stream {
	return &Stream{name: name, r: r}
}

func NewOutputStream(name string, w io.Writer) *Stream {
	return &Stream{name: name, w: w}
}

func (s *Stream) Readable() bool { return s.r != nil }
func (s *Stream) Writable() bool { return s.w != nil }
func (s *Stream) Name() string   { return s.name }

func (s *Stream) Read(ctx context.Context, buf *memory.UserBuffer) (int, error) {
	if s.r == nil {
		return 0, ErrNotReadable
	}

	tmp := make([]byte, buf.Remain())

	n, err := s.r.Read(tmp)
	if n > 0 {
		buf.Write(tmp[:n])
	}

	if err == io.EOF {
		err = nil
	}

	return n, err
}

func (s *Stream) Write(ctx context.Context, buf *memory.UserBuffer) (int, error) {
	if s.w == nil {
		return 0, ErrNotWritable
	}

	n, err := io.Copy(s.w, buf)
	return int(n), err
}

func (s *Stream) Stat(ctx context.Context) (Kstat, error) {
	return Kstat{Mode: S_IFCHR | 0620, Nlink: 1}, nil
}

// Close leaves the host stream open; the console outlives any process.
func (s *Stream) Close() error {
	return nil
}
