package kernel

import (
	"context"
	"io"
	"sync"

	"github.com/runable/rvkernel/memory"
	"github.com/runable/rvkernel/pkg/waiter"
)

const PipeBufferSize = memory.PageSize

const (
	_ waiter.EventType = 1 << iota
	eventReadable
	eventWritable
)

// pipeBuffer is the ring shared by both ends. head and tail only grow; their
// difference is the number of buffered bytes.
type pipeBuffer struct {
	mu      sync.Mutex
	buf     [PipeBufferSize]byte
	head    int
	tail    int
	readers int
	writers int

	events waiter.Waiter
}

func (b *pipeBuffer) used() int {
	return b.head - b.tail
}

func (b *pipeBuffer) take(p []byte) int {
	n := 0
	for n < len(p) && b.used() > 0 {
		i := b.tail % PipeBufferSize
		end := PipeBufferSize
		if lim := i + b.used(); lim < end {
			end = lim
		}

		c := copy(p[n:], b.buf[i:end])
		n += c
		b.tail += c
	}

	return n
}

func (b *pipeBuffer) put(p []byte) int {
	n := 0
	for n < len(p) && b.used() < PipeBufferSize {
		i := b.head % PipeBufferSize
		end := PipeBufferSize
		if lim := i + (PipeBufferSize - b.used()); lim < end {
			end = lim
		}

		c := copy(b.buf[i:end], p[n:])
		n += c
		b.head += c
	}

	return n
}

// Pipe is one end of an anonymous pipe.
type Pipe struct {
	readable bool
	writable bool
	buffer   *pipeBuffer
	sched    Scheduler

	closeOnce sync.Once
}

// MakePipe returns connected read and write ends. sched is used to park
// readers and writers.
func MakePipe(sched Scheduler) (*Pipe, *Pipe) {
	b := &pipeBuffer{readers: 1, writers: 1}

	return &Pipe{readable: true, buffer: b, sched: sched},
		&Pipe{writable: true, buffer: b, sched: sched}
}

func (p *Pipe) Readable() bool { return p.readable }
func (p *Pipe) Writable() bool { return p.writable }

func (p *Pipe) Name() string {
	if p.readable {
		return "pipe:[read]"
	}

	return "pipe:[write]"
}

// Read blocks until at least one byte is buffered, returning 0 once every
// write end is closed and the buffer is drained.
func (p *Pipe) Read(ctx context.Context, buf *memory.UserBuffer) (int, error) {
	if !p.readable {
		return 0, ErrNotReadable
	}

	want := buf.Remain()
	if want == 0 {
		return 0, nil
	}

	b := p.buffer

	c := make(chan struct{}, 1)
	ev := b.events.RegisterChannel(eventReadable, c)
	defer b.events.Unregister(ev)

	tmp := make([]byte, want)

	for {
		b.mu.Lock()
		n := b.take(tmp)
		writers := b.writers
		b.mu.Unlock()

		if n > 0 {
			b.events.Notify(eventWritable)
			buf.Write(tmp[:n])
			return n, nil
		}

		if writers == 0 {
			return 0, nil
		}

		err := p.sched.Suspend(ctx, c)
		if err != nil {
			return 0, err
		}
	}
}

// Write blocks while the buffer is full. It fails with ErrBrokenPipe once no
// read end remains.
func (p *Pipe) Write(ctx context.Context, buf *memory.UserBuffer) (int, error) {
	if !p.writable {
		return 0, ErrNotWritable
	}

	data, err := io.ReadAll(buf)
	if err != nil {
		return 0, err
	}

	b := p.buffer

	c := make(chan struct{}, 1)
	ev := b.events.RegisterChannel(eventWritable, c)
	defer b.events.Unregister(ev)

	written := 0

	for {
		b.mu.Lock()
		if b.readers == 0 {
			b.mu.Unlock()
			return written, ErrBrokenPipe
		}

		n := b.put(data[written:])
		b.mu.Unlock()

		if n > 0 {
			written += n
			b.events.Notify(eventReadable)
		}

		if written == len(data) {
			return written, nil
		}

		err := p.sched.Suspend(ctx, c)
		if err != nil {
			return written, err
		}
	}
}

func (p *Pipe) Stat(ctx context.Context) (Kstat, error) {
	p.buffer.mu.Lock()
	defer p.buffer.mu.Unlock()

	return Kstat{
		Mode:    S_IFIFO | 0600,
		Nlink:   1,
		Size:    int64(p.buffer.used()),
		Blksize: PipeBufferSize,
	}, nil
}

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		b := p.buffer

		b.mu.Lock()
		if p.readable {
			b.readers--
		}

		if p.writable {
			b.writers--
		}
		b.mu.Unlock()

		b.events.Notify(eventReadable | eventWritable)
	})

	return nil
}
