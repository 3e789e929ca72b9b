package memory

import "io"

// UserBuffer is a cursor over translated user spans. Reads and writes advance
// across span boundaries and never go past the total capacity.
type UserBuffer struct {
	Buffers [][]byte

	span int
	off  int
}

func NewUserBuffer(bufs [][]byte) *UserBuffer {
	return &UserBuffer{Buffers: bufs}
}

// Len is the total capacity.
func (ub *UserBuffer) Len() int {
	total := 0
	for _, b := range ub.Buffers {
		total += len(b)
	}

	return total
}

func (ub *UserBuffer) Remain() int {
	left := 0
	for i := ub.span; i < len(ub.Buffers); i++ {
		left += len(ub.Buffers[i])
	}

	return left - ub.off
}

func (ub *UserBuffer) tx(p []byte, write bool) int {
	done := 0

	for len(p) > 0 && ub.span < len(ub.Buffers) {
		cur := ub.Buffers[ub.span][ub.off:]

		var c int
		if write {
			c = copy(cur, p)
		} else {
			c = copy(p, cur)
		}

		p = p[c:]
		done += c
		ub.off += c

		if ub.off == len(ub.Buffers[ub.span]) {
			ub.span++
			ub.off = 0
		}
	}

	return done
}

// Write copies data into user memory. A short count comes with
// io.ErrShortWrite.
func (ub *UserBuffer) Write(p []byte) (int, error) {
	n := ub.tx(p, true)
	if n < len(p) {
		return n, io.ErrShortWrite
	}

	return n, nil
}

// Read copies user memory into p, returning io.EOF once exhausted.
func (ub *UserBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := ub.tx(p, false)
	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}
