package memory

import (
	"sync"

	"github.com/pkg/errors"
)

const (
	PageSize  = 4096
	pageShift = 12
)

// Perm mirrors the RISC-V PTE permission bits.
type Perm uint8

const (
	PermR Perm = 1 << 1
	PermW Perm = 1 << 2
	PermX Perm = 1 << 3
	PermU Perm = 1 << 4
)

func (p Perm) String() string {
	b := []byte("----")

	for i, f := range []Perm{PermR, PermW, PermX, PermU} {
		if p&f != 0 {
			b[i] = "rwxu"[i]
		}
	}

	return string(b)
}

var (
	ErrInvalidAddress = errors.New("invalid user address")
	ErrStraddle       = errors.New("value straddles a page boundary")
	ErrUnknownToken   = errors.New("unknown address space token")
)

type page struct {
	frame []byte
	perm  Perm
}

func (pg *page) dup() *page {
	child := &page{
		frame: make([]byte, PageSize),
		perm:  pg.perm,
	}

	copy(child.frame, pg.frame)

	return child
}

func PageRoundDown(va uint64) uint64 {
	return va &^ (PageSize - 1)
}

func PageRoundUp(va uint64) uint64 {
	return (va + PageSize - 1) &^ (PageSize - 1)
}

// AddressSpace is a user virtual address space. Every page has its own
// frame, so a range covering several pages is never contiguous in kernel
// memory.
type AddressSpace struct {
	mu    sync.RWMutex
	token Token
	pages map[uint64]*page
}

func NewAddressSpace() *AddressSpace {
	as := &AddressSpace{
		pages: make(map[uint64]*page),
	}

	as.token = spaces.register(as)

	return as
}

func (as *AddressSpace) Token() Token {
	return as.token
}

// Map backs every page touching [va, va+size) with a zeroed frame. Pages that
// are already mapped keep their contents and gain perm.
func (as *AddressSpace) Map(va, size uint64, perm Perm) error {
	if size == 0 {
		return nil
	}

	end := va + size
	if end < va {
		return errors.Wrapf(ErrInvalidAddress, "map overflows: va=%x size=%x", va, size)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	for vpn := va >> pageShift; vpn <= (end-1)>>pageShift; vpn++ {
		if pg, ok := as.pages[vpn]; ok {
			pg.perm |= perm
			continue
		}

		as.pages[vpn] = &page{
			frame: make([]byte, PageSize),
			perm:  perm,
		}
	}

	return nil
}

func (as *AddressSpace) Unmap(va, size uint64) {
	if size == 0 {
		return
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	for vpn := va >> pageShift; vpn <= (va+size-1)>>pageShift; vpn++ {
		delete(as.pages, vpn)
	}
}

func (as *AddressSpace) IsMapped(va uint64) bool {
	as.mu.RLock()
	defer as.mu.RUnlock()

	_, ok := as.pages[va>>pageShift]
	return ok
}

func (as *AddressSpace) Pages() int {
	as.mu.RLock()
	defer as.mu.RUnlock()

	return len(as.pages)
}

// Fork returns a deep copy under a fresh token.
func (as *AddressSpace) Fork() *AddressSpace {
	as.mu.RLock()
	defer as.mu.RUnlock()

	child := NewAddressSpace()

	for vpn, pg := range as.pages {
		child.pages[vpn] = pg.dup()
	}

	return child
}

// Release drops every frame and retires the token. Translations against the
// token fail afterwards.
func (as *AddressSpace) Release() {
	spaces.unregister(as.token)

	as.mu.Lock()
	defer as.mu.Unlock()

	as.pages = make(map[uint64]*page)
}

func (as *AddressSpace) frame(vpn uint64) ([]byte, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	pg, ok := as.pages[vpn]
	if !ok {
		return nil, false
	}

	return pg.frame, true
}

// spans splits [va, va+size) into per-page views.
func (as *AddressSpace) spans(va, size uint64) ([][]byte, error) {
	end := va + size
	if end < va {
		return nil, errors.Wrapf(ErrInvalidAddress, "range overflows: va=%x size=%x", va, size)
	}

	var out [][]byte

	for cur := va; cur < end; {
		frame, ok := as.frame(cur >> pageShift)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidAddress, "page not mapped: va=%x", cur)
		}

		off := cur & (PageSize - 1)
		n := PageSize - off
		if left := end - cur; left < n {
			n = left
		}

		out = append(out, frame[off:off+n])
		cur += n
	}

	return out, nil
}

func (as *AddressSpace) ReadAt(b []byte, off int64) (int, error) {
	spans, err := as.spans(uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}

	return NewUserBuffer(spans).Read(b)
}

func (as *AddressSpace) WriteAt(b []byte, off int64) (int, error) {
	spans, err := as.spans(uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}

	return NewUserBuffer(spans).Write(b)
}
