package kernel

import "math/bits"

// FDTable maps small integers to descriptors. A bitmap of occupied slots
// makes finding the lowest free index a word scan instead of a slot scan.
// It has no lock of its own; the owning process's mutex guards it.
type FDTable struct {
	slots []*FileDescriptor
	used  []uint64
}

func NewFDTable() *FDTable {
	return &FDTable{}
}

func (t *FDTable) Len() int {
	return len(t.slots)
}

func (t *FDTable) mark(fd int, on bool) {
	w, b := fd/64, uint(fd%64)

	for w >= len(t.used) {
		t.used = append(t.used, 0)
	}

	if on {
		t.used[w] |= 1 << b
	} else {
		t.used[w] &^= 1 << b
	}
}

// Alloc returns the lowest empty slot, growing the table when every slot is
// taken.
func (t *FDTable) Alloc() int {
	fd := len(t.used) * 64

	for w, word := range t.used {
		if free := ^word; free != 0 {
			fd = w*64 + bits.TrailingZeros64(free)
			break
		}
	}

	for fd >= len(t.slots) {
		t.slots = append(t.slots, nil)
	}

	return fd
}

func (t *FDTable) Set(fd int, d *FileDescriptor) {
	for fd >= len(t.slots) {
		t.slots = append(t.slots, nil)
	}

	t.slots[fd] = d
	t.mark(fd, d != nil)
}

// Install places d in the lowest empty slot.
func (t *FDTable) Install(d *FileDescriptor) int {
	fd := t.Alloc()
	t.Set(fd, d)
	return fd
}

func (t *FDTable) Get(fd int) (*FileDescriptor, bool) {
	if fd < 0 || fd >= len(t.slots) {
		return nil, false
	}

	d := t.slots[fd]
	return d, d != nil
}

// Remove empties the slot and hands back what it held. The caller owns the
// slot's reference.
func (t *FDTable) Remove(fd int) (*FileDescriptor, bool) {
	d, ok := t.Get(fd)
	if !ok {
		return nil, false
	}

	t.slots[fd] = nil
	t.mark(fd, false)

	return d, true
}

// Clone returns a table whose slots share this table's descriptors.
func (t *FDTable) Clone() *FDTable {
	child := &FDTable{
		slots: make([]*FileDescriptor, len(t.slots)),
		used:  make([]uint64, len(t.used)),
	}

	copy(child.used, t.used)

	for i, d := range t.slots {
		if d != nil {
			d.incRef()
			child.slots[i] = d
		}
	}

	return child
}

// Drain empties the table, returning every descriptor it held.
func (t *FDTable) Drain() []*FileDescriptor {
	var out []*FileDescriptor

	for _, d := range t.slots {
		if d != nil {
			out = append(out, d)
		}
	}

	t.slots = nil
	t.used = nil

	return out
}
