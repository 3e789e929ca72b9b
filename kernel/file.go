package kernel

import (
	"context"
	"sync"
	"time"

	"github.com/runable/rvkernel/memory"
)

// File is an open resource reachable from a descriptor slot.
type File interface {
	Readable() bool
	Writable() bool
	Read(ctx context.Context, buf *memory.UserBuffer) (int, error)
	Write(ctx context.Context, buf *memory.UserBuffer) (int, error)
	Stat(ctx context.Context) (Kstat, error)
	Name() string
	Close() error
}

type DescriptorKind int

const (
	// Regular descriptors refer to a VFS node.
	Regular DescriptorKind = iota

	// Abstract descriptors refer to a stream such as a pipe end or the
	// console.
	Abstract
)

func (k DescriptorKind) String() string {
	if k == Regular {
		return "regular"
	}

	return "abstract"
}

// FileDescriptor is the shared handle behind one or more table slots. dup
// and fork add references; the File is closed when the last one goes.
type FileDescriptor struct {
	Kind DescriptorKind
	File File

	mu   sync.Mutex
	refs int
}

func NewDescriptor(f File) *FileDescriptor {
	kind := Abstract
	if _, ok := f.(*OSInode); ok {
		kind = Regular
	}

	return &FileDescriptor{
		Kind: kind,
		File: f,
		refs: 1,
	}
}

func (d *FileDescriptor) incRef() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.refs++
}

func (d *FileDescriptor) Refs() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.refs
}

// Close drops one reference.
func (d *FileDescriptor) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.refs--
	if d.refs > 0 {
		return nil
	}

	return d.File.Close()
}

// Inode returns the regular file behind d.
func (d *FileDescriptor) Inode() (*OSInode, bool) {
	f, ok := d.File.(*OSInode)
	return f, ok
}

const (
	S_IFIFO = 0010000
	S_IFCHR = 0020000
	S_IFDIR = 0040000
	S_IFREG = 0100000
	S_IFLNK = 0120000
)

// Kstat is the riscv64 struct stat as written by fstat.
type Kstat struct {
	Dev       uint64
	Ino       uint64
	Mode      uint32
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint64
	_         uint64
	Size      int64
	Blksize   uint32
	_         int32
	Blocks    uint64
	AtimeSec  int64
	AtimeNsec int64
	MtimeSec  int64
	MtimeNsec int64
	CtimeSec  int64
	CtimeNsec int64
	_         [2]uint32
}

func (st *Kstat) setTimes(atime, mtime, ctime time.Time) {
	st.AtimeSec, st.AtimeNsec = splitTime(atime)
	st.MtimeSec, st.MtimeNsec = splitTime(mtime)
	st.CtimeSec, st.CtimeNsec = splitTime(ctime)
}

func splitTime(t time.Time) (int64, int64) {
	if t.IsZero() {
		return 0, 0
	}

	return t.Unix(), int64(t.Nanosecond())
}
