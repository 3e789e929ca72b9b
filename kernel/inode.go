package kernel

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/memory"
)

// OSInode is an open VFS node. The offset lives here, so every slot sharing
// this handle shares the position.
type OSInode struct {
	readable bool
	writable bool
	name     string

	Dirent *fs.Dirent

	mu     sync.Mutex
	offset int64
}

func NewOSInode(readable, writable bool, d *fs.Dirent, name string) *OSInode {
	return &OSInode{
		readable: readable,
		writable: writable,
		name:     name,
		Dirent:   d,
	}
}

func (f *OSInode) Readable() bool { return f.readable }
func (f *OSInode) Writable() bool { return f.writable }
func (f *OSInode) Name() string   { return f.name }
func (f *OSInode) Close() error   { return nil }

func (f *OSInode) IsDir() bool {
	return f.Dirent.IsDir()
}

func (f *OSInode) Read(ctx context.Context, buf *memory.UserBuffer) (int, error) {
	if !f.readable {
		return 0, ErrNotReadable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	inode := f.Dirent.Inode
	tmp := make([]byte, memory.PageSize)
	total := 0

	for buf.Remain() > 0 {
		want := tmp
		if r := buf.Remain(); r < len(want) {
			want = want[:r]
		}

		n, err := inode.Ops.ReadAt(ctx, inode, want, f.offset)
		if n > 0 {
			buf.Write(want[:n])
			f.offset += int64(n)
			total += n
		}

		if err != nil {
			if err == io.EOF {
				break
			}

			return total, err
		}

		if n < len(want) {
			break
		}
	}

	return total, nil
}

func (f *OSInode) Write(ctx context.Context, buf *memory.UserBuffer) (int, error) {
	if !f.writable {
		return 0, ErrNotWritable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := io.ReadAll(buf)
	if err != nil {
		return 0, err
	}

	inode := f.Dirent.Inode

	n, err := inode.Ops.WriteAt(ctx, inode, data, f.offset)
	f.offset += int64(n)

	return n, err
}

// ReadAll returns the node's contents regardless of the current offset.
func (f *OSInode) ReadAll(ctx context.Context) ([]byte, error) {
	return f.Dirent.ReadAll(ctx)
}

func (f *OSInode) Stat(ctx context.Context) (Kstat, error) {
	inode := f.Dirent.Inode

	us, err := inode.Ops.UnstableAttr(ctx, inode)
	if err != nil {
		return Kstat{}, errors.Wrapf(err, "stat %s", f.name)
	}

	var mode uint32
	switch inode.StableAttr.Type {
	case fs.Directory:
		mode = S_IFDIR
	case fs.Symlink:
		mode = S_IFLNK
	case fs.Pipe:
		mode = S_IFIFO
	case fs.CharacterDevice:
		mode = S_IFCHR
	default:
		mode = S_IFREG
	}

	st := Kstat{
		Dev:     inode.StableAttr.DeviceID,
		Ino:     inode.StableAttr.InodeID,
		Mode:    mode | uint32(us.Perms),
		Nlink:   uint32(us.Links),
		Uid:     uint32(us.UserId),
		Gid:     uint32(us.GroupId),
		Size:    us.Size,
		Blksize: uint32(inode.StableAttr.BlockSize),
		Blocks:  uint64((us.Size + 511) / 512),
	}

	st.setTimes(us.AccessTime, us.ModificationTime, us.StatusChangeTime)

	return st, nil
}
