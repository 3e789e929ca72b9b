// Package memfs is a writable filesystem held entirely in memory. It backs
// the root filesystem when the kernel boots from a tar image and in tests.
package memfs

import (
	"context"
	"sync"
	"time"

	"github.com/runable/rvkernel/fs"
)

type Dir struct {
	fs.StandardDirOps

	mu       sync.RWMutex
	Unstable fs.InodeUnstableAttr
	Children map[string]*fs.Inode
	Order    []string
}

func NewDir(perms int) *Dir {
	now := time.Now()

	return &Dir{
		Unstable: fs.InodeUnstableAttr{
			Perms:            perms,
			Links:            2,
			AccessTime:       now,
			ModificationTime: now,
			StatusChangeTime: now,
		},
		Children: make(map[string]*fs.Inode),
	}
}

// NewRoot returns an empty directory inode suitable as a namespace root.
func NewRoot() *fs.Inode {
	return fs.NewInode(fs.Directory, NewDir(0755))
}

func (d *Dir) AddChild(name string, inode *fs.Inode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.Children[name]; !ok {
		d.Order = append(d.Order, name)
	}

	d.Children[name] = inode
}

func (d *Dir) Child(name string) (*fs.Inode, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	inode, ok := d.Children[name]
	return inode, ok
}

func (d *Dir) LookupChild(ctx context.Context, inode *fs.Inode, name string) (*fs.Inode, error) {
	child, ok := d.Child(name)
	if !ok {
		return nil, fs.ErrUnknownPath
	}

	return child, nil
}

func (d *Dir) Create(ctx context.Context, inode *fs.Inode, name string, typ fs.InodeType) (*fs.Inode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.Children[name]; ok {
		return nil, fs.ErrExists
	}

	var child *fs.Inode
	if typ.IsDir() {
		child = fs.NewInode(fs.Directory, NewDir(0755))
	} else {
		child = fs.NewInode(typ, NewFile(0644, nil))
	}

	d.Children[name] = child
	d.Order = append(d.Order, name)
	d.Unstable.ModificationTime = time.Now()

	return child, nil
}

func (d *Dir) UnstableAttr(ctx context.Context, inode *fs.Inode) (*fs.InodeUnstableAttr, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	us := d.Unstable
	us.Size = int64(len(d.Children))
	return &us, nil
}

type File struct {
	fs.StandardFileOps

	mu       sync.RWMutex
	Unstable fs.InodeUnstableAttr
	Body     []byte
}

func NewFile(perms int, body []byte) *File {
	now := time.Now()

	return &File{
		Unstable: fs.InodeUnstableAttr{
			Perms:            perms,
			Links:            1,
			AccessTime:       now,
			ModificationTime: now,
			StatusChangeTime: now,
		},
		Body: body,
	}
}

func (f *File) UnstableAttr(ctx context.Context, inode *fs.Inode) (*fs.InodeUnstableAttr, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	us := f.Unstable
	us.Size = int64(len(f.Body))
	us.Usage = us.Size
	return &us, nil
}

func (f *File) ReadLink(ctx context.Context, inode *fs.Inode) (string, error) {
	if inode.StableAttr.Type != fs.Symlink {
		return "", fs.ErrNotSymlink
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return string(f.Body), nil
}

func (f *File) ReadAt(ctx context.Context, inode *fs.Inode, p []byte, off int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if off >= int64(len(f.Body)) {
		return 0, nil
	}

	return copy(p, f.Body[off:]), nil
}

func (f *File) WriteAt(ctx context.Context, inode *fs.Inode, p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if end := off + int64(len(p)); end > int64(len(f.Body)) {
		body := make([]byte, end)
		copy(body, f.Body)
		f.Body = body
	}

	n := copy(f.Body[off:], p)
	f.Unstable.ModificationTime = time.Now()

	return n, nil
}

func (f *File) Truncate(ctx context.Context, inode *fs.Inode, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if size < int64(len(f.Body)) {
		f.Body = f.Body[:size]
	} else {
		body := make([]byte, size)
		copy(body, f.Body)
		f.Body = body
	}

	f.Unstable.ModificationTime = time.Now()
	return nil
}
