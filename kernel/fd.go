package kernel

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/log"
	"github.com/runable/rvkernel/memory"
)

// AT_FDCWD selects the working directory as the base for a relative path.
const AT_FDCWD = -100

type OpenFlags uint32

const (
	O_RDONLY    OpenFlags = 0
	O_WRONLY    OpenFlags = 1 << 0
	O_RDWR      OpenFlags = 1 << 1
	O_CREATE    OpenFlags = 1 << 6
	O_TRUNC     OpenFlags = 1 << 10
	O_DIRECTORY OpenFlags = 1 << 16
)

// ReadWrite reports the access an open with these flags grants.
func (f OpenFlags) ReadWrite() (bool, bool) {
	switch {
	case f&(O_WRONLY|O_RDWR) == 0:
		return true, false
	case f&O_WRONLY != 0:
		return false, true
	default:
		return true, true
	}
}

// baseLocked picks the directory a relative path resolves against. A
// negative dirfd means the working directory.
func (p *Process) baseLocked(dirfd int) (*FileDescriptor, error) {
	if dirfd < 0 {
		if p.cwd == nil {
			return nil, errors.Wrapf(ErrBadDescriptor, "no working directory")
		}

		return p.cwd, nil
	}

	d, ok := p.fds.Get(dirfd)
	if !ok {
		return nil, errors.Wrapf(ErrBadDescriptor, "dirfd %d", dirfd)
	}

	if inode, ok := d.Inode(); !ok || !inode.IsDir() {
		return nil, errors.Wrapf(fs.ErrNotDirectory, "dirfd %d", dirfd)
	}

	return d, nil
}

func cleanPath(path string) string {
	for strings.HasPrefix(path, "./") {
		path = strings.TrimPrefix(path, "./")
	}

	if path == "" {
		return "."
	}

	return path
}

func baseDirent(d *FileDescriptor) *fs.Dirent {
	inode, _ := d.Inode()
	return inode.Dirent
}

// Lookup resolves path against dirfd without opening it.
func (p *Process) Lookup(ctx context.Context, dirfd int, path string) (*fs.Dirent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.baseLocked(dirfd)
	if err != nil {
		return nil, err
	}

	return p.Kernel.Mount.LookupPath(ctx, baseDirent(base), cleanPath(path))
}

// Open installs a descriptor for path in the lowest free slot. A path of "."
// shares the directory descriptor itself.
func (p *Process) Open(ctx context.Context, dirfd int, path string, flags OpenFlags) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exiting {
		return -1, ErrExited
	}

	base, err := p.baseLocked(dirfd)
	if err != nil {
		return -1, err
	}

	path = cleanPath(path)

	if path == "." {
		base.incRef()
		return p.fds.Install(base), nil
	}

	mount := p.Kernel.Mount
	dir := baseDirent(base)

	d, err := mount.LookupPath(ctx, dir, path)
	if err != nil {
		if flags&O_CREATE == 0 || errors.Cause(err) != fs.ErrUnknownPath {
			return -1, err
		}

		typ := fs.RegularFile
		if flags&O_DIRECTORY != 0 {
			typ = fs.Directory
		}

		d, err = mount.Create(ctx, dir, path, typ)
		if err != nil {
			return -1, err
		}
	}

	if flags&O_DIRECTORY != 0 && !d.IsDir() {
		return -1, errors.Wrapf(fs.ErrNotDirectory, "open %s", path)
	}

	read, write := flags.ReadWrite()

	if flags&O_TRUNC != 0 && write && !d.IsDir() {
		err = d.Inode.Ops.Truncate(ctx, d.Inode, 0)
		if err != nil {
			return -1, errors.Wrapf(err, "truncate %s", path)
		}
	}

	fd := p.fds.Install(NewDescriptor(NewOSInode(read, write, d, path)))

	log.L.Trace("open", "pid", p.Pid, "path", path, "fd", fd, "flags", flags)

	return fd, nil
}

// Mkdirat creates a directory and returns a descriptor for it.
func (p *Process) Mkdirat(ctx context.Context, dirfd int, path string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.baseLocked(dirfd)
	if err != nil {
		return -1, err
	}

	path = cleanPath(path)

	d, err := p.Kernel.Mount.Create(ctx, baseDirent(base), path, fs.Directory)
	if err != nil {
		return -1, err
	}

	return p.fds.Install(NewDescriptor(NewOSInode(true, true, d, path))), nil
}

func (p *Process) Close(fd int) error {
	p.mu.Lock()
	d, ok := p.fds.Remove(fd)
	p.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrBadDescriptor, "close %d", fd)
	}

	return d.Close()
}

// Dup gives the handle at fd a second slot.
func (p *Process) Dup(fd int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.fds.Get(fd)
	if !ok {
		return -1, errors.Wrapf(ErrBadDescriptor, "dup %d", fd)
	}

	d.incRef()

	return p.fds.Install(d), nil
}

// Dup3 is not supported.
func (p *Process) Dup3(oldfd, newfd int) (int, error) {
	return -1, errors.Wrapf(ErrUnsupported, "dup3 %d %d", oldfd, newfd)
}

// Pipe installs the read end and then the write end of a new pipe.
func (p *Process) Pipe() (int, int, error) {
	r, w := MakePipe(p.Kernel.Sched)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exiting {
		return -1, -1, ErrExited
	}

	rfd := p.fds.Install(NewDescriptor(r))
	wfd := p.fds.Install(NewDescriptor(w))

	return rfd, wfd, nil
}

// Chdir replaces the working directory with path, which must be a directory
// the caller could open read-write.
func (p *Process) Chdir(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.baseLocked(AT_FDCWD)
	if err != nil {
		return err
	}

	path = cleanPath(path)

	d, err := p.Kernel.Mount.LookupPath(ctx, baseDirent(base), path)
	if err != nil {
		return err
	}

	if !d.IsDir() {
		return errors.Wrapf(fs.ErrNotDirectory, "chdir %s", path)
	}

	old := p.cwd
	p.cwd = NewDescriptor(NewOSInode(true, true, d, path))

	old.Close()

	return nil
}

// Getcwd returns the working directory's name as it was given to chdir.
func (p *Process) Getcwd() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cwd == nil {
		return ""
	}

	return p.cwd.File.Name()
}

// setCwdLocked installs d as the working directory.
func (p *Process) setCwdLocked(d *fs.Dirent, name string) {
	if p.cwd != nil {
		p.cwd.Close()
	}

	p.cwd = NewDescriptor(NewOSInode(true, true, d, name))
}

// File pins the descriptor at fd. The caller must Close the result.
func (p *Process) File(fd int) (*FileDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.fds.Get(fd)
	if !ok {
		return nil, errors.Wrapf(ErrBadDescriptor, "fd %d", fd)
	}

	d.incRef()

	return d, nil
}

// Read fills buf from fd. The process lock is not held while the read
// blocks.
func (p *Process) Read(ctx context.Context, fd int, buf *memory.UserBuffer) (int, error) {
	d, err := p.File(fd)
	if err != nil {
		return -1, err
	}

	defer d.Close()

	if !d.File.Readable() {
		return -1, errors.Wrapf(ErrNotReadable, "read %d", fd)
	}

	return d.File.Read(ctx, buf)
}

func (p *Process) Write(ctx context.Context, fd int, buf *memory.UserBuffer) (int, error) {
	d, err := p.File(fd)
	if err != nil {
		return -1, err
	}

	defer d.Close()

	if !d.File.Writable() {
		return -1, errors.Wrapf(ErrNotWritable, "write %d", fd)
	}

	return d.File.Write(ctx, buf)
}

func (p *Process) Fstat(ctx context.Context, fd int) (Kstat, error) {
	d, err := p.File(fd)
	if err != nil {
		return Kstat{}, err
	}

	defer d.Close()

	return d.File.Stat(ctx)
}

// HookupStdio installs the console streams in the next three free slots,
// which for a fresh process are 0, 1 and 2.
func (p *Process) HookupStdio(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fds.Install(NewDescriptor(NewInputStream("stdin", cfg.Stdin)))
	p.fds.Install(NewDescriptor(NewOutputStream("stdout", cfg.Stdout)))
	p.fds.Install(NewDescriptor(NewOutputStream("stderr", cfg.Stderr)))
}
