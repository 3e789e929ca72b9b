//go:build linux

// Package host exposes a directory of the host filesystem as an inode tree.
package host

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/log"
)

type HostFS struct {
	root *fs.Inode
}

func statToStableAttr(st *unix.Stat_t) fs.InodeStableAttr {
	var attr fs.InodeStableAttr
	attr.BlockSize = int64(st.Blksize)
	attr.DeviceID = uint64(st.Dev)
	attr.DeviceFileMajor = uint16(unix.Major(uint64(st.Rdev)))
	attr.DeviceFileMinor = unix.Minor(uint64(st.Rdev))
	attr.InodeID = st.Ino
	attr.SetType(modeOf(st))

	return attr
}

func modeOf(st *unix.Stat_t) os.FileMode {
	mode := os.FileMode(st.Mode & 0777)

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		mode |= os.ModeDir
	case unix.S_IFLNK:
		mode |= os.ModeSymlink
	case unix.S_IFIFO:
		mode |= os.ModeNamedPipe
	case unix.S_IFSOCK:
		mode |= os.ModeSocket
	case unix.S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFBLK:
		mode |= os.ModeDevice
	}

	return mode
}

func lstat(path string) (*unix.Stat_t, error) {
	var st unix.Stat_t

	err := unix.Lstat(path, &st)
	if err != nil {
		if err == unix.ENOENT {
			return nil, fs.ErrUnknownPath
		}

		return nil, errors.Wrapf(err, "lstat %s", path)
	}

	return &st, nil
}

func NewHostFS(path string) (*HostFS, error) {
	log.L.Trace("creating host fs", "path", path)

	st, err := lstat(path)
	if err != nil {
		log.L.Error("error stating hostfs path", "error", err)
		return nil, err
	}

	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return nil, errors.Wrapf(fs.ErrNotDirectory, "host root %s", path)
	}

	h := &HostFS{}
	h.root = &fs.Inode{
		StableAttr: statToStableAttr(st),
		Ops:        &Dir{FSPath: FSPath{Path: path}},
	}

	return h, nil
}

func (h *HostFS) Root() (*fs.Inode, error) {
	return h.root, nil
}

type FSPath struct {
	Path string
}

func (p *FSPath) UnstableAttr(ctx context.Context, inode *fs.Inode) (*fs.InodeUnstableAttr, error) {
	st, err := lstat(p.Path)
	if err != nil {
		return nil, err
	}

	var us fs.InodeUnstableAttr
	us.AccessTime = timespecToTime(st.Atim)
	us.ModificationTime = timespecToTime(st.Mtim)
	us.StatusChangeTime = timespecToTime(st.Ctim)
	us.GroupId = int(st.Gid)
	us.UserId = int(st.Uid)
	us.Perms = int(st.Mode & 0777)
	us.Size = st.Size
	us.Usage = st.Blocks * 512
	us.Links = uint64(st.Nlink)

	return &us, nil
}

type Dir struct {
	fs.StandardDirOps
	FSPath
}

type Entry struct {
	fs.StandardFileOps
	FSPath
}

func (e *Entry) ReadLink(ctx context.Context, inode *fs.Inode) (string, error) {
	return os.Readlink(e.Path)
}

func (e *Entry) ReadAt(ctx context.Context, inode *fs.Inode, p []byte, off int64) (int, error) {
	f, err := os.Open(e.Path)
	if err != nil {
		return 0, err
	}

	defer f.Close()

	n, err := f.ReadAt(p, off)
	if err == io.EOF {
		err = nil
	}

	return n, err
}

func (e *Entry) WriteAt(ctx context.Context, inode *fs.Inode, p []byte, off int64) (int, error) {
	f, err := os.OpenFile(e.Path, os.O_WRONLY, 0)
	if err != nil {
		return 0, err
	}

	defer f.Close()

	return f.WriteAt(p, off)
}

func (e *Entry) Truncate(ctx context.Context, inode *fs.Inode, size int64) error {
	return os.Truncate(e.Path, size)
}

func (d *Dir) LookupChild(ctx context.Context, inode *fs.Inode, name string) (*fs.Inode, error) {
	log.L.Trace("lookup child on host fs", "dir", d.Path, "name", name)

	cp := filepath.Join(d.Path, name)

	st, err := lstat(cp)
	if err != nil {
		return nil, err
	}

	attr := statToStableAttr(st)

	if attr.Type.IsDir() {
		return &fs.Inode{StableAttr: attr, Ops: &Dir{FSPath: FSPath{Path: cp}}}, nil
	}

	return &fs.Inode{StableAttr: attr, Ops: &Entry{FSPath: FSPath{Path: cp}}}, nil
}

func (d *Dir) Create(ctx context.Context, inode *fs.Inode, name string, typ fs.InodeType) (*fs.Inode, error) {
	cp := filepath.Join(d.Path, name)

	if typ.IsDir() {
		err := os.Mkdir(cp, 0755)
		if err != nil {
			if os.IsExist(err) {
				return nil, fs.ErrExists
			}

			return nil, err
		}
	} else {
		f, err := os.OpenFile(cp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			if os.IsExist(err) {
				return nil, fs.ErrExists
			}

			return nil, err
		}

		f.Close()
	}

	return d.LookupChild(ctx, inode, name)
}
