package fs

import (
	"context"
)

// StandardDirOps supplies the file-only operations for directory inodes.
type StandardDirOps struct{}

func (_ StandardDirOps) ReadLink(ctx context.Context, inode *Inode) (string, error) {
	return "", ErrNotSymlink
}

func (_ StandardDirOps) ReadAt(ctx context.Context, inode *Inode, p []byte, off int64) (int, error) {
	return 0, ErrIsDirectory
}

func (_ StandardDirOps) WriteAt(ctx context.Context, inode *Inode, p []byte, off int64) (int, error) {
	return 0, ErrIsDirectory
}

func (_ StandardDirOps) Truncate(ctx context.Context, inode *Inode, size int64) error {
	return ErrIsDirectory
}

// StandardFileOps supplies the directory-only operations for file inodes.
type StandardFileOps struct{}

func (_ StandardFileOps) LookupChild(ctx context.Context, inode *Inode, name string) (*Inode, error) {
	return nil, ErrNotDirectory
}

func (_ StandardFileOps) Create(ctx context.Context, inode *Inode, name string, typ InodeType) (*Inode, error) {
	return nil, ErrNotDirectory
}
