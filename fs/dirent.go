package fs

import (
	"context"
	"io"
	"strings"
)

type Dirent struct {
	Name   string
	Parent *Dirent
	Inode  *Inode
}

// FullPath walks the parent chain. The root is "/".
func (d *Dirent) FullPath() string {
	if d.Parent == nil {
		return "/"
	}

	var parts []string
	for cur := d; cur.Parent != nil; cur = cur.Parent {
		parts = append(parts, cur.Name)
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}

	return "/" + strings.Join(parts, "/")
}

func (d *Dirent) IsDir() bool {
	return d.Inode.StableAttr.Type.IsDir()
}

// Reader returns a reader over the whole file from offset 0.
func (d *Dirent) Reader(ctx context.Context) io.Reader {
	return &inodeReader{ctx: ctx, inode: d.Inode}
}

// ReadAll returns the file contents.
func (d *Dirent) ReadAll(ctx context.Context) ([]byte, error) {
	return io.ReadAll(d.Reader(ctx))
}

type inodeReader struct {
	ctx   context.Context
	inode *Inode
	off   int64
}

func (r *inodeReader) Read(p []byte) (int, error) {
	n, err := r.inode.Ops.ReadAt(r.ctx, r.inode, p, r.off)
	r.off += int64(n)

	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}

	return n, err
}
