package fs

import (
	"context"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const DefaultDirentCacheSize = 1000

// maxSymlinks bounds symlink chains followed by LookupPath.
const maxSymlinks = 8

type MountNamespace struct {
	Root        *Dirent
	DirentCache *lru.ARCCache
}

func NewMountNamespace(size int) *MountNamespace {
	if size <= 0 {
		size = DefaultDirentCacheSize
	}

	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}

	return &MountNamespace{
		DirentCache: cache,
	}
}

func (m *MountNamespace) SetRoot(i *Inode) {
	m.Root = &Dirent{Inode: i}
	m.DirentCache.Purge()
}

// resolve picks the starting dirent and the cache key for p relative to base.
// Absolute paths, and a nil base, start at the root.
func (m *MountNamespace) resolve(base *Dirent, p string) (*Dirent, string) {
	if strings.HasPrefix(p, "/") || base == nil {
		return m.Root, path.Clean("/" + p)
	}

	return base, path.Join(base.FullPath(), p)
}

// LookupPath resolves p relative to base, following a trailing symlink.
func (m *MountNamespace) LookupPath(ctx context.Context, base *Dirent, p string) (*Dirent, error) {
	for i := 0; i < maxSymlinks; i++ {
		dirent, err := m.LookupDirent(ctx, base, p)
		if err != nil {
			return nil, err
		}

		if dirent.Inode.StableAttr.Type != Symlink {
			return dirent, nil
		}

		target, err := dirent.Inode.Ops.ReadLink(ctx, dirent.Inode)
		if err != nil {
			return nil, err
		}

		base, p = dirent.Parent, target
	}

	return nil, errors.Wrapf(ErrUnknownPath, "too many symlinks: %s", p)
}

// LookupDirent resolves p relative to base without following a trailing
// symlink.
func (m *MountNamespace) LookupDirent(ctx context.Context, base *Dirent, p string) (*Dirent, error) {
	start, key := m.resolve(base, p)

	if key == "/" {
		return m.Root, nil
	}

	if val, ok := m.DirentCache.Get(key); ok {
		return val.(*Dirent), nil
	}

	cur := start

	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if cur.Parent != nil {
				cur = cur.Parent
			}
			continue
		}

		if !cur.IsDir() {
			return nil, errors.Wrapf(ErrNotDirectory, "component: %s", cur.Name)
		}

		i, err := cur.Inode.Ops.LookupChild(ctx, cur.Inode, part)
		if err != nil {
			return nil, err
		}

		cur = &Dirent{Inode: i, Parent: cur, Name: part}
	}

	m.DirentCache.Add(key, cur)

	return cur, nil
}

// Create makes a new entry of typ at p relative to base. The parent
// directory must already exist.
func (m *MountNamespace) Create(ctx context.Context, base *Dirent, p string, typ InodeType) (*Dirent, error) {
	dir, name := path.Split(strings.TrimRight(p, "/"))
	if name == "" || name == "." || name == ".." {
		return nil, errors.Wrapf(ErrExists, "create: %q", p)
	}

	parent := base
	if dir != "" || base == nil {
		var err error
		parent, err = m.LookupPath(ctx, base, dir)
		if err != nil {
			return nil, err
		}
	}

	if !parent.IsDir() {
		return nil, errors.Wrapf(ErrNotDirectory, "create in %s", parent.FullPath())
	}

	i, err := parent.Inode.Ops.Create(ctx, parent.Inode, name, typ)
	if err != nil {
		return nil, err
	}

	d := &Dirent{Inode: i, Parent: parent, Name: name}
	m.DirentCache.Add(path.Join(parent.FullPath(), name), d)

	return d, nil
}
