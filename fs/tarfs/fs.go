package tarfs

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/fs/memfs"
	"github.com/runable/rvkernel/log"
)

type entry struct {
	hdr   *tar.Header
	inode *fs.Inode
}

func (e *entry) String() string {
	return spew.Sdump(e.hdr)
}

// TarFS is a memfs tree populated from a tar archive. The tree stays
// writable after loading.
type TarFS struct {
	root *fs.Inode
}

func findParent(root *memfs.Dir, name string) (*memfs.Dir, error) {
	dirName := filepath.Dir(name)

	if dirName == "" || dirName == "." {
		return root, nil
	}

	parent := root

	for _, sec := range strings.Split(dirName, "/") {
		ch, ok := parent.Child(sec)
		if !ok {
			ch = fs.NewInode(fs.Directory, memfs.NewDir(0755))
			parent.AddChild(sec, ch)
		}

		dir, ok := ch.Ops.(*memfs.Dir)
		if !ok {
			return nil, errors.Wrapf(fs.ErrNotDirectory, "tar entry %s", name)
		}

		parent = dir
	}

	return parent, nil
}

func NewTarFS(r io.Reader) (*TarFS, error) {
	tr := tar.NewReader(r)

	root := memfs.NewDir(0755)
	rootInode := fs.NewInode(fs.Directory, root)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		name = strings.Trim(name, "/")

		// root!
		if name == "" || name == "." {
			root.Unstable.Perms = int(os.FileMode(hdr.Mode).Perm())
			continue
		}

		var us fs.InodeUnstableAttr
		us.AccessTime = hdr.AccessTime
		us.ModificationTime = hdr.ModTime
		us.StatusChangeTime = hdr.ChangeTime
		us.GroupId = hdr.Gid
		us.UserId = hdr.Uid
		us.Perms = int(os.FileMode(hdr.Mode).Perm())

		var inode *fs.Inode

		switch hdr.Typeflag {
		case tar.TypeDir:
			parent, err := findParent(root, name)
			if err != nil {
				return nil, err
			}

			if existing, ok := parent.Child(filepath.Base(name)); ok {
				if d, ok := existing.Ops.(*memfs.Dir); ok {
					d.Unstable = us
					continue
				}
			}

			d := memfs.NewDir(us.Perms)
			d.Unstable = us
			inode = fs.NewInode(fs.Directory, d)
		case tar.TypeSymlink:
			f := memfs.NewFile(us.Perms, []byte(hdr.Linkname))
			f.Unstable = us
			inode = fs.NewInode(fs.Symlink, f)
		case tar.TypeReg:
			f := memfs.NewFile(us.Perms, data)
			f.Unstable = us
			inode = fs.NewInode(fs.RegularFile, f)
		default:
			log.L.Trace("tarfs: skipping entry", "name", name, "type", hdr.Typeflag)
			continue
		}

		parent, err := findParent(root, name)
		if err != nil {
			return nil, err
		}

		e := &entry{hdr: hdr, inode: inode}
		log.L.Trace("tarfs: add entry", "name", name, "entry", e)

		parent.AddChild(filepath.Base(name), inode)
	}

	return &TarFS{root: rootInode}, nil
}

func (t *TarFS) Root() (*fs.Inode, error) {
	return t.root, nil
}
