package rvkernel

import (
	"os"

	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/fs/host"
	"github.com/runable/rvkernel/fs/tarfs"
)

// MountTar builds a namespace from a tar archive at path.
func MountTar(path string, cacheSize int) (*fs.MountNamespace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	tf, err := tarfs.NewTarFS(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	root, err := tf.Root()
	if err != nil {
		return nil, err
	}

	ns := fs.NewMountNamespace(cacheSize)
	ns.SetRoot(root)

	return ns, nil
}

// MountHost builds a namespace over a host directory.
func MountHost(path string, cacheSize int) (*fs.MountNamespace, error) {
	hfs, err := host.NewHostFS(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mounting %s", path)
	}

	root, err := hfs.Root()
	if err != nil {
		return nil, err
	}

	ns := fs.NewMountNamespace(cacheSize)
	ns.SetRoot(root)

	return ns, nil
}
