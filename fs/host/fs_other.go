//go:build !linux

package host

import (
	"github.com/pkg/errors"

	"github.com/runable/rvkernel/fs"
)

type HostFS struct{}

func NewHostFS(path string) (*HostFS, error) {
	return nil, errors.Errorf("host fs is only supported on linux: %s", path)
}

func (h *HostFS) Root() (*fs.Inode, error) {
	return nil, fs.ErrNotImplemented
}
