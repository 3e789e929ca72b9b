package fs

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnknownPath    = errors.New("unknown path")
	ErrNotSymlink     = errors.New("not symlink")
	ErrNotDirectory   = errors.New("not a directory")
	ErrIsDirectory    = errors.New("is a directory")
	ErrExists         = errors.New("file exists")
	ErrNotImplemented = errors.New("not implemented")
)

// DefaultBlockSize is reported for nodes whose backing store has no block
// size of its own.
const DefaultBlockSize = 4096

// InodeType is the kind of object a node refers to.
type InodeType int

const (
	RegularFile InodeType = iota
	Directory
	Symlink

	// Pipe covers host FIFOs. Anonymous pipes never get an inode.
	Pipe

	CharacterDevice

	// Anonymous is anything a backing filesystem reports that the kernel
	// cannot open, such as sockets and block devices.
	Anonymous
)

func (n InodeType) String() string {
	switch n {
	case RegularFile:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case Pipe:
		return "pipe"
	case CharacterDevice:
		return "character-device"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

func (n InodeType) IsDir() bool {
	return n == Directory
}

// InodeStableAttr holds what never changes while the node is cached.
type InodeStableAttr struct {
	Type      InodeType
	DeviceID  uint64
	InodeID   uint64
	BlockSize int64

	// Only set for device nodes.
	DeviceFileMajor uint16
	DeviceFileMinor uint32
}

// SetType derives Type from a host file mode.
func (attr *InodeStableAttr) SetType(mode os.FileMode) {
	switch mode & os.ModeType {
	case 0:
		attr.Type = RegularFile
	case os.ModeDir:
		attr.Type = Directory
	case os.ModeSymlink:
		attr.Type = Symlink
	case os.ModeNamedPipe:
		attr.Type = Pipe
	case os.ModeCharDevice | os.ModeDevice:
		attr.Type = CharacterDevice
	default:
		attr.Type = Anonymous
	}
}

// InodeUnstableAttr is fetched fresh for every stat.
type InodeUnstableAttr struct {
	Size  int64
	Usage int64

	// Perms is the permission bits only, without the file type.
	Perms int

	UserId, GroupId int

	AccessTime       time.Time
	ModificationTime time.Time
	StatusChangeTime time.Time

	Links uint64
}

// InodeOps is implemented by each backing filesystem. Directory operations
// on a file, and file operations on a directory, fail; see StandardDirOps
// and StandardFileOps.
type InodeOps interface {
	LookupChild(ctx context.Context, inode *Inode, name string) (*Inode, error)
	Create(ctx context.Context, inode *Inode, name string, typ InodeType) (*Inode, error)
	ReadAt(ctx context.Context, inode *Inode, p []byte, off int64) (int, error)
	WriteAt(ctx context.Context, inode *Inode, p []byte, off int64) (int, error)
	Truncate(ctx context.Context, inode *Inode, size int64) error
	UnstableAttr(ctx context.Context, inode *Inode) (*InodeUnstableAttr, error)
	ReadLink(ctx context.Context, inode *Inode) (string, error)
}

type Inode struct {
	StableAttr InodeStableAttr

	// MountRelative is the node's path below the root of its filesystem.
	MountRelative string

	Ops InodeOps
}

var nextAnonIno atomic.Uint64

// NewInode wraps ops with an inode number from the anonymous device.
func NewInode(typ InodeType, ops InodeOps) *Inode {
	return &Inode{
		StableAttr: InodeStableAttr{
			Type:      typ,
			InodeID:   nextAnonIno.Add(1),
			BlockSize: DefaultBlockSize,
		},
		Ops: ops,
	}
}
