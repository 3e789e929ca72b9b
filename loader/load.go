package loader

import (
	"bytes"
	"debug/elf"
	"encoding/base64"
	"io"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/runable/rvkernel/log"
	"github.com/runable/rvkernel/memory"
)

const UserStackSize = 8 * memory.PageSize

var ErrBadImage = errors.New("not a riscv64 executable")

type Segment struct {
	Vaddr uint64
	Memsz uint64
	Perm  memory.Perm
	Data  []byte
}

// Image is a parsed executable. It is immutable once built and shared
// through the cache.
type Image struct {
	Entry    uint64
	End      uint64
	Segments []Segment
}

// Program is an image instantiated in a fresh address space with its
// argument vector pushed on the user stack.
type Program struct {
	Space    *memory.AddressSpace
	Entry    uint64
	StackTop uint64
	ArgvBase uint64
	Argc     int
}

type Loader struct {
	L     hclog.Logger
	cache *Cache
}

func NewLoader(cache *Cache) *Loader {
	return &Loader{
		L:     log.L.Named("loader"),
		cache: cache,
	}
}

func cacheKey(data []byte) string {
	sum := blake2b.Sum256(data)
	return base64.URLEncoding.EncodeToString(sum[:])
}

func segmentPerm(flags elf.ProgFlag) memory.Perm {
	perm := memory.PermU

	if flags&elf.PF_R != 0 {
		perm |= memory.PermR
	}

	if flags&elf.PF_W != 0 {
		perm |= memory.PermW
	}

	if flags&elf.PF_X != 0 {
		perm |= memory.PermX
	}

	return perm
}

// Parse decodes an ELF image, consulting the cache first.
func (l *Loader) Parse(data []byte) (*Image, error) {
	var key string

	if l.cache != nil {
		key = cacheKey(data)

		if img, ok := l.cache.Lookup(key); ok {
			l.L.Trace("image cache hit", "key", key)
			return img, nil
		}
	}

	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrBadImage, err.Error())
	}

	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return nil, errors.Wrapf(ErrBadImage, "class=%s machine=%s", f.Class, f.Machine)
	}

	img := &Image{Entry: f.Entry}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		if prog.Filesz > prog.Memsz {
			return nil, errors.Wrapf(ErrBadImage, "segment at %x: filesz > memsz", prog.Vaddr)
		}

		body := make([]byte, prog.Filesz)

		_, err := io.ReadFull(prog.Open(), body)
		if err != nil {
			return nil, errors.Wrapf(err, "reading segment at %x", prog.Vaddr)
		}

		img.Segments = append(img.Segments, Segment{
			Vaddr: prog.Vaddr,
			Memsz: prog.Memsz,
			Perm:  segmentPerm(prog.Flags),
			Data:  body,
		})

		if end := prog.Vaddr + prog.Memsz; end > img.End {
			img.End = end
		}
	}

	if len(img.Segments) == 0 {
		return nil, errors.Wrap(ErrBadImage, "no loadable segments")
	}

	if l.cache != nil {
		l.cache.Set(key, img)
	}

	return img, nil
}

// Load parses data and builds a new address space holding the image, a user
// stack above it (separated by a guard page), and args on that stack.
func (l *Loader) Load(data []byte, args []string) (*Program, error) {
	img, err := l.Parse(data)
	if err != nil {
		return nil, err
	}

	as := memory.NewAddressSpace()

	for _, seg := range img.Segments {
		err = as.Map(seg.Vaddr, seg.Memsz, seg.Perm)
		if err != nil {
			as.Release()
			return nil, err
		}

		_, err = as.WriteAt(seg.Data, int64(seg.Vaddr))
		if err != nil {
			as.Release()
			return nil, err
		}
	}

	stackBottom := memory.PageRoundUp(img.End) + memory.PageSize
	stackTop := stackBottom + UserStackSize

	err = as.Map(stackBottom, UserStackSize, memory.PermR|memory.PermW|memory.PermU)
	if err != nil {
		as.Release()
		return nil, err
	}

	sp, argvBase, err := pushArgs(as, stackTop, args)
	if err != nil {
		as.Release()
		return nil, err
	}

	l.L.Trace("loaded image", "entry", hclog.Fmt("%#x", img.Entry), "sp", hclog.Fmt("%#x", sp), "argc", len(args))

	return &Program{
		Space:    as,
		Entry:    img.Entry,
		StackTop: sp,
		ArgvBase: argvBase,
		Argc:     len(args),
	}, nil
}

// pushArgs lays out argv as: the pointer array (NULL terminated) just below
// top, then the strings below it, then aligns sp down to 8 bytes.
func pushArgs(as *memory.AddressSpace, top uint64, args []string) (uint64, uint64, error) {
	tok := as.Token()

	sp := top - uint64(len(args)+1)*8
	argvBase := sp

	for i, arg := range args {
		sp -= uint64(len(arg) + 1)

		_, err := as.WriteAt(append([]byte(arg), 0), int64(sp))
		if err != nil {
			return 0, 0, err
		}

		err = memory.WriteUint64(tok, argvBase+uint64(i)*8, sp)
		if err != nil {
			return 0, 0, err
		}
	}

	err := memory.WriteUint64(tok, argvBase+uint64(len(args))*8, 0)
	if err != nil {
		return 0, 0, err
	}

	sp -= sp % 8

	return sp, argvBase, nil
}
