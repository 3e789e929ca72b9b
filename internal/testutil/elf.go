// Package testutil builds executables and root filesystems for tests.
package testutil

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"path"
	"strings"

	"github.com/runable/rvkernel/fs"
	"github.com/runable/rvkernel/fs/memfs"
)

type Segment struct {
	Vaddr uint64
	Memsz uint64
	Flags elf.ProgFlag
	Data  []byte
}

const (
	ehdrSize = 64
	phdrSize = 56
)

// ELF assembles a minimal riscv64 executable with one PT_LOAD per segment.
func ELF(entry uint64, segs ...Segment) []byte {
	var buf bytes.Buffer

	le := binary.LittleEndian

	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)}
	buf.Write(ident[:])

	binary.Write(&buf, le, uint16(elf.ET_EXEC))
	binary.Write(&buf, le, uint16(elf.EM_RISCV))
	binary.Write(&buf, le, uint32(elf.EV_CURRENT))
	binary.Write(&buf, le, entry)
	binary.Write(&buf, le, uint64(ehdrSize)) // phoff
	binary.Write(&buf, le, uint64(0))        // shoff
	binary.Write(&buf, le, uint32(0))        // flags
	binary.Write(&buf, le, uint16(ehdrSize))
	binary.Write(&buf, le, uint16(phdrSize))
	binary.Write(&buf, le, uint16(len(segs)))
	binary.Write(&buf, le, uint16(0)) // shentsize
	binary.Write(&buf, le, uint16(0)) // shnum
	binary.Write(&buf, le, uint16(0)) // shstrndx

	off := uint64(ehdrSize + phdrSize*len(segs))

	for _, seg := range segs {
		memsz := seg.Memsz
		if memsz < uint64(len(seg.Data)) {
			memsz = uint64(len(seg.Data))
		}

		binary.Write(&buf, le, elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(seg.Flags),
			Off:    off,
			Vaddr:  seg.Vaddr,
			Paddr:  seg.Vaddr,
			Filesz: uint64(len(seg.Data)),
			Memsz:  memsz,
			Align:  4096,
		})

		off += uint64(len(seg.Data))
	}

	for _, seg := range segs {
		buf.Write(seg.Data)
	}

	return buf.Bytes()
}

// Program is a small executable whose text is code, loaded at 0x10000.
func Program(code []byte) []byte {
	return ELF(0x10000, Segment{
		Vaddr: 0x10000,
		Flags: elf.PF_R | elf.PF_X,
		Data:  code,
	}, Segment{
		Vaddr: 0x20000,
		Memsz: 0x2000,
		Flags: elf.PF_R | elf.PF_W,
	})
}

// RootFS builds a namespace over a memfs tree holding files. Keys are
// absolute paths; a trailing slash makes an empty directory.
func RootFS(files map[string][]byte) *fs.MountNamespace {
	ctx := context.Background()

	ns := fs.NewMountNamespace(0)
	ns.SetRoot(memfs.NewRoot())

	for name, body := range files {
		dir := strings.HasSuffix(name, "/")
		name = strings.Trim(name, "/")

		cur := ns.Root
		parts := strings.Split(path.Dir(name), "/")

		for _, part := range parts {
			if part == "." || part == "" {
				continue
			}

			next, err := ns.LookupDirent(ctx, cur, part)
			if err != nil {
				next, err = ns.Create(ctx, cur, part, fs.Directory)
				if err != nil {
					panic(err)
				}
			}

			cur = next
		}

		typ := fs.RegularFile
		if dir {
			typ = fs.Directory
		}

		d, err := ns.LookupDirent(ctx, cur, path.Base(name))
		if err != nil {
			d, err = ns.Create(ctx, cur, path.Base(name), typ)
			if err != nil {
				panic(err)
			}
		}

		if !dir {
			_, err = d.Inode.Ops.WriteAt(ctx, d.Inode, body, 0)
			if err != nil {
				panic(err)
			}
		}
	}

	return ns
}
