package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"

	"github.com/runable/rvkernel/loader"
	"github.com/runable/rvkernel/memory"
)

func dump(path string, args []string, raw bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	l := loader.NewLoader(loader.NewCache(1))

	img, err := l.Parse(data)
	if err != nil {
		return err
	}

	fmt.Printf("entry: %#x\nend:   %#x\n", img.Entry, img.End)

	fmt.Printf("\n[segments]\n")
	tr := tabwriter.NewWriter(os.Stdout, 4, 8, 1, ' ', 0)
	for i, seg := range img.Segments {
		fmt.Fprintf(tr, "%d\t%#x\tmemsz=%#x\tfilesz=%#x\t%s\n",
			i, seg.Vaddr, seg.Memsz, len(seg.Data), seg.Perm)
	}
	tr.Flush()

	if len(args) == 0 {
		args = []string{path}
	}

	prog, err := l.Load(data, args)
	if err != nil {
		return err
	}

	defer prog.Space.Release()

	fmt.Printf("\n[stack]\n")
	fmt.Printf("sp:    %#x\nargv:  %#x\nargc:  %d\npages: %d\n",
		prog.StackTop, prog.ArgvBase, prog.Argc, prog.Space.Pages())

	tok := prog.Space.Token()
	for i := 0; i < prog.Argc; i++ {
		ptr, err := memory.ReadUint64(tok, prog.ArgvBase+uint64(i)*8)
		if err != nil {
			return err
		}

		str, err := memory.TranslateString(tok, ptr)
		if err != nil {
			return err
		}

		fmt.Printf("  argv[%d] %#x %q\n", i, ptr, str)
	}

	if raw {
		fmt.Printf("\n[image]\n")
		spew.Dump(img)
	}

	return nil
}
