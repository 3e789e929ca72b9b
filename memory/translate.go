package memory

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// maxString bounds TranslateString so an unterminated user string cannot
// make the kernel walk the whole address space.
const maxString = 4 * PageSize

// TranslateBytes returns kernel views whose concatenation is the user range
// [ptr, ptr+length) in the address space named by tok.
func TranslateBytes(tok Token, ptr, length uint64) ([][]byte, error) {
	as, err := Lookup(tok)
	if err != nil {
		return nil, err
	}

	return as.spans(ptr, length)
}

// TranslateString reads a NUL terminated string starting at ptr, crossing
// page boundaries as needed.
func TranslateString(tok Token, ptr uint64) (string, error) {
	as, err := Lookup(tok)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	for va := ptr; ; {
		frame, ok := as.frame(va >> pageShift)
		if !ok {
			return "", errors.Wrapf(ErrInvalidAddress, "string at %x: page not mapped: va=%x", ptr, va)
		}

		rest := frame[va&(PageSize-1):]
		if i := bytes.IndexByte(rest, 0); i >= 0 {
			buf.Write(rest[:i])
			return buf.String(), nil
		}

		buf.Write(rest)
		va += uint64(len(rest))

		if buf.Len() > maxString {
			return "", errors.Wrapf(ErrInvalidAddress, "unterminated string at %x", ptr)
		}
	}
}

// TranslateRef returns a single kernel view of size bytes at ptr. Values that
// straddle a page boundary are rejected with ErrStraddle.
func TranslateRef(tok Token, ptr, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}

	if ptr>>pageShift != (ptr+size-1)>>pageShift {
		return nil, errors.Wrapf(ErrStraddle, "ptr=%x size=%d", ptr, size)
	}

	spans, err := TranslateBytes(tok, ptr, size)
	if err != nil {
		return nil, err
	}

	return spans[0], nil
}

func ReadUint64(tok Token, ptr uint64) (uint64, error) {
	b, err := TranslateRef(tok, ptr, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

func WriteUint64(tok Token, ptr, val uint64) error {
	b, err := TranslateRef(tok, ptr, 8)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(b, val)
	return nil
}

func WriteInt32(tok Token, ptr uint64, val int32) error {
	b, err := TranslateRef(tok, ptr, 4)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(b, uint32(val))
	return nil
}

// CopyOut encodes val little-endian into user memory at addr. Unlike
// TranslateRef it handles records that cross pages.
func CopyOut(tok Token, addr uint64, val interface{}) error {
	size := binary.Size(val)
	if size < 0 {
		return errors.Errorf("cannot encode %T", val)
	}

	spans, err := TranslateBytes(tok, addr, uint64(size))
	if err != nil {
		return err
	}

	return binary.Write(NewUserBuffer(spans), binary.LittleEndian, val)
}

func CopyIn(tok Token, addr uint64, val interface{}) error {
	size := binary.Size(val)
	if size < 0 {
		return errors.Errorf("cannot decode %T", val)
	}

	spans, err := TranslateBytes(tok, addr, uint64(size))
	if err != nil {
		return err
	}

	return binary.Read(NewUserBuffer(spans), binary.LittleEndian, val)
}
