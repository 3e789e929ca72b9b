package memory

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestTranslate(t *testing.T) {
	n := neko.Modern(t)

	var as *AddressSpace

	n.Setup(func() {
		as = NewAddressSpace()
		require.NoError(t, as.Map(0x10000, 3*PageSize, PermR|PermW|PermU))
	})

	n.Cleanup(func() {
		as.Release()
	})

	n.It("splits a range crossing pages into one span per page", func(t *testing.T) {
		spans, err := TranslateBytes(as.Token(), 0x10ff0, 0x20)
		require.NoError(t, err)

		require.Len(t, spans, 2)
		require.Len(t, spans[0], 0x10)
		require.Len(t, spans[1], 0x10)
	})

	n.It("exposes the same memory as ReadAt and WriteAt", func(t *testing.T) {
		_, err := as.WriteAt([]byte("hello world"), 0x10ffa)
		require.NoError(t, err)

		spans, err := TranslateBytes(as.Token(), 0x10ffa, 11)
		require.NoError(t, err)

		var joined []byte
		for _, s := range spans {
			joined = append(joined, s...)
		}

		require.Equal(t, "hello world", string(joined))
	})

	n.It("reads a string across a page boundary", func(t *testing.T) {
		_, err := as.WriteAt([]byte("/bin/true\x00"), 0x11ffc)
		require.NoError(t, err)

		str, err := TranslateString(as.Token(), 0x11ffc)
		require.NoError(t, err)

		require.Equal(t, "/bin/true", str)
	})

	n.It("rejects a value straddling a page", func(t *testing.T) {
		_, err := TranslateRef(as.Token(), 0x10ffc, 8)
		require.Equal(t, ErrStraddle, errors.Cause(err))

		_, err = ReadUint64(as.Token(), 0x10ff8)
		require.NoError(t, err)
	})

	n.It("round trips words", func(t *testing.T) {
		require.NoError(t, WriteUint64(as.Token(), 0x10008, 0xdeadbeefcafe))

		v, err := ReadUint64(as.Token(), 0x10008)
		require.NoError(t, err)
		require.Equal(t, uint64(0xdeadbeefcafe), v)
	})

	n.It("fails on unmapped memory instead of faulting", func(t *testing.T) {
		_, err := TranslateBytes(as.Token(), 0x12ff0, 0x20)
		require.Equal(t, ErrInvalidAddress, errors.Cause(err))

		_, err = TranslateString(as.Token(), 0x50000)
		require.Equal(t, ErrInvalidAddress, errors.Cause(err))

		err = WriteUint64(as.Token(), 0x0, 1)
		require.Equal(t, ErrInvalidAddress, errors.Cause(err))
	})

	n.It("fails on a string that runs off the mapping", func(t *testing.T) {
		buf := make([]byte, 3*PageSize)
		for i := range buf {
			buf[i] = 'a'
		}

		_, err := as.WriteAt(buf, 0x10000)
		require.NoError(t, err)

		_, err = TranslateString(as.Token(), 0x10000)
		require.Equal(t, ErrInvalidAddress, errors.Cause(err))
	})

	n.It("fails once the space is released", func(t *testing.T) {
		other := NewAddressSpace()
		require.NoError(t, other.Map(0x1000, PageSize, PermR|PermU))

		tok := other.Token()
		other.Release()

		_, err := TranslateBytes(tok, 0x1000, 4)
		require.Equal(t, ErrUnknownToken, errors.Cause(err))
	})

	n.It("copies records through CopyOut and CopyIn", func(t *testing.T) {
		type rec struct {
			A uint64
			B uint32
			C uint32
		}

		err := CopyOut(as.Token(), 0x10ff8, rec{1, 2, 3})
		require.NoError(t, err)

		var out rec
		require.NoError(t, CopyIn(as.Token(), 0x10ff8, &out))
		require.Equal(t, rec{1, 2, 3}, out)
	})

	n.Meow()
}

func TestAddressSpace(t *testing.T) {
	n := neko.Modern(t)

	n.It("gives a fork its own copy of every page", func(t *testing.T) {
		as := NewAddressSpace()
		defer as.Release()

		require.NoError(t, as.Map(0x4000, PageSize, PermR|PermW|PermU))
		_, err := as.WriteAt([]byte("parent"), 0x4000)
		require.NoError(t, err)

		child := as.Fork()
		defer child.Release()

		require.NotEqual(t, as.Token(), child.Token())

		_, err = child.WriteAt([]byte("child!"), 0x4000)
		require.NoError(t, err)

		buf := make([]byte, 6)

		_, err = as.ReadAt(buf, 0x4000)
		require.NoError(t, err)
		require.Equal(t, "parent", string(buf))

		_, err = child.ReadAt(buf, 0x4000)
		require.NoError(t, err)
		require.Equal(t, "child!", string(buf))
	})

	n.It("maps every page a range touches", func(t *testing.T) {
		as := NewAddressSpace()
		defer as.Release()

		require.NoError(t, as.Map(0x1ff0, 0x20, PermR))

		require.True(t, as.IsMapped(0x1000))
		require.True(t, as.IsMapped(0x2000))
		require.False(t, as.IsMapped(0x3000))
		require.Equal(t, 2, as.Pages())

		as.Unmap(0x1000, PageSize)
		require.Equal(t, 1, as.Pages())
	})

	n.It("rounds addresses to pages", func(t *testing.T) {
		require.Equal(t, uint64(0x1000), PageRoundDown(0x1fff))
		require.Equal(t, uint64(0x2000), PageRoundUp(0x1001))
		require.Equal(t, uint64(0x2000), PageRoundUp(0x2000))
	})

	n.Meow()
}

func TestUserBuffer(t *testing.T) {
	n := neko.Modern(t)

	n.It("writes across spans and clamps to capacity", func(t *testing.T) {
		a := make([]byte, 3)
		b := make([]byte, 4)

		ub := NewUserBuffer([][]byte{a, b})
		require.Equal(t, 7, ub.Len())

		n, err := ub.Write([]byte("abcdefghij"))
		require.Equal(t, io.ErrShortWrite, err)
		require.Equal(t, 7, n)

		require.Equal(t, "abc", string(a))
		require.Equal(t, "defg", string(b))
		require.Equal(t, 0, ub.Remain())
	})

	n.It("reads sequentially and reports EOF when drained", func(t *testing.T) {
		ub := NewUserBuffer([][]byte{[]byte("ab"), []byte("cde")})

		out := make([]byte, 4)
		n, err := ub.Read(out)
		require.NoError(t, err)
		require.Equal(t, 4, n)
		require.Equal(t, "abcd", string(out))

		n, err = ub.Read(out)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = ub.Read(out)
		require.Equal(t, io.EOF, err)
	})

	n.Meow()
}
