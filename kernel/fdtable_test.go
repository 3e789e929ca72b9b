package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestFDTable(t *testing.T) {
	n := neko.Modern(t)

	desc := func() *FileDescriptor {
		return NewDescriptor(NewOutputStream("test", nil))
	}

	n.It("hands out the lowest free slot", func(t *testing.T) {
		ft := NewFDTable()

		for i := 0; i < 5; i++ {
			require.Equal(t, i, ft.Install(desc()))
		}

		_, ok := ft.Remove(2)
		require.True(t, ok)
		_, ok = ft.Remove(0)
		require.True(t, ok)

		require.Equal(t, 0, ft.Install(desc()))
		require.Equal(t, 2, ft.Install(desc()))
		require.Equal(t, 5, ft.Install(desc()))
	})

	n.It("grows past a full bitmap word", func(t *testing.T) {
		ft := NewFDTable()

		for i := 0; i < 130; i++ {
			require.Equal(t, i, ft.Install(desc()))
		}

		ft.Remove(64)
		require.Equal(t, 64, ft.Alloc())
		require.Equal(t, 130, ft.Len())
	})

	n.It("reports empty and out of range slots", func(t *testing.T) {
		ft := NewFDTable()
		ft.Install(desc())

		_, ok := ft.Get(-1)
		require.False(t, ok)

		_, ok = ft.Get(7)
		require.False(t, ok)

		_, ok = ft.Remove(7)
		require.False(t, ok)
	})

	n.It("shares descriptors with a clone", func(t *testing.T) {
		ft := NewFDTable()
		d := desc()
		ft.Install(d)

		child := ft.Clone()

		got, ok := child.Get(0)
		require.True(t, ok)
		require.True(t, got == d)
		require.Equal(t, 2, d.Refs())

		require.Equal(t, 1, child.Install(desc()))
	})

	n.It("drains every descriptor", func(t *testing.T) {
		ft := NewFDTable()
		ft.Install(desc())
		ft.Install(desc())
		ft.Remove(0)

		require.Len(t, ft.Drain(), 1)
		require.Equal(t, 0, ft.Len())
		require.Equal(t, 0, ft.Install(desc()))
	})

	n.Meow()
}
