/*
   Twilight-FS - an append-only block filesystem for NOR flash memory
   Copyright (c) 2026, Twilight-FS contributors

   This file is part of Twilight-FS.

   Twilight-FS is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Twilight-FS is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Twilight-FS. If not, see <http://www.gnu.org/licenses/>.
*/

package tfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsumrak/Twilight-FS/internal/memflash"
)

func smallGeom() Geometry {
	return Geometry{PageSize: 64, BlockCount: 8, NameSize: 8, CacheSize: 16}
}

func newTestFS(t *testing.T) *FS {
	t.Helper()
	geom := smallGeom()
	img := memflash.New(geom.PageSize*geom.BlockCount, geom.PageSize)
	fs, err := New(img, geom)
	require.NoError(t, err)
	require.NoError(t, fs.Format())
	return fs
}

func TestFormatThenMount(t *testing.T) {
	geom := smallGeom()
	img := memflash.New(geom.PageSize*geom.BlockCount, geom.PageSize)
	fs, err := New(img, geom)
	require.NoError(t, err)
	require.NoError(t, fs.Format())
	require.Equal(t, (geom.BlockCount-1)*geom.BlockSize(), fs.Freespace())

	fs2, err := New(img, geom)
	require.NoError(t, err)
	ok, err := fs2.Mount(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fs.Freespace(), fs2.Freespace())
}

func TestMountEmptyImageFails(t *testing.T) {
	geom := smallGeom()
	img := memflash.New(geom.PageSize*geom.BlockCount, geom.PageSize)
	fs, err := New(img, geom)
	require.NoError(t, err)
	ok, err := fs.Mount(0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateWriteReadFixed(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Create("hello")
	require.NoError(t, err)
	n, err := f.Write([]byte("hello, world"))
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.NoError(t, f.CloseFixed())

	require.True(t, fs.Exists("hello"))
	size, err := fs.GetSize("hello")
	require.NoError(t, err)
	require.Equal(t, 12, size)

	rf, err := fs.Open("hello", false)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err = rf.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, "hello, world", string(buf[:n]))
}

func TestCreateWriteAcrossBlocks(t *testing.T) {
	fs := newTestFS(t)
	blockSize := smallGeom().BlockSize()

	data := make([]byte, blockSize*3+7)
	for i := range data {
		data[i] = byte(i)
	}

	f, err := fs.Create("big")
	require.NoError(t, err)
	n, err := f.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, f.CloseFixed())

	size, err := fs.GetSize("big")
	require.NoError(t, err)
	require.Equal(t, len(data), size)

	rf, err := fs.Open("big", false)
	require.NoError(t, err)
	got := make([]byte, len(data))
	total := 0
	for total < len(got) {
		n, err := rf.Read(got[total:])
		require.NoError(t, err)
		if n <= 0 {
			break
		}
		total += n
	}
	require.Equal(t, data, got[:total])
}

func TestOpenVariableLengthRecoversSizeAfterRemount(t *testing.T) {
	geom := smallGeom()
	img := memflash.New(geom.PageSize*geom.BlockCount, geom.PageSize)
	fs, err := New(img, geom)
	require.NoError(t, err)
	require.NoError(t, fs.Format())

	f, err := fs.Open("open-ended", true)
	require.NoError(t, err)
	_, err = f.Write([]byte("ab"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fs2, err := New(img, geom)
	require.NoError(t, err)
	ok, err := fs2.Mount(0)
	require.NoError(t, err)
	require.True(t, ok)

	size, err := fs2.GetSize("open-ended")
	require.NoError(t, err)
	require.Equal(t, 2, size)
}

func TestCreateReplacesExisting(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Create("dup")
	require.NoError(t, err)
	_, err = f.Write([]byte("first"))
	require.NoError(t, err)
	require.NoError(t, f.CloseFixed())

	f2, err := fs.Create("dup")
	require.NoError(t, err)
	_, err = f2.Write([]byte("second value"))
	require.NoError(t, err)
	require.NoError(t, f2.CloseFixed())

	size, err := fs.GetSize("dup")
	require.NoError(t, err)
	require.Equal(t, len("second value"), size)
}

func TestOpenCreateTrueLeavesExistingUntouched(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Open("keep", true)
	require.NoError(t, err)
	_, err = f.Write([]byte("original"))
	require.NoError(t, err)
	require.NoError(t, f.CloseFixed())

	f2, err := fs.Open("keep", true)
	require.NoError(t, err)
	require.NoError(t, f2.Close())

	size, err := fs.GetSize("keep")
	require.NoError(t, err)
	require.Equal(t, len("original"), size)
}

func TestRemoveThenExists(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Create("gone")
	require.NoError(t, err)
	_, err = f.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, f.CloseFixed())
	require.True(t, fs.Exists("gone"))

	before := fs.Freespace()
	require.NoError(t, fs.Remove("gone"))
	require.False(t, fs.Exists("gone"))
	require.Greater(t, fs.Freespace(), before, "retired blocks count toward freespace immediately, even before erase")

	_, err = fs.GetSize("gone")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveNonexistentIsNoop(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Remove("never-existed"))
}

func TestExistsHandlesSlotZero(t *testing.T) {
	fs := newTestFS(t)
	f, err := fs.Create("first-file")
	require.NoError(t, err)
	require.NoError(t, f.CloseFixed())
	require.True(t, fs.Exists("first-file"))
	require.False(t, fs.Exists("nonexistent"))
}

func TestProcessEraseReclaimsDirtyBlocks(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Create("scratch")
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, f.CloseFixed())
	require.NoError(t, fs.Remove("scratch"))

	before := fs.Freespace()
	did, err := fs.ProcessErase()
	require.NoError(t, err)
	require.True(t, did, "a dirty block left by Remove should be reclaimable")
	require.Equal(t, before, fs.Freespace(), "erasing a block already counted as free doesn't change freespace")

	did, err = fs.ProcessErase()
	require.NoError(t, err)
	require.False(t, did, "no dirty block remains once the only one has been erased")
}

func TestBadNameRejected(t *testing.T) {
	fs := newTestFS(t)
	_, err := fs.Create("")
	require.ErrorIs(t, err, ErrBadName)
	_, err = fs.Create(string([]byte{0xFF, 'x'}))
	require.ErrorIs(t, err, ErrBadName)
}

func TestDirIteratesLiveEntriesOnly(t *testing.T) {
	fs := newTestFS(t)

	for _, name := range []string{"a", "b", "c"} {
		f, err := fs.Create(name)
		require.NoError(t, err)
		require.NoError(t, f.CloseFixed())
	}
	require.NoError(t, fs.Remove("b"))

	var names []string
	d := fs.NewDir()
	for {
		ok, err := d.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, d.Name())
	}
	require.Equal(t, []string{"a", "c"}, names)
}
