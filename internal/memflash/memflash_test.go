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

package memflash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteRejectsSettingBits(t *testing.T) {
	m := New(64, 64)
	require.NoError(t, m.Write(0, []byte{0x0F, 0xFF, 0xFF, 0xFF}))
	err := m.Write(0, []byte{0xF0, 0xFF, 0xFF, 0xFF})
	require.Error(t, err)
}

func TestEraseSectorResetsToErased(t *testing.T) {
	m := New(128, 64)
	require.NoError(t, m.Write(0, []byte{0x00, 0x00, 0x00, 0x00}))
	require.NoError(t, m.EraseSector(0))
	buf := make([]byte, 4)
	require.NoError(t, m.Read(0, buf))
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)
}

func TestOpenPersistsAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	m, err := Open(path, 64, 64)
	require.NoError(t, err)
	require.NoError(t, m.Write(0, []byte{0x00, 0xFF, 0xFF, 0xFF}))
	require.NoError(t, m.Sync())

	_, err = os.Stat(path)
	require.NoError(t, err)

	m2, err := Open(path, 64, 64)
	require.NoError(t, err)
	buf := make([]byte, 4)
	require.NoError(t, m2.Read(0, buf))
	require.Equal(t, []byte{0x00, 0xFF, 0xFF, 0xFF}, buf)
}

func TestFaultInjectorTriggersAfterBudget(t *testing.T) {
	m := New(64, 64)
	fi := NewFaultInjector(m, 1, 4)

	require.NoError(t, fi.Write(0, []byte{0x00, 0xFF, 0xFF, 0xFF}))

	err := fi.Write(4, []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF})
	require.ErrorIs(t, err, ErrInjectedFault)

	// the partial write did land its first 4 bytes
	buf := make([]byte, 4)
	require.NoError(t, m.Read(4, buf))
	require.Equal(t, []byte{0x00, 0x00, 0xFF, 0xFF}, buf)

	// every call after the fault fails outright
	err = fi.Write(8, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.ErrorIs(t, err, ErrInjectedFault)
	require.ErrorIs(t, fi.Read(0, buf), ErrInjectedFault)
}
