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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDirectoryGrowthTriggersDefrag fills and empties directory slots
// repeatedly so tombstones accumulate past the point doCreate finds a
// defragmentation more profitable than growing the directory chain, and
// checks every surviving file is still readable afterward (§4.4).
func TestDirectoryGrowthTriggersDefrag(t *testing.T) {
	fs := newTestFS(t)

	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			name := fmt.Sprintf("f%d-%d", round, i)
			f, err := fs.Create(name)
			require.NoError(t, err)
			_, err = f.Write([]byte(name))
			require.NoError(t, err)
			require.NoError(t, f.CloseFixed())
		}
		for i := 0; i < 3; i++ {
			name := fmt.Sprintf("f%d-%d", round, i)
			require.NoError(t, fs.Remove(name))
		}
	}

	for round := 0; round < 3; round++ {
		name := fmt.Sprintf("f%d-3", round)
		require.True(t, fs.Exists(name), "surviving entry %s should still be found after defrag", name)
		size, err := fs.GetSize(name)
		require.NoError(t, err)
		require.Equal(t, len(name), size)
	}
}

func TestFreespaceDecreasesAsFilesGrow(t *testing.T) {
	fs := newTestFS(t)
	start := fs.Freespace()

	f, err := fs.Create("consume")
	require.NoError(t, err)
	data := make([]byte, smallGeom().BlockSize()+1)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.CloseFixed())

	require.Less(t, fs.Freespace(), start)
}
