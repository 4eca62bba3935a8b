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

import "fmt"

// Magic marks the head block of the directory chain (§6, on-flash format).
const Magic uint32 = 0xBABADEDA

// SeekEnd is a position past any representable file/flash size; passing
// it to Seek always lands at the logical end of the file.
const SeekEnd = 0x4000000

// DefaultPageSize, DefaultCacheSize and DefaultNameSize match the values
// used throughout the component design and the end-to-end scenarios.
const (
	DefaultPageSize  = 4096
	DefaultCacheSize = 256
	DefaultNameSize  = 12
)

// descWordSize is the width of the word used to read/write a block's
// trailer; only its last two bytes (the final two bytes of the page)
// carry the descriptor itself, the first two are written as 0xFF (§6).
const descWordSize = 4

// Geometry describes the fixed, compile/mount-time layout of one TFS
// volume: page size, block count, name length and the flash base offset.
type Geometry struct {
	// PageSize is the erase unit (and block size including trailer).
	PageSize int
	// BlockCount is N, the number of pages managed by this volume.
	BlockCount int
	// NameSize is the fixed file name length, a multiple of 4, >= 4.
	NameSize int
	// CacheSize is C, the shared cache buffer size; must divide PageSize.
	CacheSize int
	// BaseOffset is the flash address of block 0.
	BaseOffset int64
}

// BlockSize is the data area of one block: PageSize minus the 2-byte
// descriptor (§3).
func (g Geometry) BlockSize() int {
	return g.PageSize - 2
}

// FileDescSize is the on-flash size of one directory entry.
func (g Geometry) FileDescSize() int {
	return g.NameSize + 4
}

func (g Geometry) validate() error {
	if g.PageSize <= 0 || g.PageSize%4 != 0 {
		return fmt.Errorf("tfs: page size %d must be a positive multiple of 4", g.PageSize)
	}
	if g.CacheSize <= 0 || g.PageSize%g.CacheSize != 0 {
		return fmt.Errorf("tfs: cache size %d must divide page size %d", g.CacheSize, g.PageSize)
	}
	if g.NameSize < 4 || g.NameSize%4 != 0 {
		return fmt.Errorf("tfs: name size %d must be a multiple of 4, >= 4", g.NameSize)
	}
	if g.BlockCount <= 0 || g.BlockCount > MaxBlocks {
		return fmt.Errorf("tfs: block count %d must be in (0, %d]", g.BlockCount, MaxBlocks)
	}
	return nil
}

// addr returns the flash address of byte offset off within block b.
func (g Geometry) addr(b BlockID, off int) int64 {
	return g.BaseOffset + int64(b)*int64(g.PageSize) + int64(off)
}

// descAddr returns the flash address of the 4-byte descriptor word of
// block b, the last word of its page.
func (g Geometry) descAddr(b BlockID) int64 {
	return g.addr(b, g.PageSize-descWordSize)
}
