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

// cacheState is the three-way state of the shared page-local buffer of
// §4.2: no useful content, holding a read window, or holding bytes
// pending a flush to flash.
type cacheState int

const (
	cacheInvalid cacheState = iota
	cacheRead
	cacheWrite
)

// cache is the single page-local byte buffer shared across the whole
// filesystem: both the read cache and the write-coalescing buffer for
// every data access. Exactly one exists per mounted FS; file handles
// never hold their own copy, only indices into this one (§9 Design
// Notes, "Shared cache").
type cache struct {
	driver Driver
	geom   Geometry

	state  cacheState
	block  BlockID
	offset int // 4-aligned start of the covered window
	size   int // bytes covered, multiple of 4

	buf []byte
}

func newCache(driver Driver, geom Geometry) *cache {
	return &cache{driver: driver, geom: geom, buf: make([]byte, geom.CacheSize)}
}

func alignDown4(n int) int { return n &^ 3 }

func roundUp4(n int) int { return (n + 3) &^ 3 }

// flush programs any pending write window to flash and invalidates the
// cache. It is a no-op when nothing is pending.
func (c *cache) flush() error {
	if c.state != cacheWrite {
		return nil
	}
	if err := c.driver.Write(c.geom.addr(c.block, c.offset), c.buf[:c.size]); err != nil {
		return err
	}
	c.state = cacheInvalid
	return nil
}

// invalidate drops any cached read content without flushing. Used before
// any code path that reads flash directly, bypassing the cache, so a
// stale read window is never served afterwards.
func (c *cache) invalidate() {
	if c.state == cacheRead {
		c.state = cacheInvalid
	}
}

// clip bounds a [offset, offset+avail) window so it never extends past
// the block's data area (excluding the 2-byte descriptor trailer).
func (c *cache) clip(offset, avail int) int {
	if offset+avail > c.geom.BlockSize() {
		avail = c.geom.BlockSize() - offset
	}
	if avail < 0 {
		avail = 0
	}
	return avail
}

// read returns a slice into the shared buffer covering as many bytes
// from offset as are currently cached, up to the block's data boundary.
// The slice is only valid until the next cache call; callers must copy
// out of it before issuing another read, write or flush.
func (c *cache) read(block BlockID, offset int) ([]byte, error) {
	if err := c.flush(); err != nil {
		return nil, err
	}
	covered := c.state != cacheInvalid && c.block == block &&
		offset >= c.offset && offset < c.offset+c.size
	if !covered {
		aligned := alignDown4(offset)
		size := c.geom.CacheSize
		if aligned+size > c.geom.PageSize {
			size = c.geom.PageSize - aligned
		}
		if err := c.driver.Read(c.geom.addr(block, aligned), c.buf[:size]); err != nil {
			return nil, err
		}
		c.block, c.offset, c.size, c.state = block, aligned, size, cacheRead
	}
	avail := c.clip(offset, c.offset+c.size-offset)
	start := offset - c.offset
	return c.buf[start : start+avail], nil
}

// write reserves a write window covering offset and returns a slice the
// caller fills in; flush programs exactly that window. needed is the
// caller's remaining desired write length, used to size a tight window
// per the TFS_LIMIT_WRITE_CACHE policy of §4.2 instead of always
// reserving the full cache.
func (c *cache) write(block BlockID, offset, needed int) ([]byte, error) {
	covered := c.state == cacheWrite && c.block == block &&
		offset >= c.offset && offset < c.offset+c.size
	if !covered {
		if err := c.flush(); err != nil {
			return nil, err
		}
		aligned := alignDown4(offset)
		pageClip := c.geom.PageSize - aligned
		size := c.geom.CacheSize
		if size > pageClip {
			size = pageClip
		}
		frac := offset - aligned
		tight := roundUp4(needed - size + frac + c.geom.CacheSize)
		if tight < size {
			size = tight
		}
		for i := 0; i < size; i++ {
			c.buf[i] = 0xFF
		}
		c.block, c.offset, c.size, c.state = block, aligned, size, cacheWrite
	}
	avail := c.clip(offset, c.offset+c.size-offset)
	start := offset - c.offset
	return c.buf[start : start+avail], nil
}
