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

// cursor is a half-open byte window over a singly-linked chain of
// blocks — the mechanism File and the resident directory handle are both
// built on (§4.3). Logical position is curIndex*BlockSize + offset.
type cursor struct {
	fs *FS

	first    BlockID
	cur      BlockID
	curIndex int
	offset   int

	last     BlockID
	lastSize int

	fbOffset int // logical-start offset within first, for dup() views
	fileNo   int // directory slot, -1 when not bound to one

	open bool
}

func (fs *FS) openChain(fd fileDesc, fileNo int) (*cursor, error) {
	c := &cursor{
		fs:     fs,
		first:  fd.firstBlock,
		cur:    fd.firstBlock,
		last:   fd.firstBlock,
		fileNo: fileNo,
		open:   true,
	}
	for {
		d, err := fs.alloc.next(c.last)
		if err != nil {
			return nil, err
		}
		if !d.Successor.Valid() {
			break
		}
		c.last = d.Successor
	}
	if fd.size == unsealedSize {
		end, err := fs.findVariableEnd(c.last)
		if err != nil {
			return nil, err
		}
		c.lastSize = end
	} else {
		c.lastSize = int(fd.size)
	}
	return c, nil
}

// blockSize is the block data-area size shared by every cursor off this
// FS's geometry.
func (c *cursor) blockSize() int { return c.fs.geom.BlockSize() }

// Read copies bytes from the chain into buf, advancing block by block,
// stopping at logical EOF. Returns bytes actually copied, or -1 if no
// progress was possible because the cursor sits at EOF already.
func (c *cursor) Read(buf []byte) (int, error) {
	if !c.open {
		return -1, ErrBadHandle
	}
	size := len(buf)
	if c.cur == c.last && c.offset+size > c.lastSize {
		if c.offset >= c.lastSize {
			return -1, nil
		}
		size = c.lastSize - c.offset
	}
	remaining := size
	want := size
	for remaining > 0 {
		chunk, err := c.fs.cache.read(c.cur, c.offset)
		if err != nil {
			return want - remaining, err
		}
		if len(chunk) > 0 {
			n := copy(buf[want-remaining:], chunk)
			if n > remaining {
				n = remaining
			}
			remaining -= n
			c.offset += n
		}
		if c.offset >= c.blockSize() {
			d, err := c.fs.alloc.next(c.cur)
			if err != nil {
				return want - remaining, err
			}
			if !d.Successor.Valid() {
				c.offset = c.blockSize()
				return want - remaining, nil
			}
			c.cur = d.Successor
			c.curIndex++
			c.offset -= c.blockSize()
			if c.cur == c.last && c.offset+remaining > c.lastSize {
				cut := c.lastSize - c.offset
				want -= remaining - cut
				remaining = cut
			}
		}
	}
	return want, nil
}

// ReadByte reads a single byte, or returns -1 at EOF.
func (c *cursor) ReadByte() (int, error) {
	var b [1]byte
	n, err := c.Read(b[:])
	if err != nil || n != 1 {
		return -1, err
	}
	return int(b[0]), nil
}

// Seek positions the cursor at an absolute logical offset from the
// start of the view. Returns false if the chain ended before reaching
// it, the way the original reports a short seek.
func (c *cursor) Seek(pos int) (bool, error) {
	if !c.open {
		return false, ErrBadHandle
	}
	offset := pos + c.fbOffset
	target := offset / c.blockSize()

	if c.curIndex > target {
		c.curIndex = 0
		c.cur = c.first
	}
	for c.curIndex < target {
		d, err := c.fs.alloc.next(c.cur)
		if err != nil {
			return false, err
		}
		if !d.Successor.Valid() {
			c.offset = c.lastSize
			return false, nil
		}
		c.cur = d.Successor
		c.curIndex++
	}

	c.offset = offset % c.blockSize()
	if c.cur == c.last && c.offset > c.lastSize {
		c.offset = c.lastSize
		return false, nil
	}
	return true, nil
}

// Position returns the current logical offset.
func (c *cursor) Position() int {
	if !c.open {
		return -1
	}
	return c.curIndex*c.blockSize() + c.offset - c.fbOffset
}

// Write appends bytes to the tail of the chain, allocating new NORMAL
// blocks as the tail crosses the block boundary. Returns bytes written,
// short on allocation failure.
func (c *cursor) Write(buf []byte) (int, error) {
	if !c.open {
		return -1, ErrBadHandle
	}
	size := len(buf)
	remaining := size
	for remaining > 0 {
		window, err := c.fs.cache.write(c.last, c.lastSize, remaining)
		if err != nil {
			return size - remaining, err
		}
		if len(window) > 0 {
			n := copy(window, buf[size-remaining:])
			if n > remaining {
				n = remaining
			}
			remaining -= n
			c.lastSize += n
		}
		if c.lastSize >= c.blockSize() {
			next, err := c.fs.alloc.allocate(FlagNormal)
			if err != nil {
				c.lastSize = c.blockSize()
				return size - remaining, err
			}
			if err := c.fs.alloc.chainTo(c.last, next); err != nil {
				return size - remaining, err
			}
			c.last = next
			c.lastSize -= c.blockSize()
		}
	}
	return size, nil
}

// Erase writes mask bytes over len logical bytes starting at pos,
// without moving the cursor's own read/write position. mask's bits must
// be a subset of whatever is already stored (callers pass 0 for a full
// zero-out); it must not extend past logical EOF.
func (c *cursor) Erase(pos, length int, mask byte) (bool, error) {
	if !c.open {
		return false, ErrBadHandle
	}
	saved := c.Position()
	ok, err := c.Seek(pos)
	if err != nil {
		return false, err
	}
	if !ok {
		c.Seek(saved)
		return false, nil
	}

	block := c.cur
	offset := c.offset
	remaining := length
	if _, err := c.Seek(saved); err != nil {
		return false, err
	}

	for remaining > 0 {
		window, err := c.fs.cache.write(block, offset, remaining)
		if err != nil {
			return false, err
		}
		if len(window) > 0 {
			n := remaining
			if n > len(window) {
				n = len(window)
			}
			for i := 0; i < n; i++ {
				window[i] = mask
			}
			remaining -= n
			offset += n
		}
		if offset >= c.blockSize() {
			d, err := c.fs.alloc.next(block)
			if err != nil {
				return false, err
			}
			if !d.Successor.Valid() {
				return false, nil
			}
			block = d.Successor
			offset -= c.blockSize()
			if block == c.last && offset+remaining > c.lastSize {
				remaining = c.lastSize - offset
			}
		}
	}
	return true, nil
}

// Dup produces an independent read-only view: logical start pos into c,
// logical size length (or to EOF when length < 0).
func (c *cursor) Dup(pos, length int) (*cursor, error) {
	d := &cursor{fs: c.fs, fileNo: c.fileNo, open: c.open}
	if !c.open {
		return d, nil
	}
	if pos != 0 {
		if _, err := c.Seek(pos); err != nil {
			return nil, err
		}
		d.first = c.cur
		d.cur = c.cur
		d.fbOffset = c.offset
		d.offset = c.offset
		d.curIndex = 0
	} else {
		d.first = c.first
		d.cur = c.cur
		d.fbOffset = c.fbOffset
		d.offset = c.offset
		d.curIndex = c.curIndex
	}
	d.last = c.last
	d.lastSize = c.lastSize
	if length >= 0 {
		if _, err := c.Seek(pos + length); err != nil {
			return nil, err
		}
		d.last = c.cur
		d.lastSize = c.offset
	}
	return d, nil
}

// Close flushes and invalidates the handle, leaving the file variable-
// length (size stays -1 in the directory).
func (c *cursor) Close() error {
	if !c.open {
		return nil
	}
	c.open = false
	return c.fs.cache.flush()
}

// CloseFixed additionally seals the file at its present length by
// recording the last block's byte count into its directory descriptor.
func (c *cursor) CloseFixed() error {
	if !c.open {
		return ErrBadHandle
	}
	if err := c.fs.cache.flush(); err != nil {
		return err
	}
	if err := c.fs.dirEntrySealSize(c.fileNo, int16(c.lastSize)); err != nil {
		return err
	}
	c.open = false
	return nil
}

func (c *cursor) IsOpen() bool { return c.open }
