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

// File is a handle over one file's chain, positioned either for
// sequential read (on Open) or append (on Create). A zero File is not
// open; the zero value is only meaningful as "never opened" or after
// Close.
type File struct {
	c *cursor
}

// Read copies up to len(buf) bytes starting at the current position,
// advancing it. Returns the number of bytes copied, or -1 if the handle
// is at logical EOF and no bytes could be copied.
func (f *File) Read(buf []byte) (int, error) {
	if f.c == nil {
		return -1, ErrBadHandle
	}
	return f.c.Read(buf)
}

// ReadByte reads a single byte, or returns -1 at EOF.
func (f *File) ReadByte() (int, error) {
	if f.c == nil {
		return -1, ErrBadHandle
	}
	return f.c.ReadByte()
}

// Write appends len(buf) bytes to the file's tail. Returns the number of
// bytes written, short of len(buf) only when the allocator ran out of
// space mid-write.
func (f *File) Write(buf []byte) (int, error) {
	if f.c == nil {
		return -1, ErrBadHandle
	}
	return f.c.Write(buf)
}

// Seek moves to an absolute logical position from the start of the
// file. Passing tfs.SeekEnd (or anything past it) lands at the logical
// end. Returns false if the chain ended before reaching pos.
func (f *File) Seek(pos int) (bool, error) {
	if f.c == nil {
		return false, ErrBadHandle
	}
	return f.c.Seek(pos)
}

// Erase overwrites length logical bytes starting at pos with mask,
// without moving the handle's position. mask's bits must be a subset of
// the current flash content; pass 0 for a full zero-out. Must not extend
// past logical EOF.
func (f *File) Erase(pos, length int, mask byte) (bool, error) {
	if f.c == nil {
		return false, ErrBadHandle
	}
	return f.c.Erase(pos, length, mask)
}

// Position returns the current logical offset, or -1 if not open.
func (f *File) Position() int {
	if f.c == nil {
		return -1
	}
	return f.c.Position()
}

// Dup produces an independent read-only view into other starting at pos
// with logical size length (or to EOF when length < 0). Writes through
// the duplicate are undefined, matching the original's compound-file use
// case.
func (f *File) Dup(other *File, pos, length int) error {
	if other.c == nil {
		f.c = nil
		return nil
	}
	d, err := other.c.Dup(pos, length)
	if err != nil {
		return err
	}
	f.c = d
	return nil
}

// Close flushes pending writes and invalidates the handle; the file
// stays variable-length.
func (f *File) Close() error {
	if f.c == nil {
		return nil
	}
	err := f.c.Close()
	f.c = nil
	return err
}

// CloseFixed flushes, seals the file at its current length by recording
// it into the directory descriptor, and invalidates the handle.
func (f *File) CloseFixed() error {
	if f.c == nil {
		return ErrBadHandle
	}
	err := f.c.CloseFixed()
	f.c = nil
	return err
}

// IsOpen reports whether this handle currently refers to an open file.
func (f *File) IsOpen() bool {
	return f.c != nil && f.c.IsOpen()
}
