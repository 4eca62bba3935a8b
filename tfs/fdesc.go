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

// fileDesc mirrors the on-flash directory entry of §3: a fixed-width
// name, the file's first block, and its sealed size (-1 for variable).
type fileDesc struct {
	name       []byte
	firstBlock BlockID
	size       int16
}

// noBlock is the "descriptor written but no block yet allocated" marker
// for firstBlock — a crash between writing the slot and allocating its
// first block.
const noBlock BlockID = 0xFFFF

// unsealedSize marks a variable-length file whose end must be recovered
// by scanning.
const unsealedSize int16 = -1

func newFileDesc(name string, nameSize int) fileDesc {
	// zero-padded, not 0xFF-padded: matches() treats every byte past
	// len(name) as an implicit 0x00, the same way the original's
	// strncpy-initialized name field did. 0xFF padding is reserved for
	// the genuinely-unused end-of-directory slot, never written here.
	n := make([]byte, nameSize)
	copy(n, name)
	return fileDesc{name: n, firstBlock: noBlock, size: unsealedSize}
}

// isEnd reports whether this slot is the unused "end of directory"
// marker: an all-0xFF name.
func (fd fileDesc) isEnd() bool {
	return fd.name[0] == 0xFF
}

// isTombstone reports whether this slot belonged to a removed file.
func (fd fileDesc) isTombstone() bool {
	return fd.name[0] == 0x00
}

// matches compares name against this slot's stored name, prefix-equal up
// to NameSize the way strncmp(name, fd.name, NAME_SIZE) does.
func (fd fileDesc) matches(name string, nameSize int) bool {
	if fd.isEnd() || fd.isTombstone() {
		return false
	}
	for i := 0; i < nameSize; i++ {
		var want byte
		if i < len(name) {
			want = name[i]
		}
		if fd.name[i] != want {
			return false
		}
		if want == 0 {
			break
		}
	}
	return true
}

func (fd fileDesc) nameString() string {
	i := 0
	for i < len(fd.name) && fd.name[i] != 0 {
		i++
	}
	return string(fd.name[:i])
}

func (fd fileDesc) encode(nameSize int) []byte {
	buf := make([]byte, nameSize+4)
	copy(buf, fd.name)
	buf[nameSize] = byte(fd.firstBlock)
	buf[nameSize+1] = byte(fd.firstBlock >> 8)
	buf[nameSize+2] = byte(uint16(fd.size))
	buf[nameSize+3] = byte(uint16(fd.size) >> 8)
	return buf
}

func decodeFileDesc(buf []byte, nameSize int) fileDesc {
	name := make([]byte, nameSize)
	copy(name, buf[:nameSize])
	fb := BlockID(buf[nameSize]) | BlockID(buf[nameSize+1])<<8
	sz := int16(uint16(buf[nameSize+2]) | uint16(buf[nameSize+3])<<8)
	return fileDesc{name: name, firstBlock: fb, size: sz}
}
