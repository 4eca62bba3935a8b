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
	log "github.com/sirupsen/logrus"
)

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// findFileDesc scans the directory from slot 0, returning the first
// live entry whose name prefix-matches, or fileno -1 if none does.
// Tombstoned and the end-of-directory slot never match (§4.4).
func (fs *FS) findFileDesc(name string) (fileDesc, int, error) {
	if _, err := fs.dir.Seek(4); err != nil {
		return fileDesc{}, -1, err
	}
	buf := make([]byte, fs.geom.FileDescSize())
	for fileno := 0; ; fileno++ {
		n, err := fs.dir.Read(buf)
		if err != nil {
			return fileDesc{}, -1, err
		}
		if n < len(buf) {
			return fileDesc{}, -1, nil
		}
		fd := decodeFileDesc(buf, fs.geom.NameSize)
		if fd.isEnd() {
			return fileDesc{}, -1, nil
		}
		if fd.matches(name, fs.geom.NameSize) {
			return fd, fileno, nil
		}
	}
}

// defragDirFile rebuilds the directory into a fresh SYSTEM chain
// containing only live entries, then retires the old head. Ordering
// (new magic written, then old head zeroed, then old head retired)
// guarantees at most one block ever carries the magic word at any
// power-loss instant (§4.4).
func (fs *FS) defragDirFile() error {
	newHead, err := fs.alloc.allocate(FlagSystem)
	if err != nil {
		return err
	}
	nd := &cursor{fs: fs, first: newHead, cur: newHead, last: newHead, fileNo: -1, open: true}
	nd.lastSize = 4

	oldHead := fs.dir.first
	fs.nextFile = 0
	if _, err := fs.dir.Seek(4); err != nil {
		return err
	}
	buf := make([]byte, fs.geom.FileDescSize())
	for {
		n, err := fs.dir.Read(buf)
		if err != nil {
			return err
		}
		if n < len(buf) {
			break
		}
		fd := decodeFileDesc(buf, fs.geom.NameSize)
		if fd.isEnd() {
			break
		}
		if fd.isTombstone() {
			continue
		}
		if _, err := nd.Write(buf); err != nil {
			return err
		}
		fs.nextFile++
	}

	if err := fs.cache.flush(); err != nil {
		return err
	}
	var magic [4]byte
	m := Magic
	magic[0], magic[1], magic[2], magic[3] = byte(m), byte(m>>8), byte(m>>16), byte(m>>24)
	if err := fs.driver.Write(fs.geom.addr(newHead, 0), magic[:]); err != nil {
		return err
	}
	var zero [4]byte
	if err := fs.driver.Write(fs.geom.addr(oldHead, 0), zero[:]); err != nil {
		return err
	}
	if err := fs.alloc.retire(oldHead); err != nil {
		return err
	}
	fs.tombstones = 0
	fs.dir = nd
	fs.cache.invalidate()
	log.WithFields(log.Fields{"oldHead": oldHead, "newHead": newHead}).Debug("defragmented directory")
	return nil
}

// doCreate expands the directory if its tail page is about to overflow
// — preferring a defragmentation when one is profitable enough to avoid
// needing the extra block for directory growth — allocates the file's
// first block, and appends its descriptor (§4.4, "Create").
func (fs *FS) doCreate(fd fileDesc) (*cursor, error) {
	if fs.dir.lastSize+fs.geom.FileDescSize() >= fs.dir.blockSize() {
		if _, err := fs.dir.Seek(SeekEnd); err != nil {
			return nil, err
		}
		pos := fs.dir.Position()
		var needed int
		if fs.tombstones != 0 {
			needed = ceilDiv(pos, fs.dir.blockSize())
		} else {
			needed = ceilDiv(pos+fs.geom.FileDescSize(), fs.dir.blockSize())
		}
		if needed < fs.alloc.freeBlocks {
			if err := fs.defragDirFile(); err != nil {
				return nil, err
			}
		} else if fs.alloc.freeBlocks < 2 {
			return nil, ErrNoSpace
		}
	}
	if fs.alloc.freeBlocks < 1 {
		return nil, ErrNoSpace
	}

	first, err := fs.alloc.allocate(FlagNormal)
	if err != nil {
		return nil, err
	}
	fd.firstBlock = first
	fd.size = unsealedSize
	fileNo := fs.nextFile
	fs.nextFile++

	if _, err := fs.dir.Write(fd.encode(fs.geom.NameSize)); err != nil {
		return nil, err
	}
	if err := fs.cache.flush(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"name": fd.nameString(), "block": first}).Debug("created file")
	return &cursor{fs: fs, first: first, cur: first, last: first, fileNo: fileNo, open: true}, nil
}

// Dir iterates live directory entries in insertion order, skipping
// tombstones and stopping at the end-of-directory marker (§4.4, §6). It
// re-seeks to each slot's byte offset directly rather than riding a
// sequential Read position, matching the original's iterator.
type Dir struct {
	fs     *FS
	fileno int
	fd     fileDesc
	valid  bool
}

// Next advances to the next live entry, returning false once the
// directory is exhausted.
func (d *Dir) Next() (bool, error) {
	pos := 4 + d.fileno*d.fs.geom.FileDescSize()
	if _, err := d.fs.dir.Seek(pos); err != nil {
		return false, err
	}
	buf := make([]byte, d.fs.geom.FileDescSize())
	for {
		n, err := d.fs.dir.Read(buf)
		d.fileno++
		if err != nil {
			d.valid = false
			return false, err
		}
		if n < len(buf) {
			d.valid = false
			return false, nil
		}
		fd := decodeFileDesc(buf, d.fs.geom.NameSize)
		if fd.isTombstone() {
			continue
		}
		d.fd = fd
		d.valid = !fd.isEnd()
		return d.valid, nil
	}
}

// Name returns the current entry's name, or "" if Next hasn't returned
// true yet.
func (d *Dir) Name() string {
	if !d.valid {
		return ""
	}
	return d.fd.nameString()
}

// IsFixed reports whether the current entry is sealed (close_fixed'd).
func (d *Dir) IsFixed() bool {
	return d.valid && d.fd.size >= 0
}

// Size returns the current entry's logical length, or -1 if Next hasn't
// returned true yet.
func (d *Dir) Size() (int, error) {
	if !d.valid {
		return -1, nil
	}
	return d.fs.doGetSize(d.fd, d.fileno-1)
}
