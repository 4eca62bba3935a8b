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

// FS is a mounted Twilight filesystem instance: the block allocator, the
// shared cache, and the resident directory handle, bound to one Driver
// and one Geometry (§9, "process-wide singleton" re-architected as an
// owned value). File handles borrow from it through their public
// primitives only.
type FS struct {
	geom   Geometry
	driver Driver
	wear   WearHint
	yield  Yielder

	alloc *allocator
	cache *cache

	dir        *cursor
	nextFile   int
	tombstones int
}

type fsConfig struct {
	wear     WearHint
	yielder  Yielder
	mirrored bool
}

// Option configures optional collaborators of a New FS.
type Option func(*fsConfig)

// WithWearHint persists the wear-leveling cursor across mounts.
func WithWearHint(w WearHint) Option {
	return func(c *fsConfig) { c.wear = w }
}

// WithYielder installs the cooperative yield hook invoked between
// per-sector erases during Format.
func WithYielder(y Yielder) Option {
	return func(c *fsConfig) { c.yielder = y }
}

// WithYielderFunc is WithYielder for callers who'd rather pass a plain
// function than implement Yielder.
func WithYielderFunc(f func()) Option {
	return WithYielder(yielderFunc(f))
}

// WithWearHintFunc is WithWearHint for callers who'd rather pass a
// plain function than implement WearHint.
func WithWearHintFunc(f func(BlockID)) Option {
	return WithWearHint(wearHintFunc(f))
}

// WithoutBlockMirror disables the in-RAM descriptor mirror, trading one
// flash read per lookup for a lower RAM floor.
func WithoutBlockMirror() Option {
	return func(c *fsConfig) { c.mirrored = false }
}

// New builds an unmounted FS bound to driver and geom. Call Mount or
// Format before using it.
func New(driver Driver, geom Geometry, opts ...Option) (*FS, error) {
	if err := geom.validate(); err != nil {
		return nil, err
	}
	cfg := fsConfig{mirrored: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	fs := &FS{
		geom:   geom,
		driver: driver,
		wear:   cfg.wear,
		yield:  cfg.yielder,
	}
	fs.cache = newCache(driver, geom)
	fs.alloc = newAllocator(driver, geom, cfg.wear, cfg.mirrored)
	return fs, nil
}

// walkChain visits every block of the chain rooted at first, from head to
// tail inclusive, stopping after the block whose own descriptor carries
// the sentinel successor.
func (fs *FS) walkChain(first BlockID, visit func(BlockID) error) error {
	b := first
	for {
		if err := visit(b); err != nil {
			return err
		}
		d, err := fs.alloc.next(b)
		if err != nil {
			return err
		}
		if !d.Successor.Valid() {
			return nil
		}
		b = d.Successor
	}
}

// writeMaskedByte0 zeroes only the first byte of the 4-byte-aligned word
// at (block, offset), leaving the other three bytes 0xFF — the single
// atomic write behind both tombstoning a directory slot and repairing an
// interrupted create (§4.4, §7).
func (fs *FS) writeMaskedByte0(block BlockID, offset int) error {
	if err := fs.cache.flush(); err != nil {
		return err
	}
	w := [4]byte{0x00, 0xFF, 0xFF, 0xFF}
	if err := fs.driver.Write(fs.geom.addr(block, offset), w[:]); err != nil {
		return err
	}
	fs.cache.invalidate()
	return nil
}

// dirEntrySealSize writes only the size half of fileNo's descriptor word,
// leaving first_block untouched — the masked write close_fixed relies on
// to seal a file's length atomically.
func (fs *FS) dirEntrySealSize(fileNo int, size int16) error {
	pos := 4 + fileNo*fs.geom.FileDescSize() + fs.geom.NameSize
	if _, err := fs.dir.Seek(pos); err != nil {
		return err
	}
	if err := fs.cache.flush(); err != nil {
		return err
	}
	u := uint16(size)
	w := [4]byte{0xFF, 0xFF, byte(u), byte(u >> 8)}
	if err := fs.driver.Write(fs.geom.addr(fs.dir.cur, fs.dir.offset), w[:]); err != nil {
		return err
	}
	fs.cache.invalidate()
	return nil
}

// findVariableEnd recovers the logical end of an unsealed file's last
// block by scanning backward in CacheSize chunks for the highest
// non-0xFF byte. Unlike the original firmware, the final [0, CacheSize)
// chunk is scanned too — otherwise short variable-length files (whose
// only non-0xFF bytes fall in that chunk) would report size 0 after a
// remount, breaking P5.
func (fs *FS) findVariableEnd(block BlockID) (int, error) {
	if err := fs.cache.flush(); err != nil {
		return 0, err
	}
	fs.cache.invalidate()
	buf := make([]byte, fs.geom.CacheSize)
	first := true
	for offs := fs.geom.PageSize - fs.geom.CacheSize; offs >= 0; offs -= fs.geom.CacheSize {
		if err := fs.driver.Read(fs.geom.addr(block, offs), buf); err != nil {
			return 0, err
		}
		limit := fs.geom.CacheSize
		if first {
			limit -= 2
			first = false
		}
		for i := limit - 1; i >= 0; i-- {
			if buf[i] != 0xFF {
				return offs + i + 1, nil
			}
		}
	}
	return 0, nil
}

// initDirFile adopts fb as the resident directory head: it positions the
// directory cursor, walks every slot to discover next_file and the
// tombstone count, repairs slots left by an interrupted create
// (first_block still 0xFFFF), and, when checkFS is set, marks every
// block reachable from any live chain and reclaims anything left over as
// lost (§4.5 steps 3-4).
func (fs *FS) initDirFile(fb BlockID, checkFS bool) error {
	fs.dir = &cursor{fs: fs, first: fb, cur: fb, curIndex: 0, offset: 4, last: fb, open: true}
	fs.tombstones = 0
	// read the whole chain: the end-of-directory slot, not lastSize, ends
	// the walk below, which then records the real append position.
	if err := fs.walkChain(fb, func(b BlockID) error {
		fs.dir.last = b
		return nil
	}); err != nil {
		return err
	}
	fs.dir.lastSize = fs.geom.BlockSize()

	var marker []bool
	if checkFS {
		marker = make([]bool, fs.geom.BlockCount)
	}

	descSize := fs.geom.FileDescSize()
	buf := make([]byte, descSize)
	for fileno := 0; ; fileno++ {
		blk := fs.dir.cur
		off := fs.dir.offset
		n, err := fs.dir.Read(buf)
		if err != nil {
			return err
		}
		if n < len(buf) {
			fs.dir.last, fs.dir.lastSize = blk, off
			fs.nextFile = fileno
			break
		}
		fd := decodeFileDesc(buf, fs.geom.NameSize)
		switch {
		case fd.isTombstone():
			fs.tombstones++
		case fd.isEnd():
			fs.dir.last, fs.dir.lastSize = blk, off
			fs.nextFile = fileno
			return fs.reclaimLost(fb, marker, checkFS)
		case fd.firstBlock == noBlock:
			if err := fs.writeMaskedByte0(blk, off); err != nil {
				return err
			}
			fs.tombstones++
		default:
			if marker != nil {
				if err := fs.walkChain(fd.firstBlock, func(b BlockID) error {
					marker[b] = true
					return nil
				}); err != nil {
					return err
				}
			}
		}
	}
	return fs.reclaimLost(fb, marker, checkFS)
}

func (fs *FS) reclaimLost(dirHead BlockID, marker []bool, checkFS bool) error {
	if !checkFS {
		return nil
	}
	if err := fs.walkChain(dirHead, func(b BlockID) error {
		marker[b] = true
		return nil
	}); err != nil {
		return err
	}
	for i := 0; i < fs.geom.BlockCount; i++ {
		if marker[i] {
			continue
		}
		b := BlockID(i)
		d, err := fs.alloc.next(b)
		if err != nil {
			return err
		}
		if d.Flag == FlagNormal {
			if err := fs.alloc.retire(b); err != nil {
				return err
			}
		}
	}
	fs.cache.invalidate()
	return nil
}

// Mount scans every block's descriptor, locates the SYSTEM block
// carrying the magic word as the directory head, retires any other
// SYSTEM blocks left by an interrupted defragmentation, and repairs the
// directory (§4.5). Returns false if no directory head could be found —
// the only hard mount failure.
func (fs *FS) Mount(lastErasedHint BlockID) (bool, error) {
	fs.alloc.lastErased = lastErasedHint
	fs.alloc.freeBlocks = 0

	var dirHead BlockID
	haveDir := false
	for i := 0; i < fs.geom.BlockCount; i++ {
		b := BlockID(i)
		var w [4]byte
		if err := fs.driver.Read(fs.geom.descAddr(b), w[:]); err != nil {
			return false, err
		}
		d := decodeDescWord(w[:])
		if fs.alloc.mirror != nil {
			fs.alloc.mirror[i] = d
		}
		switch d.Flag {
		case FlagSystem:
			var head [4]byte
			if err := fs.driver.Read(fs.geom.addr(b, 0), head[:]); err != nil {
				return false, err
			}
			magic := uint32(head[0]) | uint32(head[1])<<8 | uint32(head[2])<<16 | uint32(head[3])<<24
			if magic == Magic && !haveDir {
				dirHead = b
				haveDir = true
			} else {
				if err := fs.alloc.writeDescriptor(b, Descriptor{Flag: FlagDirty, Successor: 0}); err != nil {
					return false, err
				}
				fs.alloc.freeBlocks++
			}
		case FlagDirty, FlagErased:
			fs.alloc.freeBlocks++
		}
	}
	if !haveDir {
		log.Warn("mount: no directory head found")
		return false, nil
	}
	fs.cache.invalidate()
	if err := fs.initDirFile(dirHead, true); err != nil {
		return false, err
	}
	log.WithFields(log.Fields{"dirHead": dirHead, "freeBlocks": fs.alloc.freeBlocks}).Info("mounted")
	return true, nil
}

// Format erases every sector, yielding between each, then lays down a
// fresh directory rooted at block 0 (§4.5).
func (fs *FS) Format() error {
	for i := 0; i < fs.geom.BlockCount; i++ {
		if fs.yield != nil {
			fs.yield.Yield()
		}
		if err := fs.driver.EraseSector(i); err != nil {
			return err
		}
	}
	if fs.alloc.mirror != nil {
		for i := range fs.alloc.mirror {
			fs.alloc.mirror[i] = erasedDescriptor
		}
	}
	if err := fs.alloc.writeDescriptor(0, Descriptor{Flag: FlagSystem, Successor: Sentinel}); err != nil {
		return err
	}
	var w [4]byte
	m := Magic
	w[0], w[1], w[2], w[3] = byte(m), byte(m>>8), byte(m>>16), byte(m>>24)
	if err := fs.driver.Write(fs.geom.addr(0, 0), w[:]); err != nil {
		return err
	}
	fs.alloc.freeBlocks = fs.geom.BlockCount - 1
	fs.cache.invalidate()
	log.Info("formatted")
	return fs.initDirFile(0, false)
}

func validName(name string) error {
	if name == "" || name[0] == 0xFF {
		return ErrBadName
	}
	return nil
}

// Open looks up name and returns a handle positioned at its logical
// start (for an existing file) or at a freshly created, empty chain when
// create is true and name is absent.
func (fs *FS) Open(name string, create bool) (*File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	fd, fileno, err := fs.findFileDesc(name)
	if err != nil {
		return nil, err
	}
	if fileno == -1 {
		if !create {
			return nil, ErrNotFound
		}
		c, err := fs.doCreate(newFileDesc(name, fs.geom.NameSize))
		if err != nil {
			return nil, err
		}
		return &File{c: c}, nil
	}
	c, err := fs.openChain(fd, fileno)
	if err != nil {
		return nil, err
	}
	return &File{c: c}, nil
}

// Create unconditionally replaces any existing file named name with a
// fresh, empty one — distinct from Open(name, true), which only creates
// when name is absent.
func (fs *FS) Create(name string) (*File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := fs.Remove(name); err != nil {
		return nil, err
	}
	c, err := fs.doCreate(newFileDesc(name, fs.geom.NameSize))
	if err != nil {
		return nil, err
	}
	return &File{c: c}, nil
}

// Remove tombstones name's directory slot, then retires its chain's
// blocks one at a time from the tail inward so an interrupted remove
// leaves the chain in a state mount repair can finish (§4.4). A no-op,
// not an error, when name doesn't exist.
func (fs *FS) Remove(name string) error {
	fd, fileno, err := fs.findFileDesc(name)
	if err != nil {
		return err
	}
	if fileno == -1 {
		return nil
	}
	// findFileDesc leaves the directory cursor past the matched slot,
	// positioned at the start of the next one (it just read the match
	// to decode it) - re-seek to the matched slot itself before
	// tombstoning it, the way dirEntrySealSize already does for
	// CloseFixed.
	if _, err := fs.dir.Seek(4 + fileno*fs.geom.FileDescSize()); err != nil {
		return err
	}
	if err := fs.writeMaskedByte0(fs.dir.cur, fs.dir.offset); err != nil {
		return err
	}
	fs.tombstones++

	for {
		var last BlockID
		hasLast := false
		b := fd.firstBlock
		for {
			d, err := fs.alloc.next(b)
			if err != nil {
				return err
			}
			if d.Flag != FlagNormal {
				break
			}
			last = b
			hasLast = true
			b = d.Successor
			if !b.Valid() {
				break
			}
		}
		if !hasLast {
			break
		}
		if err := fs.alloc.retire(last); err != nil {
			return err
		}
	}
	log.WithField("file", name).Debug("removed")
	return nil
}

// Exists reports whether name has a live directory entry. Fixes the
// original's slot-0 bug (find_file_desc returning 0 for slot 0 was
// treated as falsy) per spec's own Open Question resolution.
func (fs *FS) Exists(name string) bool {
	_, fileno, err := fs.findFileDesc(name)
	return err == nil && fileno != -1
}

// GetSize returns name's logical length, recovering it by scan for
// unsealed files.
func (fs *FS) GetSize(name string) (int, error) {
	fd, fileno, err := fs.findFileDesc(name)
	if err != nil {
		return -1, err
	}
	if fileno == -1 {
		return -1, ErrNotFound
	}
	return fs.doGetSize(fd, fileno)
}

func (fs *FS) doGetSize(fd fileDesc, fileno int) (int, error) {
	c, err := fs.openChain(fd, fileno)
	if err != nil {
		return -1, err
	}
	if _, err := c.Seek(SeekEnd); err != nil {
		return -1, err
	}
	return c.Position(), nil
}

// Freespace returns the number of bytes immediately allocatable: every
// ERASED or DIRTY block's data area.
func (fs *FS) Freespace() int {
	return fs.alloc.freeBlocks * fs.geom.BlockSize()
}

// ProcessErase reclaims at most one DIRTY block, returning false when
// none was available.
func (fs *FS) ProcessErase() (bool, error) {
	return fs.alloc.processErase()
}

// NewDir returns a fresh directory iterator positioned before the first
// live entry.
func (fs *FS) NewDir() *Dir {
	return &Dir{fs: fs}
}
