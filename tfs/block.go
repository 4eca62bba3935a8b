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

// allocator owns the block table and the wear-leveling search order of
// §4.1. It optionally mirrors every block's descriptor in RAM; when it
// does, lookups are O(1), otherwise each one costs a 4-byte flash read.
type allocator struct {
	driver     Driver
	geom       Geometry
	wear       WearHint
	mirror     []Descriptor // nil when not mirrored
	lastErased BlockID
	freeBlocks int
}

func newAllocator(driver Driver, geom Geometry, wear WearHint, mirrored bool) *allocator {
	a := &allocator{driver: driver, geom: geom, wear: wear}
	if mirrored {
		a.mirror = make([]Descriptor, geom.BlockCount)
	}
	return a
}

func (a *allocator) descWord(d Descriptor) [4]byte {
	var w [4]byte
	w[0], w[1] = 0xFF, 0xFF
	v := d.Encode()
	w[2] = byte(v >> 8)
	w[3] = byte(v)
	return w
}

func decodeDescWord(w []byte) Descriptor {
	return DecodeDescriptor(uint16(w[2])<<8 | uint16(w[3]))
}

// readDescriptor returns the descriptor currently stored at b, from the
// mirror if one is kept, otherwise via a direct flash read.
func (a *allocator) readDescriptor(b BlockID) (Descriptor, error) {
	if a.mirror != nil {
		return a.mirror[b], nil
	}
	var w [4]byte
	if err := a.driver.Read(a.geom.descAddr(b), w[:]); err != nil {
		return Descriptor{}, err
	}
	return decodeDescWord(w[:]), nil
}

// writeDescriptor programs b's descriptor. The first two bytes of the
// word are always 0xFF, so this only ever clears bits relative to the
// erased (or previously written, bit-compatible) state. legalTransition
// is checked here so every call site gets the bit-clear-only guarantee
// for free, rather than trusting each caller individually.
func (a *allocator) writeDescriptor(b BlockID, d Descriptor) error {
	from, err := a.readDescriptor(b)
	if err != nil {
		return err
	}
	if !legalTransition(from, d) {
		return ErrBadTransition
	}
	w := a.descWord(d)
	if err := a.driver.Write(a.geom.descAddr(b), w[:]); err != nil {
		return err
	}
	if a.mirror != nil {
		a.mirror[b] = d
	}
	return nil
}

// next returns the descriptor currently stored at b. Callers follow a
// chain by reading Successor off the result and continuing from there;
// Flag describes b itself, not its successor.
func (a *allocator) next(b BlockID) (Descriptor, error) {
	return a.readDescriptor(b)
}

// findWithFlag performs the rotational wear-leveling scan of §4.1: start
// at (lastErased+1) mod N, wrap around, return the first block whose own
// descriptor carries flag.
func (a *allocator) findWithFlag(flag Flag) (BlockID, bool, error) {
	n := a.geom.BlockCount
	start := int(a.lastErased) + 1
	for i := 0; i < n; i++ {
		b := BlockID((start + i) % n)
		d, err := a.readDescriptor(b)
		if err != nil {
			return 0, false, err
		}
		if d.Flag == flag {
			return b, true, nil
		}
	}
	return 0, false, nil
}

// allocate returns a newly allocated block initialized with descriptor
// (Sentinel, flag). If no ERASED block exists, it reclaims exactly one
// DIRTY block and retries once; a second failure is ErrNoSpace.
func (a *allocator) allocate(flag Flag) (BlockID, error) {
	b, ok, err := a.findWithFlag(FlagErased)
	if err != nil {
		return 0, err
	}
	if !ok {
		erased, err := a.processErase()
		if err != nil {
			return 0, err
		}
		if !erased {
			return 0, ErrNoSpace
		}
		b, ok, err = a.findWithFlag(FlagErased)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrNoSpace
		}
	}
	if err := a.writeDescriptor(b, Descriptor{Flag: flag, Successor: Sentinel}); err != nil {
		return 0, err
	}
	a.freeBlocks--
	log.WithFields(log.Fields{"block": b, "flag": flag}).Trace("allocated block")
	return b, nil
}

// chainTo links the sentinel tail prev to next, advancing prev's flag to
// NORMAL. Only valid when prev was previously a sentinel-terminated tail.
func (a *allocator) chainTo(prev, next BlockID) error {
	if err := a.writeDescriptor(prev, Descriptor{Flag: FlagNormal, Successor: next}); err != nil {
		return err
	}
	log.WithFields(log.Fields{"from": prev, "to": next}).Trace("chained block")
	return nil
}

// retire sets b's descriptor to (0, DIRTY). Only called on blocks not
// currently a member of any live chain.
func (a *allocator) retire(b BlockID) error {
	if err := a.writeDescriptor(b, Descriptor{Flag: FlagDirty, Successor: 0}); err != nil {
		return err
	}
	a.freeBlocks++
	log.WithField("block", b).Debug("retired block")
	return nil
}

// processErase erases exactly one DIRTY block, if any exists, and
// persists the wear-leveling hint. Unlike the original firmware (which
// left the in-RAM mirror stale until the next mount), the mirror is
// updated to ERASED here — otherwise a mirrored allocator could never
// rediscover a block it just reclaimed, breaking P3/P6/scenario 6.
func (a *allocator) processErase() (bool, error) {
	b, ok, err := a.findWithFlag(FlagDirty)
	if err != nil || !ok {
		return false, err
	}
	sector := int(b)
	if err := a.driver.EraseSector(sector); err != nil {
		return false, err
	}
	if a.mirror != nil {
		a.mirror[b] = erasedDescriptor
	}
	a.lastErased = b
	if a.wear != nil {
		a.wear.SetLastErasedBlock(b)
	}
	log.WithField("block", b).Debug("erased dirty block")
	return true, nil
}
