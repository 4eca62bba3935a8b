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

// Driver is the external flash primitive contract the engine is built
// against. It is the only way the engine touches physical (or simulated)
// storage. Implementations live outside this package, e.g. internal/memflash
// for tests and host-backed images.
type Driver interface {
	// Read copies size bytes starting at addr into dst. addr is
	// 4-aligned and size is a multiple of 4. Must be synchronous and is
	// expected not to fail under normal conditions.
	Read(addr int64, dst []byte) error

	// Write programs src at addr. addr and len(src) are 4-aligned.
	// A 0xFF byte in src leaves the stored byte unchanged (the engine
	// pads partial-word writes with 0xFF); for every other byte the
	// caller guarantees its 1-bits are a subset of the current flash
	// content. Write must never set a 0-bit back to 1.
	Write(addr int64, src []byte) error

	// EraseSector resets an entire page to 0xFF.
	EraseSector(sector int) error
}

// Yielder is the cooperative yield hook invoked between per-sector erases
// during Format. Optional: a nil Yielder is treated as a no-op.
type Yielder interface {
	Yield()
}

// WearHint persists the wear-leveling hint across reboots. Optional: a
// nil WearHint is treated as a no-op, and wear leveling still works
// within a single mount, it just restarts its rotation at block 0 on the
// next mount instead of continuing where it left off.
type WearHint interface {
	SetLastErasedBlock(b BlockID)
}

// yielderFunc and wearHintFunc let callers pass plain functions where the
// interfaces are more ceremony than the caller needs.
type yielderFunc func()

func (f yielderFunc) Yield() { f() }

type wearHintFunc func(BlockID)

func (f wearHintFunc) SetLastErasedBlock(b BlockID) { f(b) }
