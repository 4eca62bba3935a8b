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

import "errors"

// Sentinel errors for the handful of conditions the original firmware
// signalled only through a bool/int return. The engine keeps those
// bool/int results (short counts for ShortIO, -1 at EOF, false from
// Seek, Erase and Mount) and also returns ErrNoSpace, ErrNotFound,
// ErrBadHandle, ErrBadName and ErrBadTransition as error values; errors
// from the backing driver are passed through unchanged.
var (
	// ErrNoSpace is returned when the allocator cannot find an ERASED
	// block and reclaiming exactly one DIRTY block did not help.
	ErrNoSpace = errors.New("tfs: no space")

	// ErrNotFound is returned by lookups against a name with no live
	// directory entry.
	ErrNotFound = errors.New("tfs: file not found")

	// ErrBadHandle is returned for operations against a closed or
	// zero-value File.
	ErrBadHandle = errors.New("tfs: bad file handle")

	// ErrCorruptMount reports that no SYSTEM block carrying the magic
	// word could be found, the only hard mount failure. Mount itself
	// reports that case by returning false; tfsctl returns this error
	// for it.
	ErrCorruptMount = errors.New("tfs: no directory found on mount")

	// ErrBadName is returned for empty names or names starting with the
	// end-of-directory marker byte (0xFF).
	ErrBadName = errors.New("tfs: invalid file name")

	// ErrBadTransition is returned if code attempts to write a
	// descriptor transition that isn't a bit-clear of the current value.
	ErrBadTransition = errors.New("tfs: illegal descriptor transition")
)
