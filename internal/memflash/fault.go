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

package memflash

import (
	"errors"
)

// ErrInjectedFault is returned by a FaultInjector in place of the
// underlying driver's error once its write budget is exhausted.
var ErrInjectedFault = errors.New("memflash: injected fault")

// FaultInjector wraps a tfs.Driver and simulates power loss mid-write:
// after a configured number of successful word writes, the next Write
// is allowed to complete PARTIALLY (only its first few bytes actually
// committed, mirroring a flash program cut off mid-word-burst) before
// returning ErrInjectedFault, and every call after that fails outright.
// EraseSector and Read never trigger the fault themselves — real NOR
// erase is atomic from the driver's point of view, and reads don't
// mutate state — but, like Write, they fail once it has triggered.
type FaultInjector struct {
	driver    *Memory
	budget    int // successful word-writes remaining before the fault
	partial   int // bytes of the fault-triggering write that still land
	triggered bool
}

// NewFaultInjector allows budget further 4-byte words to be written
// successfully; the write that would exceed the budget instead commits
// only partial of its own bytes (rounded down to a multiple of 4) before
// reporting ErrInjectedFault. Every subsequent call fails immediately.
func NewFaultInjector(driver *Memory, budget, partial int) *FaultInjector {
	return &FaultInjector{driver: driver, budget: budget, partial: partial &^ 3}
}

func (f *FaultInjector) Read(addr int64, dst []byte) error {
	if f.triggered {
		return ErrInjectedFault
	}
	return f.driver.Read(addr, dst)
}

func (f *FaultInjector) Write(addr int64, src []byte) error {
	if f.triggered {
		return ErrInjectedFault
	}
	words := len(src) / 4
	if words <= f.budget {
		f.budget -= words
		return f.driver.Write(addr, src)
	}

	f.triggered = true
	n := f.partial
	if n > len(src) {
		n = len(src)
	}
	if n > 0 {
		if err := f.driver.Write(addr, src[:n]); err != nil {
			return err
		}
	}
	return ErrInjectedFault
}

func (f *FaultInjector) EraseSector(sector int) error {
	if f.triggered {
		return ErrInjectedFault
	}
	return f.driver.EraseSector(sector)
}
