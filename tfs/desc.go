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

// BlockID identifies one page/block by index. Sentinel denotes "no
// successor" — the tail of a chain.
type BlockID uint16

// Sentinel is the all-ones 14-bit successor value marking a chain tail.
const Sentinel BlockID = 0x3FFF

// MaxBlocks is the largest block count the 14-bit successor field can
// address.
const MaxBlocks = 0x3FFE

// Valid reports whether b is a real block reference rather than the
// sentinel.
func (b BlockID) Valid() bool {
	return b != Sentinel
}

// Flag is the 2-bit block lifecycle state stored in the top bits of a
// descriptor.
type Flag uint8

const (
	FlagDirty  Flag = 0
	FlagNormal Flag = 1
	FlagSystem Flag = 2
	FlagErased Flag = 3
)

func (f Flag) String() string {
	switch f {
	case FlagDirty:
		return "DIRTY"
	case FlagNormal:
		return "NORMAL"
	case FlagSystem:
		return "SYSTEM"
	case FlagErased:
		return "ERASED"
	default:
		return "UNKNOWN"
	}
}

// Descriptor is the 16-bit block trailer: a flag and a successor block.
// Encode/Decode match the on-flash bit layout of §3: flag in bits 14-15,
// successor in bits 0-13.
type Descriptor struct {
	Flag      Flag
	Successor BlockID
}

// erasedDescriptor is the descriptor of a freshly erased page: all bits
// 1, i.e. flag ERASED and successor Sentinel.
var erasedDescriptor = Descriptor{Flag: FlagErased, Successor: Sentinel}

func (d Descriptor) Encode() uint16 {
	return uint16(d.Flag)<<14 | uint16(d.Successor&0x3FFF)
}

func DecodeDescriptor(v uint16) Descriptor {
	return Descriptor{Flag: Flag(v >> 14), Successor: BlockID(v & 0x3FFF)}
}

// legalTransition enforces the bit-clear-only rule of §3 in one place:
// every 1-bit of the new 16-bit encoding must already be a 1-bit in the
// old one. This single subset check admits every named transition of §3
// (ERASED→{SYSTEM,NORMAL,DIRTY}, SYSTEM→DIRTY, NORMAL→DIRTY, sentinel
// successor→real block) and rejects any write that would set a bit. It
// is not limited to that list: any other change that only clears bits,
// such as a real successor losing bits, passes too, while SYSTEM→NORMAL
// (10→01) is rejected.
func legalTransition(from, to Descriptor) bool {
	return to.Encode()&^from.Encode() == 0
}
