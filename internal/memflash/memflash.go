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

// Package memflash implements tfs.Driver over a plain byte slice, either
// held purely in RAM or backed by a host file so a volume image survives
// process restarts.
package memflash

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Memory is an in-RAM tfs.Driver. Reads and writes enforce the NOR
// bit-clear-only rule and word-alignment contracts that tfs.Driver
// documents, returning an error on violation since those are programmer
// errors, never a condition the engine itself is expected to trigger.
type Memory struct {
	data     []byte
	pageSize int
	path     string // non-empty when backed by a host file
}

// New allocates a blank (all-0xFF) image of size bytes, split into
// pages of pageSize bytes each.
func New(size, pageSize int) *Memory {
	m := &Memory{data: make([]byte, size), pageSize: pageSize}
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return m
}

// Open loads an existing host-file-backed image, or creates one of size
// bytes (erased to 0xFF) if path doesn't exist yet.
func Open(path string, size, pageSize int) (*Memory, error) {
	m := &Memory{pageSize: pageSize, path: path}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		m.data = make([]byte, size)
		for i := range m.data {
			m.data[i] = 0xFF
		}
		if err := os.WriteFile(path, m.data, 0o644); err != nil {
			return nil, err
		}
		log.WithField("path", path).Info("created new flash image")
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m.data = make([]byte, size)
	if _, err := f.Read(m.data); err != nil {
		return nil, err
	}
	log.WithField("path", path).Info("opened flash image")
	return m, nil
}

// SetPath attaches a backing file path to an in-RAM image created with
// New, so a later Sync writes it out.
func (m *Memory) SetPath(path string) {
	m.path = path
}

// Sync persists the image to its backing file, a no-op for pure in-RAM
// instances.
func (m *Memory) Sync() error {
	if m.path == "" {
		return nil
	}
	return os.WriteFile(m.path, m.data, 0o644)
}

func (m *Memory) checkAlign(addr int64, size int) error {
	if addr%4 != 0 || size%4 != 0 {
		return fmt.Errorf("memflash: unaligned access at %d, size %d", addr, size)
	}
	if addr < 0 || int(addr)+size > len(m.data) {
		return fmt.Errorf("memflash: access at %d, size %d out of bounds", addr, size)
	}
	return nil
}

// Read implements tfs.Driver.
func (m *Memory) Read(addr int64, dst []byte) error {
	if err := m.checkAlign(addr, len(dst)); err != nil {
		return err
	}
	copy(dst, m.data[addr:addr+int64(len(dst))])
	return nil
}

// Write implements tfs.Driver. As on NOR hardware, a 0xFF byte in src
// programs nothing and leaves the stored byte as it is; every other byte
// must only clear bits relative to the current content, otherwise Write
// returns an error.
func (m *Memory) Write(addr int64, src []byte) error {
	if err := m.checkAlign(addr, len(src)); err != nil {
		return err
	}
	for i, b := range src {
		cur := m.data[addr+int64(i)]
		if b == 0xFF {
			continue
		}
		if b&^cur != 0 {
			return fmt.Errorf(
				"memflash: illegal write at %d: %#02x would set a 1-bit over %#02x",
				addr+int64(i), b, cur)
		}
		m.data[addr+int64(i)] = b
	}
	return nil
}

// EraseSector implements tfs.Driver: resets one page to all-0xFF.
func (m *Memory) EraseSector(sector int) error {
	start := sector * m.pageSize
	end := start + m.pageSize
	if start < 0 || end > len(m.data) {
		return fmt.Errorf("memflash: sector %d out of bounds", sector)
	}
	for i := start; i < end; i++ {
		m.data[i] = 0xFF
	}
	log.WithField("sector", sector).Trace("erased sector")
	return nil
}
