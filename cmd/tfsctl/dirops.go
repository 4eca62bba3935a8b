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

package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nsumrak/Twilight-FS/tfs"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "list the files on the volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs, _, err := openImage(cfg, false)
			if err != nil {
				return err
			}

			d := fs.NewDir()
			for {
				ok, err := d.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				size, err := d.Size()
				if err != nil {
					return err
				}
				state := "fixed"
				if !d.IsFixed() {
					state = "open"
				}
				fmt.Printf("%-20s %8d  %s\n", d.Name(), size, state)
			}
			return nil
		},
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat NAME",
		Short: "print a single file's size and existence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs, _, err := openImage(cfg, false)
			if err != nil {
				return err
			}
			if !fs.Exists(args[0]) {
				return tfs.ErrNotFound
			}
			size, err := fs.GetSize(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d bytes\n", args[0], size)
			return nil
		},
	}
}

func newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "erase every reclaimable dirty block",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs, img, err := openImage(cfg, false)
			if err != nil {
				return err
			}
			defer img.Sync()

			erased := 0
			for {
				did, err := fs.ProcessErase()
				if err != nil {
					return err
				}
				if !did {
					break
				}
				erased++
			}
			log.WithField("erased", erased).Info("garbage collection done")
			fmt.Printf("erased %d block(s), %d bytes free\n", erased, fs.Freespace())
			return nil
		},
	}
}

func newFsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "re-run mount consistency repair and report the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs, img, err := openImage(cfg, false)
			if err != nil {
				return err
			}
			defer img.Sync()
			fmt.Printf("mount ok, %d bytes free\n", fs.Freespace())
			return nil
		},
	}
}
