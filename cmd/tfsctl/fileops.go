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
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nsumrak/Twilight-FS/tfs"
)

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "erase the image and lay down a fresh directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := formatImage(cfg); err != nil {
				return err
			}
			log.WithField("image", cfg.Image).Info("formatted")
			return nil
		},
	}
}

func newCreateCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "create (or replace) a file, reading its contents from stdin or --input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs, img, err := openImage(cfg, true)
			if err != nil {
				return err
			}
			defer img.Sync()

			data, err := readInput(input)
			if err != nil {
				return err
			}

			f, err := fs.Create(args[0])
			if err != nil {
				return err
			}
			if _, err := f.Write(data); err != nil {
				return err
			}
			return f.CloseFixed()
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "file to read content from (default: stdin)")
	return cmd
}

func newWriteCmd() *cobra.Command {
	var input string
	var fixed bool
	cmd := &cobra.Command{
		Use:   "write NAME",
		Short: "append to an existing or newly opened file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs, img, err := openImage(cfg, true)
			if err != nil {
				return err
			}
			defer img.Sync()

			data, err := readInput(input)
			if err != nil {
				return err
			}

			f, err := fs.Open(args[0], true)
			if err != nil {
				return err
			}
			// seeking past the current end always lands exactly at EOF;
			// the short-seek it reports back is expected, not an error.
			if _, err := f.Seek(tfs.SeekEnd); err != nil {
				return err
			}
			if _, err := f.Write(data); err != nil {
				return err
			}
			if fixed {
				return f.CloseFixed()
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "file to read content from (default: stdin)")
	cmd.Flags().BoolVar(&fixed, "fixed", false, "seal the file at its new length on close")
	return cmd
}

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read NAME",
		Short: "print a file's contents to stdout",
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
			f, err := fs.Open(args[0], false)
			if err != nil {
				return err
			}
			defer f.Close()

			buf := make([]byte, cfg.CacheSize)
			for {
				n, err := f.Read(buf)
				if n > 0 {
					if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
						return werr
					}
				}
				if n < 0 || err != nil {
					break
				}
			}
			return nil
		},
	}
	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME",
		Short: "remove a file",
		Args:  cobra.ExactArgs(1),
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
			return fs.Remove(args[0])
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
