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
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nsumrak/Twilight-FS/tfs"
)

// newWatchCmd mirrors a host directory into the volume: every create or
// write under dir is reflected as a Create+Write on the matching TFS
// file, keyed by base name truncated to the volume's name size.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "mirror writes under a host directory into the volume",
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

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Add(args[0]); err != nil {
				return err
			}
			log.WithField("dir", args[0]).Info("watching for changes")

			for ev := range w.Events {
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := mirrorFile(fs, ev.Name); err != nil {
					log.WithError(err).WithField("path", ev.Name).Warn("mirror failed")
					continue
				}
				if err := img.Sync(); err != nil {
					log.WithError(err).Warn("sync failed")
				}
			}
			return nil
		},
	}
	return cmd
}

func mirrorFile(fs *tfs.FS, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)

	f, err := fs.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.CloseFixed(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"name": name, "bytes": len(data)}).Debug("mirrored file")
	return nil
}
