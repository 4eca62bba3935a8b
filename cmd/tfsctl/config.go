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
	"github.com/spf13/viper"

	"github.com/nsumrak/Twilight-FS/internal/memflash"
	"github.com/nsumrak/Twilight-FS/tfs"
)

// deviceConfig is the geometry and image-path configuration resolved by
// viper from (in increasing precedence) defaults, a config file,
// TFS_-prefixed environment variables, and command flags. The storage
// engine never sees viper directly — it only ever receives a
// tfs.Geometry built from this struct.
type deviceConfig struct {
	Image      string `mapstructure:"image"`
	PageSize   int    `mapstructure:"page-size"`
	Blocks     int    `mapstructure:"blocks"`
	NameSize   int    `mapstructure:"name-size"`
	CacheSize  int    `mapstructure:"cache-size"`
	BaseOffset int64  `mapstructure:"base-offset"`
	LogLevel   string `mapstructure:"log-level"`
}

func loadConfig() (deviceConfig, error) {
	var cfg deviceConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("tfsctl: reading config: %w", err)
	}
	return cfg, nil
}

func (c deviceConfig) geometry() tfs.Geometry {
	return tfs.Geometry{
		PageSize:   c.PageSize,
		BlockCount: c.Blocks,
		NameSize:   c.NameSize,
		CacheSize:  c.CacheSize,
		BaseOffset: c.BaseOffset,
	}
}

func (c deviceConfig) applyLogLevel() {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("unrecognized log level, defaulting to info")
		return
	}
	log.SetLevel(lvl)
}

// openImage opens (or creates) the configured host-file-backed flash
// image and mounts a tfs.FS over it, formatting it first when mount
// reports no directory could be found and create is true.
func openImage(cfg deviceConfig, createIfMissing bool) (*tfs.FS, *memflash.Memory, error) {
	geom := cfg.geometry()
	size := geom.PageSize * geom.BlockCount

	img, err := memflash.Open(cfg.Image, size, geom.PageSize)
	if err != nil {
		return nil, nil, fmt.Errorf("tfsctl: opening image %q: %w", cfg.Image, err)
	}

	fs, err := tfs.New(img, geom)
	if err != nil {
		return nil, nil, err
	}

	ok, err := fs.Mount(0)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		if !createIfMissing {
			return nil, nil, tfs.ErrCorruptMount
		}
		log.WithField("image", cfg.Image).Info("no directory found, formatting")
		if err := fs.Format(); err != nil {
			return nil, nil, err
		}
	}
	return fs, img, nil
}

// formatImage (re)creates the image file at cfg.Image from scratch and
// writes a fresh directory into it, regardless of whatever it held
// before. Unlike openImage, it never needs a successful prior mount -
// a blank or corrupt image is exactly what format is for.
func formatImage(cfg deviceConfig) (*tfs.FS, error) {
	geom := cfg.geometry()
	size := geom.PageSize * geom.BlockCount

	img := memflash.New(size, geom.PageSize)
	img.SetPath(cfg.Image)

	fs, err := tfs.New(img, geom)
	if err != nil {
		return nil, err
	}
	if err := fs.Format(); err != nil {
		return nil, err
	}
	if err := img.Sync(); err != nil {
		return nil, fmt.Errorf("tfsctl: writing image %q: %w", cfg.Image, err)
	}
	return fs, nil
}
