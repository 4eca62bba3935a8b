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

// Command tfsd mounts a Twilight-FS volume image read-only and serves
// its directory and free space over HTTP for inspection, using the
// same TFS_-prefixed config layering as tfsctl.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nsumrak/Twilight-FS/internal/diag"
	"github.com/nsumrak/Twilight-FS/internal/memflash"
	"github.com/nsumrak/Twilight-FS/tfs"
)

func main() {
	flags := pflag.NewFlagSet("tfsd", pflag.ExitOnError)
	flags.String("image", "tfs.img", "path to the flash image file")
	flags.Int("page-size", tfs.DefaultPageSize, "flash page size in bytes")
	flags.Int("blocks", 256, "number of pages in the volume")
	flags.Int("name-size", tfs.DefaultNameSize, "fixed file name length, multiple of 4")
	flags.Int("cache-size", tfs.DefaultCacheSize, "shared read/write cache size in bytes")
	flags.Int64("base-offset", 0, "flash base address of block 0")
	flags.String("log-level", "info", "logrus level: trace, debug, info, warn, error")
	flags.String("listen", ":8080", "diagnostics HTTP listen address")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	if err := viper.BindPFlags(flags); err != nil {
		log.Fatal(err)
	}
	viper.SetEnvPrefix("TFS")
	viper.AutomaticEnv()

	var cfg struct {
		Image      string `mapstructure:"image"`
		PageSize   int    `mapstructure:"page-size"`
		Blocks     int    `mapstructure:"blocks"`
		NameSize   int    `mapstructure:"name-size"`
		CacheSize  int    `mapstructure:"cache-size"`
		BaseOffset int64  `mapstructure:"base-offset"`
		LogLevel   string `mapstructure:"log-level"`
		Listen     string `mapstructure:"listen"`
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatal(err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	geom := tfs.Geometry{
		PageSize:   cfg.PageSize,
		BlockCount: cfg.Blocks,
		NameSize:   cfg.NameSize,
		CacheSize:  cfg.CacheSize,
		BaseOffset: cfg.BaseOffset,
	}
	size := geom.PageSize * geom.BlockCount

	img, err := memflash.Open(cfg.Image, size, geom.PageSize)
	if err != nil {
		log.WithError(err).Fatal("opening image")
	}
	fs, err := tfs.New(img, geom)
	if err != nil {
		log.WithError(err).Fatal("building filesystem")
	}
	if ok, err := fs.Mount(0); err != nil {
		log.WithError(err).Fatal("mounting")
	} else if !ok {
		log.Fatal("no directory found on volume, run tfsctl format first")
	}

	srv := diag.New(fs)
	defer srv.Close()

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}

	go func() {
		log.WithField("listen", cfg.Listen).Info("serving diagnostics")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("diagnostics server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("diagnostics server shutdown")
	}
}
