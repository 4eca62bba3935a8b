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

// Command tfsctl operates on a Twilight-FS volume image from the shell:
// format, create/write/read files, list the directory, run garbage
// collection, re-check mount consistency, and watch a host directory for
// changes to mirror into the image.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nsumrak/Twilight-FS/tfs"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tfsctl",
		Short: "inspect and manipulate a Twilight-FS volume image",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.applyLogLevel()
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("image", "tfs.img", "path to the flash image file")
	flags.Int("page-size", tfs.DefaultPageSize, "flash page size in bytes")
	flags.Int("blocks", 256, "number of pages in the volume")
	flags.Int("name-size", tfs.DefaultNameSize, "fixed file name length, multiple of 4")
	flags.Int("cache-size", tfs.DefaultCacheSize, "shared read/write cache size in bytes")
	flags.Int64("base-offset", 0, "flash base address of block 0")
	flags.String("log-level", "info", "logrus level: trace, debug, info, warn, error")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("TFS")
	viper.AutomaticEnv()
	viper.SetConfigName("tfsctl")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "tfsctl: warning: %v\n", err)
		}
	}

	cmd.AddCommand(
		newFormatCmd(),
		newCreateCmd(),
		newWriteCmd(),
		newReadCmd(),
		newRmCmd(),
		newLsCmd(),
		newStatCmd(),
		newGCCmd(),
		newFsckCmd(),
		newWatchCmd(),
	)
	return cmd
}
