/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package ctl implements the trivial-rewrite CLI subcommands: "run" starts
// the resolver daemon, "check-config" and "table-lookup" are maintenance
// verbs that reuse the same configuration-loading path without starting a
// listener.
package ctl

import (
	"fmt"
	"os"
	"path/filepath"

	rewrite "github.com/foxcpp/trivial-rewrite"
	rwcli "github.com/foxcpp/trivial-rewrite/internal/cli"
	"github.com/urfave/cli/v2"
)

func init() {
	rwcli.AddSubcommand(&cli.Command{
		Name:  "run",
		Usage: "start the trivial-rewrite daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to configuration file",
				Value: filepath.Join(rewrite.ConfigDirectory, "trivial-rewrite.conf"),
			},
			&cli.StringFlag{Name: "log", Usage: "default logging target(s)", Value: "stderr"},
			&cli.StringFlag{Name: "libexec", Usage: "path to the libexec directory", Value: rewrite.DefaultLibexecDirectory},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging early"},
			&cli.BoolFlag{Name: "v", Usage: "print version and build metadata, then exit"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("v") {
				fmt.Println("trivial-rewrite", rewrite.BuildInfo())
				return nil
			}

			os.Exit(rewrite.Run(rewrite.RunOptions{
				ConfigPath: c.String("config"),
				LogTargets: c.String("log"),
				Libexec:    c.String("libexec"),
				Debug:      c.Bool("debug"),
			}))
			return nil
		},
	})
}
