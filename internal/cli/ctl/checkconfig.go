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

package ctl

import (
	"fmt"
	"os"

	rewrite "github.com/foxcpp/trivial-rewrite"
	parser "github.com/foxcpp/trivial-rewrite/framework/cfgparser"
	"github.com/foxcpp/trivial-rewrite/framework/hooks"
	"github.com/foxcpp/trivial-rewrite/framework/module"
	rwcli "github.com/foxcpp/trivial-rewrite/internal/cli"
	"github.com/urfave/cli/v2"
)

func init() {
	rwcli.AddSubcommand(&cli.Command{
		Name:      "check-config",
		Usage:     "parse and bind the configuration, then exit",
		ArgsUsage: "CONFIG",
		Action:    checkConfig,
	})
}

// checkConfig walks the same path as Run (parse, bind globals, construct
// and Init every module) but sets module.NoRun first, so no endpoint binds
// a listener - suitable for init-script or packaging sanity checks.
func checkConfig(c *cli.Context) error {
	module.NoRun = true
	defer hooks.RunHooks(hooks.EventShutdown)

	cfgPath := c.Args().First()
	if cfgPath == "" {
		return cli.Exit("Error: path to configuration file is required", 2)
	}

	f, err := os.Open(cfgPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: failed to open config: %v", err), 1)
	}
	defer f.Close()

	cfgNodes, err := parser.Read(f, cfgPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: failed to parse config: %v", err), 1)
	}

	globals, modBlocks, err := rewrite.ReadGlobals(cfgNodes)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	if err := rewrite.InitDirs(); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	endpoints, mods, err := rewrite.RegisterModules(globals, modBlocks)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	if err := rewrite.InitModules(globals, endpoints, mods); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	fmt.Fprintf(os.Stderr, "%s: configuration OK (%d endpoint(s), %d module block(s))\n", cfgPath, len(endpoints), len(mods))
	return nil
}
