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
	"context"
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
		Name:      "table-lookup",
		Usage:     "look a key up in a configured table, bypassing the resolver engine",
		ArgsUsage: "CONFIG TABLE-BLOCK KEY",
		Action:    tableLookup,
	})
}

// tableLookup loads the configuration exactly like check-config, then
// fetches one named module block and runs a single Lookup against it. It
// exists so a table's contents can be debugged without going through the
// wire protocol or the classification cascade.
func tableLookup(c *cli.Context) error {
	module.NoRun = true
	defer hooks.RunHooks(hooks.EventShutdown)

	args := c.Args()
	if args.Len() != 3 {
		return cli.Exit("Error: expected exactly 3 arguments: CONFIG TABLE-BLOCK KEY", 2)
	}
	cfgPath, blockName, key := args.Get(0), args.Get(1), args.Get(2)

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

	if _, _, err := rewrite.RegisterModules(globals, modBlocks); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	inst, err := module.GetInstance(blockName)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	tbl, ok := inst.(module.Table)
	if !ok {
		return cli.Exit(fmt.Sprintf("Error: configuration block %s is not a table", blockName), 2)
	}

	val, ok, err := tbl.Lookup(context.Background(), key)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: lookup failed: %v", err), 1)
	}
	if !ok {
		fmt.Println("(no match)")
		return nil
	}
	fmt.Println(val)
	return nil
}
