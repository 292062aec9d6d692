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

package rewrite

import (
	"strings"
	"testing"

	parser "github.com/foxcpp/trivial-rewrite/framework/cfgparser"
	"github.com/foxcpp/trivial-rewrite/framework/module"
)

func TestRegisterAndInitModules(t *testing.T) {
	module.NoRun = true
	defer func() { module.NoRun = false }()

	conf := `
state_dir /tmp

table.static bootstrap_test_map {
	entry foo bar
}

resolve tcp://127.0.0.1:0 {
	myhostname myhost
	canonical_maps &bootstrap_test_map
}
`
	nodes, err := parser.Read(strings.NewReader(conf), "bootstrap_test.conf")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	globals, modBlocks, err := ReadGlobals(nodes)
	if err != nil {
		t.Fatalf("ReadGlobals failed: %v", err)
	}

	endpoints, mods, err := RegisterModules(globals, modBlocks)
	if err != nil {
		t.Fatalf("RegisterModules failed: %v", err)
	}
	if len(endpoints) != 1 {
		t.Fatalf("got %d endpoints, want 1", len(endpoints))
	}
	if len(mods) != 1 {
		t.Fatalf("got %d named modules, want 1", len(mods))
	}

	if err := InitModules(globals, endpoints, mods); err != nil {
		t.Fatalf("InitModules failed: %v", err)
	}

	if !module.Initialized["bootstrap_test_map"] {
		t.Error("expected the table referenced via &bootstrap_test_map to be marked initialized")
	}
}

func TestRegisterModulesRequiresAtLeastOneEndpoint(t *testing.T) {
	module.NoRun = true
	defer func() { module.NoRun = false }()

	nodes, err := parser.Read(strings.NewReader(`
table.static bootstrap_test_map_2 {
	entry foo bar
}
`), "bootstrap_test_2.conf")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	globals, modBlocks, err := ReadGlobals(nodes)
	if err != nil {
		t.Fatalf("ReadGlobals failed: %v", err)
	}

	if _, _, err := RegisterModules(globals, modBlocks); err == nil {
		t.Fatal("expected an error when no endpoint is configured")
	}
}
