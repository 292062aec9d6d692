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

package modconfig

import (
	"github.com/foxcpp/trivial-rewrite/framework/config"
	"github.com/foxcpp/trivial-rewrite/framework/module"
)

// TableDirective is a callback for use in config.Map.Custom. It does all
// work necessary to create a table module instance from a config directive
// with the following structure:
//
//	directive_name table_mod_name [inst_name] [{
//	  inline_table_config
//	}]
//
// It is how the relay_domains, virt_alias_doms, virt_mailbox_doms,
// relocated_maps and transport_maps directives reference their backing
// lookup tables.
func TableDirective(m *config.Map, node config.Node) (interface{}, error) {
	var tbl module.Table
	if err := ModuleFromNode("table", node.Args, node, m.Globals, &tbl); err != nil {
		return nil, err
	}
	return tbl, nil
}

// MultiTableDirective is like TableDirective but requires the referenced
// table to also support multi-value lookups (used by alias expansion tables
// where a single key can map to more than one address).
func MultiTableDirective(m *config.Map, node config.Node) (interface{}, error) {
	var tbl module.MultiTable
	if err := ModuleFromNode("table", node.Args, node, m.Globals, &tbl); err != nil {
		return nil, err
	}
	return tbl, nil
}
