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

package config

import (
	"fmt"
	"io"

	parser "github.com/foxcpp/trivial-rewrite/framework/cfgparser"
)

// Node is the parsed configuration block or directive type used throughout
// config.Map. It is an alias for parser.Node so cfgparser stays the only
// package that knows about the on-disk grammar.
type Node = parser.Node

// NodeErr formats an error message, prefixing it with the node's source
// location when known.
func NodeErr(node Node, f string, args ...interface{}) error {
	if node.File == "" {
		return fmt.Errorf(f, args...)
	}
	return fmt.Errorf("%s:%d: %s", node.File, node.Line, fmt.Sprintf(f, args...))
}

// Read parses the configuration file contents into a tree of Node values.
func Read(r io.Reader, location string) ([]Node, error) {
	return parser.Read(r, location)
}
