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

// Package resolve implements the address resolution engine: address
// peeling, destination classification and transport/nexthop selection.
package resolve

// Flags is the bitwise-OR result word returned alongside a resolution.
// Exactly one of the CLASS_* bits is set on a successful (FLAG_FAIL-less)
// resolution; FLAG_ROUTED, FLAG_ERROR and FLAG_FAIL are independent of the
// class bits and of each other.
type Flags uint32

const (
	ClassLocal Flags = 1 << iota
	ClassAlias
	ClassVirtual
	ClassRelay
	ClassDefault

	_reserved1
	_reserved2
	_reserved3

	FlagRouted
	FlagError
	FlagFail
)

// Has reports whether all bits of mask are set in f.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

func (f Flags) String() string {
	names := []struct {
		bit  Flags
		name string
	}{
		{ClassLocal, "CLASS_LOCAL"},
		{ClassAlias, "CLASS_ALIAS"},
		{ClassVirtual, "CLASS_VIRTUAL"},
		{ClassRelay, "CLASS_RELAY"},
		{ClassDefault, "CLASS_DEFAULT"},
		{FlagRouted, "FLAG_ROUTED"},
		{FlagError, "FLAG_ERROR"},
		{FlagFail, "FLAG_FAIL"},
	}

	s := ""
	for _, n := range names {
		if f.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "0"
	}
	return s
}
