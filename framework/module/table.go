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

package module

import "context"

// Table is the interface implemented by modules that provide string-to-string
// lookups - the lookup tables driving destination classification and
// transport selection.
//
// Modules implementing this interface should be registered with prefix
// "table." in name.
type Table interface {
	// Lookup returns the replacement value for key, or ok == false if key
	// is not present in the table. A non-nil error indicates the backend
	// itself failed (e.g. a database connection problem) rather than a
	// plain miss; callers that need to distinguish a transient failure
	// from "deliberately not found" should check exterrors.IsTemporary
	// on it.
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// MultiTable is implemented by tables that can return more than one value
// for a key, such as alias expansion lists.
type MultiTable interface {
	Table
	LookupMulti(ctx context.Context, key string) ([]string, error)
}

// MutableTable is implemented by tables whose contents can be changed at
// runtime (used by administrative lookup/edit tooling).
type MutableTable interface {
	Table
	Keys() ([]string, error)
	RemoveKey(k string) error
	SetKey(k, v string) error
}
