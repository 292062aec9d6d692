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

package resolve

import (
	"context"

	"github.com/foxcpp/trivial-rewrite/framework/address"
	"github.com/foxcpp/trivial-rewrite/framework/module"
)

// CanonicalRewriter is the one-shot REWRITE_CANON hook: an in-place
// transformation of a token tree under a named ruleset. The engine treats
// it as a black box whose only contract is that it preserves "is this an
// address" and may change routing-operator content (e.g. turning "a%b"
// into "a@b").
//
// It is provided by the surrounding system (the canonical/virtual rewrite
// engine) and is never implemented inside this package.
type CanonicalRewriter interface {
	Rewrite(ruleset string, tree *address.Tree) error
}

// NoopRewriter is a CanonicalRewriter that performs no rewriting. It is a
// valid default for deployments that configure no canonical maps: the
// peeling loop sees the tree unchanged after the rewrite step and stops
// there instead of looping again.
type NoopRewriter struct{}

func (NoopRewriter) Rewrite(_ string, _ *address.Tree) error { return nil }

// TableRewriter is a minimal, in-process stand-in for the canonical/virtual
// rewrite engine: it looks up the internalized tree in a module.Table keyed
// by ruleset name and, on a hit, re-parses the returned value in place of
// the tree's contents. It exists so a deployment can exercise the peeling
// loop's rewrite step without a real external rewrite engine configured,
// the same way internal/modify's replaceAddr
// substitutes one address for another via a table lookup.
type TableRewriter struct {
	Tables map[string]module.Table

	ResolveDequoted bool
}

func (t *TableRewriter) Rewrite(ruleset string, tree *address.Tree) error {
	tbl := t.Tables[ruleset]
	if tbl == nil {
		return nil
	}

	key := tree.Internalize()
	val, ok, err := tbl.Lookup(context.Background(), key)
	if err != nil {
		return err
	}
	if !ok || val == key {
		return nil
	}

	*tree = *address.ParseTree(val, !t.ResolveDequoted)
	return nil
}
