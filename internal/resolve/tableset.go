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
	"strings"

	"github.com/foxcpp/trivial-rewrite/framework/exterrors"
	"github.com/foxcpp/trivial-rewrite/framework/module"
)

// TableSet is the fixed bundle of lookup tables the resolver engine
// consults. Every handle is optional: a nil handle behaves as "never
// matches" rather than as a configuration error, per the init/config
// binding rules.
type TableSet struct {
	RelayDomains    module.Table
	VirtAliasDoms   module.Table
	VirtMailboxDoms module.Table
	RelocatedMaps   module.Table
	TransportMaps   module.Table

	// RecipientDelimiter, when non-empty, lets a RelocatedMaps lookup that
	// misses be retried once with the local-part cut at the first delimiter.
	RecipientDelimiter string
}

// lookupResult is the three-way outcome of a table lookup: matched,
// not found, or the backend itself failed transiently.
type lookupResult struct {
	value     string
	matched   bool
	transient bool
}

func lookup(ctx context.Context, tbl module.Table, key string) lookupResult {
	if tbl == nil {
		return lookupResult{}
	}

	val, ok, err := tbl.Lookup(ctx, key)
	if err != nil {
		return lookupResult{transient: exterrors.IsTemporaryOrUnspec(err)}
	}
	return lookupResult{value: val, matched: ok}
}

// domainListMatch reports whether tbl contains domain under parent-style
// matching: the domain itself, or any of its parent domains, formed by
// progressively stripping the leftmost label. This is how relay_domains
// extends a listed domain to all of its subdomains.
func domainListMatch(ctx context.Context, tbl module.Table, domain string) lookupResult {
	if tbl == nil {
		return lookupResult{}
	}

	d := strings.ToLower(domain)
	for {
		res := lookup(ctx, tbl, d)
		if res.transient || res.matched {
			return res
		}

		idx := strings.IndexByte(d, '.')
		if idx == -1 {
			return lookupResult{}
		}
		d = d[idx+1:]
	}
}

// stringListMatch reports whether tbl contains s under plain literal
// matching (used for virt_alias_doms / virt_mailbox_doms, which per the
// spec are "string lists with literal matching", not parent-style).
func stringListMatch(ctx context.Context, tbl module.Table, s string) lookupResult {
	return lookup(ctx, tbl, strings.ToLower(s))
}

// mapLookup performs a plain key lookup against an address-pattern map
// (relocated_maps, transport_maps).
func mapLookup(ctx context.Context, tbl module.Table, key string) lookupResult {
	return lookup(ctx, tbl, key)
}

// relocatedLookup looks up key in RelocatedMaps, retrying once without a
// recipient-delimiter extension on the local-part if the first lookup
// misses. This is the concrete address-extension stripping policy the
// spec leaves to "the surrounding lookup module".
func (ts *TableSet) relocatedLookup(ctx context.Context, key string) lookupResult {
	res := mapLookup(ctx, ts.RelocatedMaps, key)
	if res.transient || res.matched || ts.RecipientDelimiter == "" {
		return res
	}

	at := strings.LastIndexByte(key, '@')
	if at == -1 {
		return res
	}
	local, domain := key[:at], key[at+1:]

	delim := strings.Index(local, ts.RecipientDelimiter)
	if delim == -1 {
		return res
	}

	return mapLookup(ctx, ts.RelocatedMaps, local[:delim]+"@"+domain)
}
