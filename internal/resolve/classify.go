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

	"github.com/foxcpp/trivial-rewrite/framework/dns"
)

// resolveRemote runs the classification cascade for a remote destination
// domain: virtual alias, virtual mailbox, relay, then the default transport.
func (r *Resolver) resolveRemote(ctx context.Context, res *Result, domain string) {
	// ForLookup IDNA-decodes and NFC-normalizes an internationalized domain
	// before it reaches the hostlike check and the table lookups below, so
	// an A-label and the equivalent U-label resolve to the same entry. On
	// error it falls back to plain case-folding, same as before this call
	// existed.
	nexthop, err := dns.ForLookup(domain)
	if err != nil {
		nexthop = strings.ToLower(domain)
	}
	res.Nexthop = nexthop

	if !looksHostlike(nexthop) {
		res.Flags |= FlagError
	}

	var channel, blame string

	aliasRes := stringListMatch(ctx, r.Tables.VirtAliasDoms, nexthop)
	if aliasRes.transient {
		res.Flags |= FlagFail
		return
	}

	switch {
	case aliasRes.matched:
		channel, blame = r.Config.ErrorTransport, "error_transport"
		res.Nexthop = "User unknown"
		res.Flags |= ClassAlias

		mboxRes := stringListMatch(ctx, r.Tables.VirtMailboxDoms, nexthop)
		if mboxRes.transient {
			res.Flags |= FlagFail
			return
		}
		if mboxRes.matched {
			r.warnOnce1("alias-and-mailbox", nexthop,
				"domain listed in both virt_alias_doms and virt_mailbox_doms, alias wins",
				"domain", nexthop)
		}

		// NOTE: the original resolver checks its backend-failure signal
		// a second time here, immediately after the branch above. By the
		// time control reaches this point aliasRes has already been
		// consumed and cannot newly become transient, so this check is
		// structurally unreachable - kept anyway, matching the upstream
		// behavior exactly rather than "fixing" it away.
		if aliasRes.transient {
			res.Flags |= FlagFail
			return
		}

	default:
		mboxRes := stringListMatch(ctx, r.Tables.VirtMailboxDoms, nexthop)
		if mboxRes.transient {
			res.Flags |= FlagFail
			return
		}

		switch {
		case mboxRes.matched:
			channel, blame = r.Config.VirtTransport, "virt_transport"
			res.Nexthop = nexthop
			res.Flags |= ClassVirtual

		default:
			relayRes := domainListMatch(ctx, r.Tables.RelayDomains, nexthop)
			if relayRes.transient {
				res.Flags |= FlagFail
				return
			}

			if relayRes.matched {
				channel, blame = r.Config.RelayTransport, "relay_transport"
				res.Flags |= ClassRelay
			} else {
				channel, blame = r.Config.DefTransport, "def_transport"
				res.Flags |= ClassDefault
			}

			if r.Config.RelayHost != "" {
				res.Nexthop = r.Config.RelayHost
			}
		}
	}

	chanPart, nexthopPart := splitTransport(channel)
	res.Channel = chanPart
	if nexthopPart != "" {
		res.Nexthop = nexthopPart
	}
	res.blame = blame
}

// resolveLocal classifies a destination that matched a local domain.
func (r *Resolver) resolveLocal(ctx context.Context, res *Result, nextrcpt string) {
	channel, blame := r.Config.LocalTransport, "local_transport"

	chanPart, nexthopPart := splitTransport(channel)
	res.Channel = chanPart
	if nexthopPart != "" {
		res.Nexthop = nexthopPart
	} else {
		res.Nexthop = r.Config.MyHostname
	}
	res.Flags |= ClassLocal
	res.blame = blame

	domain := ""
	if at := strings.LastIndexByte(nextrcpt, '@'); at != -1 {
		domain = strings.ToLower(nextrcpt[at+1:])
	}
	if domain == "" {
		return
	}

	// Configuration-conflict warning, widened to cover both virtual lists,
	// not just the alias/mailbox pairing.
	if aliasHit := stringListMatch(ctx, r.Tables.VirtAliasDoms, domain); aliasHit.matched {
		r.warnOnce1("local-and-virtual", domain,
			"domain listed in both local delivery and virt_alias_doms", "domain", domain)
	}
	if mboxHit := stringListMatch(ctx, r.Tables.VirtMailboxDoms, domain); mboxHit.matched {
		r.warnOnce1("local-and-virtual", domain,
			"domain listed in both local delivery and virt_mailbox_doms", "domain", domain)
	}
}

// applyRelocation redirects a recipient that has a relocated_maps entry to
// the error transport with a "user has moved" notice.
func (r *Resolver) applyRelocation(ctx context.Context, res *Result) {
	if r.Tables.RelocatedMaps == nil {
		return
	}

	lookupRes := r.Tables.relocatedLookup(ctx, res.Nextrcpt)
	if lookupRes.transient {
		res.Flags |= FlagFail
		return
	}
	if !lookupRes.matched {
		return
	}

	res.Channel = r.Config.ErrorTransport
	res.Nexthop = "user has moved to " + lookupRes.value
	res.blame = "error_transport"
}

// applyTransportMap overrides the channel/nexthop from a transport_maps
// entry. The error transport is never overridden, so relocation and
// alias-domain bounces cannot be subverted by a transport map entry.
func (r *Resolver) applyTransportMap(ctx context.Context, res *Result) {
	if r.Tables.TransportMaps == nil || res.Channel == r.Config.ErrorTransport {
		return
	}

	lookupRes := mapLookup(ctx, r.Tables.TransportMaps, res.Nextrcpt)
	if lookupRes.transient {
		res.Flags |= FlagFail
		return
	}
	if !lookupRes.matched || lookupRes.value == "" {
		return
	}

	channel, nexthop := splitTransport(lookupRes.value)
	if channel != "" {
		res.Channel = channel
	}
	if nexthop != "" {
		res.Nexthop = nexthop
	}
}

// sanityCheck fails a resolution that ended with no transport channel, and
// catches an empty nexthop on a resolution that otherwise looks successful.
func (r *Resolver) sanityCheck(res *Result) {
	if res.Channel == "" {
		r.Logger.Msg("empty transport channel, failing resolution",
			"blame", res.blame)
		res.Flags |= FlagFail
		return
	}

	if res.Nexthop == "" {
		panic("resolve: empty nexthop on a successful resolution (blame: " + res.blame + ")")
	}
}
