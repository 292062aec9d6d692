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
	"sync"

	"github.com/foxcpp/trivial-rewrite/framework/address"
	"github.com/foxcpp/trivial-rewrite/framework/log"
)

// RulesetCanonical is the REWRITE_CANON ruleset name passed to the
// CanonicalRewriter during the peeling loop.
const RulesetCanonical = "canonical"

// Result is the resolver's answer to one recipient: the transport, its
// nexthop, the final recipient address, and the classification flags.
type Result struct {
	Channel  string
	Nexthop  string
	Nextrcpt string
	Flags    Flags

	// blame names the configuration parameter that produced Channel, for
	// the empty-channel sanity warning.
	blame string
}

// Resolver drives the peeling loop, route detection, classification and
// override chain over a fixed table set, configuration snapshot, rewrite
// hook and is_local_domain predicate.
//
// A Resolver is safe for concurrent use: it holds no per-request state
// beyond a dedup set for configuration-conflict warnings.
type Resolver struct {
	Tables   *TableSet
	Config   Config
	Rewriter CanonicalRewriter
	IsLocal  LocalDomainChecker
	Logger   log.Logger

	warnOnce sync.Map // string -> struct{}
}

// warnOnce1 logs msg at most once per process lifetime per (kind, key)
// pair, matching Postfix's dup-filtered configuration-conflict warnings.
func (r *Resolver) warnOnce1(kind, key, msg string, fields ...interface{}) {
	dedupKey := kind + "\x00" + key
	if _, loaded := r.warnOnce.LoadOrStore(dedupKey, struct{}{}); loaded {
		return
	}
	r.Logger.Msg(msg, fields...)
}

// Resolve computes (channel, nexthop, nextrcpt, flags) for one internalized
// recipient address.
func (r *Resolver) Resolve(ctx context.Context, addr string) (res Result) {
	defer func() { observe(res) }()

	tree := address.ParseTree(addr, !r.Config.ResolveDequoted)

	domain, savedDomain, flags := r.peel(tree)

	if domain != "" && routeOperatorsPresent(tree, localPartLen(tree)) {
		flags |= FlagRouted
	}

	nextrcpt := r.finalizeRecipient(tree, domain, savedDomain)

	res.Nextrcpt = nextrcpt
	res.Flags = flags

	if domain == "" {
		r.resolveLocal(ctx, &res, nextrcpt)
	} else {
		r.resolveRemote(ctx, &res, domain)
	}

	if res.Flags.Has(FlagFail) {
		return res
	}

	r.applyRelocation(ctx, &res)
	if res.Flags.Has(FlagFail) {
		return res
	}

	r.applyTransportMap(ctx, &res)
	if res.Flags.Has(FlagFail) {
		return res
	}

	r.sanityCheck(&res)

	return res
}

// peel repeatedly normalizes and strips local-domain suffixes until the
// tree is purely local or anchored on a remote domain. It
// returns the final remote domain (empty if none), and the most recently
// stripped local-domain suffix (empty if none was ever stripped).
func (r *Resolver) peel(tree *address.Tree) (domain, savedDomain string, flags Flags) {
	for {
		trimTrailingDot(tree)
		stripTrailingBareAt(tree)

		emptyLocal := tree.Empty()
		if tree.Len() == 1 {
			only := tree.At(tree.Head)
			emptyLocal = only.Kind == address.EmptyLocal ||
				(only.Kind == address.QuotedString && only.Text == "")
		}
		if emptyLocal {
			// The local part is empty (nothing is left after peeling, or
			// only an empty quoted string): substitute postmaster and
			// re-parse so it becomes a plain Atom.
			*tree = *address.ParseTree("postmaster", !r.Config.ResolveDequoted)
			if err := r.Rewriter.Rewrite(RulesetCanonical, tree); err != nil {
				r.Logger.Error("canonical rewrite failed", err)
			}
			continue
		}

		at := tree.RightmostSpecial("@")
		if at == -1 {
			if hasAnyRoutingOperator(tree, r.Config) {
				before := tree.Internalize()
				if err := r.Rewriter.Rewrite(RulesetCanonical, tree); err != nil {
					r.Logger.Error("canonical rewrite failed", err)
				}
				if tree.Internalize() == before {
					// The rewriter left the tree untouched (e.g. no
					// canonical map configured): further looping would
					// never terminate, so stop here rather than spin.
					return "", savedDomain, flags
				}
				continue
			}
			return "", savedDomain, flags
		}

		candidate := textAfter(tree, at)

		if r.IsLocal != nil && r.IsLocal.IsLocalDomain(candidate) {
			// Genuinely peel this suffix off: it is resolved locally, so
			// it plays no further part in routing, but it is remembered
			// in case the whole address ends up purely local.
			tree.SubKeepBefore(at)
			savedDomain = candidate
			continue
		}

		// Not local. This is a routing-candidate boundary: keep looping
		// only if some operator remains to be normalized, since peeling
		// made no progress here otherwise.
		if hasAnyRoutingOperator(tree, r.Config) {
			if err := r.Rewriter.Rewrite(RulesetCanonical, tree); err != nil {
				r.Logger.Error("canonical rewrite failed", err)
			}
			if tree.RightmostSpecial("@") != at || textAfter(tree, tree.RightmostSpecial("@")) != candidate {
				continue
			}
		}

		return candidate, savedDomain, flags
	}
}

// textAfter renders the tokens strictly after arena index at (the '@'
// boundary) in internalized form, without mutating the tree.
func textAfter(tree *address.Tree, at int) string {
	sub := address.NewTree()
	for i := tree.At(at).Next; i != -1; i = tree.At(i).Next {
		tok := tree.At(i)
		sub.AppendToken(tok.Kind, tok.Text)
	}
	return sub.Internalize()
}

// trimTrailingDot removes one trailing '.' at the end of the domain when
// the preceding token is '@' or a non-dot atom. It never
// collapses "a..b" since the token before the final '.' would itself be a
// '.' Special, which this check rejects.
func trimTrailingDot(tree *address.Tree) {
	if tree.Tail == -1 {
		return
	}
	tail := tree.At(tree.Tail)
	if tail.Kind != address.Special || tail.Text != "." {
		return
	}
	prevIdx := tail.Prev
	if prevIdx == -1 {
		return
	}
	prev := tree.At(prevIdx)
	if prev.Kind == address.Special && prev.Text == "@" {
		tree.Remove(tree.Tail)
		return
	}
	if prev.Kind == address.Atom {
		tree.Remove(tree.Tail)
	}
}

// stripTrailingBareAt removes a trailing '@' that has no domain after it.
func stripTrailingBareAt(tree *address.Tree) {
	if tree.Tail == -1 {
		return
	}
	tail := tree.At(tree.Tail)
	if tail.Kind == address.Special && tail.Text == "@" {
		tree.Remove(tree.Tail)
	}
}

// hasAnyRoutingOperator reports whether '@', or '!' when bangpath swapping
// is enabled, or '%' when the percent hack is enabled, is still present
// anywhere in the tree.
func hasAnyRoutingOperator(tree *address.Tree, cfg Config) bool {
	runes := "@"
	if cfg.SwapBangpath {
		runes += "!"
	}
	if cfg.PercentHack {
		runes += "%"
	}
	return tree.RightmostSpecial(runes) != -1
}

// localPartLen returns the arena index of the rightmost '@' (the boundary
// between localpart and domain), or -1 if the tree has no '@'.
func localPartLen(tree *address.Tree) int {
	return tree.RightmostSpecial("@")
}

// routeOperatorsPresent reports route detection: after peeling, whether
// the residual localpart (tokens strictly before the rightmost '@')
// contains '@', '!' or '%' regardless of the bangpath/percent-hack
// configuration - those are disabled for this check since the upstream
// peer's interpretation of them is unknown.
func routeOperatorsPresent(tree *address.Tree, atIdx int) bool {
	if atIdx == -1 {
		return false
	}
	for i := tree.Head; i != atIdx; i = tree.At(i).Next {
		tok := tree.At(i)
		if tok.Kind == address.Special && strings.ContainsAny(tok.Text, "@!%") {
			return true
		}
	}
	return false
}

// finalizeRecipient rebuilds the final recipient string: if domain is
// empty and a savedDomain exists, it is reattached so the recipient has
// explicit form; if neither exists, "@<myhostname>" is appended.
func (r *Resolver) finalizeRecipient(tree *address.Tree, domain, savedDomain string) string {
	if domain != "" {
		return tree.Internalize()
	}

	if savedDomain != "" {
		return tree.Internalize() + "@" + savedDomain
	}

	return tree.Internalize() + "@" + r.Config.MyHostname
}
