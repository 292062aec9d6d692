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
	"net"
	"strings"

	"github.com/miekg/dns"
)

// looksHostlike reports whether nexthop is acceptable as a transport
// destination: either a syntactically valid hostname, or a bracketed IPv4
// or IPv6 literal.
func looksHostlike(nexthop string) bool {
	if isNumericLiteralShape(nexthop) {
		return true
	}
	if isBracketedLiteral(nexthop) {
		return true
	}
	if _, ok := dns.IsDomainName(nexthop); !ok {
		return false
	}
	// dns.IsDomainName accepts almost any byte string, so ASCII characters
	// are further limited to letters, digits, '-' and '.'. Non-ASCII runes
	// pass, since IDNA-decoded U-labels reach this check.
	for _, ch := range nexthop {
		if ch < 0x80 && ch != '.' && ch != '-' &&
			!('a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || '0' <= ch && ch <= '9') {
			return false
		}
	}
	return true
}

// isNumericLiteralShape is a character-class-only fast path: nexthop
// contains only the runes "[]0-9.".
func isNumericLiteralShape(nexthop string) bool {
	if nexthop == "" {
		return false
	}
	for _, ch := range nexthop {
		if ch != '[' && ch != ']' && ch != '.' && (ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}

// isBracketedLiteral reports whether nexthop is a "[addr]" form wrapping a
// valid IPv4 or IPv6 address.
func isBracketedLiteral(nexthop string) bool {
	if len(nexthop) < 3 || !strings.HasPrefix(nexthop, "[") || !strings.HasSuffix(nexthop, "]") {
		return false
	}
	addr := nexthop[1 : len(nexthop)-1]
	return net.ParseIP(addr) != nil
}
