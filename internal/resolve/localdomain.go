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

	"github.com/foxcpp/trivial-rewrite/framework/module"
	"github.com/miekg/dns"
)

// tableLocalDomains is the default is_local_domain(d) predicate: a domain
// is local if it equals myhostname (compared as FQDNs, case folded) or is
// listed in an optional local_domains table.
type tableLocalDomains struct {
	myHostname string
	domains    module.Table
}

// NewLocalDomainChecker builds the default LocalDomainChecker: myHostname
// always counts as local, and domains is consulted (literal match) for
// anything else. domains may be nil, in which case only myHostname matches.
func NewLocalDomainChecker(myHostname string, domains module.Table) LocalDomainChecker {
	return &tableLocalDomains{myHostname: dns.Fqdn(strings.ToLower(myHostname)), domains: domains}
}

func (t *tableLocalDomains) IsLocalDomain(domain string) bool {
	if dns.Fqdn(strings.ToLower(domain)) == t.myHostname {
		return true
	}
	if t.domains == nil {
		return false
	}

	res := stringListMatch(context.Background(), t.domains, domain)
	return !res.transient && res.matched
}
