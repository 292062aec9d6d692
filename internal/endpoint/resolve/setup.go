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
	"github.com/foxcpp/trivial-rewrite/framework/config"
	modconfig "github.com/foxcpp/trivial-rewrite/framework/config/module"
	"github.com/foxcpp/trivial-rewrite/framework/log"
	"github.com/foxcpp/trivial-rewrite/framework/module"
	"github.com/foxcpp/trivial-rewrite/internal/resolve"
)

// bindResolver reads the configuration block of the resolve endpoint and
// constructs the table set, the configuration snapshot, and the resolver
// built on top of them. Tables left unconfigured are nil module.Table
// values, which TableSet/the engine treat as "never matches" rather than
// as an error.
func bindResolver(cfg *config.Map, logger log.Logger) (*resolve.Resolver, error) {
	var (
		relayDomains, virtAliasDoms, virtMailboxDoms module.Table
		relocatedMaps, transportMaps                 module.Table
		localDomains                                 module.Table
		canonicalMap                                 module.Table

		c resolve.Config

		recipientDelimiter string
	)

	cfg.Bool("resolve_dequoted", false, false, &c.ResolveDequoted)
	cfg.Bool("swap_bangpath", false, false, &c.SwapBangpath)
	cfg.Bool("percent_hack", false, false, &c.PercentHack)

	cfg.String("myhostname", true, true, "", &c.MyHostname)
	cfg.String("relayhost", false, false, "", &c.RelayHost)

	cfg.String("local_transport", false, false, "local", &c.LocalTransport)
	cfg.String("virt_transport", false, false, "virtual", &c.VirtTransport)
	cfg.String("relay_transport", false, false, "relay", &c.RelayTransport)
	cfg.String("def_transport", false, false, "smtp", &c.DefTransport)
	cfg.String("error_transport", false, false, "error", &c.ErrorTransport)

	cfg.String("recipient_delimiter", false, false, "", &recipientDelimiter)

	cfg.Custom("relay_domains", false, false, nil, modconfig.TableDirective, &relayDomains)
	cfg.Custom("virt_alias_doms", false, false, nil, modconfig.TableDirective, &virtAliasDoms)
	cfg.Custom("virt_mailbox_doms", false, false, nil, modconfig.TableDirective, &virtMailboxDoms)
	cfg.Custom("relocated_maps", false, false, nil, modconfig.TableDirective, &relocatedMaps)
	cfg.Custom("transport_maps", false, false, nil, modconfig.TableDirective, &transportMaps)
	cfg.Custom("local_domains", false, false, nil, modconfig.TableDirective, &localDomains)
	cfg.Custom("canonical_maps", false, false, nil, modconfig.TableDirective, &canonicalMap)

	if _, err := cfg.Process(); err != nil {
		return nil, err
	}

	tables := &resolve.TableSet{
		RelayDomains:       relayDomains,
		VirtAliasDoms:      virtAliasDoms,
		VirtMailboxDoms:    virtMailboxDoms,
		RelocatedMaps:      relocatedMaps,
		TransportMaps:      transportMaps,
		RecipientDelimiter: recipientDelimiter,
	}

	var rewriter resolve.CanonicalRewriter = resolve.NoopRewriter{}
	if canonicalMap != nil {
		rewriter = &resolve.TableRewriter{
			Tables:          map[string]module.Table{resolve.RulesetCanonical: canonicalMap},
			ResolveDequoted: c.ResolveDequoted,
		}
	}

	return &resolve.Resolver{
		Tables:   tables,
		Config:   c,
		Rewriter: rewriter,
		IsLocal:  resolve.NewLocalDomainChecker(c.MyHostname, localDomains),
		Logger:   log.Logger{Name: "resolve.engine", Debug: logger.Debug},
	}, nil
}
