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
	"testing"

	"github.com/foxcpp/trivial-rewrite/framework/config"
	"github.com/foxcpp/trivial-rewrite/framework/log"
)

func TestBindResolverMinimalConfig(t *testing.T) {
	resolver, err := bindResolver(config.NewMap(nil, config.Node{
		Children: []config.Node{
			{Name: "myhostname", Args: []string{"myhost"}},
		},
	}), log.Logger{Name: "resolve"})
	if err != nil {
		t.Fatalf("bindResolver failed: %v", err)
	}

	res := resolver.Resolve(context.Background(), "user@myhost")
	if res.Channel != "local" || res.Nexthop != "myhost" {
		t.Errorf("got %+v, want the local_transport default wired through", res)
	}
}

func TestBindResolverRequiresMyHostname(t *testing.T) {
	_, err := bindResolver(config.NewMap(nil, config.Node{}), log.Logger{Name: "resolve"})
	if err == nil {
		t.Fatal("expected an error when myhostname is not configured")
	}
}

func TestBindResolverWiresCanonicalMap(t *testing.T) {
	resolver, err := bindResolver(config.NewMap(nil, config.Node{
		Children: []config.Node{
			{Name: "myhostname", Args: []string{"myhost"}},
			{Name: "resolve_dequoted", Args: []string{"yes"}},
			{Name: "canonical_maps", Args: []string{"static"}, Children: []config.Node{
				{Name: "entry", Args: []string{"postmaster", "newpm@myhost"}},
			}},
		},
	}), log.Logger{Name: "resolve"})
	if err != nil {
		t.Fatalf("bindResolver failed: %v", err)
	}

	// An empty quoted local part is substituted with "postmaster" and run
	// through the canonical map before peeling continues.
	res := resolver.Resolve(context.Background(), `""`)
	if res.Nextrcpt != "newpm@myhost" {
		t.Errorf("got nextrcpt %q, want the canonical map to rewrite postmaster to newpm@myhost", res.Nextrcpt)
	}
}
