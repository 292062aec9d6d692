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
	"errors"
	"testing"

	"github.com/foxcpp/trivial-rewrite/internal/testutils"
)

func baseConfig() Config {
	return Config{
		MyHostname:     "myhost",
		LocalTransport: "local",
		VirtTransport:  "virtual",
		RelayTransport: "relay",
		DefTransport:   "smtp",
		ErrorTransport: "error",
	}
}

func newResolver(cfg Config, tables *TableSet) *Resolver {
	if tables == nil {
		tables = &TableSet{}
	}
	return &Resolver{
		Tables:   tables,
		Config:   cfg,
		Rewriter: NoopRewriter{},
		IsLocal:  NewLocalDomainChecker(cfg.MyHostname, nil),
	}
}

func TestResolveEndToEndScenarios(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		cfg      func() Config
		tables   func() *TableSet
		wantRes  Result
	}{
		{
			name: "row1 local delivery",
			addr: "user@myhost",
			cfg:  baseConfig,
			wantRes: Result{
				Channel: "local", Nexthop: "myhost", Nextrcpt: "user@myhost",
				Flags: ClassLocal,
			},
		},
		{
			name: "row2 default transport no relayhost",
			addr: "u@ext.example",
			cfg:  baseConfig,
			wantRes: Result{
				Channel: "smtp", Nexthop: "ext.example", Nextrcpt: "u@ext.example",
				Flags: ClassDefault,
			},
		},
		{
			name: "row3 default transport with relayhost",
			addr: "u@ext.example",
			cfg: func() Config {
				c := baseConfig()
				c.RelayHost = "[gw]"
				return c
			},
			wantRes: Result{
				Channel: "smtp", Nexthop: "[gw]", Nextrcpt: "u@ext.example",
				Flags: ClassDefault,
			},
		},
		{
			name: "row4 virtual mailbox domain",
			addr: "u@v.example",
			cfg:  baseConfig,
			tables: func() *TableSet {
				return &TableSet{VirtMailboxDoms: testutils.Table{M: map[string]string{"v.example": "y"}}}
			},
			wantRes: Result{
				Channel: "virtual", Nexthop: "v.example", Nextrcpt: "u@v.example",
				Flags: ClassVirtual,
			},
		},
		{
			name: "row5 virtual alias domain",
			addr: "u@a.example",
			cfg:  baseConfig,
			tables: func() *TableSet {
				return &TableSet{VirtAliasDoms: testutils.Table{M: map[string]string{"a.example": "y"}}}
			},
			wantRes: Result{
				Channel: "error", Nexthop: "User unknown", Nextrcpt: "u@a.example",
				Flags: ClassAlias,
			},
		},
		{
			name: "row6 routed source-route survives into remote destination",
			addr: "attacker@hop@remote",
			cfg:  baseConfig,
			wantRes: Result{
				Channel: "smtp", Nexthop: "remote", Nextrcpt: "attacker@hop@remote",
				Flags: ClassDefault | FlagRouted,
			},
		},
		{
			name: "row7 relocated user",
			addr: "moved@myhost",
			cfg:  baseConfig,
			tables: func() *TableSet {
				return &TableSet{RelocatedMaps: testutils.Table{M: map[string]string{"moved@myhost": "new@elsewhere"}}}
			},
			wantRes: Result{
				Channel: "error", Nexthop: "user has moved to new@elsewhere", Nextrcpt: "moved@myhost",
				Flags: ClassLocal,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg()
			var tables *TableSet
			if tt.tables != nil {
				tables = tt.tables()
			}
			r := newResolver(cfg, tables)

			got := r.Resolve(context.Background(), tt.addr)
			got.blame = ""

			if got != tt.wantRes {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.addr, got, tt.wantRes)
			}
		})
	}
}

func TestResolveEmptyLocalPartBecomesPostmaster(t *testing.T) {
	r := newResolver(baseConfig(), nil)

	got := r.Resolve(context.Background(), `""@myhost`)
	if got.Nextrcpt != "postmaster@myhost" {
		t.Errorf("got nextrcpt %q, want postmaster@myhost", got.Nextrcpt)
	}
	if !got.Flags.Has(ClassLocal) {
		t.Errorf("got flags %v, want CLASS_LOCAL", got.Flags)
	}
}

func TestResolveTrailingDotTrimmed(t *testing.T) {
	r := newResolver(baseConfig(), nil)

	got := r.Resolve(context.Background(), "user@myhost.")
	if got.Nextrcpt != "user@myhost" {
		t.Errorf("got nextrcpt %q, want trailing dot trimmed", got.Nextrcpt)
	}
}

func TestResolveQuotedRouteNotFlaggedWhenDequoted(t *testing.T) {
	cfg := baseConfig()
	cfg.ResolveDequoted = true
	r := newResolver(cfg, nil)

	got := r.Resolve(context.Background(), `"user@hop"@remote`)
	if got.Flags.Has(FlagRouted) {
		t.Errorf("quoted local part with resolve_dequoted=true must not set FLAG_ROUTED, got flags %v", got.Flags)
	}
}

func TestResolveUnquotedRouteFlaggedWithoutDequoting(t *testing.T) {
	r := newResolver(baseConfig(), nil)

	got := r.Resolve(context.Background(), "user@hop@remote")
	if !got.Flags.Has(FlagRouted) {
		t.Errorf("unquoted embedded @ must set FLAG_ROUTED, got flags %v", got.Flags)
	}
}

func TestResolveRelayHostDoesNotOverrideVirtual(t *testing.T) {
	cfg := baseConfig()
	cfg.RelayHost = "[gw]"
	tables := &TableSet{VirtMailboxDoms: testutils.Table{M: map[string]string{"v.example": "y"}}}
	r := newResolver(cfg, tables)

	got := r.Resolve(context.Background(), "u@v.example")
	if got.Nexthop != "v.example" {
		t.Errorf("relayhost must not override CLASS_VIRTUAL nexthop, got %q", got.Nexthop)
	}
}

func TestResolveSplitTransportFormat(t *testing.T) {
	cfg := baseConfig()
	cfg.DefTransport = "smtp:[mx.isp.example]"
	r := newResolver(cfg, nil)

	got := r.Resolve(context.Background(), "u@ext.example")
	if got.Channel != "smtp" || got.Nexthop != "[mx.isp.example]" {
		t.Errorf("got channel %q nexthop %q, want smtp / [mx.isp.example]", got.Channel, got.Nexthop)
	}
}

func TestResolveTransportMapCannotOverrideErrorTransport(t *testing.T) {
	cfg := baseConfig()
	tables := &TableSet{
		RelocatedMaps: testutils.Table{M: map[string]string{"moved@myhost": "new@elsewhere"}},
		TransportMaps: testutils.Table{M: map[string]string{"moved@myhost": "smtp:hijacked"}},
	}
	r := newResolver(cfg, tables)

	got := r.Resolve(context.Background(), "moved@myhost")
	if got.Channel != "error" {
		t.Errorf("transport map must not override a relocation bounce, got channel %q", got.Channel)
	}
}

func TestResolveTransientFailureAtEachLookupSite(t *testing.T) {
	transientErr := errors.New("backend unavailable")

	tests := []struct {
		name   string
		addr   string
		tables *TableSet
	}{
		{
			name:   "virt_alias_doms",
			addr:   "u@remote.example",
			tables: &TableSet{VirtAliasDoms: testutils.Table{Err: transientErr}},
		},
		{
			name:   "virt_mailbox_doms",
			addr:   "u@remote.example",
			tables: &TableSet{VirtMailboxDoms: testutils.Table{Err: transientErr}},
		},
		{
			name:   "relay_domains",
			addr:   "u@remote.example",
			tables: &TableSet{RelayDomains: testutils.Table{Err: transientErr}},
		},
		{
			name:   "relocated_maps",
			addr:   "u@myhost",
			tables: &TableSet{RelocatedMaps: testutils.Table{Err: transientErr}},
		},
		{
			name: "transport_maps",
			addr: "u@remote.example",
			tables: &TableSet{
				TransportMaps: testutils.Table{Err: transientErr},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(baseConfig(), tt.tables)
			got := r.Resolve(context.Background(), tt.addr)
			if !got.Flags.Has(FlagFail) {
				t.Errorf("expected FLAG_FAIL from a transient %s failure, got flags %v", tt.name, got.Flags)
			}
		})
	}
}

func TestResolveMalformedNexthopSetsFlagError(t *testing.T) {
	r := newResolver(baseConfig(), nil)

	got := r.Resolve(context.Background(), "u@ex$ample")
	if !got.Flags.Has(FlagError) {
		t.Errorf("expected FLAG_ERROR for an unparsable nexthop, got flags %v", got.Flags)
	}
}
