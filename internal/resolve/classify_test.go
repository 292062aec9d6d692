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

	"github.com/foxcpp/trivial-rewrite/internal/testutils"
)

func TestResolveRemoteAliasAndMailboxConflictWarnsOnce(t *testing.T) {
	r := newResolver(baseConfig(), &TableSet{
		VirtAliasDoms:   testutils.Table{M: map[string]string{"both.example": "y"}},
		VirtMailboxDoms: testutils.Table{M: map[string]string{"both.example": "y"}},
	})
	r.Logger = testutils.Logger(t, "resolve.engine")

	var res Result
	r.resolveRemote(context.Background(), &res, "both.example")
	if !res.Flags.Has(ClassAlias) {
		t.Fatalf("alias branch must win over mailbox, got flags %v", res.Flags)
	}

	// Warn once per (kind, key): a second resolution of the same domain must
	// not re-trigger Logger.Msg, only LoadOrStore's "already seen" path.
	if _, loaded := r.warnOnce.Load("alias-and-mailbox\x00both.example"); !loaded {
		t.Error("expected the alias/mailbox conflict to be recorded in warnOnce")
	}

	var res2 Result
	r.resolveRemote(context.Background(), &res2, "both.example")
	if !res2.Flags.Has(ClassAlias) {
		t.Fatalf("second resolution should be unaffected by dedup state, got flags %v", res2.Flags)
	}
}

func TestResolveLocalWarnsOnConflictWithVirtualDomains(t *testing.T) {
	r := newResolver(baseConfig(), &TableSet{
		VirtAliasDoms: testutils.Table{M: map[string]string{"myhost": "y"}},
	})
	r.Logger = testutils.Logger(t, "resolve.engine")

	var res Result
	r.resolveLocal(context.Background(), &res, "user@myhost")

	if _, loaded := r.warnOnce.Load("local-and-virtual\x00myhost"); !loaded {
		t.Error("expected a local/virtual-alias conflict warning to be recorded")
	}
}

func TestApplyRelocationNoTableIsNoop(t *testing.T) {
	r := newResolver(baseConfig(), &TableSet{})
	res := &Result{Channel: "local", Nexthop: "myhost", Nextrcpt: "user@myhost", Flags: ClassLocal}

	r.applyRelocation(context.Background(), res)

	if res.Channel != "local" || res.Flags.Has(FlagFail) {
		t.Errorf("applyRelocation with no RelocatedMaps configured must leave res untouched, got %+v", res)
	}
}

func TestApplyRelocationStripsRecipientDelimiter(t *testing.T) {
	r := newResolver(baseConfig(), &TableSet{
		RelocatedMaps:      testutils.Table{M: map[string]string{"user@myhost": "new@elsewhere"}},
		RecipientDelimiter: "+",
	})
	res := &Result{Channel: "local", Nexthop: "myhost", Nextrcpt: "user+tag@myhost", Flags: ClassLocal}

	r.applyRelocation(context.Background(), res)

	if res.Channel != "error" || res.Nexthop != "user has moved to new@elsewhere" {
		t.Errorf("expected the bare local-part retry to find the relocation entry, got %+v", res)
	}
}

func TestApplyTransportMapOverridesDefaultChannel(t *testing.T) {
	r := newResolver(baseConfig(), &TableSet{
		TransportMaps: testutils.Table{M: map[string]string{"u@ext.example": "relay:[mx]"}},
	})
	res := &Result{Channel: "smtp", Nexthop: "ext.example", Nextrcpt: "u@ext.example", Flags: ClassDefault}

	r.applyTransportMap(context.Background(), res)

	if res.Channel != "relay" || res.Nexthop != "[mx]" {
		t.Errorf("got %+v, want channel=relay nexthop=[mx]", res)
	}
}

func TestApplyTransportMapNeverOverridesErrorTransport(t *testing.T) {
	r := newResolver(baseConfig(), &TableSet{
		TransportMaps: testutils.Table{M: map[string]string{"u@a.example": "relay:[mx]"}},
	})
	res := &Result{Channel: "error", Nexthop: "User unknown", Nextrcpt: "u@a.example", Flags: ClassAlias}

	r.applyTransportMap(context.Background(), res)

	if res.Channel != "error" || res.Nexthop != "User unknown" {
		t.Errorf("transport map must never override the error transport, got %+v", res)
	}
}

func TestSanityCheckFailsEmptyChannel(t *testing.T) {
	r := newResolver(baseConfig(), &TableSet{})
	r.Logger = testutils.Logger(t, "resolve.engine")
	res := &Result{Nexthop: "myhost", blame: "def_transport"}

	r.sanityCheck(res)

	if !res.Flags.Has(FlagFail) {
		t.Error("an empty transport channel must be downgraded to FLAG_FAIL, not silently accepted")
	}
}

func TestSanityCheckPanicsOnEmptyNexthop(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected sanityCheck to panic on an empty nexthop with a non-empty channel")
		}
	}()

	r := newResolver(baseConfig(), &TableSet{})
	res := &Result{Channel: "smtp", blame: "def_transport"}
	r.sanityCheck(res)
}
