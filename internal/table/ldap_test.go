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

package table

import (
	"testing"

	"github.com/foxcpp/trivial-rewrite/framework/config"
	"github.com/foxcpp/trivial-rewrite/framework/module"
)

func TestLDAPInitFailsWithoutURLs(t *testing.T) {
	mod, err := NewLDAP("table.ldap", "ldap_test", nil, nil)
	if err != nil {
		t.Fatalf("module create failed: %v", err)
	}

	err = mod.(*LDAP).Init(config.NewMap(nil, config.Node{
		Children: []config.Node{
			{Name: "base_dn", Args: []string{"dc=example,dc=org"}},
			{Name: "filter", Args: []string{"(mail={key})"}},
		},
	}))
	if err == nil {
		t.Fatal("expected an error when no directory server URLs are configured")
	}
}

// Init must not attempt to dial a directory server at all when module.NoRun
// is set (check-config/table-lookup CLI paths): an unreachable URL here
// would otherwise make this test hang or fail on a dial error.
func TestLDAPInitSkipsDialWhenNoRun(t *testing.T) {
	module.NoRun = true
	defer func() { module.NoRun = false }()

	mod, err := NewLDAP("table.ldap", "ldap_test_norun", nil, []string{"ldap://203.0.113.1:1"})
	if err != nil {
		t.Fatalf("module create failed: %v", err)
	}

	err = mod.(*LDAP).Init(config.NewMap(nil, config.Node{
		Children: []config.Node{
			{Name: "base_dn", Args: []string{"dc=example,dc=org"}},
			{Name: "filter", Args: []string{"(mail={key})"}},
		},
	}))
	if err != nil {
		t.Fatalf("Init with module.NoRun set must not dial, got: %v", err)
	}
}

func TestReadLDAPBindDirective(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "off", args: []string{"off"}},
		{name: "unauth no dn", args: []string{"unauth"}},
		{name: "unauth with dn", args: []string{"unauth", "cn=reader,dc=example,dc=org"}},
		{name: "plain", args: []string{"plain", "cn=reader,dc=example,dc=org", "secret"}},
		{name: "plain missing password", args: []string{"plain", "cn=reader,dc=example,dc=org"}, wantErr: true},
		{name: "external", args: []string{"external"}},
		{name: "unknown", args: []string{"krb5"}, wantErr: true},
		{name: "empty", args: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindFn, err := readLDAPBindDirective(nil, config.Node{Name: "bind", Args: tt.args})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bindFn == nil {
				t.Fatal("expected a non-nil bind function")
			}
		})
	}
}
