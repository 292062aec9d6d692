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

package address

import "testing"

func TestParseTreeDequotedHidesAt(t *testing.T) {
	tr := ParseTree(`"user@hop"@remote`, false)

	if n := tr.RightmostOfKind(Special); n == -1 {
		t.Fatal("expected at least one @ token")
	}

	ats := 0
	for i := tr.Head; i != -1; i = tr.At(i).Next {
		tok := tr.At(i)
		if tok.Kind == Special && tok.Text == "@" {
			ats++
		}
	}
	if ats != 1 {
		t.Errorf("dequoted mode: want exactly 1 visible @, got %d", ats)
	}
}

func TestParseTreeRequotedExposesAt(t *testing.T) {
	tr := ParseTree(`"user@hop"@remote`, true)

	ats := 0
	for i := tr.Head; i != -1; i = tr.At(i).Next {
		tok := tr.At(i)
		if tok.Kind == Special && tok.Text == "@" {
			ats++
		}
	}
	if ats != 2 {
		t.Errorf("requoted mode: want exactly 2 visible @, got %d", ats)
	}
}

func TestTreeSubKeepBeforeAndAppend(t *testing.T) {
	tr := ParseTree("user@example.com", false)

	at := tr.RightmostSpecial("@")
	if at == -1 {
		t.Fatal("expected @ token")
	}

	suffix := tr.SubKeepBefore(at)

	if got := tr.Internalize(); got != "user" {
		t.Errorf("after detach, local part = %q, want %q", got, "user")
	}

	tr.Append(suffix)
	if got := tr.Internalize(); got != "user@example.com" {
		t.Errorf("after reattach = %q, want %q", got, "user@example.com")
	}
}

func TestTreeEmptyQuotedLocalPart(t *testing.T) {
	tr := ParseTree(`""`, false)
	if tr.Len() != 1 || tr.At(tr.Head).Kind != EmptyLocal {
		t.Errorf("expected single EmptyLocal token, got len=%d", tr.Len())
	}
}

func TestTreeInternalizeRoundTrip(t *testing.T) {
	for _, addr := range []string{
		"user@example.com",
		"postmaster",
		"a.b.c@sub.example.com",
		"user@[127.0.0.1]",
	} {
		tr := ParseTree(addr, false)
		if got := tr.Internalize(); got != addr {
			t.Errorf("round-trip %q: got %q", addr, got)
		}
	}
}

func TestTreeDomainLiteral(t *testing.T) {
	tr := ParseTree("user@[127.0.0.1]", false)
	lit := tr.RightmostOfKind(DomainLiteral)
	if lit == -1 {
		t.Fatal("expected domain literal token")
	}
	if tr.At(lit).Text != "127.0.0.1" {
		t.Errorf("domain literal text = %q", tr.At(lit).Text)
	}
}
