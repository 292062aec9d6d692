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
	"bufio"
	"bytes"
	"testing"
)

func TestReadRequestOK(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("addr\nuser@example.org\n\n"))

	addr, err := readRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "user@example.org" {
		t.Errorf("got addr %q", addr)
	}
}

func TestReadRequestMissingAddr(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("foo\nbar\n\n"))

	if _, err := readRequest(r); err == nil {
		t.Fatal("expected an error for a request missing \"addr\"")
	}
}

func TestReadRequestExtraAttribute(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("addr\nuser@example.org\nextra\nvalue\n\n"))

	if _, err := readRequest(r); err == nil {
		t.Fatal("expected an error for a request with an unknown extra attribute")
	}
}

func TestWriteReplyOrderAndTerminator(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if err := writeReply(w, "smtp", "mx.example.org", "user@example.org", 16); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "transport\nsmtp\nnexthop\nmx.example.org\nrecipient\nuser@example.org\nflags\n16\n\n"
	if buf.String() != want {
		t.Errorf("got reply:\n%q\nwant:\n%q", buf.String(), want)
	}
}
