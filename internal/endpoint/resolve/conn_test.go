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
	"net"
	"testing"

	"github.com/foxcpp/trivial-rewrite/framework/log"
	"github.com/foxcpp/trivial-rewrite/internal/resolve"
)

func newTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	return &Endpoint{
		logger: log.Logger{Name: "resolve"},
		resolver: &resolve.Resolver{
			Tables: &resolve.TableSet{},
			Config: resolve.Config{
				MyHostname:     "myhost",
				LocalTransport: "local",
				DefTransport:   "smtp",
			},
			Rewriter: resolve.NoopRewriter{},
			IsLocal:  resolve.NewLocalDomainChecker("myhost", nil),
		},
	}
}

func TestHandleConnOneRequestOneReply(t *testing.T) {
	e := newTestEndpoint(t)

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	go e.handleConn(serverConn)

	if _, err := clientConn.Write([]byte("addr\nuser@myhost\n\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	r := bufio.NewReader(clientConn)
	lines := make([]string, 0, 9)
	for i := 0; i < 9; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read reply line %d: %v", i, err)
		}
		lines = append(lines, line)
	}

	want := []string{
		"transport\n", "local\n",
		"nexthop\n", "myhost\n",
		"recipient\n", "user@myhost\n",
		"flags\n", "1\n",
		"\n",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("reply line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestHandleConnClosesOnMalformedRequest(t *testing.T) {
	e := newTestEndpoint(t)

	serverConn, clientConn := net.Pipe()

	done := make(chan struct{})
	go func() {
		e.handleConn(serverConn)
		close(done)
	}()

	if _, err := clientConn.Write([]byte("unknown\nvalue\n\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	buf := make([]byte, 1)
	if _, err := clientConn.Read(buf); err == nil {
		t.Error("expected the connection to be closed without a reply for a protocol violation")
	}
	clientConn.Close()
	<-done
}
