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
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
)

// handleConn drives one connection: read request, resolve, write reply, in
// order, for as long as the peer keeps the connection open (replies are
// always sent in request order, one in flight at a time). A read failure
// abandons the connection without a partial reply; a write failure is
// logged and the connection is also abandoned, since the peer's framing is
// now unknown.
func (e *Endpoint) handleConn(conn net.Conn) {
	connID := uuid.New().String()
	connLog := e.logger
	connLog.Fields = map[string]interface{}{"conn_id": connID}

	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		addr, err := readRequest(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				connLog.Error("request read failed", err)
			}
			return
		}

		res := e.resolver.Resolve(context.Background(), addr)

		if err := writeReply(w, res.Channel, res.Nexthop, res.Nextrcpt, uint32(res.Flags)); err != nil {
			connLog.Error("reply write failed", err, "addr", addr)
			return
		}
	}
}
