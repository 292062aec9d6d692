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

// Package resolve implements the resolver's protocol endpoint: a
// typed-attribute request/reply stream protocol, modeled on Postfix's
// attr_scan/attr_print wire format. Each attribute is two lines - its name,
// then its value - and a lone blank line marks the end of the attribute set.
package resolve

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
)

const attrTerminator = ""

// errProtocol marks a malformed request: the caller must close the
// connection rather than attempt to read another request from it.
var errProtocol = errors.New("resolve: protocol violation")

// readRequest reads one strict attribute set containing exactly the "addr"
// attribute. Any other attribute name, a missing "addr", or a duplicate is
// a protocol violation.
func readRequest(r *bufio.Reader) (addr string, err error) {
	attrs, err := readAttrs(r)
	if err != nil {
		return "", err
	}

	if len(attrs) != 1 {
		return "", fmt.Errorf("%w: expected exactly 1 attribute, got %d", errProtocol, len(attrs))
	}

	addr, ok := attrs["addr"]
	if !ok {
		return "", fmt.Errorf("%w: missing required attribute \"addr\"", errProtocol)
	}

	return addr, nil
}

// readAttrs reads name/value line pairs until a blank line, or until the
// stream ends (io.EOF, surfaced to the caller as a read failure).
func readAttrs(r *bufio.Reader) (map[string]string, error) {
	attrs := make(map[string]string)
	for {
		name, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if name == attrTerminator {
			return attrs, nil
		}

		value, err := readLine(r)
		if err != nil {
			return nil, err
		}

		if _, dup := attrs[name]; dup {
			return nil, fmt.Errorf("%w: duplicate attribute %q", errProtocol, name)
		}
		attrs[name] = value
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return line, nil
}

// writeReply writes the four reply attributes in the fixed order the wire
// protocol requires - transport, nexthop, recipient, flags - followed by
// the terminator, and flushes the stream.
func writeReply(w *bufio.Writer, channel, nexthop, recipient string, flags uint32) error {
	if err := writeAttr(w, "transport", channel); err != nil {
		return err
	}
	if err := writeAttr(w, "nexthop", nexthop); err != nil {
		return err
	}
	if err := writeAttr(w, "recipient", recipient); err != nil {
		return err
	}
	if err := writeAttr(w, "flags", strconv.FormatUint(uint64(flags), 10)); err != nil {
		return err
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	return w.Flush()
}

func writeAttr(w *bufio.Writer, name, value string) error {
	if _, err := w.WriteString(name); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	if _, err := w.WriteString(value); err != nil {
		return err
	}
	return w.WriteByte('\n')
}
