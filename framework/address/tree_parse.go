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

import "strings"

// ParseTree tokenizes addr into a Tree.
//
// When requoted is false (the "dequoted" mode of the resolver's
// resolve_dequoted setting), quoted strings are parsed as a single opaque
// token: any @, %, ! inside them is text, not a routing operator. When
// requoted is true, addr is first externalized (quoting removed, so
// whatever was inside quotes becomes plain characters) and the result is
// re-tokenized with every @, %, ! treated as a routing Special wherever it
// appears.
func ParseTree(addr string, requoted bool) *Tree {
	if requoted {
		addr = externalizeForRequote(addr)
	}
	return tokenize(addr, !requoted)
}

// externalizeForRequote strips quoting from any quoted-string runs in addr,
// exposing their content as plain characters so a following dequote-unaware
// tokenize pass treats embedded routing operators as live specials. This is
// the Go shape of "quote local part but treat @ as non-special, so
// multiple @ survive".
func externalizeForRequote(addr string) string {
	var b strings.Builder
	inQuotes := false
	escaped := false
	for _, ch := range addr {
		switch {
		case escaped:
			b.WriteRune(ch)
			escaped = false
		case ch == '\\' && inQuotes:
			escaped = true
		case ch == '"':
			inQuotes = !inQuotes
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// tokenize scans s into a Tree. When respectQuotes is true, double-quoted
// runs become a single opaque QuotedString token; otherwise quote
// characters are not special-cased (the string has already had its
// quoting stripped by externalizeForRequote).
func tokenize(s string, respectQuotes bool) *Tree {
	t := NewTree()
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case respectQuotes && ch == '"':
			j := i + 1
			var content strings.Builder
			for j < len(runes) && runes[j] != '"' {
				if runes[j] == '\\' && j+1 < len(runes) {
					content.WriteRune(runes[j+1])
					j += 2
					continue
				}
				content.WriteRune(runes[j])
				j++
			}
			t.append(QuotedString, content.String())
			i = j + 1
		case ch == '(':
			j := i + 1
			depth := 1
			var content strings.Builder
			for j < len(runes) && depth > 0 {
				switch runes[j] {
				case '(':
					depth++
				case ')':
					depth--
					if depth == 0 {
						j++
						goto doneComment
					}
				}
				content.WriteRune(runes[j])
				j++
			}
		doneComment:
			t.append(Comment, content.String())
			i = j
		case ch == '[':
			j := i + 1
			var content strings.Builder
			for j < len(runes) && runes[j] != ']' {
				content.WriteRune(runes[j])
				j++
			}
			t.append(DomainLiteral, content.String())
			i = j + 1
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			i++
		case strings.ContainsRune(specialRunes, ch):
			t.append(Special, string(ch))
			i++
		default:
			j := i
			var content strings.Builder
			for j < len(runes) {
				c := runes[j]
				if c == ' ' || c == '\t' || c == '\r' || c == '\n' ||
					strings.ContainsRune(specialRunes, c) ||
					c == '(' || (respectQuotes && c == '"') {
					break
				}
				content.WriteRune(c)
				j++
			}
			t.append(Atom, content.String())
			i = j
		}
	}

	if t.Len() == 1 {
		only := t.At(t.Head)
		if only.Kind == QuotedString && only.Text == "" {
			t.SetText(t.Head, "")
			t.nodes[t.Head].Kind = EmptyLocal
		}
	}

	return t
}
