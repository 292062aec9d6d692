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

// TokenKind identifies the syntactic category of a Token in a Tree.
type TokenKind int

const (
	// Atom is a run of unquoted, non-special characters.
	Atom TokenKind = iota
	// QuotedString is a double-quoted local-part token; Text holds the
	// content with surrounding quotes and backslash-escapes removed.
	QuotedString
	// Comment is a parenthesized RFC 822 comment; Text holds the content
	// without the parens.
	Comment
	// DomainLiteral is a bracketed domain literal such as [127.0.0.1];
	// Text holds the content without the brackets.
	DomainLiteral
	// Special is one of the single-rune routing/structural characters:
	// @ . , ; : ! % < > ( ) [ ]
	Special
	// EmptyLocal is the sentinel token produced when the entire address
	// collapses to a single empty quoted string ("").
	EmptyLocal
)

// specialRunes is the set of characters treated as Special tokens outside
// of quoted strings, comments and domain literals.
const specialRunes = "@.,;:!%<>()[]"

// Token is one arena node. Prev/Next are arena indices, -1 when absent, so
// the tree holds no pointers and can be copied or discarded by value.
type Token struct {
	Kind       TokenKind
	Text       string
	Prev, Next int
}

// Tree is an ordered sequence of Tokens representing a single address.
// Tokens live in a flat arena (Tree.nodes); Head/Tail are arena indices of
// the first/last live token, or -1 for an empty tree.
//
// Tree is mutated in place by the resolver engine: detaching a sub-range or
// appending a token never reallocates existing indices, so any Token index
// captured before a mutation (other than the one removed) stays valid.
type Tree struct {
	nodes []Token
	Head  int
	Tail  int
}

// NewTree returns an empty token tree.
func NewTree() *Tree {
	return &Tree{Head: -1, Tail: -1}
}

// Len reports the number of live tokens.
func (t *Tree) Len() int {
	n := 0
	for i := t.Head; i != -1; i = t.nodes[i].Next {
		n++
	}
	return n
}

// Empty reports whether the tree has no tokens.
func (t *Tree) Empty() bool {
	return t.Head == -1
}

// append adds a new token at the tail and returns its arena index.
func (t *Tree) append(kind TokenKind, text string) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Token{Kind: kind, Text: text, Prev: t.Tail, Next: -1})
	if t.Tail != -1 {
		t.nodes[t.Tail].Next = idx
	} else {
		t.Head = idx
	}
	t.Tail = idx
	return idx
}

// AppendToken adds a token of the given kind and text at the tail and
// returns its arena index. Exported for callers (such as the resolver
// engine) that build a scratch tree out of tokens copied from another one.
func (t *Tree) AppendToken(kind TokenKind, text string) int {
	return t.append(kind, text)
}

// At returns the token stored at arena index i.
func (t *Tree) At(i int) Token {
	return t.nodes[i]
}

// SetText replaces the text of the token at arena index i in place.
func (t *Tree) SetText(i int, text string) {
	t.nodes[i].Text = text
}

// Remove detaches the single token at index i from the live chain. The
// node itself stays in the arena (so other captured indices keep working)
// but is no longer reachable by walking Head/Next.
func (t *Tree) Remove(i int) {
	n := t.nodes[i]
	if n.Prev != -1 {
		t.nodes[n.Prev].Next = n.Next
	} else {
		t.Head = n.Next
	}
	if n.Next != -1 {
		t.nodes[n.Next].Prev = n.Prev
	} else {
		t.Tail = n.Prev
	}
}

// RightmostOfKind returns the arena index of the last live token of the
// given kind, or -1 if none is present.
func (t *Tree) RightmostOfKind(kind TokenKind) int {
	found := -1
	for i := t.Head; i != -1; i = t.nodes[i].Next {
		if t.nodes[i].Kind == kind {
			found = i
		}
	}
	return found
}

// RightmostSpecial returns the arena index of the last live Special token
// whose Text equals one of the provided runes, or -1 if none match.
func (t *Tree) RightmostSpecial(runes string) int {
	found := -1
	for i := t.Head; i != -1; i = t.nodes[i].Next {
		tok := t.nodes[i]
		if tok.Kind == Special && strings.ContainsAny(tok.Text, runes) {
			found = i
		}
	}
	return found
}

// SubKeepBefore detaches everything at or after tok, keeping only the
// strictly-preceding tokens in t. The detached suffix (tok inclusive) is
// returned as a free-standing Tree sharing the same arena, so its token
// indices remain meaningful for later re-attachment via Append.
//
// This is the Go shape of the spec's sub_keep_before(tail): "retains
// everything strictly before a token and returns the rest as a
// free-standing tree".
func (t *Tree) SubKeepBefore(tok int) *Tree {
	suffix := &Tree{nodes: t.nodes, Head: tok, Tail: t.Tail}

	prev := t.nodes[tok].Prev
	if prev != -1 {
		t.nodes[prev].Next = -1
		t.Tail = prev
	} else {
		t.Head, t.Tail = -1, -1
	}
	t.nodes[tok].Prev = -1

	return suffix
}

// Append re-attaches another tree (typically one earlier returned by
// SubKeepBefore, or a freshly parsed fragment) at the tail of t. The
// argument tree must not be used afterwards.
func (t *Tree) Append(other *Tree) {
	if other == nil || other.Head == -1 {
		return
	}

	base := len(t.nodes)
	if base == 0 || &other.nodes[0] != &t.nodes[0] {
		// Different arena: copy nodes over, rewriting indices.
		for _, n := range other.nodes {
			if n.Prev != -1 {
				n.Prev += base
			}
			if n.Next != -1 {
				n.Next += base
			}
			t.nodes = append(t.nodes, n)
		}
		other = &Tree{nodes: other.nodes, Head: other.Head + base, Tail: other.Tail + base}
	}

	if t.Tail != -1 {
		t.nodes[t.Tail].Next = other.Head
		t.nodes[other.Head].Prev = t.Tail
	} else {
		t.Head = other.Head
	}
	t.Tail = other.Tail
}

// Internalize re-emits the tree in internalized (unquoted) form: local-part
// quoting is stripped wherever it is unambiguous, domain syntax (including
// domain literals) is left untouched.
func (t *Tree) Internalize() string {
	var b strings.Builder
	atDone := false
	for i := t.Head; i != -1; i = t.nodes[i].Next {
		tok := t.nodes[i]
		switch tok.Kind {
		case Atom:
			b.WriteString(tok.Text)
		case QuotedString:
			if atDone || needsQuoting(tok.Text) {
				b.WriteByte('"')
				b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(tok.Text))
				b.WriteByte('"')
			} else {
				b.WriteString(tok.Text)
			}
		case Comment:
			// Comments carry no routing meaning; they are dropped on
			// internalization like Postfix's tok822 code does.
		case DomainLiteral:
			b.WriteByte('[')
			b.WriteString(tok.Text)
			b.WriteByte(']')
		case Special:
			b.WriteString(tok.Text)
			if tok.Text == "@" {
				atDone = true
			}
		case EmptyLocal:
			// Collapsed-empty sentinel; nothing to emit, the caller
			// substitutes postmaster before this point is reached.
		}
	}
	return b.String()
}

// needsQuoting reports whether a local-part token's text contains any
// character that RFC 822 requires to be quoted.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\"(),.:;<>@[]\\")
}

// Clone returns a deep copy of the tree, safe to mutate independently.
func (t *Tree) Clone() *Tree {
	nodes := make([]Token, len(t.nodes))
	copy(nodes, t.nodes)
	return &Tree{nodes: nodes, Head: t.Head, Tail: t.Tail}
}
