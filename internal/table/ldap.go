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
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/foxcpp/trivial-rewrite/framework/config"
	"github.com/foxcpp/trivial-rewrite/framework/log"
	"github.com/foxcpp/trivial-rewrite/framework/module"
)

// LDAP is a read-only table backed by a directory search: each lookup runs
// filter with {key} substituted for the value being resolved and returns one
// attribute off the single matching entry. It exists for classifying
// addresses (relay/virtual/relocated domains, mailbox existence) against a
// directory instead of a flat file or SQL table.
type LDAP struct {
	modName  string
	instName string

	urls           []string
	readBind       func(*ldap.Conn) error
	startls        bool
	tlsCfg         *tls.Config
	dialer         *net.Dialer
	requestTimeout time.Duration

	baseDN         string
	filterTemplate string
	attribute      string

	conn     *ldap.Conn
	connLock sync.Mutex

	log log.Logger
}

func NewLDAP(modName, instName string, _, inlineArgs []string) (module.Module, error) {
	return &LDAP{
		modName:  modName,
		instName: instName,
		log:      log.Logger{Name: modName},
		urls:     inlineArgs,
	}, nil
}

func (l *LDAP) Name() string         { return l.modName }
func (l *LDAP) InstanceName() string { return l.instName }

func (l *LDAP) Init(cfg *config.Map) error {
	l.dialer = &net.Dialer{}

	cfg.Bool("debug", true, false, &l.log.Debug)
	cfg.Custom("tls_client", true, false, func() (interface{}, error) {
		return &tls.Config{}, nil
	}, config.TLSClientBlock, &l.tlsCfg)
	cfg.Callback("urls", func(m *config.Map, node config.Node) error {
		l.urls = append(l.urls, node.Args...)
		return nil
	})
	cfg.Custom("bind", false, false, func() (interface{}, error) {
		return func(*ldap.Conn) error {
			return nil
		}, nil
	}, readLDAPBindDirective, &l.readBind)
	cfg.Bool("starttls", false, false, &l.startls)
	cfg.Duration("connect_timeout", false, false, time.Minute, &l.dialer.Timeout)
	cfg.Duration("request_timeout", false, false, time.Minute, &l.requestTimeout)
	cfg.String("base_dn", false, true, "", &l.baseDN)
	cfg.String("filter", false, true, "", &l.filterTemplate)
	cfg.String("attribute", false, false, "mail", &l.attribute)
	if _, err := cfg.Process(); err != nil {
		return err
	}

	if len(l.urls) == 0 {
		return fmt.Errorf("%s: no directory server URLs configured", l.modName)
	}

	if module.NoRun {
		return nil
	}

	var err error
	l.conn, err = l.newConn()
	if err != nil {
		return fmt.Errorf("%s: %w", l.modName, err)
	}
	return nil
}

func readLDAPBindDirective(c *config.Map, n config.Node) (interface{}, error) {
	if len(n.Args) == 0 {
		return nil, fmt.Errorf("table.ldap: bind expects at least one argument")
	}
	switch n.Args[0] {
	case "off":
		return func(*ldap.Conn) error { return nil }, nil
	case "unauth":
		if len(n.Args) == 2 {
			return func(c *ldap.Conn) error {
				return c.UnauthenticatedBind(n.Args[1])
			}, nil
		}
		return func(c *ldap.Conn) error {
			return c.UnauthenticatedBind("")
		}, nil
	case "plain":
		if len(n.Args) != 3 {
			return nil, fmt.Errorf("table.ldap: username and password expected for plaintext bind")
		}
		return func(c *ldap.Conn) error {
			return c.Bind(n.Args[1], n.Args[2])
		}, nil
	case "external":
		return (*ldap.Conn).ExternalBind, nil
	}
	return nil, fmt.Errorf("table.ldap: unknown bind authentication: %v", n.Args[0])
}

func (l *LDAP) newConn() (*ldap.Conn, error) {
	var (
		conn   *ldap.Conn
		tlsCfg *tls.Config
	)
	for _, u := range l.urls {
		parsedURL, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("invalid server URL: %w", err)
		}
		tlsCfg = l.tlsCfg.Clone()
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		tlsCfg.ServerName = parsedURL.Host

		conn, err = ldap.DialURL(u, ldap.DialWithDialer(l.dialer), ldap.DialWithTLSConfig(tlsCfg))
		if err != nil {
			l.log.Error("cannot contact directory server", err, "url", u)
			continue
		}
		break
	}
	if conn == nil {
		return nil, fmt.Errorf("all directory servers are unreachable")
	}

	if l.requestTimeout != 0 {
		conn.SetTimeout(l.requestTimeout)
	}

	if l.startls {
		if err := conn.StartTLS(tlsCfg); err != nil {
			return nil, err
		}
	}

	if err := l.readBind(conn); err != nil {
		return nil, err
	}

	return conn, nil
}

func (l *LDAP) getConn() (*ldap.Conn, error) {
	l.connLock.Lock()
	if l.conn == nil || l.conn.IsClosing() {
		if l.conn != nil {
			l.conn.Close()
		}
		conn, err := l.newConn()
		if err != nil {
			l.connLock.Unlock()
			return nil, err
		}
		l.conn = conn
	}
	return l.conn, nil
}

func (l *LDAP) returnConn(conn *ldap.Conn) {
	defer l.connLock.Unlock()
	l.conn = conn
}

// Lookup runs the configured search filter with key substituted for
// "{key}" and returns the value of attribute off the single matching entry.
func (l *LDAP) Lookup(_ context.Context, key string) (string, bool, error) {
	conn, err := l.getConn()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", l.modName, err)
	}
	defer l.returnConn(conn)

	req := ldap.NewSearchRequest(
		l.baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, 0, false,
		strings.ReplaceAll(l.filterTemplate, "{key}", ldap.EscapeFilter(key)),
		[]string{l.attribute}, nil)
	res, err := conn.Search(req)
	if err != nil {
		return "", false, fmt.Errorf("%s: search: %w", l.modName, err)
	}
	if len(res.Entries) == 0 {
		return "", false, nil
	}
	if len(res.Entries) > 1 {
		return "", false, fmt.Errorf("%s: ambiguous key, %d entries matched", l.modName, len(res.Entries))
	}

	vals := res.Entries[0].GetAttributeValues(l.attribute)
	if len(vals) == 0 {
		return "", false, nil
	}
	return vals[0], true, nil
}

func (l *LDAP) Close() error {
	l.connLock.Lock()
	defer l.connLock.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

func init() {
	var _ module.Table = &LDAP{}
	module.Register("table.ldap", NewLDAP)
}
