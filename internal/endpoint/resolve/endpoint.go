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
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/foxcpp/trivial-rewrite/framework/config"
	"github.com/foxcpp/trivial-rewrite/framework/log"
	"github.com/foxcpp/trivial-rewrite/framework/module"
	"github.com/foxcpp/trivial-rewrite/internal/resolve"
)

const modName = "resolve"

// Endpoint is the resolver's protocol endpoint: it owns a Resolver built by
// Init from the process configuration and serves it over one or more
// listeners.
type Endpoint struct {
	addrs  []string
	logger log.Logger

	resolver *resolve.Resolver

	listeners []net.Listener
	serveGrp  errgroup.Group
}

func New(_ string, addrs []string) (module.Module, error) {
	return &Endpoint{
		addrs:  addrs,
		logger: log.Logger{Name: modName},
	}, nil
}

func (e *Endpoint) Name() string         { return modName }
func (e *Endpoint) InstanceName() string { return modName }

func (e *Endpoint) Init(cfg *config.Map) error {
	resolver, err := bindResolver(cfg, e.logger)
	if err != nil {
		return err
	}
	e.resolver = resolver

	if module.NoRun {
		return nil
	}

	for _, a := range e.addrs {
		endp, err := config.ParseEndpoint(a)
		if err != nil {
			return fmt.Errorf("%s: malformed endpoint: %w", modName, err)
		}
		if endp.IsTLS() {
			return fmt.Errorf("%s: TLS is not supported, the resolver is meant to run on a local/trusted socket", modName)
		}

		l, err := net.Listen(endp.Network(), endp.Address())
		if err != nil {
			return fmt.Errorf("%s: %w", modName, err)
		}
		e.listeners = append(e.listeners, l)

		l := l
		e.serveGrp.Go(func() error {
			e.logger.Println("listening on", endp.String())
			e.serve(l)
			return nil
		})
	}

	return nil
}

// serve accepts connections until l is closed, handling each on its own
// goroutine - one thread of control per connection, with independent
// connections standing in for Postfix's pool of trivial-rewrite processes.
func (e *Endpoint) serve(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				e.logger.Error("accept failed", err)
			}
			return
		}

		go e.handleConn(conn)
	}
}

func (e *Endpoint) Close() error {
	var firstErr error
	for _, l := range e.listeners {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.serveGrp.Wait()
	return firstErr
}

func init() {
	module.RegisterEndpoint(modName, New)
}
