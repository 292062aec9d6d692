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

package module

import (
	"sync"
)

var (
	factories   = make(map[string]FuncNewModule)
	endpoints   = make(map[string]FuncNewEndpoint)
	factoryLock sync.RWMutex
)

// Register adds a module factory function to the global registry.
//
// name must be unique. Register will panic if a module with the specified
// name is already registered.
//
// Table backends and other pluggable modules call this from their own
// func init().
func Register(name string, factory FuncNewModule) {
	factoryLock.Lock()
	defer factoryLock.Unlock()

	if _, ok := factories[name]; ok {
		panic("module.Register: module with specified name is already registered: " + name)
	}

	factories[name] = factory
}

// Get returns a module factory from the global registry.
//
// This function does not return endpoint-type modules, use GetEndpoint for
// that. Nil is returned if no module with the specified name is registered.
func Get(name string) FuncNewModule {
	factoryLock.RLock()
	defer factoryLock.RUnlock()

	return factories[name]
}

// RegisterEndpoint registers an endpoint module factory.
//
// See FuncNewEndpoint for information about how endpoint modules differ
// from regular ones.
func RegisterEndpoint(name string, factory FuncNewEndpoint) {
	factoryLock.Lock()
	defer factoryLock.Unlock()

	if _, ok := endpoints[name]; ok {
		panic("module.RegisterEndpoint: module with specified name is already registered: " + name)
	}

	endpoints[name] = factory
}

// GetEndpoint returns an endpoint module factory from the global registry.
//
// Nil is returned if no endpoint module with the specified name is
// registered.
func GetEndpoint(name string) FuncNewEndpoint {
	factoryLock.RLock()
	defer factoryLock.RUnlock()

	return endpoints[name]
}
