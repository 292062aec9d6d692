package testutils

import "context"

// Table is an in-memory module.Table fake: it serves resolver-engine and
// table-backend tests instead of a real DBM/LDAP/SQL backend.
type Table struct {
	M   map[string]string
	Err error
}

func (m Table) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := m.M[key]
	return v, ok, m.Err
}
