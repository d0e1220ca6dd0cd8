// Package authz is the shared authorization module used by all portfolio
// components: an explicit capability table mapping roles to identity sets,
// checked by a pure predicate at the start of each operation.
package authz

import (
	"fmt"
	"sync"

	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

// Role names a capability. There is no hierarchy; an identity holds exactly
// the roles it has been granted.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAgent  Role = "agent"
	RoleMinter Role = "minter"
	RoleBurner Role = "burner"
	RolePauser Role = "pauser"
)

// Table is the capability table. Mutations are admin operations; reads happen
// on every component call, hence the RWMutex.
type Table struct {
	mu     sync.RWMutex
	grants map[Role]map[domain.Address]struct{}
}

// NewTable creates an empty capability table.
func NewTable() *Table {
	return &Table{grants: make(map[Role]map[domain.Address]struct{})}
}

// Grant adds an identity to a role. Granting an already-held role is a no-op.
func (t *Table) Grant(role Role, identity domain.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.grants[role] == nil {
		t.grants[role] = make(map[domain.Address]struct{})
	}
	t.grants[role][identity] = struct{}{}
}

// Revoke removes an identity from a role.
func (t *Table) Revoke(role Role, identity domain.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.grants[role], identity)
}

// Has reports whether identity holds role.
func (t *Table) Has(role Role, identity domain.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.grants[role][identity]
	return ok
}

// Require returns a forbidden error unless identity holds role.
func (t *Table) Require(role Role, identity domain.Address) error {
	if !t.Has(role, identity) {
		return dErrors.New(dErrors.CodeForbidden, fmt.Sprintf("caller %s does not hold the %s role", identity, role))
	}
	return nil
}
