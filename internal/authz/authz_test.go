package authz

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

type AuthzSuite struct {
	suite.Suite
	table *Table
	alice domain.Address
	bob   domain.Address
}

func TestAuthzSuite(t *testing.T) {
	suite.Run(t, new(AuthzSuite))
}

func (s *AuthzSuite) SetupTest() {
	s.table = NewTable()
	s.alice = domain.Address{0x01}
	s.bob = domain.Address{0x02}
}

func (s *AuthzSuite) TestGrantAndHas() {
	s.False(s.table.Has(RoleAgent, s.alice))

	s.table.Grant(RoleAgent, s.alice)
	s.True(s.table.Has(RoleAgent, s.alice))

	s.Run("role grants are per-identity", func() {
		s.False(s.table.Has(RoleAgent, s.bob))
	})

	s.Run("roles do not imply each other", func() {
		s.False(s.table.Has(RoleOwner, s.alice))
	})
}

func (s *AuthzSuite) TestRevoke() {
	s.table.Grant(RoleMinter, s.alice)
	s.table.Revoke(RoleMinter, s.alice)
	s.False(s.table.Has(RoleMinter, s.alice))

	// Revoking an unheld role is a no-op.
	s.table.Revoke(RolePauser, s.bob)
}

func (s *AuthzSuite) TestRequire() {
	s.table.Grant(RoleBurner, s.alice)

	s.NoError(s.table.Require(RoleBurner, s.alice))

	err := s.table.Require(RoleBurner, s.bob)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
