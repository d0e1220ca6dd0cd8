package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"govvault/internal/authz"
	"govvault/internal/events"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

type LedgerSuite struct {
	suite.Suite
	ctx    context.Context
	roles  *authz.Table
	sink   *events.MemorySink
	ledger *Ledger

	minter domain.Address
	burner domain.Address
	pauser domain.Address
	alice  domain.Address
	bob    domain.Address
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.roles = authz.NewTable()
	s.sink = events.NewMemorySink(64)

	s.minter = domain.Address{0x10}
	s.burner = domain.Address{0x20}
	s.pauser = domain.Address{0x30}
	s.alice = domain.Address{0x01}
	s.bob = domain.Address{0x02}

	s.roles.Grant(authz.RoleMinter, s.minter)
	s.roles.Grant(authz.RoleBurner, s.burner)
	s.roles.Grant(authz.RolePauser, s.pauser)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ledger = New(s.roles, events.NewEmitter(s.sink), log, nil)
}

func (s *LedgerSuite) TestMint() {
	s.Require().NoError(s.ledger.Mint(s.ctx, s.minter, s.alice, 3*domain.Unit))

	s.Equal(3*domain.Unit, s.ledger.BalanceOf(s.alice))
	s.Equal(3*domain.Unit, s.ledger.TotalSupply())

	evs := s.sink.Recent()
	s.Require().Len(evs, 1)
	s.Equal(events.TypeMinted, evs[0].Type)
}

func (s *LedgerSuite) TestMintRequiresMinterRole() {
	err := s.ledger.Mint(s.ctx, s.alice, s.alice, domain.Unit)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(domain.Amount(0), s.ledger.TotalSupply())
}

func (s *LedgerSuite) TestMintRejectsNullRecipient() {
	err := s.ledger.Mint(s.ctx, s.minter, domain.ZeroAddress, domain.Unit)
	s.ErrorIs(err, ErrInvalidRecipient)
}

func (s *LedgerSuite) TestBurnFrom() {
	s.Require().NoError(s.ledger.Mint(s.ctx, s.minter, s.alice, 5*domain.Unit))

	s.Run("burner role burns without allowance", func() {
		s.Require().NoError(s.ledger.BurnFrom(s.ctx, s.burner, s.alice, 2*domain.Unit))
		s.Equal(3*domain.Unit, s.ledger.BalanceOf(s.alice))
		s.Equal(3*domain.Unit, s.ledger.TotalSupply())
	})

	s.Run("holder burns own claims", func() {
		s.Require().NoError(s.ledger.BurnFrom(s.ctx, s.alice, s.alice, domain.Unit))
		s.Equal(2*domain.Unit, s.ledger.BalanceOf(s.alice))
	})

	s.Run("third party needs allowance", func() {
		err := s.ledger.BurnFrom(s.ctx, s.bob, s.alice, domain.Unit)
		s.ErrorIs(err, ErrInsufficientAllowance)

		s.Require().NoError(s.ledger.Approve(s.ctx, s.alice, s.bob, domain.Unit))
		s.Require().NoError(s.ledger.BurnFrom(s.ctx, s.bob, s.alice, domain.Unit))
		s.Equal(domain.Amount(0), s.ledger.Allowance(s.alice, s.bob))
	})
}

func (s *LedgerSuite) TestBurnFromRejectsNullAccount() {
	err := s.ledger.BurnFrom(s.ctx, s.burner, domain.ZeroAddress, domain.Unit)
	s.ErrorIs(err, ErrInvalidAccount)
}

func (s *LedgerSuite) TestBurnFromInsufficientBalance() {
	s.Require().NoError(s.ledger.Mint(s.ctx, s.minter, s.alice, domain.Unit))

	err := s.ledger.BurnFrom(s.ctx, s.burner, s.alice, 2*domain.Unit)
	s.ErrorIs(err, ErrInsufficientBalance)
	s.Equal(domain.Unit, s.ledger.BalanceOf(s.alice))
}

// TestBurnFromInsufficientBalanceKeepsAllowance: a delegated burn that fails
// on the holder's balance must leave the spender's allowance untouched.
func (s *LedgerSuite) TestBurnFromInsufficientBalanceKeepsAllowance() {
	s.Require().NoError(s.ledger.Mint(s.ctx, s.minter, s.alice, domain.Unit))
	s.Require().NoError(s.ledger.Approve(s.ctx, s.alice, s.bob, 5*domain.Unit))

	err := s.ledger.BurnFrom(s.ctx, s.bob, s.alice, 3*domain.Unit)
	s.ErrorIs(err, ErrInsufficientBalance)

	s.Equal(5*domain.Unit, s.ledger.Allowance(s.alice, s.bob))
	s.Equal(domain.Unit, s.ledger.BalanceOf(s.alice))
	s.Equal(domain.Unit, s.ledger.TotalSupply())
}

func (s *LedgerSuite) TestPauseBlocksTransfersOnly() {
	s.Require().NoError(s.ledger.Mint(s.ctx, s.minter, s.alice, 4*domain.Unit))
	s.Require().NoError(s.ledger.Pause(s.ctx, s.pauser))

	err := s.ledger.Transfer(s.ctx, s.alice, s.bob, domain.Unit)
	s.ErrorIs(err, ErrTransfersPaused)

	// Mint and burn are unaffected by the pause flag.
	s.Require().NoError(s.ledger.Mint(s.ctx, s.minter, s.bob, domain.Unit))
	s.Require().NoError(s.ledger.BurnFrom(s.ctx, s.burner, s.alice, domain.Unit))

	s.Require().NoError(s.ledger.Unpause(s.ctx, s.pauser))
	s.Require().NoError(s.ledger.Transfer(s.ctx, s.alice, s.bob, domain.Unit))
}

func (s *LedgerSuite) TestPauseRequiresPauserRole() {
	err := s.ledger.Pause(s.ctx, s.alice)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.False(s.ledger.Paused())
}

// TestSupplyInvariant checks totalSupply == sum(balances) across a mixed
// mint/burn/transfer sequence.
func (s *LedgerSuite) TestSupplyInvariant() {
	holders := []domain.Address{s.alice, s.bob, {0x03}, {0x04}}

	checkInvariant := func() {
		var sum domain.Amount
		for _, h := range holders {
			sum += s.ledger.BalanceOf(h)
		}
		s.Require().Equal(s.ledger.TotalSupply(), sum)
	}

	for i := 1; i <= 20; i++ {
		to := holders[i%len(holders)]
		s.Require().NoError(s.ledger.Mint(s.ctx, s.minter, to, domain.Amount(i)*domain.Unit/10))
		checkInvariant()

		if i%3 == 0 {
			_ = s.ledger.BurnFrom(s.ctx, s.burner, to, domain.Unit/20)
			checkInvariant()
		}
		if i%4 == 0 {
			_ = s.ledger.Transfer(s.ctx, to, holders[(i+1)%len(holders)], domain.Unit/50)
			checkInvariant()
		}
	}
}
