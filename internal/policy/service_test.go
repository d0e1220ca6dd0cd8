package policy

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"govvault/internal/authz"
	"govvault/internal/events"
	"govvault/internal/ledger"
	"govvault/internal/treasury"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

const usdc = domain.Asset("USDC")

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	bank    *treasury.InMemoryBank
	claims  *ledger.Ledger
	sink    *events.MemorySink
	service *Service

	editor  domain.Address
	dev     domain.Address
	custody domain.Address
	self    domain.Address
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.bank = treasury.NewInMemoryBank()
	s.sink = events.NewMemorySink(64)

	s.editor = domain.Address{0x01}
	s.dev = domain.Address{0xd0}
	s.custody = domain.Address{0xc0}
	s.self = domain.Address{0x5f}

	roles := authz.NewTable()
	roles.Grant(authz.RoleMinter, s.self)
	roles.Grant(authz.RoleBurner, s.self)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := events.NewEmitter(s.sink)
	s.claims = ledger.New(roles, emitter, log, nil)

	s.service = NewService(Config{
		Self:             s.self,
		FeeAsset:         usdc,
		Custody:          s.custody,
		RevenueRecipient: s.dev,
		MaxSize:          100,
		Initial:          "hello world",
	}, s.claims, s.bank, emitter, log, nil, nil)

	s.bank.Credit(usdc, s.editor, 1000*domain.Unit)
	s.bank.Approve(usdc, s.editor, 1000*domain.Unit)
}

func (s *ServiceSuite) TestInitialDocument() {
	doc := s.service.Document()
	s.Equal("hello world", doc.Text)
	s.Equal(uint64(1), doc.Version)
}

func (s *ServiceSuite) TestEditSplicesAndIncrementsVersion() {
	v, err := s.service.Edit(s.ctx, s.editor, 6, 11, []byte("portfolio"))
	s.Require().NoError(err)

	s.Equal("hello portfolio", v.Text)
	s.Equal(uint64(2), v.Version)

	// Splice with a shorter replacement shrinks the document.
	v, err = s.service.Edit(s.ctx, s.editor, 0, 6, nil)
	s.Require().NoError(err)
	s.Equal("portfolio", v.Text)
	s.Equal(uint64(3), v.Version)
}

func (s *ServiceSuite) TestEditChargesByLargerSide() {
	// Removing 5 bytes, inserting 9: cost is ceil(9/10) = 1 unit.
	_, err := s.service.Edit(s.ctx, s.editor, 6, 11, []byte("portfolio"))
	s.Require().NoError(err)

	s.Equal(domain.Unit, s.claims.BalanceOf(s.editor))
	s.Equal(domain.Unit/5, s.claims.BalanceOf(s.dev))

	custody, err := s.bank.BalanceOf(s.ctx, usdc, s.custody)
	s.Require().NoError(err)
	s.Equal(domain.Unit, custody)

	// Removing 15 bytes while inserting 1: charged on the removed side,
	// ceil(15/10) = 2 units.
	_, err = s.service.Edit(s.ctx, s.editor, 0, 15, []byte("x"))
	s.Require().NoError(err)
	s.Equal(3*domain.Unit, s.claims.BalanceOf(s.editor))
}

func (s *ServiceSuite) TestCostCeilingDivision() {
	for changed, wantUnits := range map[int]uint64{
		1: 1, 9: 1, 10: 1,
		11: 2, 20: 2,
		21: 3,
	} {
		cost := Cost(changed)
		assert.Equal(s.T(), wantUnits, cost.ChangedUnits, "changed=%d", changed)
		assert.Equal(s.T(), domain.Amount(wantUnits)*domain.Unit, cost.Fee)
		assert.Equal(s.T(), cost.UserMint/5, cost.DevMint)
	}
}

func (s *ServiceSuite) TestEditRejectsInvalidRange() {
	for name, edit := range map[string][2]int{
		"start past end":        {5, 2},
		"end past document":     {0, 999},
		"start beyond document": {50, 60},
	} {
		s.Run(name, func() {
			_, err := s.service.Edit(s.ctx, s.editor, edit[0], edit[1], []byte("x"))
			s.ErrorIs(err, ErrInvalidRange)
		})
	}
	s.Equal(uint64(1), s.service.Document().Version)
}

func (s *ServiceSuite) TestEditRejectsOversizedResult() {
	_, err := s.service.Edit(s.ctx, s.editor, 0, 0, []byte(strings.Repeat("a", 95)))
	s.ErrorIs(err, ErrSizeExceeded)

	// Boundary: growing to exactly MaxSize is fine.
	_, err = s.service.Edit(s.ctx, s.editor, 0, 0, []byte(strings.Repeat("a", 89)))
	s.Require().NoError(err)
	s.Len(s.service.Document().Text, 100)

	// No sequence of edits can push past the limit.
	_, err = s.service.Edit(s.ctx, s.editor, 0, 0, []byte("b"))
	s.ErrorIs(err, ErrSizeExceeded)
}

func (s *ServiceSuite) TestEditRollsBackOnTransferFailure() {
	s.bank.Approve(usdc, s.editor, 0)

	_, err := s.service.Edit(s.ctx, s.editor, 0, 5, []byte("HELLO"))
	s.ErrorIs(err, treasury.ErrInsufficientAllowance)

	doc := s.service.Document()
	s.Equal("hello world", doc.Text)
	s.Equal(uint64(1), doc.Version)
	s.Equal(domain.Amount(0), s.claims.TotalSupply())
}

// TestEditRollsBackOnDevMintFailure: a failed surcharge mint unwinds the
// editor's mint through the protocol identity's burner role and refunds the
// fee, leaving document, supply, and balances untouched.
func (s *ServiceSuite) TestEditRollsBackOnDevMintFailure() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(Config{
		Self:             s.self,
		FeeAsset:         usdc,
		Custody:          s.custody,
		RevenueRecipient: domain.ZeroAddress, // the surcharge mint is rejected
		MaxSize:          100,
		Initial:          "hello world",
	}, s.claims, s.bank, events.NewEmitter(), log, nil, nil)

	_, err := svc.Edit(s.ctx, s.editor, 0, 5, []byte("HELLO"))
	s.ErrorIs(err, ledger.ErrInvalidRecipient)

	doc := svc.Document()
	s.Equal("hello world", doc.Text)
	s.Equal(uint64(1), doc.Version)
	s.Equal(domain.Amount(0), s.claims.TotalSupply())

	editorBal, err := s.bank.BalanceOf(s.ctx, usdc, s.editor)
	s.Require().NoError(err)
	s.Equal(1000*domain.Unit, editorBal)
}

func (s *ServiceSuite) TestSlice() {
	text, err := s.service.Slice(0, 5)
	s.Require().NoError(err)
	s.Equal("hello", text)

	_, err = s.service.Slice(8, 4)
	s.ErrorIs(err, ErrInvalidRange)
}

func (s *ServiceSuite) TestEditEmitsEvent() {
	_, err := s.service.Edit(s.ctx, s.editor, 0, 5, []byte("howdy"))
	s.Require().NoError(err)

	var edited *events.Event
	for _, e := range s.sink.Recent() {
		if e.Type == events.TypePolicyEdited {
			edited = &e
		}
	}
	s.Require().NotNil(edited)
	s.Equal(s.editor.String(), edited.Fields["editor"])
	s.Equal(uint64(2), edited.Fields["version"])
}

// reentrantBank re-enters Edit from inside the fee transfer.
type reentrantBank struct {
	*treasury.InMemoryBank
	service *Service
	inner   error
}

func (b *reentrantBank) TransferFrom(ctx context.Context, asset domain.Asset, owner, recipient domain.Address, amount domain.Amount) error {
	_, b.inner = b.service.Edit(ctx, owner, 0, 1, []byte("!"))
	return b.inner
}

func (s *ServiceSuite) TestReentrantEditRejected() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bank := &reentrantBank{InMemoryBank: s.bank}

	svc := NewService(Config{
		Self:             s.self,
		FeeAsset:         usdc,
		Custody:          s.custody,
		RevenueRecipient: s.dev,
		MaxSize:          100,
		Initial:          "hello world",
	}, s.claims, bank, events.NewEmitter(), log, nil, nil)
	bank.service = svc

	_, err := svc.Edit(s.ctx, s.editor, 0, 5, []byte("HELLO"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(bank.inner, dErrors.CodeReentrantCall))

	// The outer edit's entire state change is rolled back.
	doc := svc.Document()
	s.Equal("hello world", doc.Text)
	s.Equal(uint64(1), doc.Version)
	s.Equal(domain.Amount(0), s.claims.TotalSupply())
}
