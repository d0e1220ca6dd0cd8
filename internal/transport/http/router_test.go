package httptransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"govvault/internal/authz"
	"govvault/internal/events"
	jwttoken "govvault/internal/jwt_token"
	"govvault/internal/ledger"
	"govvault/internal/message"
	"govvault/internal/platform/health"
	"govvault/internal/policy"
	"govvault/internal/signer"
	"govvault/internal/treasury"
	"govvault/internal/vault"
	"govvault/internal/venue"
	"govvault/pkg/domain"
)

const feeAsset = domain.Asset("USDC")

type RouterSuite struct {
	suite.Suite
	router http.Handler
	tokens *jwttoken.JWTService
	bank   *treasury.InMemoryBank
	claims *ledger.Ledger

	payer *signer.KeyPair
	owner domain.Address
	agent domain.Address
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	recent := events.NewMemorySink(64)
	emitter := events.NewEmitter(recent)

	var err error
	s.payer, err = signer.GenerateKeyPair()
	s.Require().NoError(err)

	s.owner = domain.Address{0x0a}
	s.agent = domain.Address{0x0b}
	custody := domain.Address{0xc0}
	dev := domain.Address{0xd0}
	messageSelf := domain.Address{0x51}
	policySelf := domain.Address{0x52}
	vaultSelf := domain.Address{0x53}

	roles := authz.NewTable()
	for _, self := range []domain.Address{messageSelf, policySelf, vaultSelf} {
		roles.Grant(authz.RoleMinter, self)
	}
	roles.Grant(authz.RoleBurner, vaultSelf)

	s.bank = treasury.NewInMemoryBank()
	s.bank.Credit(feeAsset, s.payer.Address(), 1_000*domain.Unit)
	s.bank.Approve(feeAsset, s.payer.Address(), 1_000*domain.Unit)

	s.claims = ledger.New(roles, emitter, log, nil)

	messageService := message.NewService(message.Config{
		Self:             messageSelf,
		FeeAsset:         feeAsset,
		Fee:              10 * domain.Unit,
		Custody:          custody,
		RevenueRecipient: dev,
	}, message.NewStore(), s.claims, s.bank, roles, emitter, log, nil)

	policyService := policy.NewService(policy.Config{
		Self:             policySelf,
		FeeAsset:         feeAsset,
		Custody:          custody,
		RevenueRecipient: dev,
		MaxSize:          1_000,
		Initial:          "be kind",
	}, s.claims, s.bank, emitter, log, nil, nil)

	sim := venue.New(venue.Config{
		Custody:     custody,
		Reserve:     domain.Address{0xee},
		RewardAsset: feeAsset,
	}, s.bank)

	vaultService := vault.NewService(vault.Config{
		Self:            vaultSelf,
		Custody:         custody,
		RedemptionAsset: feeAsset,
		UnlockAt:        time.Now().Add(time.Hour),
		Owner:           s.owner,
		Agent:           s.agent,
	}, roles, s.claims, s.bank, sim, sim, sim, emitter, log, nil)

	s.tokens = jwttoken.NewJWTService("router-test-key", time.Hour)
	s.router = NewRouter(Deps{
		Logger:  log,
		Tokens:  s.tokens,
		Message: messageService,
		Policy:  policyService,
		Vault:   vaultService,
		Claims:  s.claims,
		Recent:  recent,
		Health:  health.New(),
	})
}

func (s *RouterSuite) request(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) tokenFor(addr domain.Address) string {
	token, err := s.tokens.GenerateAccessToken(addr, time.Now())
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) payBody(nonce uint64) string {
	contentHash := domain.Digest{0x11}
	msg := signer.SignedMessage{ContentHash: contentHash, Payer: s.payer.Address(), Nonce: nonce}
	body, err := json.Marshal(map[string]any{
		"content_hash": contentHash.String(),
		"payer":        s.payer.Address().String(),
		"nonce":        nonce,
		"signature":    base64.StdEncoding.EncodeToString(s.payer.Sign(msg.Digest())),
		"message_uri":  "ipfs://QmMessage",
	})
	s.Require().NoError(err)
	return string(body)
}

func (s *RouterSuite) TestPayMessageAndReplay() {
	w := s.request(http.MethodPost, "/v1/messages/pay", s.payBody(1), "")
	s.Equal(http.StatusCreated, w.Code)

	var resp struct {
		Digest   string        `json:"digest"`
		Fee      domain.Amount `json:"fee"`
		UserMint domain.Amount `json:"user_mint"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(10*domain.Unit, resp.Fee)
	s.Equal(domain.Unit, resp.UserMint)
	s.Equal(domain.Unit, s.claims.BalanceOf(s.payer.Address()))

	// Same signed message again is a conflict.
	w = s.request(http.MethodPost, "/v1/messages/pay", s.payBody(1), "")
	s.Equal(http.StatusConflict, w.Code)

	// The digest is now queryable without auth.
	w = s.request(http.MethodGet, "/v1/messages/"+resp.Digest, "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"paid"`)
}

func (s *RouterSuite) TestMarkProcessedNeedsAgentToken() {
	w := s.request(http.MethodPost, "/v1/messages/pay", s.payBody(2), "")
	s.Require().Equal(http.StatusCreated, w.Code)
	var resp struct {
		Digest string `json:"digest"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))

	path := "/v1/messages/" + resp.Digest + "/processed"

	w = s.request(http.MethodPost, path, "{}", "")
	s.Equal(http.StatusUnauthorized, w.Code)

	// Authenticated but not the agent: forbidden by the role table.
	w = s.request(http.MethodPost, path, "{}", s.tokenFor(s.owner))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodPost, path, "{}", s.tokenFor(s.agent))
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestPolicyReadAndEdit() {
	w := s.request(http.MethodGet, "/v1/policy", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "be kind")

	w = s.request(http.MethodPost, "/v1/policy/edits", `{"start":0,"end":2,"replacement":"Be"}`, "")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodPost, "/v1/policy/edits", `{"start":0,"end":2,"replacement":"Be"}`,
		s.tokenFor(s.payer.Address()))
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Be kind")
	s.Contains(w.Body.String(), `"version":2`)
}

func (s *RouterSuite) TestPolicyPreviewIsFree() {
	ctx := context.Background()
	before, err := s.bank.BalanceOf(ctx, feeAsset, s.payer.Address())
	s.Require().NoError(err)

	w := s.request(http.MethodPost, "/v1/policy/preview", `{"start":0,"end":0,"replacement":"`+strings.Repeat("x", 25)+`"}`, "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"changed_units":3`)

	after, err := s.bank.BalanceOf(ctx, feeAsset, s.payer.Address())
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *RouterSuite) TestVaultSnapshotPublic() {
	w := s.request(http.MethodGet, "/v1/vault", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"phase":"contribution"`)
}

func (s *RouterSuite) TestVaultSwapRequiresAgentRole() {
	body := `{"asset_in":"USDC","asset_out":"WETH","amount_in":1000000}`

	w := s.request(http.MethodPost, "/v1/vault/swaps", body, s.tokenFor(s.owner))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestClaimsEndpoints() {
	w := s.request(http.MethodGet, "/v1/claims/supply", "", "")
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/v1/claims/"+s.payer.Address().String(), "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"balance":0`)

	w = s.request(http.MethodGet, "/v1/claims/not-an-address", "", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestRecentEvents() {
	s.request(http.MethodPost, "/v1/messages/pay", s.payBody(3), "")

	w := s.request(http.MethodGet, "/v1/events", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "message.paid")
}
