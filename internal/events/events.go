// Package events is the append-only event stream every state-changing
// operation writes to. The off-chain agent consumes it to learn about paid
// messages and policy edits; observability tooling consumes it for audit.
// Keep events transport-agnostic so sinks can fan out.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"govvault/pkg/platform/middleware/requesttime"
)

// Type names an event kind. The catalogue is closed: one constant per
// state-changing operation.
type Type string

const (
	TypeMinted   Type = "ledger.minted"
	TypeBurned   Type = "ledger.burned"
	TypeTransfer Type = "ledger.transferred"
	TypePaused   Type = "ledger.paused"
	TypeUnpaused Type = "ledger.unpaused"

	TypeMessagePaid      Type = "message.paid"
	TypeMessageProcessed Type = "message.processed"

	TypePolicyEdited Type = "policy.edited"

	TypeSwapExecuted       Type = "vault.swap_executed"
	TypeSupplied           Type = "vault.supplied"
	TypeWithdrawn          Type = "vault.withdrawn"
	TypeRewardsClaimed     Type = "vault.rewards_claimed"
	TypeRedeemed           Type = "vault.redeemed"
	TypeAssetAllowed       Type = "vault.asset_allowed"
	TypeMarketAllowed      Type = "vault.market_allowed"
	TypeAssetMarketSet     Type = "vault.asset_market_set"
	TypeAgentChanged       Type = "vault.agent_changed"
	TypeOwnershipProposed  Type = "vault.ownership_proposed"
	TypeOwnershipAccepted  Type = "vault.ownership_accepted"
)

// Event is a single append-only record. Subject is the per-entity ordering
// key (digest, editor, holder) used for stream partitioning.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Subject   string         `json:"subject"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Sink receives events. Implementations must not block the caller on slow
// transports; delivery failures are logged, never surfaced to domain logic.
type Sink interface {
	Write(ctx context.Context, e Event)
}

// Emitter stamps and fans events out to its sinks.
type Emitter struct {
	sinks []Sink
}

// NewEmitter creates an emitter over the given sinks. An emitter with no
// sinks swallows events, which is what most unit tests want.
func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{sinks: sinks}
}

// Emit stamps the event with an ID and the request-scoped time, then writes
// it to every sink.
func (e *Emitter) Emit(ctx context.Context, typ Type, subject string, fields map[string]any) {
	ev := Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: requesttime.Now(ctx),
		Subject:   subject,
		Fields:    fields,
	}
	for _, s := range e.sinks {
		s.Write(ctx, ev)
	}
}

// MemorySink keeps the most recent events in a bounded ring. Used by tests
// and the introspection API.
type MemorySink struct {
	mu     sync.RWMutex
	buf    []Event
	next   int
	filled bool
}

// NewMemorySink creates a ring holding up to capacity events.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemorySink{buf: make([]Event, capacity)}
}

func (s *MemorySink) Write(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = e
	s.next++
	if s.next == len(s.buf) {
		s.next = 0
		s.filled = true
	}
}

// Recent returns the buffered events, oldest first.
func (s *MemorySink) Recent() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.filled {
		out := make([]Event, s.next)
		copy(out, s.buf[:s.next])
		return out
	}
	out := make([]Event, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	out = append(out, s.buf[:s.next]...)
	return out
}
