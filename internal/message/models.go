package message

import (
	"time"

	"govvault/internal/signer"
	"govvault/pkg/domain"
)

// Status is the per-digest state machine. Linear, no regression:
// Unseen -> Paid -> Processed.
type Status uint8

const (
	StatusUnseen Status = iota
	StatusPaid
	StatusProcessed
)

func (s Status) String() string {
	switch s {
	case StatusPaid:
		return "paid"
	case StatusProcessed:
		return "processed"
	default:
		return "unseen"
	}
}

// Record is the paid-message state kept per digest.
type Record struct {
	Message     signer.SignedMessage
	URI         string
	UserMint    domain.Amount
	DevMint     domain.Amount
	PaidAt      time.Time
	ProcessedAt *time.Time
}

// Receipt is what PayForMessage returns to the payer.
type Receipt struct {
	Digest   domain.Digest
	Fee      domain.Amount
	UserMint domain.Amount
	DevMint  domain.Amount
}
