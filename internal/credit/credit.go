package credit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a credit request. PENDING requests are
// approved or rejected by an operator; APPROVED requests are applied to
// the vendor balance exactly once by the mutation engine.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusApplied  Status = "APPLIED"
)

// Request is a vendor's request for a balance top-up.
type Request struct {
	ID              uuid.UUID
	VendorID        uuid.UUID
	Amount          decimal.Decimal // always positive
	Status          Status
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
