package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DisputeReason string

const (
	ReasonTicketInvalid DisputeReason = "ticket_invalid"
	ReasonWrongTicket   DisputeReason = "wrong_ticket"
	ReasonSellerNoShow  DisputeReason = "seller_no_show"
	ReasonOther         DisputeReason = "other"
)

func (r DisputeReason) Valid() bool {
	switch r {
	case ReasonTicketInvalid, ReasonWrongTicket, ReasonSellerNoShow, ReasonOther:
		return true
	}
	return false
}

type DisputeStatus string

const (
	DisputeOpen           DisputeStatus = "open"
	DisputeInvestigating  DisputeStatus = "investigating"
	DisputeResolvedBuyer  DisputeStatus = "resolved_buyer"
	DisputeResolvedSeller DisputeStatus = "resolved_seller"
)

// Resolved statuses are immutable.
func (s DisputeStatus) Resolved() bool {
	return s == DisputeResolvedBuyer || s == DisputeResolvedSeller
}

// UnresolvedDisputeStatuses are the statuses that freeze a transaction.
var UnresolvedDisputeStatuses = []DisputeStatus{DisputeOpen, DisputeInvestigating}

var ResolvedDisputeStatuses = []DisputeStatus{DisputeResolvedBuyer, DisputeResolvedSeller}

type Dispute struct {
	bun.BaseModel `bun:"table:disputes"`

	ID              string        `bun:"id,pk" json:"id"`
	TransactionID   string        `bun:"transaction_id,notnull" json:"transaction_id"`
	ReporterID      string        `bun:"reporter_id,notnull" json:"reporter_id"`
	Reason          DisputeReason `bun:"reason,notnull" json:"reason"`
	Description     string        `bun:"description,notnull" json:"description"`
	EvidenceURLs    []string      `bun:"evidence_urls,type:jsonb" json:"evidence_urls"`
	Status          DisputeStatus `bun:"status,notnull" json:"status"`
	ResolutionNotes string        `bun:"resolution_notes,nullzero" json:"resolution_notes,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	ResolvedAt      *time.Time    `bun:"resolved_at,nullzero" json:"resolved_at,omitempty"`
}
