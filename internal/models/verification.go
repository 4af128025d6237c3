package models

import (
	"time"

	"github.com/uptrace/bun"
)

type VerificationType string

const (
	VerificationBankLink   VerificationType = "bank_link"
	VerificationIDDocument VerificationType = "id_document"
	VerificationPhone      VerificationType = "phone"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

type SellerVerification struct {
	bun.BaseModel `bun:"table:seller_verifications"`

	ID               string             `bun:"id,pk" json:"id"`
	UserID           string             `bun:"user_id,notnull" json:"user_id"`
	VerificationType VerificationType   `bun:"verification_type,notnull" json:"verification_type"`
	VerificationData string             `bun:"verification_data,nullzero" json:"verification_data,omitempty"`
	Status           VerificationStatus `bun:"status,notnull" json:"status"`
	VerifiedAt       *time.Time         `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	CreatedAt        time.Time          `bun:"created_at,notnull" json:"created_at"`
}

// BankLinkData is the JSON payload stored for a bank_link verification.
type BankLinkData struct {
	Bank  string `json:"bank"`
	Last4 string `json:"last4"`
}

// IDDocumentData is the JSON payload stored for an id_document verification.
type IDDocumentData struct {
	URL      string `json:"url"`
	FullName string `json:"full_name"`
}
