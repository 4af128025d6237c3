package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	InitialReputation = 50
	MaxReputation     = 100
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID               string    `bun:"id,pk" json:"id"`
	Phone            string    `bun:"phone,unique,notnull" json:"phone"`
	Email            string    `bun:"email,nullzero" json:"email,omitempty"`
	FullName         string    `bun:"full_name,nullzero" json:"full_name,omitempty"`
	AvatarURL        string    `bun:"avatar_url,nullzero" json:"avatar_url,omitempty"`
	IsVerifiedSeller bool      `bun:"is_verified_seller,notnull" json:"is_verified_seller"`
	IsAdmin          bool      `bun:"is_admin,notnull" json:"is_admin"`
	BankAccountLast4 string    `bun:"bank_account_last4,nullzero" json:"bank_account_last4,omitempty"`
	ReputationScore  int       `bun:"reputation_score,notnull" json:"reputation_score"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"created_at"`
}

// NewUser builds the profile created on a user's first successful OTP login.
func NewUser(id, phone string, now time.Time) User {
	return User{
		ID:              id,
		Phone:           phone,
		ReputationScore: InitialReputation,
		CreatedAt:       now,
	}
}

// ClampReputation keeps a reputation score inside 0..100.
func ClampReputation(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxReputation {
		return MaxReputation
	}
	return score
}
