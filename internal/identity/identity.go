// Package identity signs users in with one-time codes sent by SMS and issues
// the session tokens the HTTP API accepts.
package identity

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"ms-resale/internal/apperr"

	"github.com/google/uuid"
)

// Provider issues and checks one-time codes. VerifyOTP returns the stable
// user id of the phone number on success.
type Provider interface {
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (string, error)
}

var phonePattern = regexp.MustCompile(`^\+995\d{9}$`)

// NormalizePhone strips whitespace and checks the Georgian mobile format.
func NormalizePhone(raw string) (string, error) {
	phone := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if !phonePattern.MatchString(phone) {
		return "", apperr.Validation("phone must look like +995XXXXXXXXX")
	}
	return phone, nil
}

// UserIDForPhone derives the same user id for a phone number every time.
func UserIDForPhone(phone string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tel:"+phone)).String()
}
