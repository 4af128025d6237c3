// Package account signs users in, keeps their profile and runs seller
// verification.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/blob"
	"ms-resale/internal/identity"
	"ms-resale/internal/logger"
	"ms-resale/internal/models"
	"ms-resale/internal/validation"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User, columns ...string) error
	SaveVerification(ctx context.Context, v *models.SellerVerification, user *models.User, userColumns ...string) error
	ReviewVerification(ctx context.Context, v *models.SellerVerification, user *models.User, userColumns ...string) error
	GetVerification(ctx context.Context, id string) (*models.SellerVerification, error)
	ListVerificationsByUser(ctx context.Context, userID string) ([]models.SellerVerification, error)
	ListVerificationsByStatus(ctx context.Context, status models.VerificationStatus) ([]models.SellerVerification, error)
}

type Options struct {
	AdminPhones []string
	AutoApprove bool
}

type AccountService struct {
	DB          DBLayer
	Identity    identity.Provider
	Tokens      *identity.TokenIssuer
	Blob        blob.Store
	Logger      *logger.Logger
	AutoApprove bool
	Now         func() time.Time
	NewID       func() string

	adminPhones map[string]bool
}

func NewAccountService(db DBLayer, provider identity.Provider, tokens *identity.TokenIssuer, blobs blob.Store, log *logger.Logger, opts Options) *AccountService {
	admins := make(map[string]bool, len(opts.AdminPhones))
	for _, raw := range opts.AdminPhones {
		phone, err := identity.NormalizePhone(raw)
		if err != nil {
			log.Warn("AUTH", fmt.Sprintf("Ignoring malformed admin phone %q", raw))
			continue
		}
		admins[phone] = true
	}
	return &AccountService{
		DB:          db,
		Identity:    provider,
		Tokens:      tokens,
		Blob:        blobs,
		Logger:      log,
		AutoApprove: opts.AutoApprove,
		Now:         time.Now,
		NewID:       func() string { return uuid.New().String() },
		adminPhones: admins,
	}
}

func (s *AccountService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Session is returned after a successful sign-in.
type Session struct {
	identity.AccessToken
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

// RequestCode sends a one-time code to the phone.
func (s *AccountService) RequestCode(ctx context.Context, phone string) error {
	if err := s.Identity.RequestOTP(ctx, phone); err != nil {
		return err
	}
	s.Logger.LogSecurity("OTP_SENT", "code requested")
	return nil
}

// Login checks the code, creates the profile on first sign-in and issues a
// session token.
func (s *AccountService) Login(ctx context.Context, rawPhone, code string) (*Session, error) {
	userID, err := s.Identity.VerifyOTP(ctx, rawPhone, code)
	if err != nil {
		s.Logger.LogSecurity("OTP_REJECTED", err.Error())
		return nil, err
	}
	phone, err := identity.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	user, created, err := s.ensureUser(ctx, userID, phone)
	if err != nil {
		return nil, err
	}

	token, err := s.Tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	s.Logger.LogSecurity("LOGIN", "user "+user.ID)
	return &Session{AccessToken: token, User: user, Created: created}, nil
}

func (s *AccountService) ensureUser(ctx context.Context, userID, phone string) (*models.User, bool, error) {
	user, err := s.DB.GetUser(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	fresh := models.NewUser(userID, phone, s.now())
	fresh.IsAdmin = s.adminPhones[phone]
	if err := s.DB.CreateUser(ctx, &fresh); err != nil {
		// a concurrent first login may have created the row already
		if existing, getErr := s.DB.GetUser(ctx, userID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	s.Logger.Info("AUTH", fmt.Sprintf("Created profile %s (admin=%t)", fresh.ID, fresh.IsAdmin))
	return &fresh, true, nil
}

func (s *AccountService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.DB.GetUser(ctx, userID)
}

type ProfileUpdate struct {
	FullName string `json:"full_name" validate:"notblank,max=100"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, req ProfileUpdate) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.DB.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FullName = strings.TrimSpace(req.FullName)
	if err := s.DB.UpdateUser(ctx, user, "full_name"); err != nil {
		return nil, err
	}
	return user, nil
}

type VerificationRequest struct {
	Type     models.VerificationType `json:"verification_type" validate:"oneof=bank_link id_document"`
	Bank     string                  `json:"bank"`
	Last4    string                  `json:"last4"`
	FullName string                  `json:"full_name"`
	Document *blob.File              `json:"-"`
}

type bankLinkInput struct {
	Bank  string `json:"bank" validate:"notblank,max=100"`
	Last4 string `json:"last4" validate:"len=4,numeric"`
}

type idDocumentInput struct {
	FullName string `json:"full_name" validate:"notblank,max=100"`
}

// SubmitVerification records a seller verification. With auto-approval the
// record is approved and the user becomes a verified seller in the same write.
func (s *AccountService) SubmitVerification(ctx context.Context, userID string, req VerificationRequest) (*models.SellerVerification, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.DB.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	v := &models.SellerVerification{
		ID:               s.NewID(),
		UserID:           userID,
		VerificationType: req.Type,
		Status:           models.VerificationPending,
		CreatedAt:        now,
	}

	var data interface{}
	switch req.Type {
	case models.VerificationBankLink:
		in := bankLinkInput{Bank: strings.TrimSpace(req.Bank), Last4: strings.TrimSpace(req.Last4)}
		if err := validation.Struct(in); err != nil {
			return nil, err
		}
		data = models.BankLinkData{Bank: in.Bank, Last4: in.Last4}
	case models.VerificationIDDocument:
		in := idDocumentInput{FullName: strings.TrimSpace(req.FullName)}
		if err := validation.Struct(in); err != nil {
			return nil, err
		}
		if req.Document == nil {
			return nil, apperr.Validation("document: is required")
		}
		if err := blob.CheckSize(*req.Document, blob.MaxIDDocumentSize); err != nil {
			return nil, err
		}
		url, err := blob.Put(ctx, s.Blob, blob.BucketIDDocuments, userID, *req.Document, now)
		if err != nil {
			return nil, err
		}
		data = models.IDDocumentData{URL: url, FullName: in.FullName}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification data: %w", err)
	}
	v.VerificationData = string(raw)

	if !s.AutoApprove {
		if err := s.DB.SaveVerification(ctx, v, nil); err != nil {
			return nil, err
		}
		s.Logger.Info("VERIFY", fmt.Sprintf("Verification %s (%s) queued for review", v.ID, v.VerificationType))
		return v, nil
	}

	v.Status = models.VerificationApproved
	v.VerifiedAt = &now
	cols := approve(user, v)
	if err := s.DB.SaveVerification(ctx, v, user, cols...); err != nil {
		return nil, err
	}
	s.Logger.Info("VERIFY", fmt.Sprintf("Verification %s (%s) auto-approved for %s", v.ID, v.VerificationType, userID))
	return v, nil
}

func (s *AccountService) ListVerifications(ctx context.Context, userID string) ([]models.SellerVerification, error) {
	return s.DB.ListVerificationsByUser(ctx, userID)
}

// ListPending returns verifications waiting for review, oldest first.
func (s *AccountService) ListPending(ctx context.Context, adminID string) ([]models.SellerVerification, error) {
	if err := s.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.DB.ListVerificationsByStatus(ctx, models.VerificationPending)
}

func (s *AccountService) Approve(ctx context.Context, adminID, verificationID string) (*models.SellerVerification, error) {
	return s.review(ctx, adminID, verificationID, models.VerificationApproved)
}

func (s *AccountService) Reject(ctx context.Context, adminID, verificationID string) (*models.SellerVerification, error) {
	return s.review(ctx, adminID, verificationID, models.VerificationRejected)
}

func (s *AccountService) review(ctx context.Context, adminID, verificationID string, status models.VerificationStatus) (*models.SellerVerification, error) {
	if err := s.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	v, err := s.DB.GetVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VerificationPending {
		return nil, apperr.StateConflict("verification %s is already %s", v.ID, v.Status)
	}

	now := s.now()
	v.Status = status
	v.VerifiedAt = &now

	var user *models.User
	var cols []string
	if status == models.VerificationApproved {
		user, err = s.DB.GetUser(ctx, v.UserID)
		if err != nil {
			return nil, err
		}
		cols = approve(user, v)
	}
	if err := s.DB.ReviewVerification(ctx, v, user, cols...); err != nil {
		return nil, err
	}
	s.Logger.Info("VERIFY", fmt.Sprintf("Verification %s %s by %s", v.ID, status, adminID))
	return v, nil
}

// approve flags the user as a verified seller and returns the changed columns.
func approve(user *models.User, v *models.SellerVerification) []string {
	user.IsVerifiedSeller = true
	cols := []string{"is_verified_seller"}
	if v.VerificationType == models.VerificationBankLink {
		var data models.BankLinkData
		if err := json.Unmarshal([]byte(v.VerificationData), &data); err == nil && data.Last4 != "" {
			user.BankAccountLast4 = data.Last4
			cols = append(cols, "bank_account_last4")
		}
	}
	return cols
}

func (s *AccountService) RequireAdmin(ctx context.Context, userID string) error {
	user, err := s.DB.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if user == nil || !user.IsAdmin {
		s.Logger.LogSecurity("ADMIN_DENIED", "non-admin "+userID+" attempted an admin action")
		return apperr.Permission("admin access required")
	}
	return nil
}
