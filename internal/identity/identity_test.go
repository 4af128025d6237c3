package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-resale/internal/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureSender struct {
	mu       sync.Mutex
	messages map[string]string
	err      error
}

func (c *captureSender) Send(_ context.Context, phone, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.messages == nil {
		c.messages = map[string]string{}
	}
	c.messages[phone] = message
	return nil
}

func setupProvider(t *testing.T) (*RedisOTPProvider, *captureSender, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	sender := &captureSender{}
	p := NewRedisOTPProvider(client, sender, 5*time.Minute, 5, nil)
	p.Cost = bcrypt.MinCost
	p.Generate = func() (string, error) { return "123456", nil }
	return p, sender, mr
}

func TestNormalizePhone(t *testing.T) {
	phone, err := NormalizePhone(" +995 555 12 34 56 ")
	require.NoError(t, err)
	assert.Equal(t, "+995555123456", phone)

	for _, bad := range []string{"", "555123456", "+99555512345", "+9955551234567", "+1 555 123 4567"} {
		_, err := NormalizePhone(bad)
		assert.True(t, errors.Is(err, apperr.ErrValidation), bad)
	}
}

func TestUserIDForPhoneIsStable(t *testing.T) {
	a := UserIDForPhone("+995555123456")
	assert.Equal(t, a, UserIDForPhone("+995555123456"))
	assert.NotEqual(t, a, UserIDForPhone("+995555123457"))
	assert.Len(t, a, 36)
}

func TestOTPRoundTrip(t *testing.T) {
	p, sender, mr := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.RequestOTP(ctx, "+995 555 123 456"))
	assert.Contains(t, sender.messages["+995555123456"], "123456")
	assert.True(t, mr.Exists("otp:+995555123456"))
	assert.Equal(t, 5*time.Minute, mr.TTL("otp:+995555123456"))

	stored := mr.HGet("otp:+995555123456", "hash")
	assert.NotEqual(t, "123456", stored, "code must be stored hashed")

	id, err := p.VerifyOTP(ctx, "+995555123456", "123456")
	require.NoError(t, err)
	assert.Equal(t, UserIDForPhone("+995555123456"), id)

	_, err = p.VerifyOTP(ctx, "+995555123456", "123456")
	assert.True(t, errors.Is(err, apperr.ErrValidation), "code is single use")
}

func TestOTPExpires(t *testing.T) {
	p, _, mr := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.RequestOTP(ctx, "+995555123456"))
	mr.FastForward(6 * time.Minute)

	_, err := p.VerifyOTP(ctx, "+995555123456", "123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestOTPAttemptLimit(t *testing.T) {
	p, _, mr := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.RequestOTP(ctx, "+995555123456"))

	for i := 0; i < 5; i++ {
		_, err := p.VerifyOTP(ctx, "+995555123456", "000000")
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	}
	assert.False(t, mr.Exists("otp:+995555123456"), "code is discarded after the last attempt")

	_, err := p.VerifyOTP(ctx, "+995555123456", "123456")
	assert.Error(t, err, "the right code no longer works")
}

func TestOTPSendFailure(t *testing.T) {
	p, sender, mr := setupProvider(t)
	sender.err = errors.New("gateway down")

	err := p.RequestOTP(context.Background(), "+995555123456")
	assert.True(t, errors.Is(err, apperr.ErrStorage))
	assert.False(t, mr.Exists("otp:+995555123456"))
}

func TestOTPRejectsMalformedCode(t *testing.T) {
	p, _, _ := setupProvider(t)
	_, err := p.VerifyOTP(context.Background(), "+995555123456", "12")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestTokenIssuer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.Now = func() time.Time { return now }

	tok, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt)

	sub, err := issuer.Parse(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	other := NewTokenIssuer("other", time.Hour)
	other.Now = issuer.Now
	_, err = other.Parse(tok.Token)
	assert.Error(t, err, "signature must be checked")

	issuer.Now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = issuer.Parse(tok.Token)
	assert.Error(t, err, "expired token must be rejected")

	_, err = issuer.Parse("")
	assert.Error(t, err)
}
