package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/logger"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpKeyPrefix = "otp:"
	fieldHash    = "hash"
	fieldTries   = "attempts"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Send(_ context.Context, phone, message string) error {
	s.Logger.Info("SMS", fmt.Sprintf("to %s: %s", phone, message))
	return nil
}

var _ Provider = (*RedisOTPProvider)(nil)

// RedisOTPProvider keeps a bcrypt hash of the current code per phone in redis.
type RedisOTPProvider struct {
	Client      *redis.Client
	Sender      SMSSender
	TTL         time.Duration
	MaxAttempts int
	Cost        int
	Logger      *logger.Logger

	// Generate returns a fresh code. Defaults to six random digits.
	Generate func() (string, error)
}

func NewRedisOTPProvider(client *redis.Client, sender SMSSender, ttl time.Duration, maxAttempts int, log *logger.Logger) *RedisOTPProvider {
	return &RedisOTPProvider{
		Client:      client,
		Sender:      sender,
		TTL:         ttl,
		MaxAttempts: maxAttempts,
		Cost:        bcrypt.DefaultCost,
		Logger:      log,
		Generate:    sixDigits,
	}
}

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func otpKey(phone string) string {
	return otpKeyPrefix + phone
}

func (p *RedisOTPProvider) RequestOTP(ctx context.Context, rawPhone string) error {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return err
	}

	generate := p.Generate
	if generate == nil {
		generate = sixDigits
	}
	code, err := generate()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), p.Cost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	key := otpKey(phone)
	_, err = p.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldHash, string(hash), fieldTries, 0)
		pipe.Expire(ctx, key, p.TTL)
		return nil
	})
	if err != nil {
		return apperr.Storage(err, "failed to store code")
	}

	msg := fmt.Sprintf("Your verification code is %s", code)
	if err := p.Sender.Send(ctx, phone, msg); err != nil {
		p.Client.Del(ctx, key)
		return apperr.Storage(err, "failed to send code")
	}

	p.Logger.LogSecurity("OTP_SENT", phone)
	return nil
}

func (p *RedisOTPProvider) VerifyOTP(ctx context.Context, rawPhone, code string) (string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}
	if len(code) != 6 {
		return "", apperr.Validation("code must have 6 digits")
	}

	key := otpKey(phone)
	vals, err := p.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return "", apperr.Storage(err, "failed to load code")
	}
	if len(vals) == 0 {
		return "", apperr.Validation("code expired or was never requested")
	}

	tries, _ := strconv.Atoi(vals[fieldTries])
	if tries >= p.MaxAttempts {
		p.Client.Del(ctx, key)
		return "", apperr.Validation("too many attempts, request a new code")
	}

	if bcrypt.CompareHashAndPassword([]byte(vals[fieldHash]), []byte(code)) != nil {
		n, err := p.Client.HIncrBy(ctx, key, fieldTries, 1).Result()
		if err != nil {
			return "", apperr.Storage(err, "failed to record attempt")
		}
		if int(n) >= p.MaxAttempts {
			p.Client.Del(ctx, key)
		}
		p.Logger.LogSecurity("OTP_MISMATCH", fmt.Sprintf("%s attempt %d", phone, n))
		return "", apperr.Validation("invalid code")
	}

	if err := p.Client.Del(ctx, key).Err(); err != nil {
		return "", apperr.Storage(err, "failed to consume code")
	}
	return UserIDForPhone(phone), nil
}
