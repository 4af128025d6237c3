package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "")
	t.Setenv("AUTO_APPROVE_VERIFICATION", "")

	cfg := Load()

	assert.True(t, cfg.Marketplace.PlatformFeePercent.Equal(decimal.NewFromInt(12)))
	assert.True(t, cfg.Marketplace.AutoApproveVerification)
	assert.Equal(t, 5*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, 5, cfg.Auth.OTPAttempts)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Auth.AdminPhones)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "7.5")
	t.Setenv("AUTO_APPROVE_VERIFICATION", "false")
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("ADMIN_PHONES", "+995555000111, ,+995555000222")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "7.5", cfg.Marketplace.PlatformFeePercent.String())
	assert.False(t, cfg.Marketplace.AutoApproveVerification)
	assert.Equal(t, 90*time.Second, cfg.Auth.OTPTTL)
	assert.Equal(t, []string{"+995555000111", "+995555000222"}, cfg.Auth.AdminPhones)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestTopicConfigAll(t *testing.T) {
	cfg := Load()
	assert.Equal(t, []string{
		"resale-transaction-events",
		"resale-dispute-events",
		"resale-listing-events",
	}, cfg.Kafka.Topics.All())
	assert.Empty(t, cfg.Kafka.AuditGroupID)
}
