package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agristack/agristack-auth/pkg/utilities"
)

// OTPProvider is the external collaborator contract for Aadhaar eKYC:
// request a code for a number, later verify a submitted code against it.
// The dispatcher only ever sees this interface, so the placeholder provider
// is swappable for a real UIDAI integration.
type OTPProvider interface {
	Request(ctx context.Context, aadhaarNumber string) error
	Verify(ctx context.Context, aadhaarNumber, code string) (bool, error)
}

// OTPSender delivers an issued code out of band (SMS in production).
type OTPSender interface {
	SendOTP(ctx context.Context, aadhaarNumber, code string) error
}

// LogOTPSender is the default delivery placeholder. It records that a code
// was issued without logging the code or the full Aadhaar number.
type LogOTPSender struct {
	Logger *zap.SugaredLogger
}

func (s LogOTPSender) SendOTP(ctx context.Context, aadhaarNumber, code string) error {
	if s.Logger != nil {
		s.Logger.Infow("otp issued", "aadhaar", maskAadhaar(aadhaarNumber))
	}
	return nil
}

func maskAadhaar(n string) string {
	if len(n) < 4 {
		return "****"
	}
	return "********" + n[len(n)-4:]
}

type otpChallenge struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

const (
	otpKeyPrefix      = "otp:aadhaar:"
	defaultOTPTTL     = 5 * time.Minute
	defaultOTPRetries = 5
)

// RedisOTPProvider issues random six-digit codes and keeps the pending
// challenge in Redis under the Aadhaar number, with a TTL and an attempt
// cap. A successful verify consumes the challenge.
type RedisOTPProvider struct {
	redis       *redis.Client
	sender      OTPSender
	ttl         time.Duration
	maxAttempts int
}

func NewRedisOTPProvider(client *redis.Client, sender OTPSender) *RedisOTPProvider {
	if sender == nil {
		sender = LogOTPSender{}
	}
	return &RedisOTPProvider{
		redis:       client,
		sender:      sender,
		ttl:         defaultOTPTTL,
		maxAttempts: defaultOTPRetries,
	}
}

func (p *RedisOTPProvider) key(aadhaarNumber string) string {
	return otpKeyPrefix + aadhaarNumber
}

func (p *RedisOTPProvider) Request(ctx context.Context, aadhaarNumber string) error {
	code, err := randomOTPCode()
	if err != nil {
		return err
	}
	ch := otpChallenge{ID: utilities.NewSnowflakeID(), Code: code}
	encoded, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	if err := p.redis.Set(ctx, p.key(aadhaarNumber), encoded, p.ttl).Err(); err != nil {
		return fmt.Errorf("otp store unavailable: %w", err)
	}
	return p.sender.SendOTP(ctx, aadhaarNumber, code)
}

func (p *RedisOTPProvider) Verify(ctx context.Context, aadhaarNumber, code string) (bool, error) {
	key := p.key(aadhaarNumber)
	raw, err := p.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("otp store unavailable: %w", err)
	}
	var ch otpChallenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) == 1 {
		_ = p.redis.Del(ctx, key).Err()
		return true, nil
	}
	ch.Attempts++
	if ch.Attempts >= p.maxAttempts {
		_ = p.redis.Del(ctx, key).Err()
		return false, nil
	}
	encoded, err := json.Marshal(ch)
	if err != nil {
		return false, err
	}
	// keep the original expiry window on the updated attempt counter
	if err := p.redis.Set(ctx, key, encoded, redis.KeepTTL).Err(); err != nil {
		return false, fmt.Errorf("otp store unavailable: %w", err)
	}
	return false, nil
}

func randomOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// StaticOTPProvider accepts a single fixed code for every number. It stands
// in for the real OTP collaborator in development deployments without Redis.
type StaticOTPProvider struct {
	Code   string
	Logger *zap.SugaredLogger
}

func (p StaticOTPProvider) Request(ctx context.Context, aadhaarNumber string) error {
	if p.Logger != nil {
		p.Logger.Infow("otp requested (static provider)", "aadhaar", maskAadhaar(aadhaarNumber))
	}
	return nil
}

func (p StaticOTPProvider) Verify(ctx context.Context, aadhaarNumber, code string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(p.Code), []byte(code)) == 1, nil
}
