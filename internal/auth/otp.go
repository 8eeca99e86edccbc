package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	platformredis "kayo/internal/platform/redis"
	dErrors "kayo/pkg/domain-errors"
)

const (
	otpLength      = 6
	otpTTL         = 10 * time.Minute
	otpMaxAttempts = 5
)

// Mailer delivers one-time codes. The SMTP implementation lives in the
// comms package; tests use a fake.
type Mailer interface {
	SendOTP(ctx context.Context, toEmail, toName, code string) error
}

// Code purposes. Login and password-reset codes live under separate keys
// so one can never be redeemed for the other.
const (
	otpPurposeLogin = "login"
	otpPurposeReset = "reset"
)

// OTPManager generates and verifies one-time codes backed by Redis. A nil
// manager means email codes are disabled: logins complete in one step and
// self-service password reset is unavailable.
type OTPManager struct {
	redis  *platformredis.Client
	mailer Mailer
}

// NewOTPManager returns nil when either dependency is missing, which
// callers treat as "OTP disabled".
func NewOTPManager(redis *platformredis.Client, mailer Mailer) *OTPManager {
	if redis == nil || mailer == nil {
		return nil
	}
	return &OTPManager{redis: redis, mailer: mailer}
}

func otpKey(purpose, email string) string { return "otp:" + purpose + ":" + email }

func otpAttemptKey(purpose, email string) string { return "otp:attempts:" + purpose + ":" + email }

// Send generates a fresh login code, stores it with a TTL and mails it.
func (m *OTPManager) Send(ctx context.Context, user User) error {
	return m.send(ctx, otpPurposeLogin, user)
}

// SendReset mails a password-reset code.
func (m *OTPManager) SendReset(ctx context.Context, user User) error {
	return m.send(ctx, otpPurposeReset, user)
}

func (m *OTPManager) send(ctx context.Context, purpose string, user User) error {
	code, err := generateOTP()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "generate otp")
	}
	if err := m.redis.Set(ctx, otpKey(purpose, user.Email), code, otpTTL).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store otp")
	}
	if err := m.redis.Del(ctx, otpAttemptKey(purpose, user.Email)).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "reset otp attempts")
	}
	if err := m.mailer.SendOTP(ctx, user.Email, user.Name, code); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "send otp")
	}
	return nil
}

// Verify consumes a stored login code. Codes are single use and attempts
// are capped; both failure modes return CodeUnauthorized so callers
// cannot distinguish a wrong code from an expired one.
func (m *OTPManager) Verify(ctx context.Context, email, code string) error {
	return m.verify(ctx, otpPurposeLogin, email, code)
}

// VerifyReset consumes a stored password-reset code.
func (m *OTPManager) VerifyReset(ctx context.Context, email, code string) error {
	return m.verify(ctx, otpPurposeReset, email, code)
}

func (m *OTPManager) verify(ctx context.Context, purpose, email, code string) error {
	attempts, err := m.redis.Incr(ctx, otpAttemptKey(purpose, email)).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "count otp attempts")
	}
	if attempts == 1 {
		m.redis.Expire(ctx, otpAttemptKey(purpose, email), otpTTL)
	}
	if attempts > otpMaxAttempts {
		return dErrors.New(dErrors.CodeUnauthorized, "too many attempts, request a new code")
	}

	stored, err := m.redis.Get(ctx, otpKey(purpose, email)).Result()
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
	}

	if err := m.redis.Del(ctx, otpKey(purpose, email), otpAttemptKey(purpose, email)).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "consume otp")
	}
	return nil
}

func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpLength, n), nil
}
