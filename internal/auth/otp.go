package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrOTPMismatch = errors.New("otp invalid or expired")

const otpLength = 6

// generateOTP returns a random numeric code of otpLength digits.
func generateOTP() (string, error) {
	buf := make([]byte, otpLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	digits := make([]byte, otpLength)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}

// OTPStore keeps one pending OTP per email, expiring after the configured TTL.
type OTPStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOTPStore(client *redis.Client, ttl time.Duration) *OTPStore {
	return &OTPStore{client: client, ttl: ttl}
}

func (s *OTPStore) key(email string) string {
	return "otp:" + strings.ToLower(email)
}

func (s *OTPStore) Put(ctx context.Context, email, otp string) error {
	return s.client.Set(ctx, s.key(email), otp, s.ttl).Err()
}

// consumeScript deletes the stored code only on a match, so a wrong guess
// cannot burn the outstanding code.
var consumeScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

// Consume verifies the OTP for the email and removes it on match, so each
// code is usable at most once. A mismatched guess leaves the stored code in
// place until its TTL runs out.
func (s *OTPStore) Consume(ctx context.Context, email, otp string) error {
	n, err := consumeScript.Run(ctx, s.client, []string{s.key(email)}, otp).Int()
	if err != nil {
		return fmt.Errorf("reading otp: %w", err)
	}
	if n == 0 {
		return ErrOTPMismatch
	}
	return nil
}

// Mailer delivers password-reset codes.
type Mailer interface {
	SendOTP(email, otp string) error
}

type smtpMailer struct {
	addr     string
	email    string
	password string
}

// NewSMTPMailer sends mail through a plain-auth SMTP relay. addr is
// host:port; the host portion is used for auth.
func NewSMTPMailer(addr, email, password string) Mailer {
	return &smtpMailer{addr: addr, email: email, password: password}
}

func (m *smtpMailer) SendOTP(to, otp string) error {
	host := m.addr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	msg := "Subject: CareDesk password reset\r\n\r\nYour verification code is " + otp + ". It expires shortly."
	auth := smtp.PlainAuth("", m.email, m.password, host)
	if err := smtp.SendMail(m.addr, auth, m.email, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending otp email: %w", err)
	}
	return nil
}
