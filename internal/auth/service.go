package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     Role
}

// Service handles account registration, login and OTP password reset.
type Service struct {
	repo   Repository
	tokens *Tokens
	otps   *OTPStore
	mailer Mailer
	log    zerolog.Logger
}

func NewService(repo Repository, tokens *Tokens, otps *OTPStore, mailer Mailer, log zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, otps: otps, mailer: mailer, log: log}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !emailPattern.MatchString(in.Email) {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < 6 {
		return nil, ErrWeakPassword
	}
	if in.Role == "" {
		in.Role = RolePatient
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, &User{
		Role:         in.Role,
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("user registered")
	return user, nil
}

// Login verifies credentials and returns the user with a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}
	return user, token, nil
}

// RequestPasswordReset generates an OTP for the account and emails it. An
// unknown email is reported to the caller as ErrUserNotFound so the handler
// can decide how much to reveal.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.otps.Put(ctx, email, otp); err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}
	if err := s.mailer.SendOTP(user.Email, otp); err != nil {
		return err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("password reset otp sent")
	return nil
}

// VerifyPasswordReset consumes the OTP and, on match, sets the new password.
func (s *Service) VerifyPasswordReset(ctx context.Context, email, otp, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		// Answer the same as a bad code; the request path already keeps
		// account existence private.
		if errors.Is(err, ErrUserNotFound) {
			return ErrOTPMismatch
		}
		return err
	}
	if err := s.otps.Consume(ctx, email, otp); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("password reset completed")
	return nil
}

// ChangePassword rotates the password for a logged-in user after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, session Session, current, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, user.ID, string(hash))
}

func (s *Service) GetProfile(ctx context.Context, session Session) (*User, error) {
	return s.repo.GetUserByID(ctx, session.UserID)
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, name, phone string) (*User, error) {
	return s.repo.UpdateProfile(ctx, session.UserID, strings.TrimSpace(name), strings.TrimSpace(phone))
}

// VerifyToken exposes token verification for transport middleware.
func (s *Service) VerifyToken(token string) (Session, error) {
	return s.tokens.Verify(token)
}
