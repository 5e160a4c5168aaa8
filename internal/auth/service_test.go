package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUserRepo struct {
	byEmail map[string]*User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: map[string]*User{}}
}

func (m *memUserRepo) CreateUser(_ context.Context, u *User) (*User, error) {
	if _, ok := m.byEmail[u.Email]; ok {
		return nil, ErrEmailTaken
	}
	cp := *u
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.byEmail[cp.Email] = &cp
	return &cp, nil
}

func (m *memUserRepo) GetUserByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	for _, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return ErrUserNotFound
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, name, phone string) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			u.Name, u.Phone = name, phone
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

type captureMailer struct {
	to, otp string
}

func (c *captureMailer) SendOTP(email, otp string) error {
	c.to, c.otp = email, otp
	return nil
}

type authFixture struct {
	svc    *Service
	repo   *memUserRepo
	mailer *captureMailer
	mr     *miniredis.Miniredis
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newMemUserRepo()
	mailer := &captureMailer{}
	svc := NewService(
		repo,
		NewTokens("test-secret", time.Hour),
		NewOTPStore(client, 5*time.Minute),
		mailer,
		zerolog.Nop(),
	)
	return &authFixture{svc: svc, repo: repo, mailer: mailer, mr: mr}
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      RegisterInput
		wantErr error
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "secret1"}, ErrInvalidEmail},
		{"short password", RegisterInput{Email: "a@b.com", Password: "abc"}, ErrWeakPassword},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRegister_DefaultsToPatientAndHashesPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{
		Name:     "An Nguyen",
		Email:    "An@Example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, RolePatient, user.Role)
	assert.Equal(t, "an@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "an@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "an@example.com", Password: "secret1", Role: RoleDoctor})
	require.NoError(t, err)

	user, token, err := f.svc.Login(ctx, "an@example.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	session, err := f.svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, RoleDoctor, session.Role)

	_, _, err = f.svc.Login(ctx, "an@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken_RejectsGarbageAndExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	user, err := f.svc.Register(ctx, RegisterInput{Email: "an@example.com", Password: "secret1"})
	require.NoError(t, err)

	expired := NewTokens("test-secret", -time.Minute)
	token, err := expired.Issue(user)
	require.NoError(t, err)
	_, err = f.svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordReset_OTPFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "an@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "an@example.com"))
	assert.Equal(t, "an@example.com", f.mailer.to)
	require.Len(t, f.mailer.otp, 6)

	require.NoError(t, f.svc.VerifyPasswordReset(ctx, "an@example.com", f.mailer.otp, "newsecret"))

	_, _, err = f.svc.Login(ctx, "an@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "an@example.com", "newsecret")
	assert.NoError(t, err)

	// the OTP was consumed
	err = f.svc.VerifyPasswordReset(ctx, "an@example.com", f.mailer.otp, "another1")
	assert.ErrorIs(t, err, ErrOTPMismatch)
}

func TestPasswordReset_WrongGuessKeepsCode(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "an@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "an@example.com"))

	wrong := "000000"
	if f.mailer.otp == wrong {
		wrong = "000001"
	}
	err = f.svc.VerifyPasswordReset(ctx, "an@example.com", wrong, "newsecret")
	assert.ErrorIs(t, err, ErrOTPMismatch)

	// the real code survives the bad guess
	require.NoError(t, f.svc.VerifyPasswordReset(ctx, "an@example.com", f.mailer.otp, "newsecret"))
	_, _, err = f.svc.Login(ctx, "an@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestPasswordReset_VerifyUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	// Same answer as a bad code, so the verify path cannot probe for accounts.
	err := f.svc.VerifyPasswordReset(context.Background(), "ghost@example.com", "123456", "newsecret")
	assert.ErrorIs(t, err, ErrOTPMismatch)
}

func TestPasswordReset_ExpiredOTP(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "an@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "an@example.com"))

	f.mr.FastForward(6 * time.Minute)

	err = f.svc.VerifyPasswordReset(ctx, "an@example.com", f.mailer.otp, "newsecret")
	assert.ErrorIs(t, err, ErrOTPMismatch)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{Email: "an@example.com", Password: "secret1"})
	require.NoError(t, err)
	session := Session{UserID: user.ID, Role: user.Role}

	err = f.svc.ChangePassword(ctx, session, "wrong", "newsecret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, session, "secret1", "newsecret"))
	_, _, err = f.svc.Login(ctx, "an@example.com", "newsecret")
	assert.NoError(t, err)
}
