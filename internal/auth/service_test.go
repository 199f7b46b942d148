package auth_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/auth"
	"authflow/internal/auth/authtest"
	"authflow/internal/mailer"
	"authflow/internal/token"
)

const baseURL = "http://localhost:8080"

func newTestService(t *testing.T) (*auth.Service, *authtest.Store, *authtest.Sender) {
	t.Helper()
	tokens, err := token.NewManager([]byte("test-secret"))
	require.NoError(t, err)
	store := authtest.NewStore()
	sender := authtest.NewSender()
	log := logrus.New()
	log.SetOutput(&strings.Builder{})
	return auth.NewService(store, tokens, sender, baseURL, log), store, sender
}

// verifyTokenFrom pulls the token out of the verification link in a
// recorded email body.
func verifyTokenFrom(t *testing.T, msg mailer.Message) string {
	t.Helper()
	idx := strings.Index(msg.Body, baseURL+"/api/user/verify/")
	require.GreaterOrEqual(t, idx, 0, "no verification link in %q", msg.Body)
	link := msg.Body[idx:]
	if end := strings.IndexAny(link, " \n"); end >= 0 {
		link = link[:end]
	}
	return link[strings.LastIndex(link, "/")+1:]
}

var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

// otpFrom pulls the 6-digit code out of a recorded OTP email body.
func otpFrom(t *testing.T, msg mailer.Message) string {
	t.Helper()
	m := otpPattern.FindStringSubmatch(msg.Body)
	require.NotNil(t, m, "no OTP in %q", msg.Body)
	return m[1]
}

// registerVerified registers a user and completes email verification.
func registerVerified(t *testing.T, svc *auth.Service, sender *authtest.Sender, name, email, pass string) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Register(ctx, name, email, pass)
	require.NoError(t, err)
	msg, ok := sender.Last()
	require.True(t, ok)
	require.NoError(t, svc.VerifyEmail(ctx, verifyTokenFrom(t, msg)))
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name, userName, email, pass string
	}{
		{"missing name", "", "a@x.com", "secret1"},
		{"missing email", "Alice", "", "secret1"},
		{"missing password", "Alice", "a@x.com", ""},
		{"malformed email", "Alice", "not-an-email", "secret1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.userName, tc.email, tc.pass)
			assert.ErrorIs(t, err, auth.ErrValidation)
		})
	}
}

func TestRegisterReturnsPublicFields(t *testing.T) {
	svc, _, sender := newTestService(t)

	user, err := svc.Register(context.Background(), "Alice", "A@X.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "a@x.com", user.Email, "email is case-normalized")
	assert.NotEmpty(t, user.ID)

	msg, ok := sender.Last()
	require.True(t, ok, "verification email was sent")
	assert.Equal(t, "a@x.com", msg.To)
	assert.Contains(t, msg.Body, baseURL+"/api/user/verify/")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Alice Again", "a@x.com", "secret2")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestRegisterMailFailureSurfaces(t *testing.T) {
	svc, _, sender := newTestService(t)
	sender.Err = errors.New("smtp down")

	_, err := svc.Register(context.Background(), "Alice", "a@x.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrValidation)
	assert.NotErrorIs(t, err, auth.ErrEmailTaken)
}

func TestLoginRequiresVerification(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrNotVerified, "correct credentials on an unverified account")

	msg, ok := sender.Last()
	require.True(t, ok)
	require.NoError(t, svc.VerifyEmail(ctx, verifyTokenFrom(t, msg)))

	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "a@x.com", result.User.Email)
}

func TestLoginFailures(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")

	_, err := svc.Login(ctx, "", "secret1")
	assert.ErrorIs(t, err, auth.ErrValidation)

	_, err = svc.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = svc.Login(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestVerifyEmailRejectsBadTokens(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")

	assert.ErrorIs(t, svc.VerifyEmail(ctx, "garbage"), auth.ErrInvalidToken)

	// a session token must not be accepted by the verify-email step
	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.VerifyEmail(ctx, result.Token), auth.ErrInvalidToken)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	svc, _, sender := newTestService(t)

	err := svc.ForgotPassword(context.Background(), "nobody@x.com")
	assert.NoError(t, err)
	_, sent := sender.Last()
	assert.False(t, sent, "no mail for unknown email")
}

func TestForgotPasswordStoresAndMailsOTP(t *testing.T) {
	svc, store, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))

	msg, ok := sender.Last()
	require.True(t, ok)
	code := otpFrom(t, msg)

	u, err := store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, code, u.ResetOTP)
	assert.True(t, u.ResetOTPExpiry.After(time.Now()))
}

func TestVerifyOTPSingleUse(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	msg, _ := sender.Last()
	code := otpFrom(t, msg)

	resetToken, err := svc.VerifyOTP(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, resetToken)

	_, err = svc.VerifyOTP(ctx, "a@x.com", code)
	assert.ErrorIs(t, err, auth.ErrInvalidOTP, "second use of the same OTP")
}

func TestVerifyOTPExpired(t *testing.T) {
	svc, store, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")

	u, err := store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, store.SetResetOTP(ctx, u.ID, "123456", time.Now().Add(-time.Minute)))

	_, err = svc.VerifyOTP(ctx, "a@x.com", "123456")
	assert.ErrorIs(t, err, auth.ErrInvalidOTP)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")
	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))

	_, err := svc.VerifyOTP(ctx, "a@x.com", "000000")
	if !errors.Is(err, auth.ErrInvalidOTP) {
		// one-in-a-million chance the generated code was 000000
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
}

func TestResetPasswordValidation(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")

	assert.ErrorIs(t, svc.ResetPassword(ctx, "garbage", "secret2"), auth.ErrInvalidToken)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	msg, _ := sender.Last()
	resetToken, err := svc.VerifyOTP(ctx, "a@x.com", otpFrom(t, msg))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ResetPassword(ctx, resetToken, ""), auth.ErrValidation)

	// a session token must not authorize a password reset
	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ResetPassword(ctx, result.Token, "secret2"), auth.ErrInvalidToken)
}

func TestAuthenticate(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, sender, "Alice", "a@x.com", "secret1")

	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAuthenticateRejectsUnverified(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	// forge the state where a session token exists for a user that is
	// (still) unverified
	user, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)
	tokens, err := token.NewManager([]byte("test-secret"))
	require.NoError(t, err)
	sessionToken, err := tokens.Issue(user.ID, token.PurposeSession, time.Minute)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, sessionToken)
	assert.ErrorIs(t, err, auth.ErrNotVerified)

	u, err := store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, store.SetVerified(ctx, u.ID))

	_, err = svc.Authenticate(ctx, sessionToken)
	assert.NoError(t, err)
}

func TestEndToEndScenario(t *testing.T) {
	svc, _, sender := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "a@x.com", "secret1")
	require.NoError(t, err)

	msg, _ := sender.Last()
	require.NoError(t, svc.VerifyEmail(ctx, verifyTokenFrom(t, msg)))

	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	msg, _ = sender.Last()
	resetToken, err := svc.VerifyOTP(ctx, "a@x.com", otpFrom(t, msg))
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, resetToken, "secret2"))

	_, err = svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "old password no longer authenticates")

	result, err = svc.Login(ctx, "a@x.com", "secret2")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}
