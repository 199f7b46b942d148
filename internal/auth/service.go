// Package auth implements the authentication flow: registration with email
// verification, login, and the forgot-password OTP/reset-token handshake.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"authflow/internal/mailer"
	"authflow/internal/models"
	"authflow/internal/password"
	"authflow/internal/token"
)

const (
	// VerifyTokenTTL bounds the email-verification link after sign-up.
	VerifyTokenTTL = 15 * time.Minute
	// SessionTokenTTL bounds a login session.
	SessionTokenTTL = 48 * time.Hour
	// ResetTokenTTL bounds the window between OTP verification and the
	// actual password change.
	ResetTokenTTL = 5 * time.Minute
	// OTPTTL bounds the stored reset OTP.
	OTPTTL = 15 * time.Minute
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Service orchestrates the credential store, password hasher, token signer,
// and mailer into the request-level auth operations. All dependencies are
// injected; the service holds no ambient state and is safe for concurrent use.
type Service struct {
	store   Store
	tokens  *token.Manager
	mail    mailer.Sender
	baseURL string
	log     logrus.FieldLogger
}

// NewService wires the auth flow together. baseURL is the externally
// reachable address embedded in verification links.
func NewService(store Store, tokens *token.Manager, mail mailer.Sender, baseURL string, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		tokens:  tokens,
		mail:    mail,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// LoginResult is returned by Login: the public user plus the session token.
type LoginResult struct {
	User  models.PublicUser
	Token string
}

// Register creates an unverified user, hashes the password, and emails a
// verification link. The email must not already be registered.
func (s *Service) Register(ctx context.Context, name, email, pass string) (models.PublicUser, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || pass == "" {
		return models.PublicUser{}, ErrValidation
	}
	if !emailPattern.MatchString(email) {
		return models.PublicUser{}, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return models.PublicUser{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return models.PublicUser{}, err
	}

	hash, err := password.Hash(pass)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("hashing password: %w", err)
	}

	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsVerified:   false,
	}
	id, err := s.store.Insert(ctx, u)
	if err != nil {
		return models.PublicUser{}, err
	}
	u.ID = id

	verifyToken, err := s.tokens.Issue(id.Hex(), token.PurposeVerify, VerifyTokenTTL)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("issuing verify token: %w", err)
	}
	link := fmt.Sprintf("%s/api/user/verify/%s", s.baseURL, verifyToken)
	if err := s.mail.Send(ctx, mailer.VerificationEmail(email, link)); err != nil {
		return models.PublicUser{}, fmt.Errorf("sending verification email: %w", err)
	}

	s.log.WithField("user", id.Hex()).Info("user registered, verification email sent")
	return u.Public(), nil
}

// VerifyEmail consumes a verification token and marks the user verified.
// A second call with a still-valid token succeeds and changes nothing.
func (s *Service) VerifyEmail(ctx context.Context, tokenStr string) error {
	id, err := s.subject(tokenStr, token.PurposeVerify)
	if err != nil {
		return err
	}
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.store.SetVerified(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user", id.Hex()).Info("email verified")
	return nil
}

// Login checks credentials and issues a session token. The account must
// have completed email verification first.
func (s *Service) Login(ctx context.Context, email, pass string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || pass == "" {
		return LoginResult{}, ErrValidation
	}

	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !u.IsVerified {
		return LoginResult{}, ErrNotVerified
	}
	if !password.Compare(u.PasswordHash, pass) {
		return LoginResult{}, ErrInvalidCredentials
	}

	sessionToken, err := s.tokens.Issue(u.ID.Hex(), token.PurposeSession, SessionTokenTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issuing session token: %w", err)
	}
	s.log.WithField("user", u.ID.Hex()).Info("user logged in")
	return LoginResult{User: u.Public(), Token: sessionToken}, nil
}

// ForgotPassword stores and emails a fresh OTP when the email is registered.
// An unknown email is not an error: the caller returns the same generic
// success either way so the endpoint cannot be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrValidation
	}

	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.log.WithField("email", email).Debug("forgot-password for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.store.SetResetOTP(ctx, u.ID, code, time.Now().Add(OTPTTL)); err != nil {
		return err
	}
	if err := s.mail.Send(ctx, mailer.OTPEmail(u.Email, code)); err != nil {
		return fmt.Errorf("sending OTP email: %w", err)
	}
	s.log.WithField("user", u.ID.Hex()).Info("password reset OTP sent")
	return nil
}

// VerifyOTP consumes a stored OTP and issues the short-lived reset token.
// The OTP fields are cleared on success, so each code is single use.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return "", ErrValidation
	}

	u, err := s.store.FindByEmailOTP(ctx, email, code, time.Now())
	if err != nil {
		return "", err
	}
	if err := s.store.ClearResetOTP(ctx, u.ID); err != nil {
		return "", err
	}

	resetToken, err := s.tokens.Issue(u.ID.Hex(), token.PurposeReset, ResetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issuing reset token: %w", err)
	}
	s.log.WithField("user", u.ID.Hex()).Info("OTP verified, reset token issued")
	return resetToken, nil
}

// ResetPassword consumes a reset token and replaces the password hash.
// The OTP fields were already cleared at the verify-OTP step.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	id, err := s.subject(resetToken, token.PurposeReset)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return ErrValidation
	}
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.store.SetPasswordHash(ctx, id, hash); err != nil {
		return err
	}
	s.log.WithField("user", id.Hex()).Info("password reset")
	return nil
}

// Authenticate resolves a session token to a verified user. It backs the
// session boundary middleware.
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (*models.User, error) {
	id, err := s.subject(sessionToken, token.PurposeSession)
	if err != nil {
		return nil, err
	}
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsVerified {
		return nil, ErrNotVerified
	}
	return u, nil
}

// subject verifies the token for the given purpose and decodes its subject
// into an ObjectID. Any failure is an invalid token; the caller learns
// nothing about which check failed.
func (s *Service) subject(tokenStr string, purpose token.Purpose) (primitive.ObjectID, error) {
	sub, err := s.tokens.Verify(tokenStr, purpose)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	id, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return id, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
