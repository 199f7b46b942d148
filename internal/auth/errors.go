package auth

import "errors"

var (
	// ErrValidation indicates missing or malformed request input.
	ErrValidation = errors.New("all fields are required")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("user already exists")
	// ErrUserNotFound indicates no user matches the given identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates the password comparison failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified indicates the account has not completed email verification.
	ErrNotVerified = errors.New("email not verified")
	// ErrInvalidOTP indicates the (email, otp) pair did not match an unexpired code.
	ErrInvalidOTP = errors.New("invalid or expired OTP")
	// ErrInvalidToken indicates a token failed verification or its subject
	// no longer resolves to a user.
	ErrInvalidToken = errors.New("invalid or expired token")
)
