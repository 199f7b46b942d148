// Package authtest provides in-memory doubles for the auth flow's external
// collaborators, for use in tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"authflow/internal/auth"
	"authflow/internal/mailer"
	"authflow/internal/models"
)

// Store is an in-memory auth.Store with the same sentinel-error contract as
// the Mongo implementation.
type Store struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *Store) Insert(_ context.Context, u *models.User) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return primitive.NilObjectID, auth.ErrEmailTaken
		}
	}
	id := primitive.NewObjectID()
	clone := *u
	clone.ID = id
	now := time.Now()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	s.users[id] = &clone
	return id, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *Store) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *Store) FindByEmailOTP(_ context.Context, email, otp string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.ResetOTP != "" && u.ResetOTP == otp && u.ResetOTPExpiry.After(now) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrInvalidOTP
}

func (s *Store) SetVerified(_ context.Context, id primitive.ObjectID) error {
	return s.mutate(id, func(u *models.User) {
		u.IsVerified = true
	})
}

func (s *Store) SetResetOTP(_ context.Context, id primitive.ObjectID, otp string, expiry time.Time) error {
	return s.mutate(id, func(u *models.User) {
		u.ResetOTP = otp
		u.ResetOTPExpiry = expiry
	})
}

func (s *Store) ClearResetOTP(_ context.Context, id primitive.ObjectID) error {
	return s.mutate(id, func(u *models.User) {
		u.ResetOTP = ""
		u.ResetOTPExpiry = time.Time{}
	})
}

func (s *Store) SetPasswordHash(_ context.Context, id primitive.ObjectID, hash string) error {
	return s.mutate(id, func(u *models.User) {
		u.PasswordHash = hash
	})
}

func (s *Store) mutate(id primitive.ObjectID, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

// Sender records outbound messages instead of delivering them. Set Err to
// make every Send fail.
type Sender struct {
	mu       sync.Mutex
	Err      error
	messages []mailer.Message
}

// NewSender returns an empty recording sender.
func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (s *Sender) Messages() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mailer.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Last returns the most recent message and whether one exists.
func (s *Sender) Last() (mailer.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return mailer.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
