package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a user document in the users collection.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	PasswordHash   string             `bson:"passwordHash"`
	IsVerified     bool               `bson:"isVerified"`
	ResetOTP       string             `bson:"resetOtp,omitempty"`
	ResetOTPExpiry time.Time          `bson:"resetOtpExpiry,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

// PublicUser is the subset of User that is safe to return to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the client-visible fields of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
	}
}
