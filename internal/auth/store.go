package auth

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"authflow/internal/models"
)

// Store is the persistence boundary of the auth flow. Implementations map
// "no document" conditions to the package sentinels so the service never
// inspects driver errors.
type Store interface {
	// Insert stores a new user and returns the assigned id.
	// Returns ErrEmailTaken when the email is already present.
	Insert(ctx context.Context, u *models.User) (primitive.ObjectID, error)
	// FindByEmail returns the user with the given email or ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByID returns the user with the given id or ErrUserNotFound.
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// FindByEmailOTP returns the user matching the (email, otp) pair whose
	// OTP expiry is after now, or ErrInvalidOTP.
	FindByEmailOTP(ctx context.Context, email, otp string, now time.Time) (*models.User, error)
	// SetVerified marks the user's email as verified.
	SetVerified(ctx context.Context, id primitive.ObjectID) error
	// SetResetOTP stores the OTP and its expiry on the user.
	SetResetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiry time.Time) error
	// ClearResetOTP removes the OTP and its expiry from the user.
	ClearResetOTP(ctx context.Context, id primitive.ObjectID) error
	// SetPasswordHash replaces the user's password hash.
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
}

// MongoStore implements Store on a MongoDB users collection.
type MongoStore struct {
	users *mongo.Collection
}

// NewMongoStore returns a Store backed by the given users collection.
func NewMongoStore(users *mongo.Collection) *MongoStore {
	return &MongoStore{users: users}
}

func (s *MongoStore) Insert(ctx context.Context, u *models.User) (primitive.ObjectID, error) {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, ErrEmailTaken
		}
		return primitive.NilObjectID, fmt.Errorf("inserting user: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id, nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, ErrUserNotFound)
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, ErrUserNotFound)
}

func (s *MongoStore) FindByEmailOTP(ctx context.Context, email, otp string, now time.Time) (*models.User, error) {
	filter := bson.M{
		"email":          email,
		"resetOtp":       otp,
		"resetOtpExpiry": bson.M{"$gt": now},
	}
	return s.findOne(ctx, filter, ErrInvalidOTP)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, missing error) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, missing
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

func (s *MongoStore) SetVerified(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{
		"$set": bson.M{"isVerified": true, "updatedAt": time.Now()},
	})
}

func (s *MongoStore) SetResetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiry time.Time) error {
	return s.update(ctx, id, bson.M{
		"$set": bson.M{"resetOtp": otp, "resetOtpExpiry": expiry, "updatedAt": time.Now()},
	})
}

func (s *MongoStore) ClearResetOTP(ctx context.Context, id primitive.ObjectID) error {
	return s.update(ctx, id, bson.M{
		"$set":   bson.M{"updatedAt": time.Now()},
		"$unset": bson.M{"resetOtp": "", "resetOtpExpiry": ""},
	})
}

func (s *MongoStore) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.update(ctx, id, bson.M{
		"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now()},
	})
}

func (s *MongoStore) update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
