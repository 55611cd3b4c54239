package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agristack/agristack-auth/internal/user/entity"
)

// ErrNotFound is returned by lookups when no user matches.
var ErrNotFound = errors.New("user not found")

// DuplicateFieldError reports the unique field a create collided on.
// Field uses the wire names: username, email, agristackId, aadhaarNumber.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

// ValidationError reports a required/format constraint violation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IdentifierSet carries the candidate unique identifiers for a lookup.
// Empty fields are skipped.
type IdentifierSet struct {
	Username      string
	Email         string
	AgristackID   string
	AadhaarNumber string
}

// UserRepo provides data access for the users collection.
type UserRepo struct {
	col *mongo.Collection
}

// NewUserRepo constructs a UserRepo over the given database.
func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{col: db.Collection("users")}
}

// EnsureIndexes creates the unique and sparse-unique indexes the auth flows
// rely on. These indexes are the authoritative guard against duplicate
// inserts racing past the signup pre-check (idempotent).
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_username"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "agristack_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_agristack_id"),
		},
		{
			Keys:    bson.D{{Key: "aadhaar_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_aadhaar_number"),
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, models)
	return err
}

// Create validates and inserts a new user. Uniqueness violations, including
// those raced past FindByAnyIdentifier, surface as *DuplicateFieldError.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	if err := Validate(u); err != nil {
		return err
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &DuplicateFieldError{Field: duplicateField(err)}
		}
		return err
	}
	return nil
}

// Save persists mutations to an existing user, refreshing updated_at.
func (r *UserRepo) Save(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &DuplicateFieldError{Field: duplicateField(err)}
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByUsernameOrEmail matches the credential-login identifier against
// either the username or the email field.
func (r *UserRepo) FindByUsernameOrEmail(ctx context.Context, identifier string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": identifier},
	}})
}

// FindByEmail fetches a user by email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByAgristackID fetches a user by Agristack ID.
func (r *UserRepo) FindByAgristackID(ctx context.Context, agristackID string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"agristack_id": agristackID})
}

// FindByAadhaar fetches a user by Aadhaar number.
func (r *UserRepo) FindByAadhaar(ctx context.Context, aadhaarNumber string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"aadhaar_number": aadhaarNumber})
}

// FindByAnyIdentifier returns the first user matching any of the non-empty
// identifiers in ids. Used as the optimistic duplicate pre-check at signup.
func (r *UserRepo) FindByAnyIdentifier(ctx context.Context, ids IdentifierSet) (*entity.User, error) {
	or := bson.A{}
	if ids.Username != "" {
		or = append(or, bson.M{"username": ids.Username})
	}
	if ids.Email != "" {
		or = append(or, bson.M{"email": ids.Email})
	}
	if ids.AgristackID != "" {
		or = append(or, bson.M{"agristack_id": ids.AgristackID})
	}
	if ids.AadhaarNumber != "" {
		or = append(or, bson.M{"aadhaar_number": ids.AadhaarNumber})
	}
	if len(or) == 0 {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

// BackfillSIScore assigns the default SI score to documents predating the
// field. Returns the number of documents modified.
func (r *UserRepo) BackfillSIScore(ctx context.Context) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"si_score": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"si_score": entity.DefaultSIScore}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	var u entity.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// duplicateField maps a Mongo duplicate-key error back to the wire field
// name via the index names created in EnsureIndexes.
func duplicateField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "uniq_username") || strings.Contains(msg, "username"):
		return "username"
	case strings.Contains(msg, "uniq_email") || strings.Contains(msg, "email"):
		return "email"
	case strings.Contains(msg, "uniq_agristack_id") || strings.Contains(msg, "agristack_id"):
		return "agristackId"
	case strings.Contains(msg, "uniq_aadhaar_number") || strings.Contains(msg, "aadhaar_number"):
		return "aadhaarNumber"
	}
	return "username"
}
