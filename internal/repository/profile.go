package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
)

// ProfileRepository handles username profile data access
type ProfileRepository struct {
	db database.Database
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db database.Database) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create stores a profile under the record key of its account (user.ID may be
// given as either account:k or profile:k).
//
// A taken username (case-insensitive) returns database.ErrDuplicate.
// An existing profile for the same key returns database.ErrRecordExists.
func (r *ProfileRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		CREATE type::thing('profile', $key) CONTENT {
			username: $username,
			email: $email,
			created_on: time::now(),
			updated_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"key":      model.RecordKey(user.ID),
		"username": user.Username,
		"email":    user.Email,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return fmt.Errorf("%w: username already taken", database.ErrDuplicate)
		case isRecordExistsError(err):
			return fmt.Errorf("%w: profile already exists", database.ErrRecordExists)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	user.ID = created.ID
	user.CreatedOn = created.CreatedOn
	user.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT * FROM type::thing('profile', $key)`
	return r.getOne(ctx, query, map[string]interface{}{"key": model.RecordKey(id)})
}

// GetByUsername retrieves a profile by username, ignoring case
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT * FROM profile WHERE username_lower = string::lowercase($username) LIMIT 1`
	return r.getOne(ctx, query, map[string]interface{}{"username": username})
}

// UpdateEmail records the email the account actually signs in with
func (r *ProfileRepository) UpdateEmail(ctx context.Context, id, email string) error {
	query := `UPDATE type::thing('profile', $key) SET email = $email, updated_on = time::now()`
	vars := map[string]interface{}{
		"key":   model.RecordKey(id),
		"email": email,
	}
	return r.db.Execute(ctx, query, vars)
}

// Delete removes a profile. Saved wines and likes cascade.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE type::thing('profile', $key)`
	return r.db.Execute(ctx, query, map[string]interface{}{"key": model.RecordKey(id)})
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.User, error) {
	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	data, err := recordMap(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var user model.User
	if err := decodeRecord(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
