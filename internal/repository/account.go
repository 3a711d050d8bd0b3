package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
)

// AccountRepository handles identity account data access
type AccountRepository struct {
	db database.Database
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db database.Database) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account. The email must already be lowercased.
func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		CREATE account CONTENT {
			email: $email,
			hash: $hash,
			created_on: time::now(),
			updated_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"email": account.Email,
		"hash":  ptrToNone(account.Hash),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email already registered", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	account.ID = created.ID
	account.CreatedOn = created.CreatedOn
	account.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT * FROM type::record($id)`
	return r.getOne(ctx, query, map[string]interface{}{"id": id})
}

// GetByEmail retrieves an account by lowercased email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT * FROM account WHERE email = $email LIMIT 1`
	return r.getOne(ctx, query, map[string]interface{}{"email": email})
}

// UpdatePassword replaces the password hash and revokes every refresh token of
// the account in one transaction.
func (r *AccountRepository) UpdatePassword(ctx context.Context, accountID, hash string) error {
	return database.NewAtomicBatch().
		Add(`UPDATE type::record($id) SET hash = $hash, updated_on = time::now()`, map[string]interface{}{
			"id":   accountID,
			"hash": hash,
		}).
		Add(`UPDATE refresh_token SET revoked = true WHERE account = type::record($id)`, map[string]interface{}{
			"id": accountID,
		}).
		Execute(ctx, r.db)
}

// Delete deletes an account. Its refresh tokens go with it.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE type::record($id)`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id})
}

func (r *AccountRepository) getOne(ctx context.Context, query string, vars map[string]interface{}) (*model.Account, error) {
	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	account, err := parseAccountResult(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func parseAccountResult(result interface{}) (*model.Account, error) {
	data, err := recordMap(result)
	if err != nil {
		return nil, err
	}

	var account model.Account
	if err := decodeRecord(data, &account); err != nil {
		return nil, err
	}

	// Hash is json:"-", copy it across by hand
	if h, ok := data["hash"].(string); ok {
		account.Hash = &h
	}
	return &account, nil
}
