package model

import (
	"strings"
	"time"
)

// Record tables for identity and profile. A profile shares its record key with
// the account that owns it: account:k <-> profile:k.
const (
	TableAccount = "account"
	TableProfile = "profile"
)

// Account is a credential record owned by the identity service
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Hash      *string   `json:"-"` // Never expose password hash
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// User is the application profile that pairs a username with an account.
// Email is the address the account actually signs in with.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// RecordKey returns the key part of a "table:key" record id.
// Ids without a table prefix are returned unchanged.
func RecordKey(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// ProfileID returns the profile record id paired with an account id
func ProfileID(accountID string) string {
	return TableProfile + ":" + RecordKey(accountID)
}

// AccountID returns the account record id paired with a profile id
func AccountID(profileID string) string {
	return TableAccount + ":" + RecordKey(profileID)
}

// TokenClaims represents extracted JWT claims
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}
