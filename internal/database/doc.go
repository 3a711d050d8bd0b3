// Package database provides SurrealDB connectivity for the SipMate API.
//
// The Database interface has three query methods:
//
//   - Query: one {status, result} envelope per statement
//   - QueryOne: the first record of the first statement, or ErrNotFound
//   - Execute: mutations where the result is not needed
//
// # Errors
//
// Driver errors are classified into sentinels so repositories can branch on them:
//
//   - ErrDuplicate: a unique index rejected the write (username_lower, email, ...)
//   - ErrRecordExists: CREATE hit an existing record id
//   - ErrConnection: the connection failed or the per-call timeout elapsed
//   - ErrQuery: anything else the database rejected
//
//	if errors.Is(err, database.ErrDuplicate) {
//	    return service.ErrDuplicateUsername
//	}
//
// # Transactions
//
// AtomicBatch and TxBuilder accumulate statements and send them as one
// BEGIN/COMMIT block. See transaction.go.
//
// # Migrations
//
// LoadMigrations reads migrations/*.surql in name order and Migrate applies
// them. cmd/server runs them on boot when DB_AUTO_MIGRATE is set, and testdb
// runs them for every test namespace.
package database
