// Package jobs implements background jobs for the SipMate API.
//
// Jobs run on their own goroutine, independently of HTTP request handling.
// Each has Start and Stop for the server lifecycle and RunOnce for tests and
// manual runs.
//
//   - TokenSweeper: purges expired refresh tokens and old revoked ones
//
// Jobs log failures and keep running.
package jobs
