// Package model defines the domain entities shared by every layer of the
// SipMate API.
//
//   - Account, User: credentials and the username profile paired with them
//   - Wine, WineQuery: catalog entries and the pure search/filter/sort composition
//   - SavedWine, SaveDetails: a user's library entries
//   - Post, Comment, PostView: the community feed
//   - ProblemDetails: RFC 9457 error bodies
//
// Request types carry a Validate method returning []FieldError, which handlers
// turn into a 422 problem response.
package model
