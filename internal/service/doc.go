// Package service implements the business logic layer for the SipMate API.
//
// Services sit between the HTTP handlers and the repositories. They validate
// input, orchestrate repository calls and translate storage failures into the
// sentinel errors in errors.go.
//
// # Service Pattern
//
//   - Constructor function (NewXxxService) accepts a config struct with its dependencies
//   - Each service declares the repository interface it needs
//   - Store failures are wrapped with ErrGatewayFailure; callers test with errors.Is
//
// # Identity and Profiles
//
// IdentityService owns accounts, passwords and sessions and only knows
// emails. AuthService maps usernames onto it: registration derives a synthetic
// email when none is given, and login tries the stored email before the
// addresses older registrations may have used. Session changes flow from
// IdentityService through AuthService (which keeps the profile in step) to
// any AuthListener, such as SavedWineService and the EventHub.
//
// # Saved Wines
//
// SavedWineService keeps one SavedWineStore per signed-in user. A store
// applies saves and unsaves to memory first, writes through to the
// repository, and restores only the affected wine if the write fails.
//
//	store, err := savedWines.Store(ctx, userID)
//	if err != nil {
//	    return err
//	}
//	err = store.Save(ctx, "w1", model.SaveDetails{Rating: &rating})
package service
