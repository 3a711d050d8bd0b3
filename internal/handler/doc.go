// Package handler provides HTTP request handlers for the SipMate API.
//
// Each handler struct wraps the narrow service interface it needs, declared
// next to it (AuthAPI, CatalogAPI, SavedWinesAPI, CommunityAPI, EventStream),
// and registers its own routes on a ServeMux.
//
// # Handler Pattern
//
//   - Constructor function (NewXxxHandler) accepts its dependencies
//   - RegisterRoutes wires method patterns, wrapping protected routes
//   - Response helpers from response.go standardize output format
//   - Service errors go through WriteServiceError
//
// # Response Format
//
//   - WriteData: single resource with optional HATEOAS links
//   - WriteCollection: list with its count
//   - WriteError: RFC 9457 Problem Details error response
//
// # Errors
//
// MapServiceError turns service sentinels into problems: validation into 422
// with field errors, conflicts into 409, bad credentials into 401, missing
// records into 404. Gateway failures become 503 with a Retry-After hint when
// the request method is idempotent and 500 otherwise.
//
// # Example Usage
//
//	wines := handler.NewWineHandler(catalogService, imageURLs)
//	wines.RegisterRoutes(mux)
//
//	saved := handler.NewSavedWineHandler(savedWineService)
//	saved.RegisterRoutes(mux, middleware.Auth(identityService))
package handler
